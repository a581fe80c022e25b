package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metadiscourse/metaworkshop/go/internal/combo"
	"github.com/metadiscourse/metaworkshop/go/internal/dedup"
	"github.com/metadiscourse/metaworkshop/go/internal/gateway"
	"github.com/metadiscourse/metaworkshop/go/internal/httpapi"
	"github.com/metadiscourse/metaworkshop/go/internal/outbox"
	"github.com/metadiscourse/metaworkshop/go/internal/reveal"
	"github.com/metadiscourse/metaworkshop/go/internal/session"
	"github.com/metadiscourse/metaworkshop/go/internal/store"
	"github.com/nats-io/nats.go"
)

// Services holds the wired application components. Relay and NATSConn are
// nil in memory mode, where events bypass the durable pipeline.
type Services struct {
	Store       store.Store
	Coordinator *session.Coordinator
	Scheduler   *reveal.Scheduler
	API         *httpapi.Service
	Gateway     *gateway.Service
	Relay       *outbox.Listener
	NATSConn    *nats.Conn
}

// setupServices wires the full dependency chain: the Postgres-backed
// store and outbox staging, the NATS relay, the coordinator stack, and
// the participant-facing HTTP and WebSocket surfaces.
func setupServices(ctx context.Context, cfg *Config, pool *pgxpool.Pool, db *sql.DB, dsn string) (*Services, error) {
	repo := store.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	outboxRepo := outbox.NewRepository(db)
	if err := outboxRepo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	nc, err := outbox.ConnectNATS(cfg.NATS.URL)
	if err != nil {
		return nil, err
	}
	publisher, err := outbox.NewNATSPublisher(ctx, nc)
	if err != nil {
		nc.Close()
		return nil, err
	}
	relay, err := outbox.NewListener(outboxRepo, publisher, outbox.DefaultListenerConfig(dsn))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create outbox relay: %w", err)
	}

	broadcaster := outbox.NewBroadcaster(outboxRepo)
	engine := dedup.NewEngine(repo)
	detector := combo.NewDetector(repo)
	scheduler := reveal.NewScheduler(repo, broadcaster)
	coordinator := session.NewCoordinator(engine, detector, scheduler, broadcaster)

	api := httpapi.NewService(repo, engine, coordinator, cfg.Session.AuthorityToken)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = cfg.NATS.URL
	gatewaySvc, err := gateway.NewService(gatewayConfig, nil)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Services{
		Store:       repo,
		Coordinator: coordinator,
		Scheduler:   scheduler,
		API:         api,
		Gateway:     gatewaySvc,
		Relay:       relay,
		NATSConn:    nc,
	}, nil
}

// setupMemoryServices wires everything against the in-memory store with an
// in-process gateway. Intended for local development; nothing survives a
// restart and no external services are required.
func setupMemoryServices(cfg *Config) *Services {
	mem := store.NewMemory()
	gatewaySvc := gateway.NewLocalService(gateway.DefaultConnectionConfig(), nil)

	engine := dedup.NewEngine(mem)
	detector := combo.NewDetector(mem)
	scheduler := reveal.NewScheduler(mem, gatewaySvc)
	coordinator := session.NewCoordinator(engine, detector, scheduler, gatewaySvc)

	api := httpapi.NewService(mem, engine, coordinator, cfg.Session.AuthorityToken)

	return &Services{
		Store:       mem,
		Coordinator: coordinator,
		Scheduler:   scheduler,
		API:         api,
		Gateway:     gatewaySvc,
	}
}
