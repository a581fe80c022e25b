package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/metadiscourse/metaworkshop/go/internal/events"
	"github.com/rs/zerolog/log"
)

// Service is the broadcast gateway: it consumes the session event stream
// and pushes events to WebSocket participants and to the handler map.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	handlers          *events.HandlerMap
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the gateway.
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates a gateway service. The handler map receives every
// consumed event after WebSocket fan-out; pass nil when the process hosts
// no participant-side reducers.
func NewService(config Config, handlers *events.HandlerMap) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	wsHandler := NewWebSocketHandler(connectionManager)

	eventConsumer, err := NewEventConsumer(connectionManager, handlers, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
		eventConsumer:     eventConsumer,
	}, nil
}

// NewLocalService creates a gateway that receives events in-process via
// Broadcast instead of consuming them from JetStream. Used by the
// memory-store dev mode, where no durable pipeline exists.
func NewLocalService(config ConnectionConfig, handlers *events.HandlerMap) *Service {
	connectionManager := NewConnectionManager(config)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		handlers:          handlers,
	}
}

// Broadcast delivers an event directly to connected participants. Only
// valid on a local gateway; stream-backed gateways receive events through
// the JetStream consumer.
func (s *Service) Broadcast(ctx context.Context, env events.Envelope) error {
	s.connectionManager.BroadcastToSession(env.SessionCode, env)
	if s.handlers != nil {
		if err := s.handlers.Dispatch(ctx, env); err != nil {
			log.Warn().Err(err).
				Str("event_type", string(env.Type)).
				Msg("local event handler failed")
		}
	}
	return nil
}

// Start runs the gateway until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting session gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("session gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service.
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("session gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("session gateway routes registered")
}
