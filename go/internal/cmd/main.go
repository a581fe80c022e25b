package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeMode := getEnv("STORE", "postgres")

	var services *Services
	switch storeMode {
	case "memory":
		log.Info().Msg("using in-memory store, events stay in-process")
		services = setupMemoryServices(cfg)
	default:
		pool, db, dsn, err := setupDatabase(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to setup database")
		}
		defer pool.Close()
		defer db.Close()

		services, err = setupServices(ctx, cfg, pool, db, dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to setup services")
		}
	}

	if services.NATSConn != nil {
		defer services.NATSConn.Close()
	}

	// Outbox relay: ships staged events to JetStream
	if services.Relay != nil {
		go func() {
			if err := services.Relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("outbox relay failed")
			}
		}()
	}

	// Gateway: connection manager plus the stream consumer when present
	go func() {
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	server := setupServer(cfg, services)

	go func() {
		log.Info().Str("addr", server.Addr).Str("store", storeMode).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Cancel in-flight reveals before tearing down the pipeline
	services.Scheduler.Close()

	cancel()

	if services.Relay != nil {
		if err := services.Relay.Stop(); err != nil {
			log.Error().Err(err).Msg("outbox relay shutdown failed")
		}
	}

	// Give services time to clean up
	time.Sleep(1 * time.Second)

	log.Info().Msg("shutdown complete")
}
