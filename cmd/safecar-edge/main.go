package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"safecar-edge/internal/alerts"
	"safecar-edge/internal/api"
	"safecar-edge/internal/config"
	"safecar-edge/internal/engine"
	"safecar-edge/internal/gateway"
	"safecar-edge/internal/iam"
	"safecar-edge/internal/ingest"
	"safecar-edge/internal/logging"
	"safecar-edge/internal/metrics"
	"safecar-edge/internal/storage"
	"safecar-edge/internal/syncer"
)

var version = "dev"

const (
	metricsDeviceLimit = 1024
	alertsBufferLimit  = 500
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("safecar-edge starting", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("initializing ledger: %w", err)
	}
	logger.Info("ledger ready", "driver", cfg.Storage.Driver)

	auth := iam.NewService(cfg.Auth, store, logger)
	defer auth.Close()
	if err := auth.EnsureBootstrapDevice(ctx, cfg.Auth.Bootstrap); err != nil {
		return fmt.Errorf("bootstrap device: %w", err)
	}

	backend := gateway.NewClient(cfg.Backend, logger)
	metricsStore := metrics.NewStore(metricsDeviceLimit)
	alertsStore := alerts.NewStore(alertsBufferLimit)

	eng := engine.NewEngine(store, backend, metricsStore, alertsStore, logger)

	if cfg.Ingest.REST.Enabled {
		ingest.StartREST(ctx, cfg.Ingest.REST, eng, auth, logger)
	}
	if cfg.Ingest.Kafka.Enabled {
		ingest.StartKafka(ctx, cfg.Ingest.Kafka, eng, auth, logger)
	}
	if cfg.API.Enabled {
		api.Start(ctx, cfg, store, auth, backend, metricsStore, alertsStore, logger, version)
	}
	if cfg.Sync.Enabled {
		go syncer.New(cfg.Sync, store, backend, logger).Run(ctx)
	}

	<-ctx.Done()
	logger.Info("safecar-edge shutting down")
	return nil
}
