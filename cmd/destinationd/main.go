package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/relayforge/destinations/internal/cache"
	"github.com/relayforge/destinations/internal/config"
	"github.com/relayforge/destinations/internal/destination"
	"github.com/relayforge/destinations/internal/instrument"
	"github.com/relayforge/destinations/internal/registration"
	"github.com/relayforge/destinations/internal/runtime"
	"github.com/relayforge/destinations/internal/server"
	"github.com/relayforge/destinations/internal/storage/sqlite"
	"github.com/relayforge/destinations/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer("relayforge-destinations", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(os.Getenv("DEST_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lookupCache := cache.New(cfg.Cache.MaxEntries)

	registry := destination.NewRegistry()
	if err := registration.RegisterBuiltins(registry, cfg.Destinations, destination.BuildOptions{Cache: lookupCache}); err != nil {
		log.Fatalf("Failed to register destinations: %v", err)
	}

	var sink instrument.Sink
	var store *sqlite.Store
	if cfg.Storage.Type == "sqlite" {
		store, err = sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open delivery store: %v", err)
		}
		defer store.Close()
		sink = store
	}

	engine := runtime.New(registry, logger)

	srv := server.New(engine, logger, server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		Sink:           sink,
		Store:          store,
	})

	logger.Info("destinations service configured",
		slog.String("storage", cfg.Storage.Type),
		slog.Any("destinations", registry.Slugs()),
	)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
