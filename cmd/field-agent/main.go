package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/rmonterroso/fieldledger-backend/internal/events"
	"github.com/rmonterroso/fieldledger-backend/internal/outbox"
	syncpkg "github.com/rmonterroso/fieldledger-backend/internal/sync"
	"github.com/rmonterroso/fieldledger-backend/pkg/config"
	"github.com/rmonterroso/fieldledger-backend/pkg/db"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	"github.com/rmonterroso/fieldledger-backend/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "field-agent"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "field-agent",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := os.MkdirAll(cfg.Agent.DataDir, 0o755); err != nil {
		logg.Error(context.Background(), "failed to create agent data dir", err)
		os.Exit(1)
	}

	deviceID, err := loadDeviceID(cfg.Agent.DataDir)
	if err != nil {
		logg.Error(context.Background(), "failed to load device id", err)
		os.Exit(1)
	}

	localDB := config.DBConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(cfg.Agent.DataDir, "outbox.db"),
	}
	dbClient, err := db.New(context.Background(), localDB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open local database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing local database", err)
		}
	}()

	store := outbox.NewStore(dbClient)
	if err := store.Migrate(); err != nil {
		logg.Error(context.Background(), "failed to migrate local outbox", err)
		os.Exit(1)
	}

	client, err := syncpkg.NewClient(cfg.Agent.ServerURL, cfg.Agent.Token, cfg.Agent.HTTPTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to build sync client", err)
		os.Exit(1)
	}

	engine, err := syncpkg.NewEngine(store, client, logg, metrics.NewSyncMetrics(nil))
	if err != nil {
		logg.Error(context.Background(), "failed to build sync engine", err)
		os.Exit(1)
	}

	builder := events.NewBuilder(deviceID, nil, cfg.Agent.GeoTimeout)

	service, err := NewService(ServiceParams{
		Config:  cfg,
		Logger:  logg,
		Store:   store,
		Engine:  engine,
		Builder: builder,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create field agent", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"device_id": deviceID,
		"server":    cfg.Agent.ServerURL,
	})
	logg.Info(ctx, "starting field agent")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "field agent stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "field agent shutting down gracefully")
}
