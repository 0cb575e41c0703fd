package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmonterroso/fieldledger-backend/api/routes"
	"github.com/rmonterroso/fieldledger-backend/internal/attachments"
	"github.com/rmonterroso/fieldledger-backend/internal/cashbox"
	"github.com/rmonterroso/fieldledger-backend/internal/duplicates"
	"github.com/rmonterroso/fieldledger-backend/internal/ledger"
	"github.com/rmonterroso/fieldledger-backend/internal/reversal"
	"github.com/rmonterroso/fieldledger-backend/pkg/config"
	"github.com/rmonterroso/fieldledger-backend/pkg/db"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	"github.com/rmonterroso/fieldledger-backend/pkg/metrics"
	"github.com/rmonterroso/fieldledger-backend/pkg/migrate"
	"github.com/rmonterroso/fieldledger-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	loc, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		logg.Error(context.Background(), "failed to load ledger timezone", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	detector := duplicates.NewDetector(ledgerRepo, loc, logg)

	ledgerService, err := ledger.NewService(ledgerRepo, detector, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	reversalService, err := reversal.NewService(ledgerService, loc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reversal service", err)
		os.Exit(1)
	}

	attachmentsService, err := attachments.NewService(
		attachments.NewRepository(dbClient.DB()),
		cfg.Attachments.Dir,
		int64(cfg.Attachments.MaxUploadMB)<<20,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create attachments service", err)
		os.Exit(1)
	}

	cashboxProjector, err := cashbox.NewProjector(ledgerRepo, cfg.Ledger.ProjectionWindow, cfg.Ledger.ProjectionMovements, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cashbox projector", err)
		os.Exit(1)
	}

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"timezone": cfg.Ledger.Timezone,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ledgerService,
			reversalService,
			attachmentsService,
			cashboxProjector,
			syncMetrics,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
