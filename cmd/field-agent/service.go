package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	gosync "sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/internal/events"
	"github.com/rmonterroso/fieldledger-backend/internal/outbox"
	syncpkg "github.com/rmonterroso/fieldledger-backend/internal/sync"
	"github.com/rmonterroso/fieldledger-backend/pkg/config"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

const (
	defaultSyncInterval = 2 * time.Minute
	purgeRetention      = 24 * time.Hour
	deviceIDFileName    = "device_id"
)

type syncer interface {
	Sync(ctx context.Context, trigger string) (syncpkg.Result, error)
}

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Store   *outbox.Store
	Engine  syncer
	Builder *events.Builder
}

// Service drains the local outbox on an interval and serves the device-local
// capture API. Passes never overlap: a manual trigger waits for the running
// pass to finish.
type Service struct {
	cfg      *config.Config
	logg     *logger.Logger
	store    *outbox.Store
	engine   syncer
	builder  *events.Builder
	interval time.Duration

	mu gosync.Mutex
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Store == nil {
		return nil, errors.New("outbox store is required")
	}
	if params.Engine == nil {
		return nil, errors.New("sync engine is required")
	}
	if params.Builder == nil {
		return nil, errors.New("event builder is required")
	}

	interval := params.Config.Agent.SyncInterval
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	return &Service{
		cfg:      params.Config,
		logg:     params.Logger,
		store:    params.Store,
		engine:   params.Engine,
		builder:  params.Builder,
		interval: interval,
	}, nil
}

// Run blocks until ctx is canceled. SIGHUP forces an immediate pass.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:    ":" + s.cfg.Agent.LocalPort,
		Handler: s.localHandler(),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logg.Error(ctx, "local api stopped unexpectedly", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	s.drain(ctx, "startup")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "field agent context canceled")
			return ctx.Err()
		case <-hup:
			s.drain(ctx, "signal")
		case <-ticker.C:
			s.drain(ctx, "interval")
			s.purge(ctx)
		}
	}
}

func (s *Service) drain(ctx context.Context, trigger string) syncpkg.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.engine.Sync(ctx, trigger)
	fields := map[string]any{
		"trigger": trigger,
		"synced":  result.Synced,
		"errors":  result.Errors,
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return result
		}
		s.logg.Error(s.logg.WithFields(ctx, fields), "sync pass finished with errors", err)
		return result
	}
	if result.Synced > 0 || result.Errors > 0 {
		s.logg.Info(s.logg.WithFields(ctx, fields), "sync pass complete")
	}
	return result
}

func (s *Service) purge(ctx context.Context) {
	cutoff := time.Now().Add(-purgeRetention)
	if _, err := s.store.PurgeSynced(ctx, cutoff); err != nil {
		s.logg.Error(ctx, "purge delivered entries", err)
	}
}

// loadDeviceID returns the stable identifier for this installation, minting
// and persisting one on first run.
func loadDeviceID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, deviceIDFileName)
	raw, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	id := "device-" + uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", err
	}
	return id, nil
}
