package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/rmonterroso/fieldledger-backend/api/responses"
	"github.com/rmonterroso/fieldledger-backend/pkg/config"
	"github.com/rmonterroso/fieldledger-backend/pkg/db"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	pkgredis "github.com/rmonterroso/fieldledger-backend/pkg/redis"
)

const readyProbeTimeout = 3 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FieldLedger-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis. A nil dependency is skipped so
// deployments without redis still report ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FieldLedger-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		checks := map[string]string{}

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable").WithDetails(map[string]any{"checks": checks}))
				return
			}
			checks["database"] = "ok"
		} else {
			checks["database"] = "skipped"
		}

		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").WithDetails(map[string]any{"checks": checks}))
				return
			}
			checks["redis"] = "ok"
		} else {
			checks["redis"] = "skipped"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
