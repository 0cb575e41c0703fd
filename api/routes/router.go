package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmonterroso/fieldledger-backend/api/controllers"
	"github.com/rmonterroso/fieldledger-backend/api/middleware"
	"github.com/rmonterroso/fieldledger-backend/internal/attachments"
	"github.com/rmonterroso/fieldledger-backend/internal/cashbox"
	"github.com/rmonterroso/fieldledger-backend/internal/ledger"
	"github.com/rmonterroso/fieldledger-backend/internal/reversal"
	"github.com/rmonterroso/fieldledger-backend/pkg/config"
	"github.com/rmonterroso/fieldledger-backend/pkg/db"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	"github.com/rmonterroso/fieldledger-backend/pkg/metrics"
	pkgredis "github.com/rmonterroso/fieldledger-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	ledgerService ledger.Service,
	reversalService reversal.Service,
	attachmentsService attachments.Service,
	cashboxProjector *cashbox.Projector,
	syncMetrics *metrics.SyncMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var redisP pkgredis.Pinger
	var idempotencyStore pkgredis.IdempotencyStore
	if redisClient != nil {
		redisP = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/events", func(r chi.Router) {
			r.Post("/", controllers.SubmitEvent(ledgerService, syncMetrics, logg))
			r.Get("/", controllers.QueryEvents(ledgerService, logg))
			r.Get("/{eventId}", controllers.GetEvent(ledgerService, logg))
			r.Post("/{eventId}/reverse", controllers.ReverseEvent(reversalService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePrivileged(logg))
				r.Post("/{eventId}/hidden", controllers.SetEventHidden(ledgerService, logg))
				r.Post("/{eventId}/duplicate-flag", controllers.SetEventDuplicateFlag(ledgerService, logg))
				r.Post("/sweep-duplicates", controllers.SweepDuplicates(ledgerService, logg))
			})
		})

		r.Route("/attachments", func(r chi.Router) {
			r.Post("/", controllers.UploadAttachment(attachmentsService, logg))
			r.Get("/", controllers.ListAttachments(attachmentsService, logg))
			r.Get("/{attachmentId}", controllers.GetAttachment(attachmentsService, logg))
		})

		r.Route("/cashbox", func(r chi.Router) {
			r.Get("/me", controllers.MyCashBalance(cashboxProjector, logg))
			r.Get("/users/{userId}", controllers.UserCashBalance(cashboxProjector, logg))
		})
	})

	return r
}
