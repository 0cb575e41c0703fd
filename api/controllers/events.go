package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/api/middleware"
	"github.com/rmonterroso/fieldledger-backend/api/responses"
	"github.com/rmonterroso/fieldledger-backend/api/validators"
	"github.com/rmonterroso/fieldledger-backend/internal/ledger"
	"github.com/rmonterroso/fieldledger-backend/internal/reversal"
	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	"github.com/rmonterroso/fieldledger-backend/pkg/metrics"
)

type submitEventRequest struct {
	ClientUUID  uuid.UUID        `json:"client_uuid" validate:"required"`
	EventType   string           `json:"event_type" validate:"required"`
	ProjectID   *uuid.UUID       `json:"project_id,omitempty"`
	Payload     json.RawMessage  `json:"payload" validate:"required"`
	CreatedBy   *uuid.UUID       `json:"created_by,omitempty"`
	DeviceID    *string          `json:"device_id,omitempty"`
	Geolocation *models.GeoPoint `json:"geolocation,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
}

// SubmitEvent appends one captured event to the ledger. A retry carrying a
// client uuid that already landed returns the original row with a duplicate
// status instead of a second copy.
func SubmitEvent(svc ledger.Service, syncMetrics *metrics.SyncMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req submitEventRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventType, err := enums.ParseEventType(req.EventType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event type"))
			return
		}

		createdBy, err := resolveCreator(r, req.CreatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deviceID := req.DeviceID
		if deviceID == nil {
			if fromToken := middleware.DeviceIDFromContext(r.Context()); fromToken != "" {
				deviceID = &fromToken
			}
		}

		result, err := svc.Submit(r.Context(), ledger.SubmitInput{
			ClientUUID:  req.ClientUUID,
			EventType:   eventType,
			ProjectID:   req.ProjectID,
			Payload:     req.Payload,
			CreatedBy:   createdBy,
			DeviceID:    deviceID,
			Geolocation: req.Geolocation,
			CreatedAt:   req.CreatedAt,
		})
		if err != nil {
			syncMetrics.IncSubmission("error")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		syncMetrics.IncSubmission(string(result.Status))
		status := http.StatusCreated
		if result.Status == ledger.SubmitDuplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// QueryEvents lists ledger rows with optional project, type, creator, and
// time range filters.
func QueryEvents(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		filter := ledger.ListFilter{}

		projectID, err := validators.ParseQueryUUID(r, "project_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.ProjectID = projectID

		if rawType := r.URL.Query().Get("event_type"); rawType != "" {
			eventType, err := enums.ParseEventType(rawType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event type"))
				return
			}
			filter.EventType = &eventType
		}

		createdBy, err := validators.ParseQueryUUID(r, "created_by")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.CreatedBy = createdBy

		if filter.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		includeHidden, err := validators.ParseQueryBool(r, "include_hidden", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if includeHidden && !enums.ActorRole(middleware.RoleFromContext(r.Context())).IsPrivileged() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "hidden events require a privileged role"))
			return
		}
		filter.IncludeHidden = includeHidden

		if filter.Limit, err = validators.ParseQueryInt(r, "limit", 100, 1, 500); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Offset, err = validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Query(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"events": rows})
	}
}

// GetEvent fetches a single ledger row by server id.
func GetEvent(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		id, err := parseEventID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

type flagRequest struct {
	Value *bool `json:"value" validate:"required"`
}

// SetEventHidden toggles ledger-level suppression on a row.
func SetEventHidden(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setEventFlag(w, r, svc, logg, func(id uuid.UUID, value bool) error {
			return svc.SetHidden(r.Context(), id, value)
		})
	}
}

// SetEventDuplicateFlag toggles the advisory duplicate flag on a row.
func SetEventDuplicateFlag(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setEventFlag(w, r, svc, logg, func(id uuid.UUID, value bool) error {
			return svc.SetDuplicateFlag(r.Context(), id, value)
		})
	}
}

func setEventFlag(w http.ResponseWriter, r *http.Request, svc ledger.Service, logg *logger.Logger, apply func(uuid.UUID, bool) error) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
		return
	}

	id, err := parseEventID(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	var req flagRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	if err := apply(id, *req.Value); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{"id": id, "value": *req.Value})
}

type sweepRequest struct {
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	Day       string     `json:"day" validate:"required"`
}

// SweepDuplicates reruns duplicate detection over one project day and
// reconciles flags. The day is a civil date, YYYY-MM-DD, in the governing
// timezone.
func SweepDuplicates(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var req sweepRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		day, err := time.Parse("2006-01-02", req.Day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "day must be YYYY-MM-DD"))
			return
		}

		changed, err := svc.SweepDuplicates(r.Context(), req.ProjectID, day)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"changed": changed})
	}
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

const reverseReasonMaxLen = 500

// ReverseEvent voids an event inside its accounting week by appending a
// reversal row. Past the Saturday cutoff the rejection is terminal.
func ReverseEvent(svc reversal.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reversal service unavailable"))
			return
		}

		id, err := parseEventID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req reverseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "actor role missing"))
			return
		}

		reason := validators.SanitizeString(req.Reason, reverseReasonMaxLen)
		if reason == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reason is required"))
			return
		}

		result, err := svc.Reverse(r.Context(), reversal.ReverseInput{
			OriginalEventID: id,
			Reason:          reason,
			ActorID:         actorID,
			ActorRole:       role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func parseEventID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "eventId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id")
	}
	return id, nil
}

func actorFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return id, nil
}

// resolveCreator trusts the token identity; only privileged actors may
// submit on behalf of another user, which sync relays do when draining a
// device outbox.
func resolveCreator(r *http.Request, requested *uuid.UUID) (uuid.UUID, error) {
	actorID, err := actorFromContext(r)
	if err != nil {
		return uuid.Nil, err
	}
	if requested == nil || *requested == actorID {
		return actorID, nil
	}
	if !enums.ActorRole(middleware.RoleFromContext(r.Context())).IsPrivileged() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot submit events for another user")
	}
	return *requested, nil
}
