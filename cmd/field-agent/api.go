package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/api/responses"
	"github.com/rmonterroso/fieldledger-backend/api/validators"
	"github.com/rmonterroso/fieldledger-backend/internal/events"
	"github.com/rmonterroso/fieldledger-backend/internal/outbox"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
)

type captureAttachment struct {
	FileName    string `json:"file_name" validate:"required"`
	ContentType string `json:"content_type" validate:"required"`
	Data        []byte `json:"data" validate:"required"`
}

type captureRequest struct {
	EventType   string              `json:"event_type" validate:"required"`
	ProjectID   *uuid.UUID          `json:"project_id,omitempty"`
	Payload     json.RawMessage     `json:"payload" validate:"required"`
	CreatedBy   uuid.UUID           `json:"created_by" validate:"required"`
	Attachments []captureAttachment `json:"attachments,omitempty"`
}

// localHandler serves the device-local API the capture UI talks to. It never
// touches the network: captures land in the outbox and wait for a sync pass.
func (s *Service) localHandler() http.Handler {
	r := chi.NewRouter()

	r.Post("/events", s.handleCapture)
	r.Get("/outbox/status", s.handleStatus)
	r.Post("/sync", s.handleSyncNow)

	return r
}

func (s *Service) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}

	eventType, err := enums.ParseEventType(req.EventType)
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event type"))
		return
	}

	event, err := s.builder.Build(r.Context(), events.BuildInput{
		EventType: eventType,
		ProjectID: req.ProjectID,
		Payload:   req.Payload,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}

	attachments := make([]outbox.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, outbox.Attachment{
			FileName:    a.FileName,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
	}

	if err := s.store.Enqueue(r.Context(), event, attachments); err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}

	responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
		"client_uuid": event.ClientUUID,
		"created_at":  event.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.Status(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}
	responses.WriteSuccess(w, status)
}

func (s *Service) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	result := s.drain(r.Context(), "manual")
	responses.WriteSuccess(w, result)
}
