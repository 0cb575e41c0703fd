package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/internal/events"
	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

// SubmitStatus is the outcome of one submission attempt.
type SubmitStatus string

const (
	// SubmitAccepted means a new ledger row was appended.
	SubmitAccepted SubmitStatus = "accepted"
	// SubmitDuplicate means the client uuid was already recorded; the
	// earlier row is the record and the retry is a confirmed delivery.
	SubmitDuplicate SubmitStatus = "duplicate"
)

// SubmitInput is everything a device asserts about one captured event.
type SubmitInput struct {
	ClientUUID  uuid.UUID        `json:"client_uuid"`
	EventType   enums.EventType  `json:"event_type"`
	ProjectID   *uuid.UUID       `json:"project_id,omitempty"`
	Payload     json.RawMessage  `json:"payload"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	DeviceID    *string          `json:"device_id,omitempty"`
	Geolocation *models.GeoPoint `json:"geolocation,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// SubmitResult reports the outcome plus any advisory same-day matches the
// detector found. Matches never block acceptance.
type SubmitResult struct {
	Status          SubmitStatus   `json:"status"`
	Event           *models.Event  `json:"event"`
	AdvisoryMatches []models.Event `json:"advisory_matches,omitempty"`
}

// DuplicateChecker is the slice of the detector the ledger needs.
type DuplicateChecker interface {
	FindMatches(ctx context.Context, candidate models.Event) ([]models.Event, error)
	Sweep(ctx context.Context, projectID *uuid.UUID, day time.Time) (int, error)
}

// Service defines operations over the append-only event ledger.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Query(ctx context.Context, filter ListFilter) ([]models.Event, error)
	SetHidden(ctx context.Context, id uuid.UUID, hidden bool) error
	SetDuplicateFlag(ctx context.Context, id uuid.UUID, flagged bool) error
	SweepDuplicates(ctx context.Context, projectID *uuid.UUID, day time.Time) (int, error)
}

type service struct {
	repo    Repository
	checker DuplicateChecker
	logg    *logger.Logger
}

// NewService wires the ledger service with its repository and detector.
func NewService(repo Repository, checker DuplicateChecker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if checker == nil {
		return nil, fmt.Errorf("duplicate checker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, checker: checker, logg: logg}, nil
}

// Submit validates and appends one event. The unique index on client_uuid is
// what makes retries safe: a second arrival of the same capture comes back as
// SubmitDuplicate carrying the earlier row, never as a second row.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if input.ClientUUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client uuid is required")
	}
	if input.CreatedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator is required")
	}
	if _, err := events.ValidatePayload(input.EventType, input.Payload); err != nil {
		return nil, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	event := models.Event{
		ClientUUID:  input.ClientUUID,
		EventType:   input.EventType,
		ProjectID:   input.ProjectID,
		Payload:     input.Payload,
		CreatedBy:   input.CreatedBy,
		DeviceID:    input.DeviceID,
		Geolocation: input.Geolocation,
		CreatedAt:   createdAt,
	}

	// The pre-check is advisory only: matches ride along in the result but
	// never set duplicate_flag here. Flag assignment is the sweep's job,
	// which picks the earliest member as canonical; flagging at insert time
	// would invert that whenever the earliest capture syncs last.
	matches, err := s.checker.FindMatches(ctx, event)
	if err != nil {
		// The advisory check failing must not lose field data.
		s.logg.Warn(s.logg.WithEventType(ctx, string(input.EventType)), "duplicate pre-check failed, accepting without advisory")
		matches = nil
	}

	if err := s.repo.Insert(ctx, &event); err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && typed.Code() == pkgerrors.CodeConflict {
			existing, getErr := s.repo.GetByClientUUID(ctx, input.ClientUUID)
			if getErr != nil {
				return nil, getErr
			}
			return &SubmitResult{Status: SubmitDuplicate, Event: existing}, nil
		}
		return nil, err
	}

	ctx = s.logg.WithEventType(s.logg.WithField(ctx, "event_id", event.ID.String()), string(event.EventType))
	s.logg.Info(ctx, "event appended to ledger")

	return &SubmitResult{
		Status:          SubmitAccepted,
		Event:           &event,
		AdvisoryMatches: matches,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) Query(ctx context.Context, filter ListFilter) ([]models.Event, error) {
	if filter.EventType != nil && !filter.EventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid event type %q", *filter.EventType))
	}
	return s.repo.List(ctx, filter)
}

func (s *service) SetHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	return s.repo.SetHidden(ctx, id, hidden)
}

func (s *service) SetDuplicateFlag(ctx context.Context, id uuid.UUID, flagged bool) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	return s.repo.SetDuplicateFlag(ctx, id, flagged)
}

func (s *service) SweepDuplicates(ctx context.Context, projectID *uuid.UUID, day time.Time) (int, error) {
	return s.checker.Sweep(ctx, projectID, day)
}
