package reversal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/internal/ledger"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
	"github.com/rmonterroso/fieldledger-backend/pkg/timeutil"
)

// serverDeviceID marks ledger rows minted server-side rather than synced
// from a field device.
const serverDeviceID = "server"

// ReverseInput identifies the event to void and who is asking.
type ReverseInput struct {
	OriginalEventID uuid.UUID
	Reason          string
	ActorID         uuid.UUID
	ActorRole       enums.ActorRole
}

// Service applies the accounting-week reversal policy. Nothing is ever
// edited or deleted: a reversal is a new EVENT_REVERSED row, and for
// privileged actors a hidden flag on the original.
type Service interface {
	Reverse(ctx context.Context, input ReverseInput) (*ledger.SubmitResult, error)
}

type service struct {
	ledger ledger.Service
	loc    *time.Location
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires the reversal policy over the ledger.
func NewService(ledgerSvc ledger.Service, loc *time.Location, logg *logger.Logger) (Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if loc == nil {
		return nil, fmt.Errorf("location required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{ledger: ledgerSvc, loc: loc, logg: logg, now: time.Now}, nil
}

// Reverse voids an event if the accounting week containing its capture has
// not closed. The window ends the upcoming Saturday at 23:59:59.999 in the
// governing timezone; past that, the rejection is terminal, never retried.
func (s *service) Reverse(ctx context.Context, input ReverseInput) (*ledger.SubmitResult, error) {
	if input.OriginalEventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "original event id is required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reversal reason is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	if !input.ActorRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid actor role %q", input.ActorRole))
	}

	original, err := s.ledger.GetByID(ctx, input.OriginalEventID)
	if err != nil {
		return nil, err
	}
	if original.EventType == enums.EventEventReversed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reversal cannot be reversed")
	}

	// Only installers are confined to their own events. Managers may reverse
	// anyone's; admin and developer additionally hide the original below.
	if input.ActorRole == enums.ActorRoleInstaller && original.CreatedBy != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the creator may reverse this event")
	}

	if !timeutil.WithinReversalWindow(s.now(), original.CreatedAt, s.loc) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "accounting week has closed for this event").
			WithDetails(map[string]string{
				"cutoff": timeutil.WeekCutoff(original.CreatedAt, s.loc).Format(time.RFC3339),
			})
	}

	payload, err := json.Marshal(map[string]string{
		"original_event_id": original.ID.String(),
		"reason":            input.Reason,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding reversal payload")
	}

	deviceID := serverDeviceID
	result, err := s.ledger.Submit(ctx, ledger.SubmitInput{
		ClientUUID: uuid.New(),
		EventType:  enums.EventEventReversed,
		ProjectID:  original.ProjectID,
		Payload:    payload,
		CreatedBy:  input.ActorID,
		DeviceID:   &deviceID,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if input.ActorRole.IsPrivileged() {
		if err := s.ledger.SetHidden(ctx, original.ID, true); err != nil {
			// The reversal row landed; report but do not fail the call.
			s.logg.Error(s.logg.WithField(ctx, "event_id", original.ID.String()), "hiding reversed original failed", err)
		}
	}

	ctx = s.logg.WithField(ctx, "original_event_id", original.ID.String())
	s.logg.Info(ctx, "event reversed")
	return result, nil
}
