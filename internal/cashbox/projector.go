package cashbox

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmonterroso/fieldledger-backend/internal/events"
	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	"github.com/rmonterroso/fieldledger-backend/pkg/logger"
)

// Movement is one signed cash motion in a user's box.
type Movement struct {
	EventID     uuid.UUID       `json:"event_id"`
	EventType   enums.EventType `json:"event_type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Projection is a derived snapshot, never stored. Replaying the same ledger
// slice always produces the same projection.
type Projection struct {
	Balance         decimal.Decimal `json:"balance"`
	RecentMovements []Movement      `json:"recent_movements"`
}

// LedgerReader is the slice of the ledger repository the projector needs:
// recent non-hidden cash events touching a user, newest first.
type LedgerReader interface {
	ListCashEventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Event, error)
}

// Projector replays a bounded window of cash events into a balance.
type Projector struct {
	repo      LedgerReader
	window    int
	movements int
	logg      *logger.Logger
}

// NewProjector builds a projector replaying at most window events and
// reporting at most movements recent motions.
func NewProjector(repo LedgerReader, window, movements int, logg *logger.Logger) (*Projector, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if window <= 0 || movements <= 0 {
		return nil, fmt.Errorf("window and movements must be positive")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Projector{repo: repo, window: window, movements: movements, logg: logg}, nil
}

// ProjectBalance replays the user's recent cash events oldest-first and
// returns the running balance plus the most recent movements, newest first.
// Hidden events never reach the replay; the duplicate flag is advisory and
// deliberately does not exclude anything.
func (p *Projector) ProjectBalance(ctx context.Context, userID uuid.UUID) (Projection, error) {
	if userID == uuid.Nil {
		return Projection{}, fmt.Errorf("user id is required")
	}

	rows, err := p.repo.ListCashEventsByUser(ctx, userID, p.window)
	if err != nil {
		return Projection{}, err
	}

	// The repository returns newest first; replay wants causal order.
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID.String() < rows[j].ID.String()
	})

	balance := decimal.Zero
	var movements []Movement
	for _, row := range rows {
		if row.Hidden {
			continue
		}
		delta, description, err := p.delta(row, userID)
		if err != nil {
			p.logg.Warn(p.logg.WithField(ctx, "event_id", row.ID.String()), "skipping cash event with unreadable payload")
			continue
		}
		if delta.IsZero() {
			continue
		}
		balance = balance.Add(delta)
		movements = append(movements, Movement{
			EventID:     row.ID,
			EventType:   row.EventType,
			Amount:      delta,
			Description: description,
			CreatedAt:   row.CreatedAt,
		})
	}

	// Most recent first on output, bounded.
	for i, j := 0, len(movements)-1; i < j; i, j = i+1, j-1 {
		movements[i], movements[j] = movements[j], movements[i]
	}
	if len(movements) > p.movements {
		movements = movements[:p.movements]
	}

	return Projection{Balance: balance, RecentMovements: movements}, nil
}

// delta maps one event to its signed cash contribution for the user plus a
// human-readable quetzal description. Kinds outside the cash set contribute
// zero; within the set, the sign depends on whether the user received the
// money or spent it.
func (p *Projector) delta(row models.Event, userID uuid.UUID) (decimal.Decimal, string, error) {
	payload, err := events.DecodePayload(row.EventType, row.Payload)
	if err != nil {
		return decimal.Zero, "", err
	}

	switch typed := payload.(type) {
	case *events.CashAdvancePayload:
		if typed.RecipientUserID == userID {
			return typed.Amount, "Adelanto recibido: Q " + typed.Amount.StringFixed(2), nil
		}
	case *events.ReimbursementPayload:
		if typed.RecipientUserID == userID {
			return typed.Amount, "Reembolso recibido: Q " + typed.Amount.StringFixed(2), nil
		}
	case *events.ExpenseLoggedPayload:
		if row.CreatedBy == userID {
			category := typed.Category
			if category == "" {
				category = "Gasto"
			}
			return typed.Amount.Neg(), category + ": Q " + typed.Amount.StringFixed(2), nil
		}
	case *events.ClientPaymentPayload:
		if row.CreatedBy == userID && typed.PaymentMethod == enums.PaymentMethodCash {
			return typed.Amount, "Pago recibido: Q " + typed.Amount.StringFixed(2), nil
		}
	case *events.VendorPaymentPayload:
		if row.CreatedBy == userID && typed.PaymentMethod == enums.PaymentMethodCash {
			return typed.Amount.Neg(), "Pago realizado: Q " + typed.Amount.StringFixed(2), nil
		}
	}
	return decimal.Zero, "", nil
}
