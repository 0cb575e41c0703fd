package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmonterroso/fieldledger-backend/pkg/db"
	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
)

// cashKinds are the event types that can move a user's cash balance.
var cashKinds = []enums.EventType{
	enums.EventCashAdvanceIssued,
	enums.EventReimbursementIssued,
	enums.EventExpenseLogged,
	enums.EventClientPaymentReceived,
	enums.EventVendorPaymentMade,
}

// ListFilter narrows read queries over the ledger. Zero values mean "no
// constraint"; From/To bound created_at as a half-open interval.
type ListFilter struct {
	ProjectID     *uuid.UUID
	EventType     *enums.EventType
	CreatedBy     *uuid.UUID
	From          *time.Time
	To            *time.Time
	IncludeHidden bool
	Limit         int
	Offset        int
}

// Repository manages persistence for the append-only event ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetByClientUUID(ctx context.Context, clientUUID uuid.UUID) (*models.Event, error)
	List(ctx context.Context, filter ListFilter) ([]models.Event, error)
	ListByProjectDay(ctx context.Context, projectID *uuid.UUID, from, to time.Time) ([]models.Event, error)
	ListCashEventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Event, error)
	SetHidden(ctx context.Context, id uuid.UUID, hidden bool) error
	SetDuplicateFlag(ctx context.Context, id uuid.UUID, flagged bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert appends a ledger row. A client_uuid collision surfaces as a
// Conflict error; the unique index is the arbiter for concurrent writers,
// not any pre-read.
func (r *repository) Insert(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "client uuid already recorded")
		}
		return err
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) GetByClientUUID(ctx context.Context, clientUUID uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("client_uuid = ?", clientUUID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Event, error) {
	query := r.db.WithContext(ctx).Model(&models.Event{})
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.EventType != nil {
		query = query.Where("event_type = ?", *filter.EventType)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	if !filter.IncludeHidden {
		query = query.Where("hidden = ?", false)
	}
	query = query.Order("created_at ASC").Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListByProjectDay returns every event for the project inside [from, to),
// hidden included; the duplicate detector does its own filtering.
func (r *repository) ListByProjectDay(ctx context.Context, projectID *uuid.UUID, from, to time.Time) ([]models.Event, error) {
	query := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("created_at >= ? AND created_at < ?", from, to)
	if projectID != nil {
		query = query.Where("project_id = ?", *projectID)
	} else {
		query = query.Where("project_id IS NULL")
	}

	var events []models.Event
	if err := query.Order("created_at ASC").Order("id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListCashEventsByUser returns the most recent non-hidden cash-relevant
// events touching the user, newest first. "Touching" means the user created
// the event or is named as the payload's recipient.
func (r *repository) ListCashEventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("event_type IN ?", cashKinds).
		Where("hidden = ?", false).
		Where("created_by = ? OR payload ->> 'recipient_user_id' = ?", userID, userID.String()).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// SetHidden flips the hidden annotation and nothing else.
func (r *repository) SetHidden(ctx context.Context, id uuid.UUID, hidden bool) error {
	res := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", id).
		Update("hidden", hidden)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return nil
}

// SetDuplicateFlag flips the duplicate annotation and nothing else.
func (r *repository) SetDuplicateFlag(ctx context.Context, id uuid.UUID, flagged bool) error {
	res := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", id).
		Update("duplicate_flag", flagged)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return nil
}
