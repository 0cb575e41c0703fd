package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmonterroso/fieldledger-backend/internal/events"
	"github.com/rmonterroso/fieldledger-backend/pkg/db"
	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
)

// Attachment is raw file content captured alongside an event, held locally
// until delivery is confirmed.
type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Status summarizes the local queue without touching the network.
type Status struct {
	Pending      int        `json:"pending"`
	Errors       int        `json:"errors"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}

// Store is the device's durable outbox, backed by the local sqlite database.
type Store struct {
	client *db.Client
}

func NewStore(client *db.Client) *Store {
	return &Store{client: client}
}

// Migrate creates the outbox tables. The agent owns its local schema, unlike
// the server ledger which migrates through goose.
func (s *Store) Migrate() error {
	return s.client.DB().AutoMigrate(&models.OutboxEntry{}, &models.OutboxAttachment{})
}

// Enqueue persists a validated event and its attachments in one transaction.
// Either everything lands or nothing does; a half-queued event would sync
// without its receipt photo and never retry it.
func (s *Store) Enqueue(ctx context.Context, event events.Event, attachments []Attachment) error {
	entry := models.OutboxEntry{
		ClientUUID:  event.ClientUUID,
		EventType:   string(event.EventType),
		ProjectID:   event.ProjectID,
		Payload:     event.Payload,
		CreatedBy:   event.CreatedBy,
		DeviceID:    event.DeviceID,
		Geolocation: event.Geolocation,
		CreatedAt:   event.CreatedAt,
	}
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "event already queued")
			}
			return err
		}
		for _, att := range attachments {
			row := models.OutboxAttachment{
				ClientUUID:  event.ClientUUID,
				FileName:    att.FileName,
				ContentType: att.ContentType,
				Data:        att.Data,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListUnsynced returns every undelivered entry oldest-created-first. The
// ordering is load-bearing: the ledger's duplicate windows and the cash-box
// replay both assume causal per-device order.
func (s *Store) ListUnsynced(ctx context.Context) ([]models.OutboxEntry, error) {
	var rows []models.OutboxEntry
	err := s.client.DB().WithContext(ctx).
		Where("synced = ?", false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Attachments returns the files queued with an entry, in capture order.
func (s *Store) Attachments(ctx context.Context, clientUUID uuid.UUID) ([]models.OutboxAttachment, error) {
	var rows []models.OutboxAttachment
	err := s.client.DB().WithContext(ctx).
		Where("client_uuid = ?", clientUUID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// MarkSynced records confirmed delivery and purges the entry's attachments.
// The entry row itself is kept for the status surface and local history.
func (s *Store) MarkSynced(ctx context.Context, clientUUID uuid.UUID) error {
	now := time.Now().UTC()
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.OutboxEntry{}).
			Where("client_uuid = ?", clientUUID).
			Updates(map[string]any{
				"synced":     true,
				"synced_at":  now,
				"sync_error": nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "outbox entry not found")
		}
		return tx.Where("client_uuid = ?", clientUUID).
			Delete(&models.OutboxAttachment{}).Error
	})
}

// MarkError records the latest failure without dequeuing; the entry retries
// on the next pass.
func (s *Store) MarkError(ctx context.Context, clientUUID uuid.UUID, message string) error {
	res := s.client.DB().WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("client_uuid = ?", clientUUID).
		Updates(map[string]any{
			"sync_error":  message,
			"error_count": gorm.Expr("error_count + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "outbox entry not found")
	}
	return nil
}

// Remove drops an entry and its attachments without marking delivery. Only
// used when the server reports the event already exists: the earlier delivery
// is the record, this copy is surplus.
func (s *Store) Remove(ctx context.Context, clientUUID uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("client_uuid = ?", clientUUID).
			Delete(&models.OutboxAttachment{}).Error; err != nil {
			return err
		}
		return tx.Where("client_uuid = ?", clientUUID).
			Delete(&models.OutboxEntry{}).Error
	})
}

// Status derives queue health purely from the stored rows.
func (s *Store) Status(ctx context.Context) (Status, error) {
	conn := s.client.DB().WithContext(ctx)

	var pending int64
	if err := conn.Model(&models.OutboxEntry{}).
		Where("synced = ?", false).
		Count(&pending).Error; err != nil {
		return Status{}, err
	}

	var failed int64
	if err := conn.Model(&models.OutboxEntry{}).
		Where("synced = ? AND sync_error IS NOT NULL", false).
		Count(&failed).Error; err != nil {
		return Status{}, err
	}

	// lastSyncTime is the newest capture time among delivered entries, not
	// the delivery clock: the devices care about "up to when is the field
	// data safe", and capture time survives a drain of many entries at once.
	var last models.OutboxEntry
	err := conn.Where("synced = ?", true).
		Order("created_at DESC").
		First(&last).Error
	status := Status{Pending: int(pending), Errors: int(failed)}
	switch {
	case err == nil:
		status.LastSyncTime = &last.CreatedAt
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return Status{}, err
	}
	return status, nil
}

// PurgeSynced drops delivered entries older than the cutoff so the local
// database does not grow without bound.
func (s *Store) PurgeSynced(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.client.DB().WithContext(ctx).
		Where("synced = ? AND synced_at < ?", true, olderThan).
		Delete(&models.OutboxEntry{})
	return res.RowsAffected, res.Error
}
