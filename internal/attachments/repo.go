package attachments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
)

// Repository manages attachment metadata rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error)
	ListByClientUUID(ctx context.Context, clientUUID uuid.UUID) ([]models.Attachment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an attachment repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, attachment *models.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	var attachment models.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "attachment not found")
	}
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *repository) ListByClientUUID(ctx context.Context, clientUUID uuid.UUID) ([]models.Attachment, error) {
	var rows []models.Attachment
	err := r.db.WithContext(ctx).
		Where("client_uuid = ?", clientUUID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
