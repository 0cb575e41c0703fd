package models

import (
	"time"

	"github.com/google/uuid"
)

// Attachment records a stored binary (receipt photo, document) addressed by
// the owning event's client_uuid. The bytes live on the attachment store;
// this row carries the stable reference handed back to submitters.
type Attachment struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ClientUUID  uuid.UUID `gorm:"column:client_uuid;type:uuid;not null;index:ix_attachments_client_uuid"`
	FileName    string    `gorm:"column:file_name;not null"`
	ContentType string    `gorm:"column:content_type;not null"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null"`
	StorageKey  string    `gorm:"column:storage_key;not null;uniqueIndex:ux_attachments_storage_key"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName keeps the table name explicit.
func (Attachment) TableName() string { return "attachments" }
