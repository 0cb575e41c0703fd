package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is one captured event waiting in the device's local sqlite
// store until the server confirms delivery. The integer key preserves
// enqueue order as a tiebreak when capture timestamps collide.
type OutboxEntry struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientUUID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_outbox_client_uuid" json:"client_uuid"`
	EventType   string          `gorm:"not null" json:"event_type"`
	ProjectID   *uuid.UUID      `gorm:"type:uuid" json:"project_id,omitempty"`
	Payload     json.RawMessage `gorm:"type:json;not null" json:"payload"`
	CreatedBy   uuid.UUID       `gorm:"type:uuid;not null" json:"created_by"`
	DeviceID    string          `gorm:"not null" json:"device_id"`
	Geolocation *GeoPoint       `gorm:"type:json" json:"geolocation,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;index:ix_outbox_created_at" json:"created_at"`
	Synced      bool            `gorm:"not null;default:false;index:ix_outbox_synced" json:"synced"`
	SyncedAt    *time.Time      `json:"synced_at,omitempty"`
	SyncError   *string         `json:"sync_error,omitempty"`
	ErrorCount  int             `gorm:"not null;default:0" json:"error_count"`
}

func (OutboxEntry) TableName() string {
	return "outbox_entries"
}

// OutboxAttachment holds attachment bytes alongside an outbox entry until the
// entry is confirmed delivered, then gets purged.
type OutboxAttachment struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientUUID  uuid.UUID `gorm:"type:uuid;not null;index:ix_outbox_attachments_client_uuid" json:"client_uuid"`
	FileName    string    `gorm:"not null" json:"file_name"`
	ContentType string    `gorm:"not null" json:"content_type"`
	Data        []byte    `gorm:"not null" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (OutboxAttachment) TableName() string {
	return "outbox_attachments"
}
