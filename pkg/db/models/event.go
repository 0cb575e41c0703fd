package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
)

// Event is one append-only ledger row. The type and payload of an accepted
// event are immutable; only the two annotation flags may change afterwards.
type Event struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientUUID  uuid.UUID       `gorm:"column:client_uuid;type:uuid;not null;uniqueIndex:ux_events_client_uuid"`
	EventType   enums.EventType `gorm:"column:event_type;type:event_type_enum;not null"`
	ProjectID   *uuid.UUID      `gorm:"column:project_id;type:uuid"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedBy   uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	DeviceID    *string         `gorm:"column:device_id"`
	Geolocation *GeoPoint       `gorm:"column:geolocation;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null"`
	Hidden      bool            `gorm:"column:hidden;not null;default:false"`
	DuplicateFlag bool          `gorm:"column:duplicate_flag;not null;default:false"`
}

// TableName keeps the legacy table name.
func (Event) TableName() string { return "events" }

// GeoPoint is the optional best-effort capture coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Scan implements sql.Scanner for the jsonb column.
func (g *GeoPoint) Scan(value any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, g)
	case string:
		return json.Unmarshal([]byte(v), g)
	}
	return nil
}

// Value implements driver.Valuer for the jsonb column.
func (g GeoPoint) Value() (driver.Value, error) {
	return json.Marshal(g)
}
