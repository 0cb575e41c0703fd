package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterroso/fieldledger-backend/pkg/db/models"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
)

// Event is a validated, immutable capture waiting to enter the outbox. The
// client UUID is minted once here and survives every retry, which is what
// makes at-least-once delivery safe.
type Event struct {
	ClientUUID  uuid.UUID        `json:"client_uuid"`
	EventType   enums.EventType  `json:"event_type"`
	ProjectID   *uuid.UUID       `json:"project_id,omitempty"`
	Payload     json.RawMessage  `json:"payload"`
	CreatedBy   uuid.UUID        `json:"created_by"`
	DeviceID    string           `json:"device_id"`
	Geolocation *models.GeoPoint `json:"geolocation,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// GeoProvider resolves the device position. Implementations are expected to
// honor ctx cancellation; the builder never waits past its configured timeout.
type GeoProvider interface {
	Locate(ctx context.Context) (models.GeoPoint, error)
}

// BuildInput is everything the caller asserts about a new capture.
type BuildInput struct {
	EventType enums.EventType
	ProjectID *uuid.UUID
	Payload   json.RawMessage
	CreatedBy uuid.UUID
}

// Builder stamps captures with identity, time, and best-effort position.
type Builder struct {
	deviceID   string
	geo        GeoProvider
	geoTimeout time.Duration
	now        func() time.Time
	newID      func() uuid.UUID
}

func NewBuilder(deviceID string, geo GeoProvider, geoTimeout time.Duration) *Builder {
	return &Builder{
		deviceID:   deviceID,
		geo:        geo,
		geoTimeout: geoTimeout,
		now:        time.Now,
		newID:      uuid.New,
	}
}

// Build validates the payload against its declared kind and, on success,
// returns the immutable Event. Geolocation is strictly best-effort: a slow or
// failing provider can never block or fail a capture.
func (b *Builder) Build(ctx context.Context, input BuildInput) (Event, error) {
	if b.deviceID == "" {
		return Event{}, pkgerrors.New(pkgerrors.CodeInternal, "builder has no device id")
	}
	if input.CreatedBy == uuid.Nil {
		return Event{}, pkgerrors.New(pkgerrors.CodeValidation, "event creator is required")
	}
	if _, err := ValidatePayload(input.EventType, input.Payload); err != nil {
		return Event{}, err
	}

	event := Event{
		ClientUUID: b.newID(),
		EventType:  input.EventType,
		ProjectID:  input.ProjectID,
		Payload:    input.Payload,
		CreatedBy:  input.CreatedBy,
		DeviceID:   b.deviceID,
		CreatedAt:  b.now().UTC(),
	}
	event.Geolocation = b.locate(ctx)
	return event, nil
}

func (b *Builder) locate(ctx context.Context) *models.GeoPoint {
	if b.geo == nil || b.geoTimeout <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.geoTimeout)
	defer cancel()
	point, err := b.geo.Locate(ctx)
	if err != nil {
		return nil
	}
	return &point
}
