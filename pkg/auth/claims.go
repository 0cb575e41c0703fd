package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Role     enums.ActorRole
	DeviceID string
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to field devices.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	Role     enums.ActorRole `json:"role"`
	DeviceID string          `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}
