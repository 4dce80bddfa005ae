package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system
type User struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	ProviderID *string    `json:"provider_id,omitempty"`
	Name       *string    `json:"name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// TokenClaims are the claims read from a verified bearer token
type TokenClaims struct {
	Subject string
	Email   string
	Name    string
	Issuer  string
	Expiry  time.Time
}
