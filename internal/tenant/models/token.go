package models

import (
	"time"

	"github.com/google/uuid"
)

// Token is an issued OAuth2 token row. The cleanup job only counts and deletes
// tokens; issuing them belongs to the authorization server.
type Token struct {
	ID        uuid.UUID `json:"id"`
	ClientID  string    `json:"client_id"`
	Subject   string    `json:"subject,omitempty"`
	TokenType string    `json:"token_type"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
