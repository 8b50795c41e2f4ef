// api/models/apikey_models.go
package models

import "time"

// ResourceRefPayload addresses a problem or group in a grant.
type ResourceRefPayload struct {
	Type string `json:"type" binding:"required,oneof=SOLVED_PROBLEM GROUP"`
	ID   string `json:"id" binding:"required"`
}

// CreateAPIKeyRequest defines the body for minting a new API key.
type CreateAPIKeyRequest struct {
	Name     string               `json:"name" binding:"required"`
	Accesses []ResourceRefPayload `json:"accesses" binding:"omitempty,dive"`
}

// CreateAPIKeyResponse carries the plaintext key. This is the only time the
// secret is ever returned; only its hash is stored.
type CreateAPIKeyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
}

// APIKeyResponse is the persistent view of a key (no secret).
type APIKeyResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	RevokedAt *time.Time           `json:"revokedAt,omitempty"`
	Accesses  []ResourceRefPayload `json:"accesses"`
	CreatedAt time.Time            `json:"createdAt"`
}

// UpdateAccessRequest replaces a key's grant list wholesale.
type UpdateAccessRequest struct {
	Accesses []ResourceRefPayload `json:"accesses" binding:"omitempty,dive"`
}
