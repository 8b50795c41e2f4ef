// api/handlers/apikey_handler.go
package handlers

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// APIKeyHandler holds dependencies for API key management handlers.
type APIKeyHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(db *sql.DB, cfg *config.Config) *APIKeyHandler {
	return &APIKeyHandler{
		DB:  db,
		Cfg: cfg,
	}
}

func toResourceRefs(payloads []models.ResourceRefPayload) []domain.ResourceRef {
	refs := make([]domain.ResourceRef, 0, len(payloads))
	for _, p := range payloads {
		refs = append(refs, domain.ResourceRef{Kind: domain.ResourceKind(p.Type), ID: p.ID})
	}
	return refs
}

// Create mints a new API key for the caller. The plaintext is returned
// exactly once; only its hash is stored. Grants are stored as given — they
// are not checked against the granting user's own access.
func (h *APIKeyHandler) Create(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	plainKey, err := auth.GenerateAPIKey()
	if err != nil {
		_ = c.Error(err)
		return
	}

	key := &domain.APIKey{
		ID:        uuid.New().String(),
		Name:      req.Name,
		HashedKey: auth.HashAPIKey(plainKey),
		UserID:    principal.UserID,
	}
	if err := storage.CreateAPIKey(c.Request.Context(), h.DB, key, toResourceRefs(req.Accesses)); err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Handler: Created API key '%s' for user %s", key.ID, principal.UserID)
	c.JSON(http.StatusCreated, models.CreateAPIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Key:       plainKey,
		CreatedAt: key.CreatedAt,
	})
}

// List returns the caller's API keys with their grant lists. Secrets are
// never included.
func (h *APIKeyHandler) List(c *gin.Context) {
	principal := middleware.Principal(c)

	keys, err := storage.ListAPIKeys(c.Request.Context(), h.DB, principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]models.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		accesses, err := storage.ListAPIKeyAccesses(c.Request.Context(), h.DB, key.ID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		grants := make([]models.ResourceRefPayload, 0, len(accesses))
		for _, a := range accesses {
			grants = append(grants, models.ResourceRefPayload{Type: string(a.Resource.Kind), ID: a.Resource.ID})
		}
		responses = append(responses, models.APIKeyResponse{
			ID:        key.ID,
			Name:      key.Name,
			RevokedAt: key.RevokedAt,
			Accesses:  grants,
			CreatedAt: key.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": responses, "count": len(responses)})
}

// getOwnKey fetches a key belonging to the caller; anyone else's key is
// reported absent.
func (h *APIKeyHandler) getOwnKey(c *gin.Context, userID, keyID string) (*domain.APIKey, error) {
	key, err := storage.GetAPIKey(c.Request.Context(), h.DB, keyID)
	if err != nil {
		return nil, err
	}
	if key.UserID != userID {
		return nil, storage.ErrAPIKeyNotFound
	}
	return key, nil
}

// Revoke permanently deactivates a key. Revoking twice conflicts.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	principal := middleware.Principal(c)

	key, err := h.getOwnKey(c, principal.UserID, c.Param("key_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := storage.RevokeAPIKey(c.Request.Context(), h.DB, key.ID); err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Revoked API key '%s' for user %s", key.ID, principal.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

// UpdateAccess replaces a key's grant list wholesale. Revoked keys cannot be
// re-scoped.
func (h *APIKeyHandler) UpdateAccess(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.UpdateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	key, err := h.getOwnKey(c, principal.UserID, c.Param("key_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if key.RevokedAt != nil {
		_ = c.Error(fmt.Errorf("%w: cannot update access of a revoked key", auth.ErrBadRequest))
		return
	}

	if err := storage.ReplaceAPIKeyAccesses(c.Request.Context(), h.DB, key.ID, toResourceRefs(req.Accesses)); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API key access updated"})
}
