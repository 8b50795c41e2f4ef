// api/handlers/admin_handler.go
package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// AdminHandler holds dependencies for the admin handlers. The router gates
// every route here behind the ADMIN role.
type AdminHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *sql.DB, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// GetSettings returns the singleton site settings, creating the default row
// on first read.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := storage.GetSettings(c.Request.Context(), h.DB)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.SettingsResponse{
		SignupEnabled: settings.SignupEnabled,
		ExportEnabled: settings.ExportEnabled,
	})
}

// UpdateSettings toggles the site-wide switches.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	settings, err := storage.UpdateSettings(c.Request.Context(), h.DB, storage.SettingsUpdate{
		SignupEnabled: req.SignupEnabled,
		ExportEnabled: req.ExportEnabled,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.SettingsResponse{
		SignupEnabled: settings.SignupEnabled,
		ExportEnabled: settings.ExportEnabled,
	})
}

// ListUsers returns every registered user.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := storage.ListUsers(c.Request.Context(), h.DB)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, toUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": responses, "count": len(responses)})
}

// DeleteUser removes a user and everything they own. Admins cannot delete
// themselves.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	principal := middleware.Principal(c)
	userID := c.Param("user_id")

	if userID == principal.UserID {
		_ = c.Error(storage.ErrSelfTarget)
		return
	}
	if err := storage.DeleteUser(c.Request.Context(), h.DB, userID); err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Admin %s deleted user %s", principal.UserID, userID)
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// DisableTwoFactor clears another user's 2FA enrollment, for account
// recovery. Self-targeting is rejected.
func (h *AdminHandler) DisableTwoFactor(c *gin.Context) {
	principal := middleware.Principal(c)
	userID := c.Param("user_id")

	if userID == principal.UserID {
		_ = c.Error(storage.ErrSelfTarget)
		return
	}
	if err := storage.DisableTwoFactor(c.Request.Context(), h.DB, userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Two-factor authentication disabled"})
}
