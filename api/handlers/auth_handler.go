// api/handlers/auth_handler.go
package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// AuthHandler holds dependencies for authentication handlers.
type AuthHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewAuthHandler creates a new AuthHandler with dependencies.
func NewAuthHandler(db *sql.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		DB:  db,
		Cfg: cfg,
	}
}

func toUserResponse(u *domain.User) models.UserResponse {
	return models.UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// Signup handles user registration. The first user ever created becomes
// ADMIN; after that, registration is gated by the site's signup switch.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Signup binding error: %v", err)
		_ = c.Error(err)
		return
	}

	count, err := storage.CountUsers(c.Request.Context(), h.DB)
	if err != nil {
		_ = c.Error(err)
		return
	}

	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	} else {
		settings, err := storage.GetSettings(c.Request.Context(), h.DB)
		if err != nil {
			_ = c.Error(err)
			return
		}
		if !settings.SignupEnabled {
			customLog.Printf("Signup rejected for %s: signups are disabled", req.Email)
			_ = c.Error(auth.ErrForbidden)
			return
		}
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		customLog.Warnf("Failed to hash password during signup for email %s: %v", req.Email, err)
		_ = c.Error(err)
		return
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashedPassword,
		Role:         role,
	}
	if err := storage.CreateUser(c.Request.Context(), h.DB, user); err != nil {
		customLog.Warnf("Failed to create user %s: %v", req.Email, err)
		_ = c.Error(err) // ErrEmailExists maps to 409
		return
	}

	customLog.Printf("Successfully registered user with email %s (role %s)", req.Email, role)
	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID, "message": "User registered successfully"})
}

// Login verifies credentials and issues a JWT on success.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		customLog.Warnf("Login binding error: %v", err)
		_ = c.Error(err)
		return
	}

	user, err := storage.FindUserByEmail(c.Request.Context(), h.DB, req.Email)
	if err != nil {
		customLog.Warnf("Login failed for email %s: %v", req.Email, err)
		// Unknown email and wrong password are indistinguishable
		_ = c.Error(storage.ErrInvalidCredentials)
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		customLog.Warnf("Login attempt failed for email %s: invalid password", user.Email)
		_ = c.Error(storage.ErrInvalidCredentials)
		return
	}

	tokenString, err := auth.GenerateJWT(user.ID, user.Role, h.Cfg.JWTSecret, h.Cfg.JWTExpiration)
	if err != nil {
		customLog.Warnf("Failed to generate JWT for user %s: %v", user.ID, err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Message: "Logged in successfully",
		Token:   tokenString,
		User:    toUserResponse(user),
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	principal := middleware.Principal(c)

	user, err := storage.FindUserByID(c.Request.Context(), h.DB, principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
