// api/handlers/share_handler.go
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/access"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/core"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// ShareHandler holds dependencies for sharing handlers.
type ShareHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(db *sql.DB, cfg *config.Config) *ShareHandler {
	return &ShareHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// resolveResourceName fetches the display name behind a resource reference.
// A dangling reference resolves to an empty name rather than failing the
// whole listing.
func resolveResourceName(ctx context.Context, db *sql.DB, ref domain.ResourceRef) (string, error) {
	switch ref.Kind {
	case domain.ResourceSolvedProblem:
		problem, err := storage.GetProblem(ctx, db, ref.ID)
		if errors.Is(err, storage.ErrProblemNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return problem.Name, nil
	case domain.ResourceGroup:
		group, err := storage.GetGroup(ctx, db, ref.ID)
		if errors.Is(err, storage.ErrGroupNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return group.Name, nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
}

// canReadResource answers whether the principal may read the referenced
// resource, switching exhaustively on its kind.
func canReadResource(ctx context.Context, db *sql.DB, principal auth.Principal, ref domain.ResourceRef) (bool, error) {
	switch ref.Kind {
	case domain.ResourceSolvedProblem:
		return access.CanReadProblem(ctx, db, principal, ref.ID)
	case domain.ResourceGroup:
		return access.CanReadGroup(ctx, db, principal, ref.ID)
	default:
		return false, fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
}

func (h *ShareHandler) toShareResponse(ctx context.Context, share domain.Share) (*models.ShareResponse, error) {
	name, err := resolveResourceName(ctx, h.DB, share.Resource)
	if err != nil {
		return nil, err
	}
	return &models.ShareResponse{
		ID:               share.ID,
		ResourceType:     string(share.Resource.Kind),
		ResourceID:       share.Resource.ID,
		ResourceName:     name,
		SharedByUserID:   share.SharedByUserID,
		SharedWithUserID: share.SharedWithUserID,
		Permission:       share.Permission,
		CreatedAt:        share.CreatedAt,
	}, nil
}

// Share grants a user access to a problem or group the caller can read.
// Sharing with oneself is rejected; re-sharing the same resource with the
// same user conflicts.
func (h *ShareHandler) Share(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	if req.SharedWithUserID == principal.UserID {
		_ = c.Error(storage.ErrSelfTarget)
		return
	}

	if _, err := storage.FindUserByID(c.Request.Context(), h.DB, req.SharedWithUserID); err != nil {
		_ = c.Error(err)
		return
	}

	ref := domain.ResourceRef{Kind: domain.ResourceKind(req.ResourceType), ID: req.ResourceID}
	readable, err := canReadResource(c.Request.Context(), h.DB, principal, ref)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !readable {
		// Hide the resource's existence from callers without access
		switch ref.Kind {
		case domain.ResourceGroup:
			_ = c.Error(storage.ErrGroupNotFound)
		default:
			_ = c.Error(storage.ErrProblemNotFound)
		}
		return
	}

	share := &domain.Share{
		ID:               uuid.New().String(),
		Resource:         ref,
		SharedByUserID:   principal.UserID,
		SharedWithUserID: req.SharedWithUserID,
		Permission:       req.Permission,
	}
	if err := storage.CreateShare(c.Request.Context(), h.DB, share); err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: User %s shared %s '%s' with user %s", principal.UserID, req.ResourceType, req.ResourceID, req.SharedWithUserID)
	c.JSON(http.StatusCreated, gin.H{"id": share.ID, "message": "Resource shared successfully"})
}

// getOwnShare fetches a share created by the caller; anyone else's share is
// reported absent.
func (h *ShareHandler) getOwnShare(c *gin.Context, userID, shareID string) (*domain.Share, error) {
	share, err := storage.GetShare(c.Request.Context(), h.DB, shareID)
	if err != nil {
		return nil, err
	}
	if share.SharedByUserID != userID {
		return nil, storage.ErrShareNotFound
	}
	return share, nil
}

// UpdatePermission changes a share between READ and WRITE.
func (h *ShareHandler) UpdatePermission(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.UpdatePermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	share, err := h.getOwnShare(c, principal.UserID, c.Param("share_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := storage.UpdateSharePermission(c.Request.Context(), h.DB, share.ID, req.Permission); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Share permission updated"})
}

// Revoke deletes a share the caller created.
func (h *ShareHandler) Revoke(c *gin.Context) {
	principal := middleware.Principal(c)

	share, err := h.getOwnShare(c, principal.UserID, c.Param("share_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := storage.DeleteShare(c.Request.Context(), h.DB, share.ID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Share revoked"})
}

func (h *ShareHandler) listShares(c *gin.Context, shares []domain.Share, err error) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	responses := make([]models.ShareResponse, 0, len(shares))
	for _, s := range shares {
		resp, err := h.toShareResponse(c.Request.Context(), s)
		if err != nil {
			_ = c.Error(err)
			return
		}
		responses = append(responses, *resp)
	}
	c.JSON(http.StatusOK, gin.H{"shares": responses, "count": len(responses)})
}

// ListSharedByMe returns the shares the caller has granted.
func (h *ShareHandler) ListSharedByMe(c *gin.Context) {
	principal := middleware.Principal(c)
	shares, err := storage.ListSharesBy(c.Request.Context(), h.DB, principal.UserID)
	h.listShares(c, shares, err)
}

// ListSharedWithMe returns the shares granted to the caller.
func (h *ShareHandler) ListSharedWithMe(c *gin.Context) {
	principal := middleware.Principal(c)
	shares, err := storage.ListSharesWith(c.Request.Context(), h.DB, principal.UserID)
	h.listShares(c, shares, err)
}

// LookupUserByEmail resolves an email to a shareable user id.
func (h *ShareHandler) LookupUserByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		_ = c.Error(fmt.Errorf("%w: email query parameter is required", core.ErrInvalidInput))
		return
	}

	user, err := storage.FindUserByEmail(c.Request.Context(), h.DB, email)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.LookupUserResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}
