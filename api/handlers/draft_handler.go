// api/handlers/draft_handler.go
package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/workflow"
)

// DraftHandler holds dependencies for the draft review handlers.
type DraftHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(db *sql.DB, cfg *config.Config) *DraftHandler {
	return &DraftHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// List returns the PENDING drafts the caller may review, newest first.
func (h *DraftHandler) List(c *gin.Context) {
	principal := middleware.Principal(c)

	drafts, err := workflow.ListForUser(c.Request.Context(), h.DB, principal.UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]models.DraftResponse, 0, len(drafts))
	for _, d := range drafts {
		responses = append(responses, models.NewDraftResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"drafts": responses, "count": len(responses)})
}

// Get returns one draft, applying the review visibility rule.
func (h *DraftHandler) Get(c *gin.Context) {
	principal := middleware.Principal(c)

	draft, err := workflow.GetForUser(c.Request.Context(), h.DB, principal.UserID, c.Param("draft_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.NewDraftResponse(*draft))
}

// Approve resolves a draft and applies its proposal.
func (h *DraftHandler) Approve(c *gin.Context) {
	principal := middleware.Principal(c)

	problemID, err := workflow.Approve(c.Request.Context(), h.DB, principal.UserID, c.Param("draft_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"solved_problem_id": problemID, "message": "Draft approved"})
}

// Reject resolves a draft without touching the target.
func (h *DraftHandler) Reject(c *gin.Context) {
	principal := middleware.Principal(c)

	if err := workflow.Reject(c.Request.Context(), h.DB, principal.UserID, c.Param("draft_id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Draft rejected"})
}

// ApproveMany resolves a batch of drafts independently and reports how many
// succeeded.
func (h *DraftHandler) ApproveMany(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.ApproveManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	approved := workflow.ApproveMany(c.Request.Context(), h.DB, principal.UserID, req.DraftIDs)
	c.JSON(http.StatusOK, gin.H{"approved": approved, "requested": len(req.DraftIDs)})
}

// CopyToOwn materializes any draft's proposal as a new problem owned by the
// caller, without resolving the draft.
func (h *DraftHandler) CopyToOwn(c *gin.Context) {
	principal := middleware.Principal(c)

	problemID, err := workflow.CopyToOwn(c.Request.Context(), h.DB, principal.UserID, c.Param("draft_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"solved_problem_id": problemID, "message": "Draft copied to own catalog"})
}
