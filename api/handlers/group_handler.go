// api/handlers/group_handler.go
package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/access"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// GroupHandler holds dependencies for group and membership handlers.
type GroupHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(db *sql.DB, cfg *config.Config) *GroupHandler {
	return &GroupHandler{
		DB:  db,
		Cfg: cfg,
	}
}

func toGroupResponse(g domain.Group) models.GroupResponse {
	return models.GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		OwnerID:   g.OwnerID,
		CreatedAt: g.CreatedAt,
	}
}

// List returns the caller's accessible groups, by name.
func (h *GroupHandler) List(c *gin.Context) {
	principal := middleware.Principal(c)

	ids, err := access.AccessibleGroupIDs(c.Request.Context(), h.DB, principal)
	if err != nil {
		_ = c.Error(err)
		return
	}
	groups, err := storage.ListGroups(c.Request.Context(), h.DB, ids)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]models.GroupResponse, 0, len(groups))
	for _, g := range groups {
		responses = append(responses, toGroupResponse(g))
	}
	c.JSON(http.StatusOK, gin.H{"groups": responses, "count": len(responses)})
}

// Create registers a new group owned by the caller.
func (h *GroupHandler) Create(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	group := &domain.Group{
		ID:      uuid.New().String(),
		Name:    req.Name,
		OwnerID: principal.UserID,
	}
	if err := storage.CreateGroup(c.Request.Context(), h.DB, group); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": group.ID, "message": "Group created successfully"})
}

// getReadable fetches a group the principal may read, answering
// ErrGroupNotFound for absent and inaccessible alike.
func (h *GroupHandler) getReadable(c *gin.Context, principal auth.Principal, id string) (*domain.Group, error) {
	readable, err := access.CanReadGroup(c.Request.Context(), h.DB, principal, id)
	if err != nil {
		return nil, err
	}
	if !readable {
		return nil, storage.ErrGroupNotFound
	}
	return storage.GetGroup(c.Request.Context(), h.DB, id)
}

// Get returns one group with its member problems.
func (h *GroupHandler) Get(c *gin.Context) {
	principal := middleware.Principal(c)

	group, err := h.getReadable(c, principal, c.Param("group_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	problems, err := storage.ListGroupProblems(c.Request.Context(), h.DB, group.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp := toGroupResponse(*group)
	resp.SolvedProblems = make([]models.ProblemResponse, 0, len(problems))
	for _, p := range problems {
		pr, err := buildProblemResponse(c.Request.Context(), h.DB, p)
		if err != nil {
			_ = c.Error(err)
			return
		}
		resp.SolvedProblems = append(resp.SolvedProblems, *pr)
	}
	c.JSON(http.StatusOK, resp)
}

// getOwned fetches a group the caller owns; non-owners get ErrForbidden if
// they could at least read it, ErrGroupNotFound otherwise.
func (h *GroupHandler) getOwned(c *gin.Context, principal auth.Principal, id string) (*domain.Group, error) {
	group, err := h.getReadable(c, principal, id)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != principal.UserID {
		return nil, auth.ErrForbidden
	}
	return group, nil
}

// Update renames a group. Owner only.
func (h *GroupHandler) Update(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	group, err := h.getOwned(c, principal, c.Param("group_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := storage.UpdateGroupName(c.Request.Context(), h.DB, group.ID, req.Name); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group updated successfully"})
}

// Delete removes a group and its memberships. Owner only.
func (h *GroupHandler) Delete(c *gin.Context) {
	principal := middleware.Principal(c)

	group, err := h.getOwned(c, principal, c.Param("group_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := storage.DeleteGroup(c.Request.Context(), h.DB, group.ID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}

// AddSolvedProblem links a problem into a group. The caller must own the
// group and be able to read the problem.
func (h *GroupHandler) AddSolvedProblem(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.GroupMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	group, err := h.getOwned(c, principal, c.Param("group_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	readable, err := access.CanReadProblem(c.Request.Context(), h.DB, principal, req.SolvedProblemID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !readable {
		_ = c.Error(storage.ErrProblemNotFound)
		return
	}

	if err := storage.AddGroupMember(c.Request.Context(), h.DB, group.ID, req.SolvedProblemID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Solved problem added to group"})
}

// RemoveSolvedProblem unlinks a problem from a group. Owner only.
func (h *GroupHandler) RemoveSolvedProblem(c *gin.Context) {
	principal := middleware.Principal(c)

	group, err := h.getOwned(c, principal, c.Param("group_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := storage.RemoveGroupMember(c.Request.Context(), h.DB, group.ID, c.Param("problem_id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Solved problem removed from group"})
}
