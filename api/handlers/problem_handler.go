// api/handlers/problem_handler.go
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/api/models"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/access"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/core"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

// ProblemHandler holds dependencies for solved problem CRUD and versions.
type ProblemHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewProblemHandler creates a new ProblemHandler.
func NewProblemHandler(db *sql.DB, cfg *config.Config) *ProblemHandler {
	return &ProblemHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// buildProblemResponse assembles the full view: row plus tags, dependencies
// and the latest version number.
func buildProblemResponse(ctx context.Context, db *sql.DB, problem domain.SolvedProblem) (*models.ProblemResponse, error) {
	tags, err := storage.ListProblemTags(ctx, db, problem.ID)
	if err != nil {
		return nil, err
	}
	deps, err := storage.ListProblemDependencies(ctx, db, problem.ID)
	if err != nil {
		return nil, err
	}
	latest, err := storage.LatestVersion(ctx, db, problem.ID)
	if err != nil {
		return nil, err
	}

	resp := &models.ProblemResponse{
		ID:           problem.ID,
		Name:         problem.Name,
		Description:  problem.Description,
		AppType:      problem.AppType,
		OwnerID:      problem.OwnerID,
		CopiedFromID: problem.CopiedFromID,
		Tags:         tags,
		Dependencies: deps,
		CreatedAt:    problem.CreatedAt,
		UpdatedAt:    problem.UpdatedAt,
	}
	if latest != nil {
		v := latest.Version
		resp.LatestVersion = &v
	}
	return resp, nil
}

// List returns the caller's accessible problems, filtered and newest first.
func (h *ProblemHandler) List(c *gin.Context) {
	principal := middleware.Principal(c)

	filter, err := core.ParseProblemFilter(c.Request.URL.Query())
	if err != nil {
		_ = c.Error(err)
		return
	}

	ids, err := access.AccessibleProblemIDs(c.Request.Context(), h.DB, principal)
	if err != nil {
		_ = c.Error(err)
		return
	}
	problems, err := storage.ListProblems(c.Request.Context(), h.DB, ids, filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]models.ProblemResponse, 0, len(problems))
	for _, p := range problems {
		resp, err := buildProblemResponse(c.Request.Context(), h.DB, p)
		if err != nil {
			_ = c.Error(err)
			return
		}
		responses = append(responses, *resp)
	}
	c.JSON(http.StatusOK, gin.H{"solved_problems": responses, "count": len(responses)})
}

// Create registers a new solved problem owned by the caller. The slug is
// derived from the name and suffixed on collision rather than erroring.
func (h *ProblemHandler) Create(c *gin.Context) {
	principal := middleware.Principal(c)

	var req models.CreateProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	slug := core.Slugify(req.Name)
	taken, err := storage.SlugExists(c.Request.Context(), h.DB, slug)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id := core.UniqueSlug(slug, taken)

	err = storage.CreateProblem(c.Request.Context(), h.DB, storage.NewProblem{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		AppType:      req.AppType,
		OwnerID:      principal.UserID,
		Tags:         req.Tags,
		Dependencies: models.ToDependencies(req.Dependencies),
		Details:      req.Details,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Handler: Created solved problem '%s' for user %s", id, principal.UserID)
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Solved problem created successfully"})
}

// getReadable fetches a problem the principal may read, answering
// ErrProblemNotFound for absent and inaccessible alike.
func (h *ProblemHandler) getReadable(c *gin.Context, principal auth.Principal, id string) (*domain.SolvedProblem, error) {
	readable, err := access.CanReadProblem(c.Request.Context(), h.DB, principal, id)
	if err != nil {
		return nil, err
	}
	if !readable {
		return nil, storage.ErrProblemNotFound
	}
	return storage.GetProblem(c.Request.Context(), h.DB, id)
}

// Get returns one problem with its relations.
func (h *ProblemHandler) Get(c *gin.Context) {
	principal := middleware.Principal(c)

	problem, err := h.getReadable(c, principal, c.Param("problem_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp, err := buildProblemResponse(c.Request.Context(), h.DB, *problem)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update applies a partial edit. Owners and holders of a WRITE share may
// update; details changes go through the versioning policy.
func (h *ProblemHandler) Update(c *gin.Context) {
	principal := middleware.Principal(c)
	problemID := c.Param("problem_id")

	var req models.UpdateProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	if _, err := h.getReadable(c, principal, problemID); err != nil {
		_ = c.Error(err)
		return
	}
	writable, err := access.CanWriteProblem(c.Request.Context(), h.DB, principal.UserID, problemID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !writable {
		_ = c.Error(auth.ErrForbidden)
		return
	}

	upd := storage.ProblemUpdate{
		Name:        req.Name,
		Description: req.Description,
		AppType:     req.AppType,
		Details:     req.Details,
	}
	if req.Tags != nil {
		upd.Tags = *req.Tags
		upd.HasTags = true
	}
	if req.Dependencies != nil {
		upd.Dependencies = models.ToDependencies(*req.Dependencies)
		upd.HasDeps = true
	}

	if err := storage.ApplyProblemUpdate(c.Request.Context(), h.DB, problemID, upd); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Solved problem updated successfully"})
}

// Delete removes a problem. Owner only; WRITE shares do not extend to
// deletion.
func (h *ProblemHandler) Delete(c *gin.Context) {
	principal := middleware.Principal(c)
	problemID := c.Param("problem_id")

	problem, err := h.getReadable(c, principal, problemID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if problem.OwnerID != principal.UserID {
		_ = c.Error(auth.ErrForbidden)
		return
	}

	if err := storage.DeleteProblem(c.Request.Context(), h.DB, problemID); err != nil {
		_ = c.Error(err)
		return
	}
	customLog.Printf("Handler: Deleted solved problem '%s' for user %s", problemID, principal.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "Solved problem deleted successfully"})
}

// --- Versions ---

func toVersionResponse(v domain.Version) models.VersionResponse {
	return models.VersionResponse{
		SolvedProblemID: v.SolvedProblemID,
		Version:         v.Version,
		Details:         v.Details,
		CreatedAt:       v.CreatedAt,
	}
}

// ListVersions returns a problem's version history, newest first.
func (h *ProblemHandler) ListVersions(c *gin.Context) {
	principal := middleware.Principal(c)
	problemID := c.Param("problem_id")

	if _, err := h.getReadable(c, principal, problemID); err != nil {
		_ = c.Error(err)
		return
	}
	versions, err := storage.ListVersions(c.Request.Context(), h.DB, problemID, false)
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]models.VersionResponse, 0, len(versions))
	for _, v := range versions {
		responses = append(responses, toVersionResponse(v))
	}
	c.JSON(http.StatusOK, gin.H{"versions": responses, "count": len(responses)})
}

// GetVersion returns one immutable version record.
func (h *ProblemHandler) GetVersion(c *gin.Context) {
	principal := middleware.Principal(c)
	problemID := c.Param("problem_id")

	versionNum, err := strconv.Atoi(c.Param("version"))
	if err != nil || versionNum < 1 {
		_ = c.Error(fmt.Errorf("%w: version must be a positive integer", core.ErrInvalidInput))
		return
	}

	if _, err := h.getReadable(c, principal, problemID); err != nil {
		_ = c.Error(err)
		return
	}
	version, err := storage.GetVersion(c.Request.Context(), h.DB, problemID, versionNum)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toVersionResponse(*version))
}
