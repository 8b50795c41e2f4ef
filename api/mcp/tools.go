// api/mcp/tools.go
package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/internal/access"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/core"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
	"github.com/christopher-kapic/solved-problems-mcp/internal/workflow"
)

// dependencyInput is a dependency as agents send it, without a type; the
// server/client split comes from which list it arrived in.
type dependencyInput struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	PackageManager string `json:"packageManager"`
}

// problemSummary is the list_solved_problems item shape.
type problemSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AppType     string    `json:"appType"`
	Tags        []string  `json:"tags"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// problemDetail is the get_solved_problems item shape.
type problemDetail struct {
	problemSummary
	Dependencies []domain.Dependency `json:"dependencies"`
	Details      string              `json:"details"`
	Version      int                 `json:"version"`
}

// --- list_solved_problems ---

func (s *Server) listTool() tool {
	return tool{
		Name:        "list_solved_problems",
		Description: "List the solved problems this API key can access, optionally filtered by search text, app type, tags, dependencies, or update date range.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search":              map[string]any{"type": "string", "description": "Case-insensitive match on name and description"},
				"appType":             map[string]any{"type": "string"},
				"tags":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"server_dependencies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Filter by server-side dependency names"},
				"client_dependencies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Filter by client-side dependency names"},
				"updated_after":       map[string]any{"type": "string", "description": "ISO 8601 date or datetime"},
				"updated_before":      map[string]any{"type": "string", "description": "ISO 8601 date or datetime"},
			},
		},
		handler: s.handleList,
	}
}

func (s *Server) handleList(c *gin.Context, principal auth.Principal, arguments json.RawMessage) (any, error) {
	var args struct {
		Search             string   `json:"search"`
		AppType            string   `json:"appType"`
		Tags               []string `json:"tags"`
		ServerDependencies []string `json:"server_dependencies"`
		ClientDependencies []string `json:"client_dependencies"`
		UpdatedAfter       string   `json:"updated_after"`
		UpdatedBefore      string   `json:"updated_before"`
	}
	if err := unmarshalArgs(arguments, &args); err != nil {
		return nil, err
	}

	filter := storage.ProblemFilter{
		Search:     args.Search,
		AppType:    args.AppType,
		Tags:       args.Tags,
		ServerDeps: args.ServerDependencies,
		ClientDeps: args.ClientDependencies,
	}
	var err error
	if args.UpdatedAfter != "" {
		if filter.UpdatedAfter, err = core.ParseFilterDate("updated_after", args.UpdatedAfter); err != nil {
			return nil, err
		}
	}
	if args.UpdatedBefore != "" {
		if filter.UpdatedBefore, err = core.ParseFilterDate("updated_before", args.UpdatedBefore); err != nil {
			return nil, err
		}
	}

	ctx := c.Request.Context()
	ids, err := access.AccessibleProblemIDs(ctx, s.DB, principal)
	if err != nil {
		return nil, err
	}
	problems, err := storage.ListProblems(ctx, s.DB, ids, filter)
	if err != nil {
		return nil, err
	}

	summaries := make([]problemSummary, 0, len(problems))
	for _, p := range problems {
		tags, err := storage.ListProblemTags(ctx, s.DB, p.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, problemSummary{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			AppType:     p.AppType,
			Tags:        tags,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return summaries, nil
}

// --- get_solved_problems ---

func (s *Server) getTool() tool {
	return tool{
		Name:        "get_solved_problems",
		Description: "Fetch full solved problems by id, including dependencies and the latest version's details. Ids outside this API key's access are omitted.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required": []string{"ids"},
		},
		handler: s.handleGet,
	}
}

func (s *Server) handleGet(c *gin.Context, principal auth.Principal, arguments json.RawMessage) (any, error) {
	var args struct {
		IDs []string `json:"ids"`
	}
	if err := unmarshalArgs(arguments, &args); err != nil {
		return nil, err
	}
	if len(args.IDs) == 0 {
		return nil, fmt.Errorf("%w: ids must not be empty", core.ErrInvalidInput)
	}

	ctx := c.Request.Context()
	accessible, err := access.AccessibleProblemIDs(ctx, s.DB, principal)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(accessible))
	for _, id := range accessible {
		allowed[id] = true
	}

	details := make([]problemDetail, 0, len(args.IDs))
	for _, id := range args.IDs {
		// Inaccessible ids are skipped, not errored: existence stays hidden.
		if !allowed[id] {
			continue
		}
		problem, err := storage.GetProblem(ctx, s.DB, id)
		if err != nil {
			return nil, err
		}
		tags, err := storage.ListProblemTags(ctx, s.DB, id)
		if err != nil {
			return nil, err
		}
		deps, err := storage.ListProblemDependencies(ctx, s.DB, id)
		if err != nil {
			return nil, err
		}
		latest, err := storage.LatestVersion(ctx, s.DB, id)
		if err != nil {
			return nil, err
		}

		detail := problemDetail{
			problemSummary: problemSummary{
				ID:          problem.ID,
				Name:        problem.Name,
				Description: problem.Description,
				AppType:     problem.AppType,
				Tags:        tags,
				UpdatedAt:   problem.UpdatedAt,
			},
			Dependencies: deps,
		}
		if latest != nil {
			detail.Details = latest.Details
			detail.Version = latest.Version
		}
		details = append(details, detail)
	}
	return details, nil
}

// --- draft_solved_problem ---

func (s *Server) draftTool() tool {
	return tool{
		Name:        "draft_solved_problem",
		Description: "Propose a new solved problem or an update to an existing one. The proposal is stored as a pending draft for a human to review; nothing is written directly.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":                 map[string]any{"type": "string", "description": "ID of an existing solved problem to propose an update to; omit for a new solved problem proposal"},
				"name":               map[string]any{"type": "string"},
				"description":        map[string]any{"type": "string"},
				"appType":            map[string]any{"type": "string"},
				"tags":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"serverDependencies": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
				"clientDependencies": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
				"details":            map[string]any{"type": "string"},
			},
			"required": []string{"name", "appType"},
		},
		handler: s.handleDraft,
	}
}

func (s *Server) handleDraft(c *gin.Context, principal auth.Principal, arguments json.RawMessage) (any, error) {
	var args struct {
		// The published argument is "id"; it becomes the draft's target
		// problem reference internally.
		ID                 *string           `json:"id"`
		Name               string            `json:"name"`
		Description        string            `json:"description"`
		AppType            string            `json:"appType"`
		Tags               []string          `json:"tags"`
		ServerDependencies []dependencyInput `json:"serverDependencies"`
		ClientDependencies []dependencyInput `json:"clientDependencies"`
		Details            *string           `json:"details"`
	}
	if err := unmarshalArgs(arguments, &args); err != nil {
		return nil, err
	}
	if args.Name == "" {
		return nil, fmt.Errorf("%w: name is required", core.ErrInvalidInput)
	}
	if args.AppType == "" {
		return nil, fmt.Errorf("%w: appType is required", core.ErrInvalidInput)
	}

	proposed := domain.ProposedData{
		Name:         args.Name,
		Description:  args.Description,
		AppType:      args.AppType,
		Tags:         args.Tags,
		Dependencies: flattenDependencies(args.ServerDependencies, args.ClientDependencies),
		Details:      args.Details,
	}

	draft, err := workflow.Create(c.Request.Context(), s.DB, principal, args.ID, proposed)
	if err != nil {
		return nil, err
	}
	return gin.H{"draftId": draft.ID, "status": draft.Status}, nil
}

// flattenDependencies folds the server and client lists into one typed list.
func flattenDependencies(server, client []dependencyInput) []domain.Dependency {
	if len(server) == 0 && len(client) == 0 {
		return nil
	}
	deps := make([]domain.Dependency, 0, len(server)+len(client))
	for _, d := range server {
		deps = append(deps, domain.Dependency{Name: d.Name, Version: d.Version, PackageManager: d.PackageManager, Type: domain.DependencyServer})
	}
	for _, d := range client {
		deps = append(deps, domain.Dependency{Name: d.Name, Version: d.Version, PackageManager: d.PackageManager, Type: domain.DependencyClient})
	}
	return deps
}

func unmarshalArgs(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}
