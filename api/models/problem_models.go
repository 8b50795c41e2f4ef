// api/models/problem_models.go
package models

import (
	"time"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

// DependencyPayload is one dependency row as sent by clients.
type DependencyPayload struct {
	Name           string `json:"name" binding:"required"`
	Version        string `json:"version"`
	PackageManager string `json:"packageManager"`
	Type           string `json:"type" binding:"required,oneof=SERVER CLIENT"`
}

// ToDependencies converts request payloads to domain rows.
func ToDependencies(payloads []DependencyPayload) []domain.Dependency {
	deps := make([]domain.Dependency, 0, len(payloads))
	for _, p := range payloads {
		deps = append(deps, domain.Dependency{
			Name:           p.Name,
			Version:        p.Version,
			PackageManager: p.PackageManager,
			Type:           p.Type,
		})
	}
	return deps
}

// CreateProblemRequest defines the body for creating a solved problem.
type CreateProblemRequest struct {
	Name         string              `json:"name" binding:"required"`
	Description  string              `json:"description"`
	AppType      string              `json:"appType" binding:"required"`
	Tags         []string            `json:"tags"`
	Dependencies []DependencyPayload `json:"dependencies" binding:"omitempty,dive"`
	Details      *string             `json:"details"`
}

// UpdateProblemRequest defines the body for updating a solved problem.
// Pointer fields distinguish "absent" (leave untouched) from "set".
type UpdateProblemRequest struct {
	Name         *string              `json:"name"`
	Description  *string              `json:"description"`
	AppType      *string              `json:"appType"`
	Tags         *[]string            `json:"tags"`
	Dependencies *[]DependencyPayload `json:"dependencies" binding:"omitempty,dive"`
	Details      *string              `json:"details"`
}

// ProblemResponse is the full view of a solved problem with its relations.
type ProblemResponse struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	AppType       string              `json:"appType"`
	OwnerID       string              `json:"ownerId"`
	CopiedFromID  *string             `json:"copiedFromId,omitempty"`
	Tags          []string            `json:"tags"`
	Dependencies  []domain.Dependency `json:"dependencies"`
	LatestVersion *int                `json:"latestVersion,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// VersionResponse is one immutable version record.
type VersionResponse struct {
	SolvedProblemID string    `json:"solvedProblemId"`
	Version         int       `json:"version"`
	Details         string    `json:"details"`
	CreatedAt       time.Time `json:"createdAt"`
}
