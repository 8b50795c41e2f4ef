// api/models/draft_models.go
package models

import (
	"time"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

// ApproveManyRequest resolves a batch of drafts in one call.
type ApproveManyRequest struct {
	DraftIDs []string `json:"draftIds" binding:"required,min=1"`
}

// DraftResponse is the full view of one proposal.
type DraftResponse struct {
	ID              string              `json:"id"`
	SolvedProblemID *string             `json:"solvedProblemId,omitempty"`
	Proposed        domain.ProposedData `json:"proposedData"`
	Status          string              `json:"status"`
	CreatedByUserID string              `json:"createdByUserId"`
	APIKeyID        *string             `json:"apiKeyId,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	ReviewedAt      *time.Time          `json:"reviewedAt,omitempty"`
}

// NewDraftResponse maps a domain draft to its response form.
func NewDraftResponse(d domain.Draft) DraftResponse {
	return DraftResponse{
		ID:              d.ID,
		SolvedProblemID: d.SolvedProblemID,
		Proposed:        d.Proposed,
		Status:          d.Status,
		CreatedByUserID: d.CreatedByUserID,
		APIKeyID:        d.APIKeyID,
		CreatedAt:       d.CreatedAt,
		ReviewedAt:      d.ReviewedAt,
	}
}
