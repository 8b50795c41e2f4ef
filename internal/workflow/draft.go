// internal/workflow/draft.go
// Draft workflow engine: proposals move PENDING -> APPROVED | REJECTED, both
// terminal. Approval merges the proposed data into the canonical problem (or
// creates one) inside the same transaction that flips the status.
package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/internal/access"
	"github.com/christopher-kapic/solved-problems-mcp/internal/auth"
	"github.com/christopher-kapic/solved-problems-mcp/internal/core"
	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
	"github.com/christopher-kapic/solved-problems-mcp/internal/storage"
)

var customLog = logger.NewLogger()

// Create stores a proposal. A target problem id is kept only when the
// principal can already read that problem; otherwise it is silently dropped
// and the draft becomes a new-problem proposal. An agent proposing an edit to
// a problem it lost access to still produces a usable standalone proposal.
func Create(ctx context.Context, db *sql.DB, principal auth.Principal, targetProblemID *string, proposed domain.ProposedData) (*domain.Draft, error) {
	if targetProblemID != nil {
		readable, err := access.CanReadProblem(ctx, db, principal, *targetProblemID)
		if err != nil {
			return nil, err
		}
		if !readable {
			customLog.Printf("Workflow: Draft target '%s' not accessible to user %s, degrading to new-problem proposal", *targetProblemID, principal.UserID)
			targetProblemID = nil
		}
	}

	draft := &domain.Draft{
		ID:              uuid.New().String(),
		SolvedProblemID: targetProblemID,
		Proposed:        proposed,
		Status:          domain.DraftPending,
		CreatedByUserID: principal.UserID,
	}
	if principal.IsAPIKey() {
		keyID := principal.APIKeyID
		draft.APIKeyID = &keyID
	}

	if err := storage.CreateDraft(ctx, db, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// ListForUser returns the PENDING drafts the user may review: drafts
// targeting a problem they own, plus their own new-problem proposals.
func ListForUser(ctx context.Context, db *sql.DB, userID string) ([]domain.Draft, error) {
	return storage.ListPendingDraftsForUser(ctx, db, userID)
}

// GetForUser returns one draft, applying the same visibility rule as
// ListForUser. A draft that exists but is outside the user's purview yields
// auth.ErrForbidden.
func GetForUser(ctx context.Context, db *sql.DB, userID, draftID string) (*domain.Draft, error) {
	draft, err := storage.GetDraft(ctx, db, draftID)
	if err != nil {
		return nil, err
	}
	if err := authorizeReview(ctx, db, userID, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// authorizeReview enforces who may see or resolve a draft: the owner of the
// target problem for update drafts, the creator for new-problem proposals.
func authorizeReview(ctx context.Context, db storage.DBTX, userID string, draft *domain.Draft) error {
	if draft.SolvedProblemID != nil {
		problem, err := storage.GetProblem(ctx, db, *draft.SolvedProblemID)
		if err != nil {
			return err
		}
		if problem.OwnerID != userID {
			return auth.ErrForbidden
		}
		return nil
	}
	if draft.CreatedByUserID != userID {
		return auth.ErrForbidden
	}
	return nil
}

// Approve resolves a PENDING draft and applies its proposed data: update
// drafts merge into the target problem, new-problem drafts materialize a
// problem owned by the approving user. The status flip is a conditional
// update on PENDING, so a concurrent approval loses with ErrDraftNotPending
// instead of applying twice. Returns the id of the problem written.
func Approve(ctx context.Context, db *sql.DB, userID, draftID string) (string, error) {
	draft, err := storage.GetDraft(ctx, db, draftID)
	if err != nil {
		return "", err
	}
	if draft.Status != domain.DraftPending {
		return "", storage.ErrDraftNotPending
	}
	if err := authorizeReview(ctx, db, userID, draft); err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := storage.ResolveDraft(ctx, tx, draftID, domain.DraftApproved); err != nil {
		return "", err
	}

	var problemID string
	if draft.SolvedProblemID != nil {
		problemID = *draft.SolvedProblemID
		if err := storage.ApplyProblemUpdateIn(ctx, tx, problemID, updateFromProposal(draft.Proposed)); err != nil {
			return "", err
		}
	} else {
		problemID, err = createFromProposal(ctx, tx, userID, nil, draft.Proposed)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit draft approval: %w", err)
	}
	customLog.Printf("Workflow: Draft %s approved by user %s (problem %s)", draftID, userID, problemID)
	return problemID, nil
}

// Reject resolves a PENDING draft without touching the target resource.
func Reject(ctx context.Context, db *sql.DB, userID, draftID string) error {
	draft, err := storage.GetDraft(ctx, db, draftID)
	if err != nil {
		return err
	}
	if draft.Status != domain.DraftPending {
		return storage.ErrDraftNotPending
	}
	if err := authorizeReview(ctx, db, userID, draft); err != nil {
		return err
	}
	return storage.ResolveDraft(ctx, db, draftID, domain.DraftRejected)
}

// CopyToOwn materializes a draft's proposed data as a brand-new problem owned
// by the caller, recording lineage to the draft's original target. Any
// authenticated user may copy any draft they can name, and the draft's status
// is left untouched.
func CopyToOwn(ctx context.Context, db *sql.DB, userID, draftID string) (string, error) {
	draft, err := storage.GetDraft(ctx, db, draftID)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	problemID, err := createFromProposal(ctx, tx, userID, draft.SolvedProblemID, draft.Proposed)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit draft copy: %w", err)
	}
	return problemID, nil
}

// ApproveMany applies Approve independently per id. One failing draft does
// not abort the rest; the count of successes is reported.
func ApproveMany(ctx context.Context, db *sql.DB, userID string, draftIDs []string) int {
	approved := 0
	for _, id := range draftIDs {
		if _, err := Approve(ctx, db, userID, id); err != nil {
			customLog.Warnf("Workflow: Skipping draft %s in bulk approval: %v", id, err)
			continue
		}
		approved++
	}
	return approved
}

// updateFromProposal maps proposed data onto a problem update. Name,
// description and appType always overwrite; nil tag/dependency slices mean
// "leave untouched", never "clear".
func updateFromProposal(p domain.ProposedData) storage.ProblemUpdate {
	name := p.Name
	description := p.Description
	appType := p.AppType
	return storage.ProblemUpdate{
		Name:         &name,
		Description:  &description,
		AppType:      &appType,
		Tags:         p.Tags,
		HasTags:      p.Tags != nil,
		Dependencies: p.Dependencies,
		HasDeps:      p.Dependencies != nil,
		Details:      p.Details,
	}
}

// createFromProposal inserts a new problem from proposed data, deriving a
// slug from the name and suffixing it on collision.
func createFromProposal(ctx context.Context, tx *sql.Tx, ownerID string, copiedFromID *string, p domain.ProposedData) (string, error) {
	slug := core.Slugify(p.Name)
	taken, err := storage.SlugExists(ctx, tx, slug)
	if err != nil {
		return "", err
	}
	id := core.UniqueSlug(slug, taken)

	err = storage.CreateProblemIn(ctx, tx, storage.NewProblem{
		ID:           id,
		Name:         p.Name,
		Description:  p.Description,
		AppType:      p.AppType,
		OwnerID:      ownerID,
		CopiedFromID: copiedFromID,
		Tags:         p.Tags,
		Dependencies: p.Dependencies,
		Details:      p.Details,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
