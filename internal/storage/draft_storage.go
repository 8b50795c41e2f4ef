// internal/storage/draft_storage.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

var (
	ErrDraftNotFound   = errors.New("draft not found")
	ErrDraftNotPending = errors.New("draft is not pending")
)

// CreateDraft stores a proposal. Proposed data is serialized to JSON.
func CreateDraft(ctx context.Context, db *sql.DB, draft *domain.Draft) error {
	payload, err := json.Marshal(draft.Proposed)
	if err != nil {
		return fmt.Errorf("failed to encode proposed data: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO drafts (id, solved_problem_id, proposed_data, status, created_by_user_id, api_key_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		draft.ID, draft.SolvedProblemID, string(payload), draft.Status, draft.CreatedByUserID, draft.APIKeyID)
	if err != nil {
		customLog.Warnf("Storage: Failed to insert draft: %v", err)
		return fmt.Errorf("database error creating draft: %w", err)
	}
	return nil
}

const draftColumns = `id, solved_problem_id, proposed_data, status, created_by_user_id, api_key_id, created_at, reviewed_at`

func scanDraft(scan func(dest ...any) error) (*domain.Draft, error) {
	var d domain.Draft
	var payload string
	if err := scan(&d.ID, &d.SolvedProblemID, &payload, &d.Status, &d.CreatedByUserID, &d.APIKeyID, &d.CreatedAt, &d.ReviewedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &d.Proposed); err != nil {
		return nil, fmt.Errorf("failed to decode proposed data: %w", err)
	}
	return &d, nil
}

// GetDraft returns one draft by id.
func GetDraft(ctx context.Context, q DBTX, id string) (*domain.Draft, error) {
	row := q.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ? LIMIT 1`, id)
	draft, err := scanDraft(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		customLog.Warnf("Storage: Failed to get draft '%s': %v", id, err)
		return nil, fmt.Errorf("database error finding draft: %w", err)
	}
	return draft, nil
}

// ListPendingDraftsForUser returns PENDING drafts the user may review:
// drafts targeting a problem the user owns, plus the user's own new-problem
// proposals. Another user's new-problem proposals stay invisible, as do
// drafts targeting problems merely shared with the user.
func ListPendingDraftsForUser(ctx context.Context, db *sql.DB, userID string) ([]domain.Draft, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT d.id, d.solved_problem_id, d.proposed_data, d.status, d.created_by_user_id, d.api_key_id, d.created_at, d.reviewed_at
		 FROM drafts d
		 LEFT JOIN solved_problems sp ON sp.id = d.solved_problem_id
		 WHERE d.status = 'PENDING'
		   AND (sp.owner_id = ? OR (d.solved_problem_id IS NULL AND d.created_by_user_id = ?))
		 ORDER BY d.created_at DESC`, userID, userID)
	if err != nil {
		customLog.Warnf("Storage: Failed to list drafts for user %s: %v", userID, err)
		return nil, fmt.Errorf("database error listing drafts: %w", err)
	}
	defer rows.Close()

	drafts := []domain.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed processing draft data: %w", err)
		}
		drafts = append(drafts, *d)
	}
	return drafts, rows.Err()
}

// ResolveDraft moves a PENDING draft to a terminal status. The update is a
// compare-and-swap on the current status so two concurrent resolutions
// cannot both succeed; the loser gets ErrDraftNotPending.
func ResolveDraft(ctx context.Context, q DBTX, id, status string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE drafts SET status = ?, reviewed_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'PENDING'`,
		status, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to resolve draft '%s' to %s: %v", id, status, err)
		return fmt.Errorf("database error resolving draft: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming draft resolution: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDraftNotPending
	}
	return nil
}
