// internal/storage/problem_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

// Specific errors for solved problem operations
var (
	ErrProblemNotFound = errors.New("solved problem not found")
)

// placeholders returns a "?, ?, ..." list for n bound arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// lowered returns the arguments lowercased, as []any for ExecContext/QueryContext.
func lowered(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = strings.ToLower(v)
	}
	return args
}

// ProblemFilter narrows a problem listing. String matches are
// case-insensitive. Nil/empty fields are ignored.
type ProblemFilter struct {
	Search        string
	AppType       string
	Tags          []string
	ServerDeps    []string
	ClientDeps    []string
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
}

// NewProblem carries everything needed to materialize a solved problem.
type NewProblem struct {
	ID           string
	Name         string
	Description  string
	AppType      string
	OwnerID      string
	CopiedFromID *string
	Tags         []string
	Dependencies []domain.Dependency
	Details      *string // when present, becomes version 1
}

// --- Creation ---

// CreateProblem inserts a solved problem with its tags, dependencies and
// (when details are present) version 1, as a single transaction.
func CreateProblem(ctx context.Context, db *sql.DB, p NewProblem) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := CreateProblemIn(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateProblemIn is CreateProblem running on a caller-owned transaction,
// so problem creation can compose with other writes (draft approval).
func CreateProblemIn(ctx context.Context, q DBTX, p NewProblem) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO solved_problems (id, name, description, app_type, owner_id, copied_from_id) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.AppType, p.OwnerID, p.CopiedFromID)
	if err != nil {
		customLog.Warnf("Storage: Failed to insert solved problem '%s': %v", p.ID, err)
		return fmt.Errorf("database error creating solved problem: %w", err)
	}

	if err := insertTags(ctx, q, p.ID, p.Tags); err != nil {
		return err
	}
	if err := insertDependencies(ctx, q, p.ID, p.Dependencies); err != nil {
		return err
	}
	// Empty details produce no version; history starts with real content.
	if p.Details != nil && *p.Details != "" {
		if err := insertVersion(ctx, q, p.ID, 1, *p.Details); err != nil {
			return err
		}
	}
	return nil
}

// SlugExists reports whether a problem id is already taken.
func SlugExists(ctx context.Context, q DBTX, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM solved_problems WHERE id = ? LIMIT 1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error checking slug: %w", err)
	}
	return true, nil
}

// --- Reads ---

// GetProblem returns a single solved problem row, without relations.
func GetProblem(ctx context.Context, q DBTX, id string) (*domain.SolvedProblem, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, description, app_type, owner_id, copied_from_id, created_at, updated_at
		 FROM solved_problems WHERE id = ? LIMIT 1`, id)

	var sp domain.SolvedProblem
	err := row.Scan(&sp.ID, &sp.Name, &sp.Description, &sp.AppType, &sp.OwnerID, &sp.CopiedFromID, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProblemNotFound
		}
		customLog.Warnf("Storage: Failed to get solved problem '%s': %v", id, err)
		return nil, fmt.Errorf("database error finding solved problem: %w", err)
	}
	return &sp, nil
}

// ListProblems returns the problems whose ids are in the accessible set and
// that match the filter, newest-updated first. An empty id set short-circuits
// to an empty result without touching the database.
func ListProblems(ctx context.Context, db *sql.DB, ids []string, filter ProblemFilter) ([]domain.SolvedProblem, error) {
	if len(ids) == 0 {
		return []domain.SolvedProblem{}, nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(ids)+8)

	sb.WriteString(`SELECT id, name, description, app_type, owner_id, copied_from_id, created_at, updated_at
		FROM solved_problems WHERE id IN (` + placeholders(len(ids)) + `)`)
	for _, id := range ids {
		args = append(args, id)
	}

	if filter.Search != "" {
		sb.WriteString(` AND (name LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)`)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.AppType != "" {
		sb.WriteString(` AND app_type = ?`)
		args = append(args, filter.AppType)
	}
	if len(filter.Tags) > 0 {
		sb.WriteString(` AND id IN (
			SELECT spt.solved_problem_id FROM solved_problem_tags spt
			JOIN tags t ON t.id = spt.tag_id
			WHERE LOWER(t.name) IN (` + placeholders(len(filter.Tags)) + `))`)
		args = append(args, lowered(filter.Tags)...)
	}
	if len(filter.ServerDeps) > 0 {
		sb.WriteString(` AND id IN (
			SELECT solved_problem_id FROM dependencies
			WHERE type = 'SERVER' AND LOWER(name) IN (` + placeholders(len(filter.ServerDeps)) + `))`)
		args = append(args, lowered(filter.ServerDeps)...)
	}
	if len(filter.ClientDeps) > 0 {
		sb.WriteString(` AND id IN (
			SELECT solved_problem_id FROM dependencies
			WHERE type = 'CLIENT' AND LOWER(name) IN (` + placeholders(len(filter.ClientDeps)) + `))`)
		args = append(args, lowered(filter.ClientDeps)...)
	}
	if filter.UpdatedAfter != nil {
		sb.WriteString(` AND updated_at >= ?`)
		args = append(args, filter.UpdatedAfter.UTC())
	}
	if filter.UpdatedBefore != nil {
		sb.WriteString(` AND updated_at <= ?`)
		args = append(args, filter.UpdatedBefore.UTC())
	}
	sb.WriteString(` ORDER BY updated_at DESC`)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		customLog.Warnf("Storage: Failed to list solved problems: %v", err)
		return nil, fmt.Errorf("database error listing solved problems: %w", err)
	}
	defer rows.Close()

	problems := []domain.SolvedProblem{}
	for rows.Next() {
		var sp domain.SolvedProblem
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Description, &sp.AppType, &sp.OwnerID, &sp.CopiedFromID, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed processing solved problem data: %w", err)
		}
		problems = append(problems, sp)
	}
	return problems, rows.Err()
}

// OwnedProblemIDs returns the ids of problems a user owns.
func OwnedProblemIDs(ctx context.Context, db *sql.DB, userID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM solved_problems WHERE owner_id = ?`, userID)
	if err != nil {
		customLog.Warnf("Storage: Failed to list owned problems for user %s: %v", userID, err)
		return nil, fmt.Errorf("database error listing owned problems: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed processing owned problem data: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListProblemTags returns the tag names attached to a problem.
func ListProblemTags(ctx context.Context, db *sql.DB, problemID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT t.name FROM solved_problem_tags spt
		 JOIN tags t ON t.id = spt.tag_id
		 WHERE spt.solved_problem_id = ? ORDER BY t.name`, problemID)
	if err != nil {
		return nil, fmt.Errorf("database error listing tags: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed processing tag data: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListProblemDependencies returns a problem's dependency rows.
func ListProblemDependencies(ctx context.Context, db *sql.DB, problemID string) ([]domain.Dependency, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, version, package_manager, type FROM dependencies
		 WHERE solved_problem_id = ? ORDER BY type, name`, problemID)
	if err != nil {
		return nil, fmt.Errorf("database error listing dependencies: %w", err)
	}
	defer rows.Close()

	deps := []domain.Dependency{}
	for rows.Next() {
		var d domain.Dependency
		if err := rows.Scan(&d.Name, &d.Version, &d.PackageManager, &d.Type); err != nil {
			return nil, fmt.Errorf("failed processing dependency data: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// --- Updates ---

// ProblemUpdate carries an update to apply to an existing problem.
// Nil slice / pointer fields mean "leave untouched", never "clear".
type ProblemUpdate struct {
	Name         *string
	Description  *string
	AppType      *string
	Tags         []string
	HasTags      bool
	Dependencies []domain.Dependency
	HasDeps      bool
	Details      *string
}

// ApplyProblemUpdate performs the whole update (core fields, wholesale tag and
// dependency replacement, conditional version bump) as one transaction.
func ApplyProblemUpdate(ctx context.Context, db *sql.DB, problemID string, upd ProblemUpdate) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ApplyProblemUpdateIn(ctx, tx, problemID, upd); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyProblemUpdateIn is ApplyProblemUpdate running on a caller-owned
// transaction.
func ApplyProblemUpdateIn(ctx context.Context, q DBTX, problemID string, upd ProblemUpdate) error {
	// Version policy first: compares against the latest version inside the
	// same transaction so a concurrent approval can't interleave.
	if err := maybeCreateVersion(ctx, q, problemID, upd.Details); err != nil {
		return err
	}

	if upd.HasTags {
		if _, err := q.ExecContext(ctx, `DELETE FROM solved_problem_tags WHERE solved_problem_id = ?`, problemID); err != nil {
			return fmt.Errorf("database error clearing tags: %w", err)
		}
		if err := insertTags(ctx, q, problemID, upd.Tags); err != nil {
			return err
		}
	}

	if upd.HasDeps {
		if _, err := q.ExecContext(ctx, `DELETE FROM dependencies WHERE solved_problem_id = ?`, problemID); err != nil {
			return fmt.Errorf("database error clearing dependencies: %w", err)
		}
		if err := insertDependencies(ctx, q, problemID, upd.Dependencies); err != nil {
			return err
		}
	}

	setClauses := []string{}
	args := []any{}
	if upd.Name != nil {
		setClauses = append(setClauses, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Description != nil {
		setClauses = append(setClauses, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.AppType != nil {
		setClauses = append(setClauses, "app_type = ?")
		args = append(args, *upd.AppType)
	}
	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, problemID)

	// nolint:gosec // setClauses only contains hardcoded column assignments
	sqlStatement := fmt.Sprintf("UPDATE solved_problems SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	result, err := q.ExecContext(ctx, sqlStatement, args...)
	if err != nil {
		customLog.Warnf("Storage: Failed to update solved problem '%s': %v", problemID, err)
		return fmt.Errorf("database error updating solved problem: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming solved problem update: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProblemNotFound
	}
	return nil
}

// DeleteProblem removes a problem; versions, tags links, dependencies,
// memberships go with it (cascade).
func DeleteProblem(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM solved_problems WHERE id = ?`, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to delete solved problem '%s': %v", id, err)
		return fmt.Errorf("database error deleting solved problem: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming solved problem deletion: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProblemNotFound
	}
	return nil
}

// --- Transaction helpers ---

// insertTags finds-or-creates each tag by name and links it to the problem.
func insertTags(ctx context.Context, q DBTX, problemID string, tags []string) error {
	for _, name := range tags {
		var tagID string
		err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ? LIMIT 1`, name).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			tagID = uuid.New().String()
			if _, err := q.ExecContext(ctx, `INSERT INTO tags (id, name) VALUES (?, ?)`, tagID, name); err != nil {
				return fmt.Errorf("database error creating tag '%s': %w", name, err)
			}
		} else if err != nil {
			return fmt.Errorf("database error finding tag '%s': %w", name, err)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO solved_problem_tags (solved_problem_id, tag_id) VALUES (?, ?)`,
			problemID, tagID); err != nil {
			return fmt.Errorf("database error linking tag '%s': %w", name, err)
		}
	}
	return nil
}

func insertDependencies(ctx context.Context, q DBTX, problemID string, deps []domain.Dependency) error {
	for _, dep := range deps {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO dependencies (id, solved_problem_id, name, version, package_manager, type) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), problemID, dep.Name, dep.Version, dep.PackageManager, dep.Type); err != nil {
			return fmt.Errorf("database error creating dependency '%s': %w", dep.Name, err)
		}
	}
	return nil
}
