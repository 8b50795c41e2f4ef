// internal/storage/version_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

var (
	ErrVersionNotFound = errors.New("version not found")
)

// LatestVersion returns the newest version of a problem, or nil if the
// problem has no versions yet.
func LatestVersion(ctx context.Context, db *sql.DB, problemID string) (*domain.Version, error) {
	return latestVersion(ctx, db, problemID)
}

func latestVersion(ctx context.Context, q DBTX, problemID string) (*domain.Version, error) {
	row := q.QueryRowContext(ctx,
		`SELECT solved_problem_id, version, details, created_at FROM solved_problem_versions
		 WHERE solved_problem_id = ? ORDER BY version DESC LIMIT 1`, problemID)

	var v domain.Version
	err := row.Scan(&v.SolvedProblemID, &v.Version, &v.Details, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		customLog.Warnf("Storage: Failed to get latest version for '%s': %v", problemID, err)
		return nil, fmt.Errorf("database error finding latest version: %w", err)
	}
	return &v, nil
}

// GetVersion retrieves one immutable version record.
func GetVersion(ctx context.Context, db *sql.DB, problemID string, version int) (*domain.Version, error) {
	row := db.QueryRowContext(ctx,
		`SELECT solved_problem_id, version, details, created_at FROM solved_problem_versions
		 WHERE solved_problem_id = ? AND version = ? LIMIT 1`, problemID, version)

	var v domain.Version
	err := row.Scan(&v.SolvedProblemID, &v.Version, &v.Details, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		customLog.Warnf("Storage: Failed to get version %d of '%s': %v", version, problemID, err)
		return nil, fmt.Errorf("database error finding version: %w", err)
	}
	return &v, nil
}

// ListVersions returns all versions of a problem. Ascending when asc is true
// (export order), otherwise newest first (UI order).
func ListVersions(ctx context.Context, db *sql.DB, problemID string, asc bool) ([]domain.Version, error) {
	order := "DESC"
	if asc {
		order = "ASC"
	}
	rows, err := db.QueryContext(ctx,
		`SELECT solved_problem_id, version, details, created_at FROM solved_problem_versions
		 WHERE solved_problem_id = ? ORDER BY version `+order, problemID)
	if err != nil {
		customLog.Warnf("Storage: Failed to list versions for '%s': %v", problemID, err)
		return nil, fmt.Errorf("database error listing versions: %w", err)
	}
	defer rows.Close()

	versions := []domain.Version{}
	for rows.Next() {
		var v domain.Version
		if err := rows.Scan(&v.SolvedProblemID, &v.Version, &v.Details, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed processing version data: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// AppendVersionHistory writes a full version history 1..N in the given
// order, for re-materializing an imported problem. The problem must have no
// versions yet.
func AppendVersionHistory(ctx context.Context, q DBTX, problemID string, details []string) error {
	for i, d := range details {
		if err := insertVersion(ctx, q, problemID, i+1, d); err != nil {
			return err
		}
	}
	return nil
}

func insertVersion(ctx context.Context, q DBTX, problemID string, version int, details string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO solved_problem_versions (solved_problem_id, version, details) VALUES (?, ?, ?)`,
		problemID, version, details)
	if err != nil {
		customLog.Warnf("Storage: Failed to insert version %d for '%s': %v", version, problemID, err)
		return fmt.Errorf("database error creating version: %w", err)
	}
	return nil
}

// maybeCreateVersion implements the versioning policy: no-op when details are
// absent or byte-for-byte equal to the current latest; otherwise insert
// (latest + 1). Runs against the caller's transaction.
func maybeCreateVersion(ctx context.Context, q DBTX, problemID string, details *string) error {
	if details == nil {
		return nil
	}
	latest, err := latestVersion(ctx, q, problemID)
	if err != nil {
		return err
	}
	current := ""
	next := 1
	if latest != nil {
		current = latest.Details
		next = latest.Version + 1
	}
	if *details == current {
		return nil
	}
	return insertVersion(ctx, q, problemID, next, *details)
}
