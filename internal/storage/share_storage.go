// internal/storage/share_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

var (
	ErrShareNotFound = errors.New("share not found")
	ErrShareExists   = errors.New("resource is already shared with this user")
)

// CreateShare inserts a share. The (resource, shared-with) pair is unique;
// re-sharing surfaces as ErrShareExists.
func CreateShare(ctx context.Context, db *sql.DB, share *domain.Share) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO shares (id, resource_type, resource_id, shared_by_user_id, shared_with_user_id, permission)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		share.ID, string(share.Resource.Kind), share.Resource.ID, share.SharedByUserID, share.SharedWithUserID, share.Permission)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrShareExists
		}
		customLog.Warnf("Storage: Failed to insert share for %s '%s': %v", share.Resource.Kind, share.Resource.ID, err)
		return fmt.Errorf("database error creating share: %w", err)
	}
	return nil
}

// GetShare returns one share row by id.
func GetShare(ctx context.Context, db *sql.DB, id string) (*domain.Share, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, resource_type, resource_id, shared_by_user_id, shared_with_user_id, permission, created_at
		 FROM shares WHERE id = ? LIMIT 1`, id)
	share, err := scanShare(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShareNotFound
		}
		customLog.Warnf("Storage: Failed to get share '%s': %v", id, err)
		return nil, fmt.Errorf("database error finding share: %w", err)
	}
	return share, nil
}

func scanShare(scan func(dest ...any) error) (*domain.Share, error) {
	var s domain.Share
	var kind string
	if err := scan(&s.ID, &kind, &s.Resource.ID, &s.SharedByUserID, &s.SharedWithUserID, &s.Permission, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Resource.Kind = domain.ResourceKind(kind)
	return &s, nil
}

// UpdateSharePermission changes the READ/WRITE level of a share.
func UpdateSharePermission(ctx context.Context, db *sql.DB, id, permission string) error {
	result, err := db.ExecContext(ctx, `UPDATE shares SET permission = ? WHERE id = ?`, permission, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to update share '%s': %v", id, err)
		return fmt.Errorf("database error updating share: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming share update: %w", err)
	}
	if rowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}

// DeleteShare revokes a share.
func DeleteShare(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM shares WHERE id = ?`, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to delete share '%s': %v", id, err)
		return fmt.Errorf("database error deleting share: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming share deletion: %w", err)
	}
	if rowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}

func listShares(ctx context.Context, db *sql.DB, where string, arg string) ([]domain.Share, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, resource_type, resource_id, shared_by_user_id, shared_with_user_id, permission, created_at
		 FROM shares WHERE `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		customLog.Warnf("Storage: Failed to list shares (%s): %v", where, err)
		return nil, fmt.Errorf("database error listing shares: %w", err)
	}
	defer rows.Close()

	shares := []domain.Share{}
	for rows.Next() {
		s, err := scanShare(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed processing share data: %w", err)
		}
		shares = append(shares, *s)
	}
	return shares, rows.Err()
}

// ListSharesBy returns everything a user has shared out, newest first.
func ListSharesBy(ctx context.Context, db *sql.DB, userID string) ([]domain.Share, error) {
	return listShares(ctx, db, "shared_by_user_id = ?", userID)
}

// ListSharesWith returns everything shared with a user, newest first.
func ListSharesWith(ctx context.Context, db *sql.DB, userID string) ([]domain.Share, error) {
	return listShares(ctx, db, "shared_with_user_id = ?", userID)
}

// SharedResourceIDs returns the resource ids of the given kind shared with a
// user, regardless of permission level.
func SharedResourceIDs(ctx context.Context, db *sql.DB, userID string, kind domain.ResourceKind) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT resource_id FROM shares WHERE shared_with_user_id = ? AND resource_type = ?`,
		userID, string(kind))
	if err != nil {
		customLog.Warnf("Storage: Failed to resolve %s shares for user %s: %v", kind, userID, err)
		return nil, fmt.Errorf("database error resolving shares: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed processing share data: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasWriteShare reports whether a WRITE share exists on the exact resource
// for the user. Group-level WRITE does not propagate to member problems.
func HasWriteShare(ctx context.Context, db *sql.DB, userID string, resource domain.ResourceRef) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM shares
		 WHERE resource_type = ? AND resource_id = ? AND shared_with_user_id = ? AND permission = 'WRITE' LIMIT 1`,
		string(resource.Kind), resource.ID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error checking write share: %w", err)
	}
	return true, nil
}
