// internal/storage/group_storage.go
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
	ErrGroupNotFound      = errors.New("group not found")
	ErrMembershipExists   = errors.New("solved problem is already in this group")
	ErrMembershipNotFound = errors.New("solved problem is not in this group")
)

// CreateGroup inserts a group.
func CreateGroup(ctx context.Context, db *sql.DB, group *domain.Group) error {
	_, err := db.ExecContext(ctx, `INSERT INTO groups (id, name, owner_id) VALUES (?, ?, ?)`,
		group.ID, group.Name, group.OwnerID)
	if err != nil {
		customLog.Warnf("Storage: Failed to insert group '%s': %v", group.Name, err)
		return fmt.Errorf("database error creating group: %w", err)
	}
	return nil
}

// GetGroup returns one group row.
func GetGroup(ctx context.Context, db *sql.DB, id string) (*domain.Group, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, owner_id, created_at FROM groups WHERE id = ? LIMIT 1`, id)
	var g domain.Group
	err := row.Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		customLog.Warnf("Storage: Failed to get group '%s': %v", id, err)
		return nil, fmt.Errorf("database error finding group: %w", err)
	}
	return &g, nil
}

// ListGroups returns the groups in the given id set, sorted by name.
// An empty set short-circuits to an empty result.
func ListGroups(ctx context.Context, db *sql.DB, ids []string) ([]domain.Group, error) {
	if len(ids) == 0 {
		return []domain.Group{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, owner_id, created_at FROM groups WHERE id IN (`+placeholders(len(ids))+`) ORDER BY name ASC`,
		args...)
	if err != nil {
		customLog.Warnf("Storage: Failed to list groups: %v", err)
		return nil, fmt.Errorf("database error listing groups: %w", err)
	}
	defer rows.Close()

	groups := []domain.Group{}
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed processing group data: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateGroupName renames a group.
func UpdateGroupName(ctx context.Context, db *sql.DB, id, name string) error {
	result, err := db.ExecContext(ctx, `UPDATE groups SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to rename group '%s': %v", id, err)
		return fmt.Errorf("database error renaming group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming group rename: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// DeleteGroup removes a group and its memberships (cascade).
func DeleteGroup(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to delete group '%s': %v", id, err)
		return fmt.Errorf("database error deleting group: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming group deletion: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// AddGroupMember links a solved problem into a group.
func AddGroupMember(ctx context.Context, db *sql.DB, groupID, problemID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO group_memberships (group_id, solved_problem_id) VALUES (?, ?)`, groupID, problemID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return ErrMembershipExists
			}
		}
		customLog.Warnf("Storage: Failed to add problem '%s' to group '%s': %v", problemID, groupID, err)
		return fmt.Errorf("database error adding group member: %w", err)
	}
	return nil
}

// RemoveGroupMember unlinks a solved problem from a group.
func RemoveGroupMember(ctx context.Context, db *sql.DB, groupID, problemID string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_id = ? AND solved_problem_id = ?`, groupID, problemID)
	if err != nil {
		customLog.Warnf("Storage: Failed to remove problem '%s' from group '%s': %v", problemID, groupID, err)
		return fmt.Errorf("database error removing group member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming member removal: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// OwnedGroupIDs returns the ids of groups a user owns.
func OwnedGroupIDs(ctx context.Context, db *sql.DB, userID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM groups WHERE owner_id = ?`, userID)
	if err != nil {
		customLog.Warnf("Storage: Failed to list owned groups for user %s: %v", userID, err)
		return nil, fmt.Errorf("database error listing owned groups: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed processing owned group data: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListGroupMemberIDs returns the problem ids that belong to any of the given
// groups, deduplicated. Empty input short-circuits.
func ListGroupMemberIDs(ctx context.Context, db *sql.DB, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return []string{}, nil
	}
	args := make([]any, len(groupIDs))
	for i, id := range groupIDs {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT solved_problem_id FROM group_memberships WHERE group_id IN (`+placeholders(len(groupIDs))+`)`,
		args...)
	if err != nil {
		customLog.Warnf("Storage: Failed to resolve group memberships: %v", err)
		return nil, fmt.Errorf("database error resolving group memberships: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed processing membership data: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListGroupProblems returns the member problems of one group.
func ListGroupProblems(ctx context.Context, db *sql.DB, groupID string) ([]domain.SolvedProblem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT sp.id, sp.name, sp.description, sp.app_type, sp.owner_id, sp.copied_from_id, sp.created_at, sp.updated_at
		 FROM group_memberships gm
		 JOIN solved_problems sp ON sp.id = gm.solved_problem_id
		 WHERE gm.group_id = ? ORDER BY sp.name`, groupID)
	if err != nil {
		customLog.Warnf("Storage: Failed to list problems of group '%s': %v", groupID, err)
		return nil, fmt.Errorf("database error listing group problems: %w", err)
	}
	defer rows.Close()

	problems := []domain.SolvedProblem{}
	for rows.Next() {
		var sp domain.SolvedProblem
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Description, &sp.AppType, &sp.OwnerID, &sp.CopiedFromID, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed processing group problem data: %w", err)
		}
		problems = append(problems, sp)
	}
	return problems, rows.Err()
}
