// internal/storage/user_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

// Specific errors for user operations
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSelfTarget         = errors.New("operation cannot target yourself")
)

// --- User Operations ---

// CreateUser inserts a new user. Role is decided by the caller (first user
// ever created becomes ADMIN, see the signup handler).
func CreateUser(ctx context.Context, db *sql.DB, user *domain.User) error {
	sqlStatement := `INSERT INTO users (id, email, name, password_hash, role) VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, sqlStatement, user.ID, user.Email, user.Name, user.PasswordHash, user.Role)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			if strings.Contains(sqliteErr.Error(), "users.email") {
				return ErrEmailExists
			}
		}
		customLog.Warnf("Storage: Failed to insert user %s: %v", user.Email, err)
		return fmt.Errorf("database error during user creation: %w", err)
	}
	return nil
}

// CountUsers returns the total number of users.
func CountUsers(ctx context.Context, db *sql.DB) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		customLog.Warnf("Storage: Failed to count users: %v", err)
		return 0, fmt.Errorf("database error counting users: %w", err)
	}
	return count, nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.TwoFactorEnabled, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("database error finding user: %w", err)
	}
	return &user, nil
}

const userColumns = `id, email, name, password_hash, role, two_factor_enabled, created_at`

// FindUserByEmail retrieves a user by their email address.
func FindUserByEmail(ctx context.Context, db *sql.DB, email string) (*domain.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email)
	user, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		customLog.Warnf("Storage: Failed to find user by email %s: %v", email, err)
	}
	return user, err
}

// FindUserByID retrieves a user by id.
func FindUserByID(ctx context.Context, db *sql.DB, userID string) (*domain.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, userID)
	user, err := scanUser(row)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		customLog.Warnf("Storage: Failed to find user by id %s: %v", userID, err)
	}
	return user, err
}

// ListUsers returns all users, newest first.
func ListUsers(ctx context.Context, db *sql.DB) ([]domain.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		customLog.Warnf("Storage: Failed to list users: %v", err)
		return nil, fmt.Errorf("database error listing users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.TwoFactorEnabled, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed processing user data: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user. Owned problems, groups, keys, shares and drafts
// go with it (cascade).
func DeleteUser(ctx context.Context, db *sql.DB, userID string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		customLog.Warnf("Storage: Failed to delete user %s: %v", userID, err)
		return fmt.Errorf("database error deleting user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming user deletion: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DisableTwoFactor clears a user's two-factor flag.
func DisableTwoFactor(ctx context.Context, db *sql.DB, userID string) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET two_factor_enabled = 0 WHERE id = ?`, userID)
	if err != nil {
		customLog.Warnf("Storage: Failed to disable 2FA for user %s: %v", userID, err)
		return fmt.Errorf("database error disabling two-factor: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming two-factor update: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
