// internal/storage/apikey_storage.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrAPIKeyRevoked  = errors.New("api key is already revoked")
)

// CreateAPIKey stores a key (hash only, never the plaintext) together with
// its access grants in one transaction.
func CreateAPIKey(ctx context.Context, db *sql.DB, key *domain.APIKey, accesses []domain.ResourceRef) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, hashed_key, user_id) VALUES (?, ?, ?, ?)`,
		key.ID, key.Name, key.HashedKey, key.UserID)
	if err != nil {
		customLog.Warnf("Storage: Failed to insert API key '%s' for user %s: %v", key.Name, key.UserID, err)
		return fmt.Errorf("database error storing API key: %w", err)
	}

	if err := insertAccesses(ctx, tx, key.ID, accesses); err != nil {
		return err
	}

	return tx.Commit()
}

func insertAccesses(ctx context.Context, q DBTX, keyID string, accesses []domain.ResourceRef) error {
	for _, ref := range accesses {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO api_key_accesses (id, api_key_id, resource_type, resource_id) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), keyID, string(ref.Kind), ref.ID); err != nil {
			return fmt.Errorf("database error storing API key access: %w", err)
		}
	}
	return nil
}

const apiKeyColumns = `id, name, hashed_key, user_id, created_at, revoked_at`

// FindAPIKeyByHash looks a key up by its one-way hash. Revoked keys are
// still returned; the identity resolver decides what revocation means.
func FindAPIKeyByHash(ctx context.Context, db *sql.DB, hashedKey string) (*domain.APIKey, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE hashed_key = ? LIMIT 1`, hashedKey)
	var k domain.APIKey
	err := row.Scan(&k.ID, &k.Name, &k.HashedKey, &k.UserID, &k.CreatedAt, &k.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		customLog.Warnf("Storage: Failed to look up API key by hash: %v", err)
		return nil, fmt.Errorf("database error finding API key: %w", err)
	}
	return &k, nil
}

// GetAPIKey returns one key row by id.
func GetAPIKey(ctx context.Context, db *sql.DB, id string) (*domain.APIKey, error) {
	row := db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ? LIMIT 1`, id)
	var k domain.APIKey
	err := row.Scan(&k.ID, &k.Name, &k.HashedKey, &k.UserID, &k.CreatedAt, &k.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		customLog.Warnf("Storage: Failed to get API key '%s': %v", id, err)
		return nil, fmt.Errorf("database error finding API key: %w", err)
	}
	return &k, nil
}

// ListAPIKeys returns a user's keys, newest first.
func ListAPIKeys(ctx context.Context, db *sql.DB, userID string) ([]domain.APIKey, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		customLog.Warnf("Storage: Failed to list API keys for user %s: %v", userID, err)
		return nil, fmt.Errorf("database error listing API keys: %w", err)
	}
	defer rows.Close()

	keys := []domain.APIKey{}
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.HashedKey, &k.UserID, &k.CreatedAt, &k.RevokedAt); err != nil {
			return nil, fmt.Errorf("failed processing API key data: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey marks a key revoked. The update is conditional on the key
// still being active so a second revoke reports ErrAPIKeyRevoked instead of
// silently succeeding.
func RevokeAPIKey(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = CURRENT_TIMESTAMP WHERE id = ? AND revoked_at IS NULL`, id)
	if err != nil {
		customLog.Warnf("Storage: Failed to revoke API key '%s': %v", id, err)
		return fmt.Errorf("database error revoking API key: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed confirming API key revocation: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAPIKeyRevoked
	}
	return nil
}

// ReplaceAPIKeyAccesses swaps a key's grant list wholesale in one
// transaction; a failure leaves the prior grants intact.
func ReplaceAPIKeyAccesses(ctx context.Context, db *sql.DB, keyID string, accesses []domain.ResourceRef) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM api_key_accesses WHERE api_key_id = ?`, keyID); err != nil {
		return fmt.Errorf("database error clearing API key accesses: %w", err)
	}
	if err := insertAccesses(ctx, tx, keyID, accesses); err != nil {
		return err
	}

	return tx.Commit()
}

// ListAPIKeyAccesses returns a key's grant rows.
func ListAPIKeyAccesses(ctx context.Context, db *sql.DB, keyID string) ([]domain.APIKeyAccess, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, api_key_id, resource_type, resource_id FROM api_key_accesses WHERE api_key_id = ?`, keyID)
	if err != nil {
		customLog.Warnf("Storage: Failed to list accesses for API key '%s': %v", keyID, err)
		return nil, fmt.Errorf("database error listing API key accesses: %w", err)
	}
	defer rows.Close()

	accesses := []domain.APIKeyAccess{}
	for rows.Next() {
		var a domain.APIKeyAccess
		var kind string
		if err := rows.Scan(&a.ID, &a.APIKeyID, &kind, &a.Resource.ID); err != nil {
			return nil, fmt.Errorf("failed processing API key access data: %w", err)
		}
		a.Resource.Kind = domain.ResourceKind(kind)
		accesses = append(accesses, a)
	}
	return accesses, rows.Err()
}
