// internal/storage/settings_storage.go
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/christopher-kapic/solved-problems-mcp/internal/domain"
)

const settingsID = "default"

// GetSettings returns the singleton settings row, creating it with defaults
// on first read (upsert-default).
func GetSettings(ctx context.Context, db *sql.DB) (*domain.SiteSettings, error) {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO site_settings (id, signup_enabled, export_enabled) VALUES (?, 1, 1)`, settingsID)
	if err != nil {
		customLog.Warnf("Storage: Failed to ensure settings row: %v", err)
		return nil, fmt.Errorf("database error ensuring settings: %w", err)
	}

	var s domain.SiteSettings
	err = db.QueryRowContext(ctx,
		`SELECT id, signup_enabled, export_enabled FROM site_settings WHERE id = ? LIMIT 1`, settingsID).
		Scan(&s.ID, &s.SignupEnabled, &s.ExportEnabled)
	if err != nil {
		customLog.Warnf("Storage: Failed to read settings: %v", err)
		return nil, fmt.Errorf("database error reading settings: %w", err)
	}
	return &s, nil
}

// SettingsUpdate carries partial settings changes; nil fields stay untouched.
type SettingsUpdate struct {
	SignupEnabled *bool
	ExportEnabled *bool
}

// UpdateSettings applies a partial update to the singleton row.
func UpdateSettings(ctx context.Context, db *sql.DB, upd SettingsUpdate) (*domain.SiteSettings, error) {
	// Ensure the row exists before updating it.
	if _, err := GetSettings(ctx, db); err != nil {
		return nil, err
	}

	if upd.SignupEnabled != nil {
		if _, err := db.ExecContext(ctx,
			`UPDATE site_settings SET signup_enabled = ? WHERE id = ?`, *upd.SignupEnabled, settingsID); err != nil {
			customLog.Warnf("Storage: Failed to update signup_enabled: %v", err)
			return nil, fmt.Errorf("database error updating settings: %w", err)
		}
	}
	if upd.ExportEnabled != nil {
		if _, err := db.ExecContext(ctx,
			`UPDATE site_settings SET export_enabled = ? WHERE id = ?`, *upd.ExportEnabled, settingsID); err != nil {
			customLog.Warnf("Storage: Failed to update export_enabled: %v", err)
			return nil, fmt.Errorf("database error updating settings: %w", err)
		}
	}

	return GetSettings(ctx, db)
}
