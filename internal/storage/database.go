// internal/storage/database.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Driver registration

	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
)

var customLog = logger.NewLogger()

// DBTX is satisfied by both *sql.DB and *sql.Tx so operations can run
// standalone or inside a caller-owned transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// schema statements, executed in order at connect time. SQLite applies
// foreign keys only when the connection enables them (see DSN below).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'USER',
		two_factor_enabled INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS solved_problems (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		app_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		copied_from_id TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS solved_problem_versions (
		solved_problem_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		details TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (solved_problem_id, version),
		FOREIGN KEY (solved_problem_id) REFERENCES solved_problems(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS dependencies (
		id TEXT PRIMARY KEY,
		solved_problem_id TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		package_manager TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('SERVER', 'CLIENT')),
		FOREIGN KEY (solved_problem_id) REFERENCES solved_problems(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS solved_problem_tags (
		solved_problem_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (solved_problem_id, tag_id),
		FOREIGN KEY (solved_problem_id) REFERENCES solved_problems(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS group_memberships (
		group_id TEXT NOT NULL,
		solved_problem_id TEXT NOT NULL,
		PRIMARY KEY (group_id, solved_problem_id),
		FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE,
		FOREIGN KEY (solved_problem_id) REFERENCES solved_problems(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS shares (
		id TEXT PRIMARY KEY,
		resource_type TEXT NOT NULL CHECK (resource_type IN ('SOLVED_PROBLEM', 'GROUP')),
		resource_id TEXT NOT NULL,
		shared_by_user_id TEXT NOT NULL,
		shared_with_user_id TEXT NOT NULL,
		permission TEXT NOT NULL CHECK (permission IN ('READ', 'WRITE')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (resource_type, resource_id, shared_with_user_id),
		FOREIGN KEY (shared_by_user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (shared_with_user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hashed_key TEXT UNIQUE NOT NULL,
		user_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		revoked_at TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS api_key_accesses (
		id TEXT PRIMARY KEY,
		api_key_id TEXT NOT NULL,
		resource_type TEXT NOT NULL CHECK (resource_type IN ('SOLVED_PROBLEM', 'GROUP')),
		resource_id TEXT NOT NULL,
		UNIQUE (api_key_id, resource_type, resource_id),
		FOREIGN KEY (api_key_id) REFERENCES api_keys(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		solved_problem_id TEXT,
		proposed_data TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
		created_by_user_id TEXT NOT NULL,
		api_key_id TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		reviewed_at TIMESTAMP,
		FOREIGN KEY (solved_problem_id) REFERENCES solved_problems(id) ON DELETE SET NULL,
		FOREIGN KEY (created_by_user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (api_key_id) REFERENCES api_keys(id) ON DELETE SET NULL
	);`,
	`CREATE TABLE IF NOT EXISTS site_settings (
		id TEXT PRIMARY KEY,
		signup_enabled INTEGER NOT NULL DEFAULT 1,
		export_enabled INTEGER NOT NULL DEFAULT 1
	);`,
}

// ConnectDB initializes the connection pool for the SQLite database and
// ensures all application tables exist.
func ConnectDB(cfg *config.Config) (*sql.DB, error) {
	dbPath := filepath.Join(cfg.DataDir, cfg.DatabaseFile)
	customLog.Printf("Storage: Initializing database: %s", dbPath)

	// Ensure the data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		customLog.Warnf("Storage: Error creating data directory '%s': %v", cfg.DataDir, err)
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// _foreign_keys=on enables foreign key constraint enforcement per connection
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		customLog.Warnf("Storage: Failed to open db '%s': %v", dbPath, err)
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Verify connection is working
	if err = db.Ping(); err != nil {
		db.Close()
		customLog.Warnf("Storage: Failed to ping db '%s': %v", dbPath, err)
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	for _, stmt := range schemaStatements {
		if _, err = db.Exec(stmt); err != nil {
			db.Close()
			customLog.Warnf("Storage: Failed to ensure schema: %v", err)
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	customLog.Println("Storage: Database connection successful, schema ensured.")

	return db, nil
}
