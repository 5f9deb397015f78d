package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"unit-preferences/internal/observability"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
	Applied     bool
}

// MigrationManager handles database migrations
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// EnsureMigrationsTable creates the migrations tracking table if it doesn't exist
func (m *MigrationManager) EnsureMigrationsTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		description VARCHAR(255),
		applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`

	_, err := m.db.ExecContext(ctx, query)
	return err
}

// GetAppliedMigrations returns the versions already recorded
func (m *MigrationManager) GetAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }() //nolint:errcheck // Resource cleanup

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// ApplyMigration applies a single migration and records it in one transaction
func (m *MigrationManager) ApplyMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("%w: apply %s: %w", ErrMigrationFailed, migration.Version, err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version,
		migration.Description,
	)
	if err != nil {
		return fmt.Errorf("%w: record %s: %w", ErrMigrationFailed, migration.Version, err)
	}

	return tx.Commit()
}

// LoadMigrationsFromFS loads *.sql files named VERSION_description.sql from dir
func LoadMigrationsFromFS(fsys fs.FS, dir string) ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", p, err)
		}

		filename := path.Base(p)
		parts := strings.SplitN(filename, "_", 2)
		if len(parts) < 2 || parts[0] == "" {
			return fmt.Errorf("%w: %s", ErrInvalidMigration, filename)
		}

		description := strings.TrimSuffix(parts[1], ".sql")
		migrations = append(migrations, Migration{
			Version:     parts[0],
			Description: strings.ReplaceAll(description, "_", " "),
			SQL:         string(content),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// EmbeddedMigrations returns the migrations compiled into the binary
func EmbeddedMigrations() ([]Migration, error) {
	return LoadMigrationsFromFS(embeddedMigrations, "migrations")
}

// RunMigrations applies all pending embedded migrations. logger may be nil.
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	manager := NewMigrationManager(db)

	if err := manager.EnsureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := EmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := manager.GetAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}

		if logger != nil {
			logger.Info(ctx).
				Str("version", migration.Version).
				Str("description", migration.Description).
				Msg("Applying migration")
		}

		if err := manager.ApplyMigration(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}
