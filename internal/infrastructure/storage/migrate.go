package storage

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/voteops/segengine/internal/infrastructure/logger"
)

// Migrator wraps bun's migrate.Migrator
type Migrator struct {
	migrator *migrate.Migrator
	db       *bun.DB
}

// MigratorWithAccess extends Migrator with direct access to underlying bun migrator methods.
// Its methods return bun's migration group or status slice instead of only logging them.
type MigratorWithAccess struct {
	*Migrator
}

// NewMigratorWithAccess creates a new MigratorWithAccess instance.
func NewMigratorWithAccess(db *bun.DB, migrationsFS fs.FS) (*MigratorWithAccess, error) {
	m, err := NewMigrator(db, migrationsFS)
	if err != nil {
		return nil, err
	}
	return &MigratorWithAccess{Migrator: m}, nil
}

// Migrate runs pending migrations and returns the migration group.
func (m *MigratorWithAccess) Migrate(ctx context.Context) (*migrate.MigrationGroup, error) {
	group, err := m.migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return group, nil
}

// Rollback rolls back the last migration group and returns it.
func (m *MigratorWithAccess) Rollback(ctx context.Context) (*migrate.MigrationGroup, error) {
	group, err := m.migrator.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rollback: %w", err)
	}
	return group, nil
}

// MigrationsWithStatus returns all migrations with their current status.
func (m *MigratorWithAccess) MigrationsWithStatus(ctx context.Context) (migrate.MigrationSlice, error) {
	ms, err := m.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	return ms, nil
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *bun.DB, migrationsFS fs.FS) (*Migrator, error) {
	migrations := migrate.NewMigrations()

	if err := migrations.Discover(migrationsFS); err != nil {
		return nil, fmt.Errorf("failed to discover migrations: %w", err)
	}

	migrator := migrate.NewMigrator(db, migrations)

	return &Migrator{
		migrator: migrator,
		db:       db,
	}, nil
}

// Init initializes the migration tables that track schema state for the
// segmentation engine's own tables (hierarchy, booths, families, voters,
// segments, audit trail).
func (m *Migrator) Init(ctx context.Context) error {
	logger.Info("initializing migration tables")
	return m.migrator.Init(ctx)
}

// Up runs all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	logger.Info("running migrations up")
	start := time.Now()

	group, err := m.migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	if group.IsZero() {
		logger.Info("no new migrations to run")
		return nil
	}

	logger.Info("migrations applied successfully",
		"id", group.ID,
		"migrations", fmt.Sprintf("%v", group.Migrations.Applied()),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Down rolls back the last migration group
func (m *Migrator) Down(ctx context.Context) error {
	logger.Info("rolling back last migration")

	group, err := m.migrator.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("failed to rollback: %w", err)
	}

	if group.IsZero() {
		logger.Info("no migrations to rollback")
		return nil
	}

	logger.Info("migration rolled back successfully",
		"id", group.ID,
		"migrations", fmt.Sprintf("%v", group.Migrations.Unapplied()),
	)

	return nil
}

// Status returns the current migration status
func (m *Migrator) Status(ctx context.Context) error {
	ms, err := m.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	logger.Info("migration status", "total", len(ms))

	for _, migration := range ms {
		status := "pending"
		if migration.GroupID > 0 {
			status = "applied"
		}
		logger.Info("migration", "name", migration.Name, "status", status)
	}

	return nil
}

// Reset rolls back all migrations. Intended for non-production resets of a
// scratch election database between test segmentation runs, never called
// from cmd/server.
func (m *Migrator) Reset(ctx context.Context) error {
	logger.Warn("resetting all migrations (this will drop all tables)")

	for {
		group, err := m.migrator.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("failed to rollback: %w", err)
		}
		if group.IsZero() {
			break
		}
		logger.Info("rolled back migration group", "id", group.ID)
	}

	logger.Info("all migrations rolled back")
	return nil
}

// CreateMigrationTable creates the migration tracking table
func (m *Migrator) CreateMigrationTable(ctx context.Context) error {
	return m.migrator.Init(ctx)
}
