package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"entgo.io/ent/dialect"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func withGoose(d *DB, fn func(db *sql.DB) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	gd := "sqlite3"
	if d.Dialect() == dialect.Postgres {
		gd = "postgres"
	}
	if err := goose.SetDialect(gd); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return fn(d.SQL())
}

// Migrate applies all pending schema migrations.
func Migrate(ctx context.Context, d *DB) error {
	return withGoose(d, func(db *sql.DB) error {
		if err := goose.UpContext(ctx, db, "migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		version, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		d.logger.Info("database schema up to date", "version", version)
		return nil
	})
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, d *DB) error {
	return withGoose(d, func(db *sql.DB) error {
		if err := goose.DownContext(ctx, db, "migrations"); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		d.logger.Info("migration rolled back")
		return nil
	})
}

// SchemaVersion returns the applied migration version (0 when none).
func SchemaVersion(ctx context.Context, d *DB) (int64, error) {
	var version int64
	err := withGoose(d, func(db *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}
