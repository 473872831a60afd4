package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

// goose keeps its dialect and filesystem in package state.
var migrateMu sync.Mutex

// Migrate applies every pending migration for dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	gooseDialect, dir := "mysql", "migrations/mysql"
	if dialect == SQLite {
		gooseDialect, dir = "sqlite3", "migrations/sqlite"
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}
