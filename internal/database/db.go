// Package database opens the relational store and applies its schema.
// MySQL is the production target; SQLite (pure Go driver) serves local
// development and the repository tests.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/restful-api/internal/config"
)

// Dialect names the SQL flavour behind a *sql.DB. Both dialects accept `?`
// placeholders; the differences the repositories care about are exposed as
// methods.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// ForUpdate returns the row-lock suffix for a SELECT inside a transaction.
// SQLite serializes writers on the database lock, so it needs none.
func (d Dialect) ForUpdate() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// Connect opens the store selected by cfg.Driver and applies migrations.
func Connect(ctx context.Context, cfg config.DBConfig) (*sql.DB, Dialect, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)
	switch cfg.Driver {
	case string(SQLite):
		db, err = OpenSQLite(ctx, cfg.Path)
		dialect = SQLite
	default:
		db, err = Open(ctx, cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name)
		dialect = MySQL
	}
	if err != nil {
		return nil, "", err
	}
	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

// Open connects to MySQL and verifies the connection.
func Open(ctx context.Context, user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}
