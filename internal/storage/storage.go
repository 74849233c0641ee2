package storage

import (
	"context"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema/*.sql
var schemas embed.FS

// New opens the database, checks the connection and applies the schema.
func New(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	const op = "storage.New"

	var sqlDriver, schemaFile string
	switch driver {
	case DriverPostgres:
		sqlDriver, schemaFile = "pgx", "schema/postgres.sql"
	case DriverSQLite:
		sqlDriver, schemaFile = "sqlite3", "schema/sqlite.sql"
	default:
		return nil, fmt.Errorf("%s: unsupported driver %q", op, driver)
	}

	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	if driver == DriverSQLite {
		// one connection keeps an in-memory database alive and serializes writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: enable foreign keys: %w", op, err)
		}
	}

	schema, err := schemas.ReadFile(schemaFile)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: read schema: %w", op, err)
	}

	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: apply schema: %w", op, err)
	}

	return db, nil
}
