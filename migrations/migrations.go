// Package migrations embeds the SQL schema migrations and applies them
// through goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var fs embed.FS

// Prepare points goose at the embedded migrations and selects the sqlite
// dialect. It must be called before any other goose operation.
func Prepare() error {
	goose.SetBaseFS(fs)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	return nil
}

// Run migrates the database to the latest version.
func Run(db *sql.DB) error {
	if err := Prepare(); err != nil {
		return err
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
