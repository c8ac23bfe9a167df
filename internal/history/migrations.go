package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// migrate brings the ledger schema up to date. goose's Provider API keeps
// migration state on the database handle rather than in package globals.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	dir, err := fs.Sub(schemaFS, "migrations")
	if err != nil {
		return fmt.Errorf("history: migration filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, dir)
	if err != nil {
		return fmt.Errorf("history: migration provider: %w", err)
	}

	applied, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("history: migrating schema: %w", err)
	}

	if len(applied) > 0 {
		logger.Debug("ledger schema migrated", slog.Int("applied", len(applied)))
	}

	return nil
}
