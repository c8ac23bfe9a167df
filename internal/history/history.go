// Package history keeps a local ledger of deploy outcomes in an embedded
// SQLite database. The ledger is advisory: recording failures are reported
// to the caller but must never fail the deploy they describe.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// Entry is one recorded deploy outcome.
type Entry struct {
	ID          int64
	WorkspaceID string
	ItemID      string
	Name        string
	Action      string
	Success     bool
	Message     string
	CreatedAt   time.Time
}

// Ledger records and lists deploy outcomes.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the ledger database at dbPath and applies any
// pending migrations. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" coherent; pooled connections
	// would each see their own empty in-memory database.
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("deployment ledger ready", "path", dbPath)

	return &Ledger{db: db, logger: logger}, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("history: %s: %w", pragma, err)
		}
	}

	return nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record inserts one deploy outcome. A zero CreatedAt is stamped with the
// current time.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO deployments (workspace_id, item_id, name, action, success, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.WorkspaceID, e.ItemID, e.Name, e.Action, e.Success, e.Message,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: recording deployment: %w", err)
	}

	l.logger.Debug("recorded deployment",
		"workspace_id", e.WorkspaceID,
		"name", e.Name,
		"action", e.Action,
		"success", e.Success,
	)

	return nil
}

// Recent returns the newest entries, newest first, at most limit rows.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, workspace_id, item_id, name, action, success, message, created_at
		 FROM deployments ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing deployments: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e       Entry
			created string
		)

		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.ItemID, &e.Name, &e.Action,
			&e.Success, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("history: scanning deployment row: %w", err)
		}

		if ts, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			e.CreatedAt = ts
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: reading deployment rows: %w", err)
	}

	return entries, nil
}
