// Package ledger tracks which batches have been fully admitted to the
// position log. Batch consumption is at-least-once at the transport level; a
// crash after append but before the source is marked would re-deliver the
// batch, and the ledger is what keeps the retry from appending and alerting
// twice.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Ledger struct {
	db *sql.DB
}

func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening ledger: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging ledger: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating ledger: %w", err)
	}

	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS processed_batches (
			id TEXT PRIMARY KEY,
			processed_at DATETIME NOT NULL
		);
  	`

	_, err := l.db.Exec(schema)
	return err
}

// Seen reports whether a batch has already completed append and alert-state
// persistence in an earlier run.
func (l *Ledger) Seen(ctx context.Context, batchID string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_batches WHERE id = ?`, batchID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking batch %s: %w", batchID, err)
	}
	return true, nil
}

// MarkDone records a batch as fully admitted. Idempotent.
func (l *Ledger) MarkDone(ctx context.Context, batchID string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_batches (id, processed_at) VALUES (?, ?)`,
		batchID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error marking batch %s done: %w", batchID, err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
