// Package sqlite provides a SQLite-backed implementation of
// authlog.Repository.
//
// WAL mode is enabled on Open so readers never block the writer — the
// handshake goroutines append while an operator may be querying the file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sizzle-game/server/internal/authlog"

	// Register the pure-Go SQLite driver (no CGO, easy Alpine builds).
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. The table is append-only: each
// row is an immutable event in a handshake's lifecycle.
const schema = `
CREATE TABLE IF NOT EXISTS auth_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Correlation key of the handshake. Not UNIQUE: one row per transition.
    tx_key      TEXT NOT NULL,

    -- STARTED | COMPLETED | FAILED.
    event       TEXT NOT NULL,

    -- Failure reason code on FAILED rows, '' otherwise.
    reason      TEXT NOT NULL DEFAULT '',

    -- W3C trace_id / span_id of the active OTel span, '' when none.
    trace_id    TEXT NOT NULL DEFAULT '',
    span_id     TEXT NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT, SQLite idiom.
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auth_log_key ON auth_log(tx_key, created_at);
CREATE INDEX IF NOT EXISTS idx_auth_log_trace ON auth_log(trace_id);
`

const timeFormat = "2006-01-02T15:04:05.999999999Z"

// Repository is the SQLite implementation of authlog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("authlog: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("authlog: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends a new audit entry. Safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *authlog.Entry) error {
	const q = `
		INSERT INTO auth_log (tx_key, event, reason, trace_id, span_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.Key,
		string(entry.Event),
		entry.Reason,
		entry.TraceID,
		entry.SpanID,
		entry.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("authlog: save entry for %q: %w", entry.Key, err)
	}
	return nil
}

// Latest returns the most recent entry for a correlation key, or (nil, nil)
// when the key never produced an event.
func (r *Repository) Latest(ctx context.Context, key string) (*authlog.Entry, error) {
	const q = `
		SELECT tx_key, event, reason, trace_id, span_id, created_at
		FROM   auth_log
		WHERE  tx_key = ?
		ORDER  BY created_at DESC, id DESC
		LIMIT  1`

	row := r.db.QueryRowContext(ctx, q, key)

	var entry authlog.Entry
	var createdAt string
	err := row.Scan(&entry.Key, &entry.Event, &entry.Reason, &entry.TraceID, &entry.SpanID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authlog: latest for %q: %w", key, err)
	}

	entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("authlog: parse time %q: %w", createdAt, err)
	}
	return &entry, nil
}
