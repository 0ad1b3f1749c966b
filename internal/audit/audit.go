// Package audit implements the supplemental Audit Store (SPEC_FULL.md
// §9.6): a SQLite-backed read side recording one row per polling
// iteration and one row per notable event, queried only by the status
// dashboard and operational tooling — never by the polling loop's
// correctness-critical path (the flat-file stores remain the system of
// record). Grounded on the teacher's internal/db package: same
// modernc.org/sqlite + pressly/goose/v3 embedded-migration shape,
// generalized from a Claude CLI "sessions"/"events" schema to a
// "poll iteration"/"event" schema.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// DB wraps the audit SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open creates (or reopens) the audit database at path and applies all
// pending migrations, the same pattern as the teacher's internal/db.Open.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("audit: ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("audit: migrations sub-fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("audit: create migration provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("audit: apply migrations: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.conn.Close() }

// Iteration is one row recorded per polling cycle.
type Iteration struct {
	ID         int64
	UserID     string
	Query      string
	ItemsFound int
	ItemsNew   int
	ItemsSent  int
	Error      string
	DurationMs int64
	StartedAt  time.Time
	EndedAt    time.Time
}

// RecordIteration inserts one iteration row.
func (d *DB) RecordIteration(ctx context.Context, it Iteration) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO iterations (user_id, query, items_found, items_new, items_sent, error, duration_ms, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.UserID, it.Query, it.ItemsFound, it.ItemsNew, it.ItemsSent, nullableString(it.Error),
		it.DurationMs, it.StartedAt.Format(time.RFC3339), it.EndedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("audit: record iteration: %w", err)
	}
	return nil
}

// Event is one notable event row (the Scheduler records auth failures,
// blocked responses, and fatal per-user stops).
type Event struct {
	ID        int64
	UserID    string
	Kind      string
	Message   string
	CreatedAt time.Time
}

// RecordEvent inserts one event row. An empty UserID is stored as NULL.
func (d *DB) RecordEvent(ctx context.Context, ev Event) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO events (user_id, kind, message, created_at) VALUES (?, ?, ?, ?)`,
		nullableString(ev.UserID), ev.Kind, ev.Message, ev.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}
	return nil
}

// RecentIterations returns the most recent limit iteration rows across
// all users, newest first, for the status dashboard.
func (d *DB) RecentIterations(ctx context.Context, limit int) ([]Iteration, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, user_id, query, items_found, items_new, items_sent, error, duration_ms, started_at, ended_at
		FROM iterations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent iterations: %w", err)
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var it Iteration
		var errStr sql.NullString
		var started, ended string
		if err := rows.Scan(&it.ID, &it.UserID, &it.Query, &it.ItemsFound, &it.ItemsNew, &it.ItemsSent,
			&errStr, &it.DurationMs, &started, &ended); err != nil {
			return nil, fmt.Errorf("audit: scan iteration: %w", err)
		}
		it.Error = errStr.String
		it.StartedAt, _ = time.Parse(time.RFC3339, started)
		it.EndedAt, _ = time.Parse(time.RFC3339, ended)
		out = append(out, it)
	}
	return out, rows.Err()
}

// RecentEvents returns the most recent limit event rows, newest first.
func (d *DB) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, user_id, kind, message, created_at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var userID sql.NullString
		var created string
		if err := rows.Scan(&ev.ID, &userID, &ev.Kind, &ev.Message, &created); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		ev.UserID = userID.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
