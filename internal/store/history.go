package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoHistory is returned by Latest when a stack has never been recorded.
var ErrNoHistory = errors.New("no synthesis recorded")

const schema = `
CREATE TABLE IF NOT EXISTS syntheses (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	stack      TEXT    NOT NULL,
	digest     TEXT    NOT NULL,
	scopes     INTEGER NOT NULL,
	resources  INTEGER NOT NULL,
	warnings   INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS syntheses_stack ON syntheses (stack, id);`

// Entry is one recorded synthesis.
type Entry struct {
	ID        int64
	Stack     string
	Digest    string
	Scopes    int
	Resources int
	Warnings  int
	CreatedAt time.Time
}

// History is the synthesis history kept in a SQLite database.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path. ":memory:"
// opens a private in-memory database.
func Open(ctx context.Context, path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &History{db: db, now: time.Now}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// Record stores e unless its digest equals the stack's latest one. It
// reports whether a new entry was written.
func (h *History) Record(ctx context.Context, e Entry) (bool, error) {
	latest, err := h.Latest(ctx, e.Stack)
	switch {
	case errors.Is(err, ErrNoHistory):
	case err != nil:
		return false, err
	case latest.Digest == e.Digest:
		return false, nil
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = h.now()
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO syntheses (stack, digest, scopes, resources, warnings, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Stack, e.Digest, e.Scopes, e.Resources, e.Warnings, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("recording synthesis: %w", err)
	}
	return true, nil
}

// Latest returns the most recent entry of stack.
func (h *History) Latest(ctx context.Context, stack string) (*Entry, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT id, stack, digest, scopes, resources, warnings, created_at FROM syntheses WHERE stack = ? ORDER BY id DESC LIMIT 1`,
		stack,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w for %s", ErrNoHistory, stack)
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. An empty stack lists every
// stack; a limit of zero or less means no limit.
func (h *History) List(ctx context.Context, stack string, limit int) ([]Entry, error) {
	query := `SELECT id, stack, digest, scopes, resources, warnings, created_at FROM syntheses`
	var args []any
	if stack != "" {
		query += ` WHERE stack = ?`
		args = append(args, stack)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e       Entry
		created int64
	)
	if err := s.Scan(&e.ID, &e.Stack, &e.Digest, &e.Scopes, &e.Resources, &e.Warnings, &created); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	return &e, nil
}
