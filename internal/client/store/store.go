// Package store is the client's local store: a per-device-profile SQLite
// database holding the working copy of every domain table plus the local-only
// synced_at marker, a small metadata key/value space, and a change-listener
// registry so views can observe writes without any framework reactivity.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mzhdanov/bandtrack/internal/common"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Listener is notified with the table name after a committed write.
type Listener func(table string)

type Store struct {
	db *sql.DB

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// Open opens (creating if needed) the local database at dsn and runs the
// embedded migrations. A single connection is used; SQLite has one writer
// anyway and this keeps PRAGMAs session-wide.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, listeners: make(map[int]Listener)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Subscribe registers a change listener and returns its unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(table string) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(table)
	}
}

// isForeignKeyViolation matches SQLite's FK constraint failure.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint")
}

// mapConstraintErr converts FK failures to the shared sentinel so callers
// can degrade (soft delete, or skip an orphan row during sync apply).
func mapConstraintErr(err error) error {
	if isForeignKeyViolation(err) {
		return common.ErrForeignKeyViolation
	}
	return err
}

// unix-millisecond conversions shared by every repository file.

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func toMillisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromMillisPtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}
