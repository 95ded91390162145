// Package storage is a demo, storage-backed Collaborator implementation
// for the lazy writer. It is not part of the lazy writer's own
// requirements (spec.md's non-goals explicitly exclude persistence of
// cached data — "the collaborator performs the I/O"); it exists so
// cmd/lazywriterd has something real to flush against (internal/lazywriter's
// own tests use an in-package fake instead), the way the teacher repo's
// internal/db backs its scan/hash pipeline.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// busyTimeoutMS bounds how long SQLite waits before returning
// SQLITE_BUSY when locked, applied via the DSN so every pooled
// connection picks it up.
const busyTimeoutMS = 30000

// Store is a ledger of dirty-stream flushes: one row per write-behind
// the demo collaborator performs, recording the stream and its page count.
// Backed by either embedded SQLite or Postgres, selected at Open time.
type Store struct {
	db      *sql.DB
	dialect dialect
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Open opens a SQLite database at path (use ":memory:" for an in-memory
// store shared across the pool, matching the teacher's Open) and
// migrates the schema. WAL mode is enabled for write throughput, exactly
// as internal/db/db.go does for the teacher's file index.
func Open(path string) (*Store, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&_busy_timeout=" + strconv.Itoa(busyTimeoutMS)
	} else {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_busy_timeout=" + strconv.Itoa(busyTimeoutMS)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: dialectSQLite}
	if err := s.migrateSQLite(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres opens a Postgres-backed store at url, for demos that run
// several lazywriterd instances sharing one dirty-page ledger, the way
// the teacher's internal/db/pg.go backs a shared file index.
func OpenPostgres(url string) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	s := &Store{db: db, dialect: dialectPostgres}
	if err := s.migratePostgres(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateSQLite() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS flushes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stream_id TEXT NOT NULL,
		pages INTEGER NOT NULL,
		flushed_at TEXT NOT NULL
	)`)
	return err
}

func (s *Store) migratePostgres() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS flushes (
		id BIGSERIAL PRIMARY KEY,
		stream_id TEXT NOT NULL,
		pages BIGINT NOT NULL,
		flushed_at TIMESTAMPTZ NOT NULL
	)`)
	return err
}

// recordFlush appends one flush record. Retried on SQLITE_BUSY; Postgres
// never returns that error so the retry loop exits on the first attempt.
//
// Placeholders are always $N, the way internal/db/files.go writes its
// queries: modernc.org/sqlite accepts $N positionally the same as
// jackc/pgx/v5/stdlib does, so one query string serves both backends.
func (s *Store) recordFlush(ctx context.Context, streamID string, pages int64) error {
	return retryOnBusy(ctx, 8, 100*time.Millisecond, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO flushes (stream_id, pages, flushed_at) VALUES ($1, $2, $3)",
			streamID, pages, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

// FlushCount returns how many flush records exist for streamID (for
// demo/test assertions).
func (s *Store) FlushCount(ctx context.Context, streamID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM flushes WHERE stream_id = $1", streamID).Scan(&n)
	return n, err
}

// errBusy mirrors internal/db's ErrBusy: returned when retryOnBusy
// exhausts its attempts against a locked SQLite database.
var errBusy = errors.New("storage: database busy, retries exhausted")

// isBusy reports whether err indicates SQLITE_BUSY, the same string
// match internal/db/busy.go uses.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "SQLITE_BUSY") || strings.Contains(s, "database is locked")
}

// retryOnBusy is internal/db/busy.go's RetryOnBusy, adapted: the demo
// collaborator's WriteBehind hits exactly the same SQLite contention the
// teacher's hash phase does when several workers flush concurrently.
func retryOnBusy(ctx context.Context, maxAttempts int, initialBackoff time.Duration, fn func() error) error {
	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
	}
	if lastErr != nil {
		return errBusy
	}
	return nil
}
