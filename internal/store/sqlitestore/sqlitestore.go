// Package sqlitestore implements store.Store on an embedded SQLite database.
//
// The database file is the named local store; PRAGMA user_version carries its
// schema version. Opening with a higher version than the file records runs the
// upgrade steps (creating the records table and the index on completed) and
// bumps user_version. Opening with a lower version fails, since downgrades are
// not supported.
//
// Usage:
//
//	st, err := sqlitestore.Open(ctx, "progress.db", 1)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/idilsaglam/tracker/internal/model"
	"github.com/idilsaglam/tracker/internal/store"
)

// upgrades[i] moves a database from user_version i to i+1.
// Versions past len(upgrades) carry no schema change and only bump user_version.
var upgrades = []string{
	`
	CREATE TABLE IF NOT EXISTS records (
		id        TEXT PRIMARY KEY,
		completed INTEGER NOT NULL CHECK (completed IN (0, 1)),
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_completed ON records(completed);
	`,
}

type config struct {
	busyTimeout int
	logger      *slog.Logger
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 5000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// Store is a SQLite-backed store.Store.
type Store struct {
	db      *sql.DB
	path    string
	version int
	log     *slog.Logger
	closed  atomic.Bool
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and brings its schema
// to version. It is idempotent: reopening an up-to-date file changes nothing.
// The returned store is usable only when err is nil.
func Open(ctx context.Context, path string, version int, opts ...Option) (*Store, error) {
	if version < 1 {
		return nil, fmt.Errorf("sqlitestore: invalid version %d", version)
	}
	cfg := config{busyTimeout: 5000, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlitestore: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}

	s := &Store{db: db, path: path, version: version, log: cfg.logger.With("component", "sqlitestore")}
	if err := s.migrate(ctx, version); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info("store opened", "path", path, "version", version)
	return s, nil
}

func dsn(path string, cfg config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout))
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) migrate(ctx context.Context, want int) error {
	var have int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&have); err != nil {
		return fmt.Errorf("sqlitestore: read version: %w", err)
	}
	if have > want {
		return fmt.Errorf("sqlitestore: database version %d is newer than requested %d", have, want)
	}
	if have == want {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin upgrade: %w", err)
	}
	defer tx.Rollback()

	for v := have; v < want && v < len(upgrades); v++ {
		if _, err := tx.ExecContext(ctx, upgrades[v]); err != nil {
			return fmt.Errorf("sqlitestore: upgrade to %d: %w", v+1, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", want)); err != nil {
		return fmt.Errorf("sqlitestore: set version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit upgrade: %w", err)
	}
	s.log.Info("store upgraded", "from", have, "to", want)
	return nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.path }

// Version returns the schema version the store was opened with.
func (s *Store) Version() int { return s.version }

// Close closes the database. Later calls are no-ops.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlitestore: close: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q querier, id string) (model.Record, bool, error) {
	var rec model.Record
	err := q.QueryRowContext(ctx,
		`SELECT id, completed, timestamp FROM records WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Completed, &rec.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, false, nil
	}
	if err != nil {
		return model.Record{}, false, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, true, nil
}

func put(ctx context.Context, q querier, rec model.Record) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO records (id, completed, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed = excluded.completed,
			timestamp = excluded.timestamp`,
		rec.ID, rec.Completed, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.ID, err)
	}
	return nil
}

func clearAll(ctx context.Context, q querier) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

func (s *Store) check() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

// Get reads one record.
func (s *Store) Get(ctx context.Context, id string) (model.Record, bool, error) {
	if err := s.check(); err != nil {
		return model.Record{}, false, err
	}
	return get(ctx, s.db, id)
}

// Put upserts one record in its own write transaction.
func (s *Store) Put(ctx context.Context, rec model.Record) error {
	if err := s.check(); err != nil {
		return err
	}
	return put(ctx, s.db, rec)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return clearAll(ctx, s.db)
}

// GetAll returns every record ordered by id.
func (s *Store) GetAll(ctx context.Context) ([]model.Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, completed, timestamp FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("get all: %w", err)
	}
	defer rows.Close()

	recs := []model.Record{}
	for rows.Next() {
		var rec model.Record
		if err := rows.Scan(&rec.ID, &rec.Completed, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("get all: scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get all: %w", err)
	}
	return recs, nil
}

// CountWhere counts records by completed flag through idx_records_completed.
func (s *Store) CountWhere(ctx context.Context, completed bool) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records INDEXED BY idx_records_completed WHERE completed = ?`, completed,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Update runs fn in one write transaction.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := s.check(); err != nil {
		return err
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type tx struct {
	q *sql.Tx
}

func (t *tx) Get(ctx context.Context, id string) (model.Record, bool, error) {
	return get(ctx, t.q, id)
}

func (t *tx) Put(ctx context.Context, rec model.Record) error { return put(ctx, t.q, rec) }

func (t *tx) Clear(ctx context.Context) error { return clearAll(ctx, t.q) }
