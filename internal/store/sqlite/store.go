// Package sqlite implements store.Tree on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gwentdecks/decks-server/internal/id"
	"github.com/gwentdecks/decks-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed tree persistence.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// writeMu serializes writes, version allocation and emission.
	writeMu sync.Mutex
	seq     uint64
	emitter store.ChangeEmitter
}

var _ store.Tree = (*Store)(nil)

// Open creates a new SQLite store at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	// Versions are store-wide so a deleted and recreated record never reuses one.
	var seq uint64
	if err := db.QueryRow(
		"SELECT MAX((SELECT value FROM meta WHERE name = 'version_seq'), (SELECT COALESCE(MAX(version), 0) FROM nodes))",
	).Scan(&seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("load version sequence: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("SQLite database opened successfully", "path", path)

	return &Store{
		db:      db,
		logger:  logger,
		seq:     seq,
		emitter: store.NewNoopEmitter(),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SetEmitter sets the change emitter.
func (s *Store) SetEmitter(emitter store.ChangeEmitter) {
	if emitter == nil {
		emitter = store.NewNoopEmitter()
	}
	s.writeMu.Lock()
	s.emitter = emitter
	s.writeMu.Unlock()
}

// GenerateKey returns a new time-ordered child key for parent.
func (s *Store) GenerateKey(parent string) (string, error) {
	if _, err := store.CleanPath(parent); err != nil {
		return "", err
	}
	return id.PushKey()
}

// emit must be called with writeMu held.
func (s *Store) emit(path string, value []byte, deleted bool) {
	parent, key := store.Split(path)
	s.emitter.EmitChange(store.Change{
		Path:    path,
		Parent:  parent,
		Key:     key,
		Value:   value,
		Deleted: deleted,
	})
}

// writeVersioned runs fn in a transaction with the next version number.
// When fn reports a write, the version sequence is advanced in the same transaction.
// Must be called with writeMu held.
func (s *Store) writeVersioned(ctx context.Context, fn func(tx *sql.Tx, version uint64) (bool, error)) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	version := s.seq + 1
	wrote, err := fn(tx, version)
	if err != nil || !wrote {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = ? WHERE name = 'version_seq'`, version); err != nil {
		return false, fmt.Errorf("advance version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	s.seq = version
	return true, nil
}

// descendantRange returns the half-open path range holding everything below p.
// '0' is the byte after '/'.
func descendantRange(p string) (lo, hi string) {
	return p + "/", p + "0"
}
