package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/gwentdecks/decks-server/internal/store"
)

// Get returns the record at path.
func (s *Store) Get(ctx context.Context, path string) (*store.Node, error) {
	p, err := store.CleanPath(path)
	if err != nil {
		return nil, err
	}

	node := store.Node{Path: p}
	err = s.db.QueryRowContext(ctx,
		`SELECT key, value, version FROM nodes WHERE path = ?`, p,
	).Scan(&node.Key, &node.Value, &node.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return &node, nil
}

// Set writes value at path unconditionally.
func (s *Store) Set(ctx context.Context, path string, value json.RawMessage) error {
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}
	if value == nil {
		return s.Delete(ctx, p)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	parent, key := store.Split(p)
	_, err = s.writeVersioned(ctx, func(tx *sql.Tx, version uint64) (bool, error) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (path, parent, key, value, version) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET value = excluded.value, version = excluded.version`,
			p, parent, key, []byte(value), version,
		)
		return err == nil, err
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}

	s.emit(p, value, false)
	return nil
}

// Delete removes the record at path and every record below it.
func (s *Store) Delete(ctx context.Context, path string) error {
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	lo, hi := descendantRange(p)
	rows, err := tx.QueryContext(ctx,
		`SELECT path FROM nodes WHERE path = ? OR (path >= ? AND path < ?) ORDER BY path`, p, lo, hi)
	if err != nil {
		return fmt.Errorf("list %s: %w", p, err)
	}
	var deleted []string
	for rows.Next() {
		var dp string
		if err := rows.Scan(&dp); err != nil {
			rows.Close()
			return fmt.Errorf("scan path: %w", err)
		}
		deleted = append(deleted, dp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", p, err)
	}
	if len(deleted) == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`, p, lo, hi); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	for _, dp := range deleted {
		s.emit(dp, nil, true)
	}
	return nil
}

// Children returns the direct children of parent in key order.
func (s *Store) Children(ctx context.Context, parent string) ([]store.Node, error) {
	p, err := store.CleanPath(parent)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, key, value, version FROM nodes WHERE parent = ? ORDER BY key`, p)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", p, err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// CompareAndSwap writes value when the current version equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, path string, expected uint64, value json.RawMessage) error {
	p, err := store.CleanPath(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if expected == 0 && value == nil {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE path = ?`, p).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("compare and swap %s: %w", p, err)
		}
		return store.ErrVersionMismatch
	}

	parent, key := store.Split(p)
	wrote, err := s.writeVersioned(ctx, func(tx *sql.Tx, version uint64) (bool, error) {
		var (
			res sql.Result
			err error
		)
		switch {
		case expected == 0:
			res, err = tx.ExecContext(ctx, `
				INSERT INTO nodes (path, parent, key, value, version) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(path) DO NOTHING`,
				p, parent, key, []byte(value), version)
		case value == nil:
			res, err = tx.ExecContext(ctx,
				`DELETE FROM nodes WHERE path = ? AND version = ?`, p, expected)
		default:
			res, err = tx.ExecContext(ctx,
				`UPDATE nodes SET value = ?, version = ? WHERE path = ? AND version = ?`,
				[]byte(value), version, p, expected)
		}
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
	if err != nil {
		return fmt.Errorf("compare and swap %s: %w", p, err)
	}
	if !wrote {
		return store.ErrVersionMismatch
	}

	s.emit(p, value, value == nil)
	return nil
}

// Walk yields every record under prefix in path order.
func (s *Store) Walk(ctx context.Context, prefix string) iter.Seq2[store.Node, error] {
	return func(yield func(store.Node, error) bool) {
		var (
			rows *sql.Rows
			err  error
		)
		if strings.Trim(prefix, "/") == "" {
			rows, err = s.db.QueryContext(ctx,
				`SELECT path, key, value, version FROM nodes ORDER BY path`)
		} else {
			p, cerr := store.CleanPath(prefix)
			if cerr != nil {
				yield(store.Node{}, cerr)
				return
			}
			lo, hi := descendantRange(p)
			rows, err = s.db.QueryContext(ctx,
				`SELECT path, key, value, version FROM nodes
				 WHERE path = ? OR (path >= ? AND path < ?) ORDER BY path`, p, lo, hi)
		}
		if err != nil {
			yield(store.Node{}, fmt.Errorf("walk %s: %w", prefix, err))
			return
		}

		// Drain first so consumers can write while iterating.
		nodes, err := scanNodes(rows)
		rows.Close()
		if err != nil {
			yield(store.Node{}, err)
			return
		}
		for _, n := range nodes {
			if !yield(n, nil) {
				return
			}
		}
	}
}

func scanNodes(rows *sql.Rows) ([]store.Node, error) {
	var nodes []store.Node
	for rows.Next() {
		var n store.Node
		if err := rows.Scan(&n.Path, &n.Key, &n.Value, &n.Version); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}
