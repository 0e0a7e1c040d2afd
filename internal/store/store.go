package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/gwentdecks/decks-server/internal/id"
)

// Store is the Badger-backed Tree.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	// writeMu serializes commit and emission so listeners observe changes in commit order.
	writeMu sync.Mutex
	emitter ChangeEmitter
}

var _ Tree = (*Store)(nil)

// New opens a Badger database at path and returns a Store.
// A nil emitter is replaced with a no-op one.
func New(path string, logger *slog.Logger, emitter ChangeEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if emitter == nil {
		emitter = NewNoopEmitter()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Info("Badger database opened successfully", "path", path)

	return &Store{
		db:      db,
		logger:  logger,
		emitter: emitter,
	}, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("Closing database connection")
	return s.db.Close()
}

// Ping verifies the database is open and readable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// SetEmitter replaces the change emitter.
// Called after creation because the feed hub reads from the store it listens to.
func (s *Store) SetEmitter(emitter ChangeEmitter) {
	if emitter == nil {
		emitter = NewNoopEmitter()
	}
	s.writeMu.Lock()
	s.emitter = emitter
	s.writeMu.Unlock()
}

// GenerateKey returns a new time-ordered child key for parent.
func (s *Store) GenerateKey(parent string) (string, error) {
	if _, err := CleanPath(parent); err != nil {
		return "", err
	}
	return id.PushKey()
}

// Get returns the record at path.
func (s *Store) Get(ctx context.Context, path string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	key := buildKey(nodePrefix, p)
	defer releaseKey(key)

	var node *Node
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		node = newNode(p, val, item.Version())
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return node, nil
}

// Set writes value at path unconditionally.
func (s *Store) Set(ctx context.Context, path string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if value == nil {
		return s.Delete(ctx, p)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(nodePrefix+p), value)
	}); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}

	s.emit(p, value, false)
	return nil
}

// Delete removes the record at path and every record below it.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var deleted []string
	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(nodePrefix + p)
		if _, err := txn.Get(key); err == nil {
			if err := txn.Delete(key); err != nil {
				return err
			}
			deleted = append(deleted, p)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		prefix := []byte(nodePrefix + p + "/")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
			deleted = append(deleted, strings.TrimPrefix(string(k), nodePrefix))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}

	for _, dp := range deleted {
		s.emit(dp, nil, true)
	}
	return nil
}

// Children returns the direct children of parent in key order.
func (s *Store) Children(ctx context.Context, parent string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := CleanPath(parent)
	if err != nil {
		return nil, err
	}

	prefix := []byte(nodePrefix + p + "/")
	var nodes []Node
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			rest := item.Key()[len(prefix):]
			if bytes.IndexByte(rest, '/') >= 0 {
				continue
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			nodes = append(nodes, *newNode(p+"/"+string(rest), val, item.Version()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", p, err)
	}
	return nodes, nil
}

// CompareAndSwap writes value when the current version equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, path string, expected uint64, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := CleanPath(path)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	changed := false
	err = s.db.Update(func(txn *badger.Txn) error {
		key := []byte(nodePrefix + p)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expected != 0 {
				return ErrVersionMismatch
			}
			if value == nil {
				return nil
			}
		case err != nil:
			return err
		case item.Version() != expected:
			return ErrVersionMismatch
		}

		changed = true
		if value == nil {
			return txn.Delete(key)
		}
		return txn.Set(key, value)
	})
	// Badger's own optimistic check fails commits that raced another writer.
	if errors.Is(err, badger.ErrConflict) {
		return ErrVersionMismatch
	}
	if errors.Is(err, ErrVersionMismatch) {
		return ErrVersionMismatch
	}
	if err != nil {
		return fmt.Errorf("compare and swap %s: %w", p, err)
	}

	if changed {
		s.emit(p, value, value == nil)
	}
	return nil
}

// Walk yields every record under prefix in path order.
func (s *Store) Walk(ctx context.Context, prefix string) iter.Seq2[Node, error] {
	return func(yield func(Node, error) bool) {
		scan := nodePrefix
		if strings.Trim(prefix, "/") != "" {
			p, err := CleanPath(prefix)
			if err != nil {
				yield(Node{}, err)
				return
			}
			if node, err := s.Get(ctx, p); err == nil {
				if !yield(*node, nil) {
					return
				}
			} else if !errors.Is(err, ErrNotFound) {
				yield(Node{}, err)
				return
			}
			scan = nodePrefix + p + "/"
		}

		// Collect inside the read txn, yield outside it, so consumers may write.
		var nodes []Node
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(scan)
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(scan)); it.ValidForPrefix([]byte(scan)); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				nodes = append(nodes, *newNode(strings.TrimPrefix(string(item.Key()), nodePrefix), val, item.Version()))
			}
			return nil
		})
		if err != nil {
			yield(Node{}, err)
			return
		}
		for _, n := range nodes {
			if !yield(n, nil) {
				return
			}
		}
	}
}

// emit must be called with writeMu held.
func (s *Store) emit(path string, value json.RawMessage, deleted bool) {
	parent, key := Split(path)
	s.emitter.EmitChange(Change{
		Path:    path,
		Parent:  parent,
		Key:     key,
		Value:   value,
		Deleted: deleted,
	})
}

func newNode(path string, value []byte, version uint64) *Node {
	_, key := Split(path)
	return &Node{
		Path:    path,
		Key:     key,
		Value:   value,
		Version: version,
	}
}
