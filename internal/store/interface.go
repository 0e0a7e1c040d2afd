// Package store defines the hierarchical tree store that holds deck records.
package store

import (
	"context"
	"encoding/json"
	"iter"
)

// Node is a record stored at a leaf path.
type Node struct {
	Path    string
	Key     string
	Value   json.RawMessage
	Version uint64
}

// Change describes a committed write. Deleted changes carry a nil Value.
type Change struct {
	Path    string
	Parent  string
	Key     string
	Value   json.RawMessage
	Deleted bool
}

// ChangeEmitter receives every committed change, in commit order.
// Implementations must not call back into the store's write methods.
type ChangeEmitter interface {
	EmitChange(change Change)
}

// NoopEmitter is a no-op implementation of ChangeEmitter for testing.
type NoopEmitter struct{}

// EmitChange implements ChangeEmitter as a no-op.
func (NoopEmitter) EmitChange(Change) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() ChangeEmitter {
	return NoopEmitter{}
}

// Tree is a key-value tree addressed by slash-separated paths.
// Values are JSON documents stored at leaf paths.
type Tree interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error
	SetEmitter(emitter ChangeEmitter)

	// GenerateKey returns a new unique child key for parent. Keys sort in creation order.
	GenerateKey(parent string) (string, error)

	// Get returns the record at path or ErrNotFound.
	Get(ctx context.Context, path string) (*Node, error)

	// Set writes value at path unconditionally.
	Set(ctx context.Context, path string, value json.RawMessage) error

	// Delete removes the record at path and everything below it.
	// Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error

	// Children returns the direct children of parent in key order.
	Children(ctx context.Context, parent string) ([]Node, error)

	// CompareAndSwap writes value only when the record's current version equals expected.
	// Expected version 0 means the record must not exist. A nil value deletes the record.
	// Returns ErrVersionMismatch when the record changed.
	CompareAndSwap(ctx context.Context, path string, expected uint64, value json.RawMessage) error

	// Walk yields every record under prefix in path order. An empty prefix walks the whole tree.
	Walk(ctx context.Context, prefix string) iter.Seq2[Node, error]
}
