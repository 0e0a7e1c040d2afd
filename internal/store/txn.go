package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultMaxAttempts bounds Transact retries when the caller does not.
const DefaultMaxAttempts = 25

// TxnFunc computes the new value of a record from its current value.
// current is nil when the record does not exist. Returning a nil value deletes
// the record. Returning ErrAbort ends the transaction without writing.
// TxnFunc may run several times and must not have side effects.
type TxnFunc func(current json.RawMessage) (json.RawMessage, error)

// TxnResult describes a finished transaction.
type TxnResult struct {
	// Committed is false when fn aborted or there was nothing to write.
	Committed bool
	// Attempts counts calls to fn.
	Attempts int
	// Value is the value left at the path by this transaction.
	Value json.RawMessage
}

// Transact runs an optimistic read-modify-write on the record at path.
// Each attempt reads the value and version, applies fn and writes the result
// with CompareAndSwap. A lost race restarts from the read, up to maxAttempts
// times, after which ErrConflictExhausted is returned.
func Transact(ctx context.Context, t Tree, path string, maxAttempts int, fn TxnFunc) (TxnResult, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return TxnResult{Attempts: attempt - 1}, err
		}

		var (
			current json.RawMessage
			version uint64
		)
		node, err := t.Get(ctx, path)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return TxnResult{Attempts: attempt - 1}, err
		default:
			current, version = node.Value, node.Version
		}

		next, err := fn(current)
		if errors.Is(err, ErrAbort) {
			return TxnResult{Attempts: attempt, Value: current}, nil
		}
		if err != nil {
			return TxnResult{Attempts: attempt}, err
		}
		if current == nil && next == nil {
			return TxnResult{Attempts: attempt}, nil
		}

		err = t.CompareAndSwap(ctx, path, version, next)
		if errors.Is(err, ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return TxnResult{Attempts: attempt}, err
		}
		return TxnResult{Committed: true, Attempts: attempt, Value: next}, nil
	}

	return TxnResult{Attempts: maxAttempts}, fmt.Errorf("%w: %s after %d attempts", ErrConflictExhausted, path, maxAttempts)
}
