// Package storetest holds the behavior suite every store.Tree backend must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwentdecks/decks-server/internal/store"
)

// Opener opens a fresh, empty tree that reports its changes to emitter.
type Opener func(t *testing.T, emitter store.ChangeEmitter) store.Tree

// Recorder is a ChangeEmitter that remembers every change.
type Recorder struct {
	mu      sync.Mutex
	changes []store.Change
}

// EmitChange implements store.ChangeEmitter.
func (r *Recorder) EmitChange(c store.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// Changes returns a copy of the recorded changes.
func (r *Recorder) Changes() []store.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.changes)
}

// Run exercises the full Tree contract against the backend returned by open.
func Run(t *testing.T, open Opener) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open) })
	t.Run("SetGet", func(t *testing.T) { testSetGet(t, open) })
	t.Run("InvalidPath", func(t *testing.T) { testInvalidPath(t, open) })
	t.Run("Children", func(t *testing.T) { testChildren(t, open) })
	t.Run("DeleteRecursive", func(t *testing.T) { testDeleteRecursive(t, open) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, open) })
	t.Run("GenerateKey", func(t *testing.T) { testGenerateKey(t, open) })
	t.Run("Emission", func(t *testing.T) { testEmission(t, open) })
	t.Run("Walk", func(t *testing.T) { testWalk(t, open) })
	t.Run("TransactAbort", func(t *testing.T) { testTransactAbort(t, open) })
	t.Run("TransactExhausted", func(t *testing.T) { testTransactExhausted(t, open) })
	t.Run("TransactConcurrent", func(t *testing.T) { testTransactConcurrent(t, open) })
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func testGetMissing(t *testing.T, open Opener) {
	tree := open(t, nil)

	_, err := tree.Get(context.Background(), "users/u1/decks/missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSetGet(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)

	require.NoError(t, tree.Set(ctx, "/users/u1/decks/d1/", raw(t, map[string]string{"name": "first"})))

	node, err := tree.Get(ctx, "users/u1/decks/d1")
	require.NoError(t, err)
	assert.Equal(t, "users/u1/decks/d1", node.Path)
	assert.Equal(t, "d1", node.Key)
	assert.JSONEq(t, `{"name":"first"}`, string(node.Value))
	assert.NotZero(t, node.Version)

	require.NoError(t, tree.Set(ctx, "users/u1/decks/d1", raw(t, map[string]string{"name": "second"})))
	updated, err := tree.Get(ctx, "users/u1/decks/d1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"second"}`, string(updated.Value))
	assert.NotEqual(t, node.Version, updated.Version)
}

func testInvalidPath(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)

	for _, p := range []string{"", "/", "users//decks", "users/a.b", "public-decks/$x", "users/[0]"} {
		_, err := tree.Get(ctx, p)
		assert.ErrorIs(t, err, store.ErrInvalidPath, "path %q", p)
	}
	assert.ErrorIs(t, tree.Set(ctx, "a//b", raw(t, 1)), store.ErrInvalidPath)
	_, err := tree.GenerateKey("")
	assert.ErrorIs(t, err, store.ErrInvalidPath)
}

func testChildren(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)

	require.NoError(t, tree.Set(ctx, "public-decks/b", raw(t, map[string]int{"week": 1})))
	require.NoError(t, tree.Set(ctx, "public-decks/a", raw(t, map[string]int{"week": 2})))
	require.NoError(t, tree.Set(ctx, "public-decks/a/nested", raw(t, 1)))
	require.NoError(t, tree.Set(ctx, "public-decksx/c", raw(t, 1)))

	nodes, err := tree.Children(ctx, "public-decks")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].Key)
	assert.Equal(t, "b", nodes[1].Key)
	assert.Equal(t, "public-decks/b", nodes[1].Path)

	empty, err := tree.Children(ctx, "users/nobody/decks")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDeleteRecursive(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)

	require.NoError(t, tree.Set(ctx, "users/u1/decks/d1", raw(t, 1)))
	require.NoError(t, tree.Set(ctx, "users/u1/decks/d2", raw(t, 2)))
	require.NoError(t, tree.Set(ctx, "users/u2/decks/d3", raw(t, 3)))

	require.NoError(t, tree.Delete(ctx, "users/u1"))
	require.NoError(t, tree.Delete(ctx, "users/u1"), "delete is idempotent")

	nodes, err := tree.Children(ctx, "users/u1/decks")
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = tree.Get(ctx, "users/u2/decks/d3")
	assert.NoError(t, err)
}

func testCompareAndSwap(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)
	path := "users/u1/decks/d1"

	require.NoError(t, tree.CompareAndSwap(ctx, path, 0, raw(t, 1)))
	assert.ErrorIs(t, tree.CompareAndSwap(ctx, path, 0, raw(t, 2)), store.ErrVersionMismatch, "create over existing")

	node, err := tree.Get(ctx, path)
	require.NoError(t, err)

	require.NoError(t, tree.CompareAndSwap(ctx, path, node.Version, raw(t, 2)))
	assert.ErrorIs(t, tree.CompareAndSwap(ctx, path, node.Version, raw(t, 3)), store.ErrVersionMismatch, "stale version")

	current, err := tree.Get(ctx, path)
	require.NoError(t, err)
	assert.JSONEq(t, "2", string(current.Value))

	require.NoError(t, tree.CompareAndSwap(ctx, path, current.Version, nil))
	_, err = tree.Get(ctx, path)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, tree.CompareAndSwap(ctx, path, current.Version, raw(t, 4)), store.ErrVersionMismatch, "record is gone")
	assert.NoError(t, tree.CompareAndSwap(ctx, path, 0, nil), "deleting a missing record with version 0")
}

func testGenerateKey(t *testing.T, open Opener) {
	tree := open(t, nil)

	keys := make([]string, 0, 100)
	for range 100 {
		k, err := tree.GenerateKey("users/u1/decks")
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.True(t, slices.IsSorted(keys))
	assert.Len(t, slices.Compact(slices.Clone(keys)), len(keys))
}

func testEmission(t *testing.T, open Opener) {
	ctx := context.Background()
	rec := &Recorder{}
	tree := open(t, rec)

	require.NoError(t, tree.Set(ctx, "users/u1/decks/d1", raw(t, 1)))
	require.NoError(t, tree.CompareAndSwap(ctx, "users/u1/decks/d2", 0, raw(t, 2)))
	assert.ErrorIs(t, tree.CompareAndSwap(ctx, "users/u1/decks/d2", 0, raw(t, 3)), store.ErrVersionMismatch)
	require.NoError(t, tree.Delete(ctx, "users/u1/decks/d1"))
	require.NoError(t, tree.Delete(ctx, "users/u1/decks/missing"))

	changes := rec.Changes()
	require.Len(t, changes, 3, "failed and no-op writes are not emitted")

	assert.Equal(t, store.Change{Path: "users/u1/decks/d1", Parent: "users/u1/decks", Key: "d1", Value: raw(t, 1)}, changes[0])
	assert.Equal(t, "d2", changes[1].Key)
	assert.JSONEq(t, "2", string(changes[1].Value))
	assert.True(t, changes[2].Deleted)
	assert.Nil(t, changes[2].Value)
	assert.Equal(t, "d1", changes[2].Key)
}

func testWalk(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)

	require.NoError(t, tree.Set(ctx, "public-decks/p1", raw(t, 1)))
	require.NoError(t, tree.Set(ctx, "users/u1/decks/d1", raw(t, 2)))
	require.NoError(t, tree.Set(ctx, "users/u2/decks/d2", raw(t, 3)))

	var all []string
	for node, err := range tree.Walk(ctx, "") {
		require.NoError(t, err)
		all = append(all, node.Path)
	}
	assert.Equal(t, []string{"public-decks/p1", "users/u1/decks/d1", "users/u2/decks/d2"}, all)

	var users []string
	for node, err := range tree.Walk(ctx, "users") {
		require.NoError(t, err)
		users = append(users, node.Path)
	}
	assert.Equal(t, []string{"users/u1/decks/d1", "users/u2/decks/d2"}, users)
}

func testTransactAbort(t *testing.T, open Opener) {
	ctx := context.Background()
	rec := &Recorder{}
	tree := open(t, rec)

	res, err := store.Transact(ctx, tree, "users/u1/decks/d1", 5, func(current json.RawMessage) (json.RawMessage, error) {
		assert.Nil(t, current)
		return nil, store.ErrAbort
	})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, rec.Changes())

	boom := errors.New("boom")
	_, err = store.Transact(ctx, tree, "users/u1/decks/d1", 5, func(json.RawMessage) (json.RawMessage, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func testTransactExhausted(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)
	path := "users/u1/decks/d1"
	require.NoError(t, tree.Set(ctx, path, raw(t, 0)))

	// Every attempt loses to a writer that commits between read and write.
	n := 0
	res, err := store.Transact(ctx, tree, path, 3, func(current json.RawMessage) (json.RawMessage, error) {
		n++
		require.NoError(t, tree.Set(ctx, path, raw(t, 100+n)))
		return raw(t, -1), nil
	})
	assert.ErrorIs(t, err, store.ErrConflictExhausted)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, n)

	node, err := tree.Get(ctx, path)
	require.NoError(t, err)
	assert.JSONEq(t, "103", string(node.Value))
}

func testTransactConcurrent(t *testing.T, open Opener) {
	ctx := context.Background()
	tree := open(t, nil)
	path := "users/u1/decks/counter"

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Go(func() {
			_, err := store.Transact(ctx, tree, path, 1000, func(current json.RawMessage) (json.RawMessage, error) {
				n := 0
				if current != nil {
					var err error
					if n, err = strconv.Atoi(string(current)); err != nil {
						return nil, err
					}
				}
				return json.RawMessage(strconv.Itoa(n + 1)), nil
			})
			errs <- err
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	node, err := tree.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(workers), string(node.Value), "no increment is lost")
}
