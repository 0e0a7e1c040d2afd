// Package feed republishes committed tree changes as ordered change events.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gwentdecks/decks-server/internal/id"
	"github.com/gwentdecks/decks-server/internal/store"
)

// ErrFeedClosed ends subscriptions when the hub shuts down.
var ErrFeedClosed = errors.New("feed closed")

// Hub fans committed store changes out to path watchers.
// It implements store.ChangeEmitter.
type Hub struct {
	tree   store.Tree
	logger *slog.Logger

	mu       sync.Mutex
	children map[string]map[*Subscription]struct{}
	values   map[string]map[*Subscription]struct{}
	closed   bool
}

var _ store.ChangeEmitter = (*Hub)(nil)

// NewHub creates a hub reading snapshots from tree.
// The caller registers it with tree.SetEmitter.
func NewHub(tree store.Tree, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		tree:     tree,
		logger:   logger,
		children: make(map[string]map[*Subscription]struct{}),
		values:   make(map[string]map[*Subscription]struct{}),
	}
}

// SubscribeChildren watches the direct children of path, ordered by the orderKey child field.
// Existing children arrive first as ADDED events in order, followed by live changes.
// The subscription ends when ctx is done or Close is called.
func (h *Hub) SubscribeChildren(ctx context.Context, path, orderKey string) (*Subscription, error) {
	return h.subscribe(ctx, kindChildren, path, orderKey)
}

// SubscribeValue watches a single record. The current value arrives first as a CHANGED
// event, nil when absent, followed by one CHANGED event per write.
func (h *Hub) SubscribeValue(ctx context.Context, path string) (*Subscription, error) {
	return h.subscribe(ctx, kindValue, path, "")
}

func (h *Hub) subscribe(ctx context.Context, k kind, path, orderKey string) (*Subscription, error) {
	p, err := store.CleanPath(path)
	if err != nil {
		return nil, err
	}
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrFeedClosed
	}

	// Snapshot under the hub lock. Changes committed before the snapshot but emitted
	// after it are recognized as duplicates by the subscription.
	sub := newSubscription(h, subID, k, p, orderKey)
	switch k {
	case kindChildren:
		nodes, err := h.tree.Children(ctx, p)
		if err != nil {
			sub.stop(nil)
			return nil, fmt.Errorf("snapshot %s: %w", p, err)
		}
		sub.seed(nodes, nil)
		register(h.children, p, sub)
	case kindValue:
		node, err := h.tree.Get(ctx, p)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			sub.stop(nil)
			return nil, fmt.Errorf("snapshot %s: %w", p, err)
		}
		sub.seed(nil, node)
		register(h.values, p, sub)
	}

	stopCtx := context.AfterFunc(ctx, sub.Close)
	sub.mu.Lock()
	sub.stopCtx = stopCtx
	sub.mu.Unlock()

	h.logger.Info("feed subscription started", "subscription_id", subID, "path", p, "order_by", orderKey)
	return sub, nil
}

// EmitChange implements store.ChangeEmitter.
func (h *Hub) EmitChange(c store.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	for sub := range h.children[c.Parent] {
		sub.applyChild(c)
	}
	for sub := range h.values[c.Path] {
		sub.applyValue(c)
	}
}

// Close ends every subscription with ErrFeedClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var subs []*Subscription
	for _, m := range []map[string]map[*Subscription]struct{}{h.children, h.values} {
		for _, set := range m {
			for sub := range set {
				subs = append(subs, sub)
			}
		}
	}
	h.children = make(map[string]map[*Subscription]struct{})
	h.values = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop(ErrFeedClosed)
	}
	h.logger.Info("feed hub closed", "subscriptions", len(subs))
}

// Stats returns the number of active subscriptions.
func (h *Hub) Stats() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range []map[string]map[*Subscription]struct{}{h.children, h.values} {
		for _, set := range m {
			n += len(set)
		}
	}
	return n
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.children
	if sub.kind == kindValue {
		m = h.values
	}
	set, ok := m[sub.path]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(m, sub.path)
	}
	h.logger.Info("feed subscription ended", "subscription_id", sub.id, "path", sub.path)
}

func register(m map[string]map[*Subscription]struct{}, path string, sub *Subscription) {
	set, ok := m[path]
	if !ok {
		set = make(map[*Subscription]struct{})
		m[path] = set
	}
	set[sub] = struct{}{}
}
