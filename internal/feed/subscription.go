package feed

import (
	"bytes"
	"encoding/json"
	"slices"
	"sync"

	"github.com/gwentdecks/decks-server/internal/domain"
	"github.com/gwentdecks/decks-server/internal/store"
)

// Event is an untyped change delivered by a Subscription.
type Event struct {
	Key   string
	Value json.RawMessage
	Type  domain.EventType
}

type kind int

const (
	kindChildren kind = iota
	kindValue
)

// Subscription delivers events for one watched path until closed.
// Events queue in an unbounded mailbox, so a slow reader never blocks writers
// and never loses events.
type Subscription struct {
	id       string
	hub      *Hub
	kind     kind
	path     string
	orderKey string

	// Owned by the hub and only touched under hub.mu.
	index     []store.Node
	lastValue json.RawMessage

	mu      sync.Mutex
	queue   []Event
	signal  chan struct{}
	out     chan Event
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	err     error
	stopCtx func() bool
}

func newSubscription(h *Hub, id string, k kind, path, orderKey string) *Subscription {
	s := &Subscription{
		id:       id,
		hub:      h,
		kind:     k,
		path:     path,
		orderKey: orderKey,
		signal:   make(chan struct{}, 1),
		out:      make(chan Event),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.pump()
	return s
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id }

// Path is the watched path.
func (s *Subscription) Path() string { return s.path }

// Events returns the event channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event { return s.out }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended: nil while active or after Close,
// ErrFeedClosed when the hub shut down.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription. Safe to call more than once.
// No event is delivered after Close returns.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.stop(nil)
}

func (s *Subscription) stop(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.queue = nil
		stopCtx := s.stopCtx
		s.mu.Unlock()
		if stopCtx != nil {
			stopCtx()
		}
		close(s.done)
	})
	<-s.stopped
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.stopped)
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case s.out <- ev:
			}
		}
	}
}

// seed queues the initial snapshot. Called under hub.mu.
func (s *Subscription) seed(nodes []store.Node, value *store.Node) {
	switch s.kind {
	case kindChildren:
		store.SortByChild(nodes, s.orderKey)
		s.index = nodes
		for _, n := range nodes {
			s.enqueue(Event{Key: n.Key, Value: n.Value, Type: domain.EventAdded})
		}
	case kindValue:
		_, key := store.Split(s.path)
		if value != nil {
			s.lastValue = value.Value
		}
		s.enqueue(Event{Key: key, Value: s.lastValue, Type: domain.EventChanged})
	}
}

// applyChild updates the ordered index and queues the resulting events. Called under hub.mu.
func (s *Subscription) applyChild(c store.Change) {
	pos := slices.IndexFunc(s.index, func(n store.Node) bool { return n.Key == c.Key })

	if c.Deleted {
		if pos < 0 {
			return
		}
		last := s.index[pos].Value
		s.index = slices.Delete(s.index, pos, pos+1)
		s.enqueue(Event{Key: c.Key, Value: last, Type: domain.EventRemoved})
		return
	}

	node := store.Node{Path: c.Path, Key: c.Key, Value: c.Value}
	if pos < 0 {
		s.insert(node)
		s.enqueue(Event{Key: c.Key, Value: c.Value, Type: domain.EventAdded})
		return
	}
	if bytes.Equal(s.index[pos].Value, c.Value) {
		return
	}

	s.index = slices.Delete(s.index, pos, pos+1)
	newPos := s.insert(node)
	s.enqueue(Event{Key: c.Key, Value: c.Value, Type: domain.EventChanged})
	if newPos != pos {
		s.enqueue(Event{Key: c.Key, Value: c.Value, Type: domain.EventMoved})
	}
}

func (s *Subscription) insert(node store.Node) int {
	pos, _ := slices.BinarySearchFunc(s.index, node, func(a, b store.Node) int {
		return store.CompareByChild(a, b, s.orderKey)
	})
	s.index = slices.Insert(s.index, pos, node)
	return pos
}

// applyValue queues a CHANGED event when the value differs from the last one. Called under hub.mu.
func (s *Subscription) applyValue(c store.Change) {
	var next json.RawMessage
	if !c.Deleted {
		next = c.Value
	}
	if bytes.Equal(s.lastValue, next) && (s.lastValue == nil) == (next == nil) {
		return
	}
	s.lastValue = next
	s.enqueue(Event{Key: c.Key, Value: next, Type: domain.EventChanged})
}
