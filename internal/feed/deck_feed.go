package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gwentdecks/decks-server/internal/domain"
	"github.com/gwentdecks/decks-server/internal/store"
)

// Subscriber opens raw subscriptions. Hub implements it.
type Subscriber interface {
	SubscribeChildren(ctx context.Context, path, orderKey string) (*Subscription, error)
	SubscribeValue(ctx context.Context, path string) (*Subscription, error)
}

// DeckEvent is a typed deck change.
type DeckEvent = domain.ChangeEvent[domain.Deck]

// Callbacks notify the presentation layer of feed state.
// Both run on the feed's delivery goroutine and must not block for long.
// They may call Unsubscribe or Subscribe*; no event of a binding released
// from inside a callback is delivered after the callback returns.
type Callbacks struct {
	// OnLoadingComplete fires once per collection subscription, on its first ADDED event.
	OnLoadingComplete func()
	// OnError receives undecodable records and subscriptions ended by the hub.
	OnError func(error)
}

// DeckFeed is the typed deck feed used by one presentation client.
// It holds at most one collection subscription and one record subscription.
type DeckFeed struct {
	sub       Subscriber
	logger    *slog.Logger
	callbacks Callbacks

	mu         sync.Mutex
	collection *binding
	record     *binding
}

// NewDeckFeed creates a feed with no active subscriptions.
func NewDeckFeed(sub Subscriber, logger *slog.Logger, callbacks Callbacks) *DeckFeed {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DeckFeed{
		sub:       sub,
		logger:    logger,
		callbacks: callbacks,
	}
}

// SubscribeDecks streams a user's private decks ordered by name.
func (f *DeckFeed) SubscribeDecks(ctx context.Context, userID string) (<-chan DeckEvent, error) {
	return f.subscribeCollection(ctx, store.UserDecksPath(userID), store.DeckOrderField)
}

// SubscribePublicDecks streams published decks ordered by week.
func (f *DeckFeed) SubscribePublicDecks(ctx context.Context) (<-chan DeckEvent, error) {
	return f.subscribeCollection(ctx, store.PublicDecksRoot, store.PublicDeckOrderField)
}

// SubscribeDeck streams the current value of one private deck and every change to it.
func (f *DeckFeed) SubscribeDeck(ctx context.Context, userID, deckID string) (<-chan DeckEvent, error) {
	f.release(&f.record)

	raw, err := f.sub.SubscribeValue(ctx, store.UserDeckPath(userID, deckID))
	if err != nil {
		return nil, err
	}
	b := f.bind(raw, false)

	f.mu.Lock()
	prev := f.record
	f.record = b
	f.mu.Unlock()
	if prev != nil {
		prev.stop()
	}
	return b.out, nil
}

// Unsubscribe releases every active subscription. Safe to call repeatedly or with none active.
// No event is delivered after it returns.
func (f *DeckFeed) Unsubscribe() {
	f.release(&f.collection)
	f.release(&f.record)
}

func (f *DeckFeed) subscribeCollection(ctx context.Context, path, orderKey string) (<-chan DeckEvent, error) {
	f.release(&f.collection)

	raw, err := f.sub.SubscribeChildren(ctx, path, orderKey)
	if err != nil {
		return nil, err
	}
	b := f.bind(raw, true)

	f.mu.Lock()
	prev := f.collection
	f.collection = b
	f.mu.Unlock()
	if prev != nil {
		prev.stop()
	}
	return b.out, nil
}

// release detaches the binding in slot and stops it outside the lock.
func (f *DeckFeed) release(slot **binding) {
	f.mu.Lock()
	b := *slot
	*slot = nil
	f.mu.Unlock()
	if b != nil {
		b.stop()
	}
}

// binding forwards one raw subscription as typed deck events.
type binding struct {
	raw     *Subscription
	out     chan DeckEvent
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// inCallback is set while forward runs a callback. stop must not wait
	// for forward to exit then, since forward is the caller.
	inCallback atomic.Bool
}

func (f *DeckFeed) bind(raw *Subscription, collection bool) *binding {
	b := &binding{
		raw:     raw,
		out:     make(chan DeckEvent),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go f.forward(b, collection)
	return b
}

func (b *binding) stop() {
	b.once.Do(func() {
		close(b.quit)
		b.raw.Close()
	})
	if b.inCallback.Load() {
		return
	}
	<-b.stopped
}

// callback runs fn on the forward goroutine.
func (b *binding) callback(fn func()) {
	b.inCallback.Store(true)
	defer b.inCallback.Store(false)
	fn()
}

func (b *binding) quitting() bool {
	select {
	case <-b.quit:
		return true
	default:
		return false
	}
}

func (f *DeckFeed) forward(b *binding, collection bool) {
	defer close(b.stopped)
	defer close(b.out)

	loaded := false
	for {
		if b.quitting() {
			return
		}
		var (
			ev Event
			ok bool
		)
		select {
		case <-b.quit:
			return
		case ev, ok = <-b.raw.Events():
		}
		if !ok {
			if err := b.raw.Err(); err != nil {
				f.reportError(b, fmt.Errorf("subscription %s ended: %w", b.raw.Path(), err))
			}
			return
		}

		typed, err := decodeDeckEvent(ev)
		if err != nil {
			f.reportError(b, fmt.Errorf("decode %s/%s: %w", b.raw.Path(), ev.Key, err))
			continue
		}

		if b.quitting() {
			return
		}
		select {
		case <-b.quit:
			return
		case b.out <- typed:
		}

		if collection && !loaded && ev.Type == domain.EventAdded {
			loaded = true
			if f.callbacks.OnLoadingComplete != nil {
				b.callback(f.callbacks.OnLoadingComplete)
			}
		}
	}
}

func (f *DeckFeed) reportError(b *binding, err error) {
	f.logger.Warn("deck feed error", "error", err)
	if f.callbacks.OnError != nil {
		b.callback(func() { f.callbacks.OnError(err) })
	}
}

func decodeDeckEvent(ev Event) (DeckEvent, error) {
	out := DeckEvent{Key: ev.Key, Type: ev.Type}
	if ev.Value == nil {
		return out, nil
	}
	var deck domain.Deck
	if err := json.Unmarshal(ev.Value, &deck); err != nil {
		return out, err
	}
	deck.EnsureMaps()
	if deck.ID == "" {
		deck.ID = ev.Key
	}
	out.Value = &deck
	return out, nil
}
