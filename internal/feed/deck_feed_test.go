package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwentdecks/decks-server/internal/domain"
	"github.com/gwentdecks/decks-server/internal/store"
)

type errSink struct {
	mu   sync.Mutex
	errs []error
}

func (e *errSink) add(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *errSink) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func TestDeckFeed_SubscribeDecks(t *testing.T) {
	ctx := context.Background()
	s, hub := setupHub(t)
	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d2"), deckJSON(t, "d2", "Bravo")))
	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d1"), deckJSON(t, "d1", "Alpha")))

	var loaded atomic.Int32
	f := NewDeckFeed(hub, nil, Callbacks{OnLoadingComplete: func() { loaded.Add(1) }})
	defer f.Unsubscribe()

	events, err := f.SubscribeDecks(ctx, "u1")
	require.NoError(t, err)

	first := nextEvent(t, events)
	assert.Equal(t, domain.EventAdded, first.Type)
	require.NotNil(t, first.Value)
	assert.Equal(t, "Alpha", first.Value.Name)
	assert.NotNil(t, first.Value.CardCount)

	second := nextEvent(t, events)
	assert.Equal(t, "Bravo", second.Value.Name)

	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d3"), deckJSON(t, "d3", "Charlie")))
	third := nextEvent(t, events)
	assert.Equal(t, domain.EventAdded, third.Type)

	assert.Equal(t, int32(1), loaded.Load(), "loading complete fires once")
}

func TestDeckFeed_ResubscribeReleasesPrevious(t *testing.T) {
	ctx := context.Background()
	_, hub := setupHub(t)
	f := NewDeckFeed(hub, nil, Callbacks{})

	first, err := f.SubscribeDecks(ctx, "u1")
	require.NoError(t, err)
	second, err := f.SubscribePublicDecks(ctx)
	require.NoError(t, err)
	record, err := f.SubscribeDeck(ctx, "u1", "d1")
	require.NoError(t, err)

	expectClosed(t, first)
	assert.Equal(t, 2, hub.Stats(), "one collection and one record subscription")

	f.Unsubscribe()
	f.Unsubscribe()

	expectClosed(t, second)
	expectClosed(t, record)
	assert.Zero(t, hub.Stats())
}

func TestDeckFeed_UnsubscribeWithNoneActive(t *testing.T) {
	_, hub := setupHub(t)
	f := NewDeckFeed(hub, nil, Callbacks{})

	assert.NotPanics(t, f.Unsubscribe)
}

func TestDeckFeed_NoEventsAfterUnsubscribe(t *testing.T) {
	ctx := context.Background()
	s, hub := setupHub(t)
	f := NewDeckFeed(hub, nil, Callbacks{})

	events, err := f.SubscribeDeck(ctx, "u1", "d1")
	require.NoError(t, err)
	nextEvent(t, events)

	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d1"), deckJSON(t, "d1", "Pending")))
	f.Unsubscribe()
	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d1"), deckJSON(t, "d1", "Later")))

	expectClosed(t, events)
}

func TestDeckFeed_SubscribeDeck(t *testing.T) {
	ctx := context.Background()
	s, hub := setupHub(t)
	path := store.UserDeckPath("u1", "d1")
	require.NoError(t, s.Set(ctx, path, deckJSON(t, "d1", "Current")))

	f := NewDeckFeed(hub, nil, Callbacks{})
	defer f.Unsubscribe()

	events, err := f.SubscribeDeck(ctx, "u1", "d1")
	require.NoError(t, err)

	ev := nextEvent(t, events)
	assert.Equal(t, domain.EventChanged, ev.Type)
	assert.Equal(t, "Current", ev.Value.Name)

	require.NoError(t, s.Delete(ctx, path))
	ev = nextEvent(t, events)
	assert.Equal(t, domain.EventChanged, ev.Type)
	assert.Nil(t, ev.Value)
}

func TestDeckFeed_SurfacesDecodeErrors(t *testing.T) {
	ctx := context.Background()
	s, hub := setupHub(t)
	require.NoError(t, s.Set(ctx, store.PublicDeckPath("bad"), []byte(`{"week":"x","cardCount":[1]}`)))
	require.NoError(t, s.Set(ctx, store.PublicDeckPath("good"), deckJSON(t, "good", "Good")))

	sink := &errSink{}
	f := NewDeckFeed(hub, nil, Callbacks{OnError: sink.add})
	defer f.Unsubscribe()

	events, err := f.SubscribePublicDecks(ctx)
	require.NoError(t, err)

	ev := nextEvent(t, events)
	assert.Equal(t, "good", ev.Key)
	assert.Eventually(t, func() bool { return sink.count() == 1 }, waitTimeout, 10*time.Millisecond)
	expectNoEvent(t, events)
}

func TestDeckFeed_SurfacesHubShutdown(t *testing.T) {
	ctx := context.Background()
	_, hub := setupHub(t)

	sink := &errSink{}
	f := NewDeckFeed(hub, nil, Callbacks{OnError: sink.add})

	events, err := f.SubscribeDecks(ctx, "u1")
	require.NoError(t, err)

	hub.Close()
	expectClosed(t, events)
	assert.Eventually(t, func() bool { return sink.count() == 1 }, waitTimeout, 10*time.Millisecond)
	f.Unsubscribe()
}

func TestDeckFeed_UnsubscribeFromLoadingComplete(t *testing.T) {
	ctx := context.Background()
	s, hub := setupHub(t)
	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d1"), deckJSON(t, "d1", "Alpha")))
	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d2"), deckJSON(t, "d2", "Bravo")))

	returned := make(chan struct{})
	var f *DeckFeed
	f = NewDeckFeed(hub, nil, Callbacks{OnLoadingComplete: func() {
		f.Unsubscribe()
		close(returned)
	}})

	events, err := f.SubscribeDecks(ctx, "u1")
	require.NoError(t, err)

	first := nextEvent(t, events)
	assert.Equal(t, "Alpha", first.Value.Name)

	select {
	case <-returned:
	case <-time.After(waitTimeout):
		t.Fatal("Unsubscribe inside OnLoadingComplete did not return")
	}

	expectClosed(t, events)
	assert.Zero(t, hub.Stats())
}

func TestDeckFeed_ResubscribeFromOnError(t *testing.T) {
	ctx := context.Background()
	s, hub := setupHub(t)
	require.NoError(t, s.Set(ctx, store.PublicDeckPath("bad"), []byte(`{"week":"x"}`)))
	require.NoError(t, s.Set(ctx, store.UserDeckPath("u1", "d1"), deckJSON(t, "d1", "Mine")))

	swapped := make(chan (<-chan DeckEvent), 1)
	var f *DeckFeed
	f = NewDeckFeed(hub, nil, Callbacks{OnError: func(error) {
		events, err := f.SubscribeDecks(ctx, "u1")
		if err == nil {
			swapped <- events
		}
	}})
	defer f.Unsubscribe()

	public, err := f.SubscribePublicDecks(ctx)
	require.NoError(t, err)

	var mine <-chan DeckEvent
	select {
	case mine = <-swapped:
	case <-time.After(waitTimeout):
		t.Fatal("SubscribeDecks inside OnError did not return")
	}

	expectClosed(t, public)
	ev := nextEvent(t, mine)
	assert.Equal(t, "Mine", ev.Value.Name)
}
