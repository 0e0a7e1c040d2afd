package sse

import (
	"time"

	"github.com/gwentdecks/decks-server/internal/feed"
)

// Stream events that are not deck changes. Deck changes use the
// change type itself (added, changed, removed, moved) as the event name.
const (
	EventConnected = "connected"
	EventLoaded    = "loaded"
	EventError     = "error"
	EventHeartbeat = "heartbeat"
)

// StreamKind names what a client is watching.
type StreamKind string

const (
	StreamUserDecks   StreamKind = "user_decks"
	StreamUserDeck    StreamKind = "user_deck"
	StreamPublicDecks StreamKind = "public_decks"
)

// ConnectedData is sent once when the stream opens.
type ConnectedData struct {
	ClientID string     `json:"client_id"`
	Stream   StreamKind `json:"stream"`
	Message  string     `json:"message"`
}

// ErrorData reports a feed error without closing the stream.
type ErrorData struct {
	Message string `json:"message"`
}

// HeartbeatData keeps idle connections open through proxies.
type HeartbeatData struct {
	Timestamp time.Time `json:"timestamp"`
}

// notice is a feed callback queued for the stream goroutine.
type notice struct {
	event string
	data  any
}

// DeckEvent is re-exported so callers of this package need not import feed.
type DeckEvent = feed.DeckEvent
