package sse

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/gwentdecks/decks-server/internal/feed"
	"github.com/gwentdecks/decks-server/internal/id"
)

// ErrShutdown is returned by Connect once the manager has shut down.
var ErrShutdown = errors.New("sse manager shut down")

// Client represents a connected SSE client. Each client owns its own deck feed.
type Client struct {
	ConnectedAt time.Time
	Feed        *feed.DeckFeed
	Done        chan struct{}
	ID          string
	UserID      string
	Stream      StreamKind

	notices   chan notice
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Feed.Unsubscribe()
		close(c.Done)
	})
}

// push queues a notice without blocking the feed's delivery goroutine.
// Notices are dropped when the client is not keeping up.
func (c *Client) push(n notice) {
	select {
	case c.notices <- n:
	default:
	}
}

// Manager tracks SSE clients and wires each one to the change feed hub.
type Manager struct {
	hub     feed.Subscriber
	clients map[string]*Client
	logger  *slog.Logger
	mu      sync.RWMutex

	shutdown bool
}

// NewManager creates a new SSE Manager.
func NewManager(hub feed.Subscriber, logger *slog.Logger) *Manager {
	return &Manager{
		hub:     hub,
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Connect registers a new client with a fresh deck feed.
// Loading-complete and error callbacks from the feed are queued as notices
// for the stream goroutine.
func (m *Manager) Connect(userID string, stream StreamKind) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	notices := make(chan notice, 16)
	client := &Client{
		ID:          clientID,
		UserID:      userID,
		Stream:      stream,
		notices:     notices,
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}
	client.Feed = feed.NewDeckFeed(m.hub, m.logger.With(slog.String("client_id", clientID)), feed.Callbacks{
		OnLoadingComplete: func() {
			client.push(notice{event: EventLoaded, data: struct{}{}})
		},
		OnError: func(err error) {
			client.push(notice{event: EventError, data: ErrorData{Message: err.Error()}})
		},
	})

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	m.clients[client.ID] = client
	totalClients := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.String("user_id", userID),
		slog.String("stream", string(stream)),
		slog.Int("total_clients", totalClients))
	return client, nil
}

// Disconnect removes a client and releases its feed subscriptions.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	totalClients := len(m.clients)
	m.mu.Unlock()

	client.close()

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", totalClients))
}

// Clients returns an iterator over all connected clients.
func (m *Manager) Clients() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for _, client := range m.clients {
			if !yield(client) {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Shutdown refuses new clients and closes every open stream.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("SSE manager shutdown initiated")

	m.mu.Lock()
	m.shutdown = true
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, client := range clients {
			client.close()
		}
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("SSE manager shutdown complete", slog.Int("closed_clients", len(clients)))
		return nil
	case <-ctx.Done():
		m.logger.Warn("SSE shutdown timed out before all clients closed")
		return ctx.Err()
	}
}
