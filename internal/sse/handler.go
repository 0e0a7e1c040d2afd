package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultHeartbeat = 30 * time.Second
	writeDeadline    = 60 * time.Second
)

// Handler streams deck change feeds over Server-Sent Events.
type Handler struct {
	manager   *Manager
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager:   manager,
		logger:    logger,
		heartbeat: defaultHeartbeat,
	}
}

// SetHeartbeat overrides the heartbeat interval.
func (h *Handler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// StreamDecks streams a user's private decks ordered by name.
func (h *Handler) StreamDecks(w http.ResponseWriter, r *http.Request, userID string) {
	h.serve(w, r, userID, StreamUserDecks, func(ctx context.Context, c *Client) (<-chan DeckEvent, error) {
		return c.Feed.SubscribeDecks(ctx, userID)
	})
}

// StreamDeck streams one private deck.
func (h *Handler) StreamDeck(w http.ResponseWriter, r *http.Request, userID, deckID string) {
	h.serve(w, r, userID, StreamUserDeck, func(ctx context.Context, c *Client) (<-chan DeckEvent, error) {
		return c.Feed.SubscribeDeck(ctx, userID, deckID)
	})
}

// StreamPublicDecks streams published decks ordered by week.
func (h *Handler) StreamPublicDecks(w http.ResponseWriter, r *http.Request, userID string) {
	h.serve(w, r, userID, StreamPublicDecks, func(ctx context.Context, c *Client) (<-chan DeckEvent, error) {
		return c.Feed.SubscribePublicDecks(ctx)
	})
}

type subscribeFunc func(ctx context.Context, c *Client) (<-chan DeckEvent, error)

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, userID string, stream StreamKind, subscribe subscribeFunc) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Early client disconnect.
	if r.Context().Err() != nil {
		return
	}

	client, err := h.manager.Connect(userID, stream)
	if err != nil {
		h.logger.Error("failed to register SSE client", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusServiceUnavailable)
		return
	}
	defer h.manager.Disconnect(client.ID)

	clientLogger := h.logger.With(slog.String("client_id", client.ID), slog.String("stream", string(stream)))

	ctx := r.Context()
	events, err := subscribe(ctx, client)
	if err != nil {
		clientLogger.Warn("failed to subscribe", slog.String("error", err.Error()))
		http.Error(w, "Failed to subscribe", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		clientLogger.Error("failed to flush headers", slog.String("error", err.Error()))
		return
	}

	if err := h.sendEvent(w, rc, EventConnected, ConnectedData{
		ClientID: client.ID,
		Stream:   stream,
		Message:  "SSE connection established",
	}); err != nil {
		clientLogger.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return
	}

	heartbeatTicker := time.NewTicker(h.heartbeat)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				// The feed ended the subscription; its error notice may still be queued.
				h.drainNotices(w, rc, client)
				clientLogger.Info("feed subscription ended")
				return
			}
			if err := h.sendEvent(w, rc, string(event.Type), event); err != nil {
				clientLogger.Info("client disconnected during send")
				return
			}

		case n := <-client.notices:
			if err := h.sendEvent(w, rc, n.event, n.data); err != nil {
				clientLogger.Info("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			if err := h.sendEvent(w, rc, EventHeartbeat, HeartbeatData{Timestamp: time.Now().UTC()}); err != nil {
				clientLogger.Info("client disconnected during heartbeat")
				return
			}

		case <-client.Done:
			clientLogger.Info("client closed by manager")
			return

		case <-ctx.Done():
			clientLogger.Info("client context canceled")
			return
		}
	}
}

func (h *Handler) drainNotices(w http.ResponseWriter, rc *http.ResponseController, client *Client) {
	for {
		select {
		case n := <-client.notices:
			if err := h.sendEvent(w, rc, n.event, n.data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// sendEvent writes one SSE frame and flushes it.
func (h *Handler) sendEvent(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Reset after each successful write so hung connections are dropped.
	if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		// Not every ResponseWriter supports deadlines.
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	return nil
}
