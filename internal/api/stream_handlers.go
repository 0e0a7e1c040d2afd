package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/gwentdecks/decks-server/internal/errors"
	"github.com/gwentdecks/decks-server/internal/http/response"
	"github.com/gwentdecks/decks-server/internal/validation"
)

// registerStreamRoutes mounts the SSE feeds directly on chi. Streams are long
// lived and bypass huma's request/response model.
func (s *Server) registerStreamRoutes() {
	s.router.Route("/api/v1/stream", func(r chi.Router) {
		r.Get("/decks", s.handleStreamDecks)
		r.Get("/decks/{id}", s.handleStreamDeck)
		r.Get("/public-decks", s.handleStreamPublicDecks)
	})
}

var errInvalidDeckID = domainerrors.Validation("invalid deck id")

func (s *Server) handleStreamDecks(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		response.Unauthorized(w, err.Error(), s.logger)
		return
	}
	s.sseHandler.StreamDecks(w, r, userID)
}

func (s *Server) handleStreamDeck(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		response.Unauthorized(w, err.Error(), s.logger)
		return
	}
	deckID := chi.URLParam(r, "id")
	if !validation.IsPathKey(deckID) {
		response.HandleError(w, errInvalidDeckID, s.logger)
		return
	}
	s.sseHandler.StreamDeck(w, r, userID, deckID)
}

func (s *Server) handleStreamPublicDecks(w http.ResponseWriter, r *http.Request) {
	s.sseHandler.StreamPublicDecks(w, r, userIDFromContext(r.Context()))
}
