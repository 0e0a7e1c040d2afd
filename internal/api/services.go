package api

import (
	"github.com/gwentdecks/decks-server/internal/service"
)

// Services groups the domain services the API exposes.
type Services struct {
	Decks *service.DeckService
	Cards *service.CardService
}
