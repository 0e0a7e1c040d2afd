package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gwentdecks/decks-server/internal/catalog"
	"github.com/gwentdecks/decks-server/internal/service"
)

func (s *Server) registerCardRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCards",
		Method:      http.MethodGet,
		Path:        "/api/v1/cards",
		Summary:     "List cards",
		Description: "Lists catalog cards. At most one of faction, rarity and leader may be set.",
		Tags:        []string{"Cards"},
	}, s.handleListCards)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCard",
		Method:      http.MethodGet,
		Path:        "/api/v1/cards/{id}",
		Summary:     "Get card",
		Description: "Returns a catalog card",
		Tags:        []string{"Cards"},
	}, s.handleGetCard)
}

// === DTOs ===

// ListCardsInput contains catalog list filters.
type ListCardsInput struct {
	Faction string `query:"faction" doc:"Faction filter"`
	Rarity  string `query:"rarity" doc:"Rarity filter"`
	Leader  bool   `query:"leader" doc:"Only leader cards"`
	Limit   int    `query:"limit" minimum:"1" maximum:"500" default:"200" doc:"Page size"`
	Offset  int    `query:"offset" minimum:"0" default:"0" doc:"Page offset"`
}

// CardStubResponse is a catalog list entry.
type CardStubResponse struct {
	ID   string `json:"id" doc:"Card ID"`
	Name string `json:"name" doc:"Card name"`
	Href string `json:"href" doc:"Catalog URL"`
}

// CardListResponse contains a page of catalog cards.
type CardListResponse struct {
	Cards []CardStubResponse `json:"cards" doc:"Cards"`
}

// CardListOutput wraps the card list response for Huma.
type CardListOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         CardListResponse
}

// CardIDInput identifies a catalog card.
type CardIDInput struct {
	ID string `path:"id" doc:"Card ID"`
}

// CardOutput wraps a card for Huma.
type CardOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         CardBody
}

// === Handlers ===

func (s *Server) handleListCards(ctx context.Context, input *ListCardsInput) (*CardListOutput, error) {
	stubs, err := s.services.Cards.ListCards(ctx, service.CardFilter{
		Faction: input.Faction,
		Rarity:  input.Rarity,
		Leader:  input.Leader,
		Page:    catalog.Page{Limit: input.Limit, Offset: input.Offset},
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	cards := make([]CardStubResponse, 0, len(stubs))
	for _, stub := range stubs {
		cards = append(cards, CardStubResponse{ID: stub.ID(), Name: stub.Name, Href: stub.Href})
	}
	return &CardListOutput{CacheControl: CacheOneDay, Body: CardListResponse{Cards: cards}}, nil
}

func (s *Server) handleGetCard(ctx context.Context, input *CardIDInput) (*CardOutput, error) {
	card, err := s.services.Cards.GetCard(ctx, input.ID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &CardOutput{CacheControl: CacheOneDay, Body: *toCardBody(card)}, nil
}
