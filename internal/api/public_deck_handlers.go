package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gwentdecks/decks-server/internal/search"
)

func (s *Server) registerPublicDeckRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPublicDecks",
		Method:      http.MethodGet,
		Path:        "/api/v1/public-decks",
		Summary:     "List public decks",
		Description: "Returns published decks ordered by week",
		Tags:        []string{"Public Decks"},
	}, s.handleListPublicDecks)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchPublicDecks",
		Method:      http.MethodGet,
		Path:        "/api/v1/public-decks/search",
		Summary:     "Search public decks",
		Description: "Full-text search over deck names, leaders and card names",
		Tags:        []string{"Public Decks"},
	}, s.handleSearchPublicDecks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPublicDeck",
		Method:      http.MethodGet,
		Path:        "/api/v1/public-decks/{id}",
		Summary:     "Get public deck",
		Description: "Returns a published deck",
		Tags:        []string{"Public Decks"},
	}, s.handleGetPublicDeck)

	huma.Register(s.api, huma.Operation{
		OperationID: "unpublishDeck",
		Method:      http.MethodDelete,
		Path:        "/api/v1/public-decks/{id}",
		Summary:     "Unpublish deck",
		Description: "Removes a published deck. Only its author may do so.",
		Tags:        []string{"Public Decks"},
	}, s.handleUnpublishDeck)
}

// === DTOs ===

// PublicDeckIDInput identifies a published deck.
type PublicDeckIDInput struct {
	ID string `path:"id" doc:"Public deck ID"`
}

// SearchPublicDecksInput contains search parameters.
type SearchPublicDecksInput struct {
	Query   string `query:"q" doc:"Search text"`
	Faction string `query:"faction" doc:"Faction filter"`
	Author  string `query:"author" doc:"Author filter"`
	MinWeek int    `query:"min_week" minimum:"0" doc:"Earliest week"`
	MaxWeek int    `query:"max_week" minimum:"0" doc:"Latest week, 0 for no bound"`
	Sort    string `query:"sort" enum:"relevance,name,week" default:"relevance" doc:"Sort field"`
	Order   string `query:"order" enum:"asc,desc" default:"desc" doc:"Sort order"`
	Limit   int    `query:"limit" minimum:"1" maximum:"100" default:"20" doc:"Page size"`
	Offset  int    `query:"offset" minimum:"0" default:"0" doc:"Page offset"`
	Facets  bool   `query:"facets" doc:"Include faction and patch facets"`
}

// SearchOutput wraps the search result for Huma.
type SearchOutput struct {
	Body search.SearchResult
}

// === Handlers ===

func (s *Server) handleListPublicDecks(ctx context.Context, _ *struct{}) (*DeckListOutput, error) {
	decks, err := s.services.Decks.ListPublicDecks(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &DeckListOutput{Body: DeckListResponse{Decks: toDeckResponses(decks)}}, nil
}

func (s *Server) handleSearchPublicDecks(ctx context.Context, input *SearchPublicDecksInput) (*SearchOutput, error) {
	result, err := s.services.Decks.SearchPublicDecks(ctx, search.SearchParams{
		Query:         input.Query,
		Faction:       input.Faction,
		Author:        input.Author,
		MinWeek:       input.MinWeek,
		MaxWeek:       input.MaxWeek,
		Limit:         input.Limit,
		Offset:        input.Offset,
		SortBy:        input.Sort,
		SortOrder:     input.Order,
		IncludeFacets: input.Facets,
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return &SearchOutput{Body: *result}, nil
}

func (s *Server) handleGetPublicDeck(ctx context.Context, input *PublicDeckIDInput) (*DeckOutput, error) {
	deck, err := s.services.Decks.GetPublicDeck(ctx, input.ID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &DeckOutput{Body: *toDeckResponse(deck)}, nil
}

func (s *Server) handleUnpublishDeck(ctx context.Context, input *PublicDeckIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Decks.UnpublishDeck(ctx, userID, input.ID); err != nil {
		return nil, wrapErr(err)
	}
	return nil, nil
}
