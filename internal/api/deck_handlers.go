package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gwentdecks/decks-server/internal/domain"
	"github.com/gwentdecks/decks-server/internal/service"
)

func (s *Server) registerDeckRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listDecks",
		Method:      http.MethodGet,
		Path:        "/api/v1/decks",
		Summary:     "List decks",
		Description: "Returns the caller's decks ordered by name",
		Tags:        []string{"Decks"},
	}, s.handleListDecks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createDeck",
		Method:        http.MethodPost,
		Path:          "/api/v1/decks",
		Summary:       "Create deck",
		Description:   "Creates an empty deck and returns its id",
		Tags:          []string{"Decks"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateDeck)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDeck",
		Method:      http.MethodGet,
		Path:        "/api/v1/decks/{id}",
		Summary:     "Get deck",
		Description: "Returns one of the caller's decks",
		Tags:        []string{"Decks"},
	}, s.handleGetDeck)

	huma.Register(s.api, huma.Operation{
		OperationID: "renameDeck",
		Method:      http.MethodPatch,
		Path:        "/api/v1/decks/{id}",
		Summary:     "Rename deck",
		Description: "Renames a deck. Renaming a missing deck returns 404.",
		Tags:        []string{"Decks"},
	}, s.handleRenameDeck)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteDeck",
		Method:      http.MethodDelete,
		Path:        "/api/v1/decks/{id}",
		Summary:     "Delete deck",
		Description: "Deletes a deck. Published copies are kept.",
		Tags:        []string{"Decks"},
	}, s.handleDeleteDeck)

	huma.Register(s.api, huma.Operation{
		OperationID: "addDeckCard",
		Method:      http.MethodPost,
		Path:        "/api/v1/decks/{id}/cards",
		Summary:     "Add card",
		Description: "Adds one copy of a card. Send card_id to resolve the card through the catalog, or the card fields directly.",
		Tags:        []string{"Decks"},
	}, s.handleAddCard)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeDeckCard",
		Method:      http.MethodDelete,
		Path:        "/api/v1/decks/{id}/cards/{cardId}",
		Summary:     "Remove card",
		Description: "Removes one copy of a card",
		Tags:        []string{"Decks"},
	}, s.handleRemoveCard)

	huma.Register(s.api, huma.Operation{
		OperationID:   "publishDeck",
		Method:        http.MethodPost,
		Path:          "/api/v1/decks/{id}/publish",
		Summary:       "Publish deck",
		Description:   "Publishes an independent copy of the deck and returns the public id",
		Tags:          []string{"Decks"},
		DefaultStatus: http.StatusCreated,
	}, s.handlePublishDeck)
}

// === DTOs ===

// CardBody carries a card snapshot in requests and responses.
type CardBody struct {
	IngameID string `json:"ingameId,omitempty" maxLength:"128" doc:"Catalog card id"`
	Name     string `json:"name,omitempty" doc:"Card name"`
	Faction  string `json:"faction,omitempty" doc:"Card faction"`
	Patch    string `json:"patch,omitempty" doc:"Game patch the snapshot was taken from"`
	Rarity   string `json:"rarity,omitempty" doc:"Card rarity"`
	Group    string `json:"group,omitempty" doc:"Card group (Leader, Gold, Silver, Bronze)"`
	Info     string `json:"info,omitempty" doc:"Card text"`
	Strength int    `json:"strength,omitempty" doc:"Base strength"`
	Href     string `json:"href,omitempty" doc:"Catalog URL"`
}

func (c *CardBody) toDomain() *domain.CardDetails {
	if c == nil {
		return nil
	}
	return &domain.CardDetails{
		IngameID: c.IngameID,
		Name:     c.Name,
		Faction:  c.Faction,
		Patch:    c.Patch,
		Rarity:   c.Rarity,
		Group:    c.Group,
		Info:     c.Info,
		Strength: c.Strength,
		Href:     c.Href,
	}
}

func toCardBody(c *domain.CardDetails) *CardBody {
	if c == nil {
		return nil
	}
	return &CardBody{
		IngameID: c.IngameID,
		Name:     c.Name,
		Faction:  c.Faction,
		Patch:    c.Patch,
		Rarity:   c.Rarity,
		Group:    c.Group,
		Info:     c.Info,
		Strength: c.Strength,
		Href:     c.Href,
	}
}

// DeckCard is one card entry of a deck.
type DeckCard struct {
	Count int       `json:"count" doc:"Number of copies"`
	Card  *CardBody `json:"card,omitempty" doc:"Card snapshot"`
}

// DeckResponse contains deck data in API responses.
type DeckResponse struct {
	ID        string              `json:"id" doc:"Deck ID"`
	Name      string              `json:"name" doc:"Deck name"`
	Faction   string              `json:"faction" doc:"Deck faction"`
	Leader    *CardBody           `json:"leader,omitempty" doc:"Leader card"`
	Author    string              `json:"author" doc:"Owner user ID"`
	Patch     string              `json:"patch" doc:"Game patch"`
	Cards     map[string]DeckCard `json:"cards" doc:"Cards keyed by card ID"`
	CardTotal int                 `json:"card_total" doc:"Total copies in the deck"`
	Public    bool                `json:"public,omitempty" doc:"Whether this is a published copy"`
	Week      *int                `json:"week,omitempty" doc:"Rotation week of a published copy"`
}

func toDeckResponse(d *domain.Deck) *DeckResponse {
	if d == nil {
		return nil
	}
	cards := make(map[string]DeckCard, len(d.CardCount))
	for id, count := range d.CardCount {
		cards[id] = DeckCard{Count: count, Card: toCardBody(d.Cards[id])}
	}
	return &DeckResponse{
		ID:        d.ID,
		Name:      d.Name,
		Faction:   d.Faction,
		Leader:    toCardBody(d.Leader),
		Author:    d.Author,
		Patch:     d.Patch,
		Cards:     cards,
		CardTotal: d.TotalCards(),
		Public:    d.PublicDeck,
		Week:      d.Week,
	}
}

func toDeckResponses(decks []*domain.Deck) []DeckResponse {
	resp := make([]DeckResponse, 0, len(decks))
	for _, d := range decks {
		resp = append(resp, *toDeckResponse(d))
	}
	return resp
}

// DeckListResponse contains a list of decks.
type DeckListResponse struct {
	Decks []DeckResponse `json:"decks" doc:"Decks"`
}

// DeckListOutput wraps the deck list response for Huma.
type DeckListOutput struct {
	Body DeckListResponse
}

// DeckOutput wraps the deck response for Huma.
type DeckOutput struct {
	Body DeckResponse
}

// DeckIDInput identifies one of the caller's decks.
type DeckIDInput struct {
	ID string `path:"id" doc:"Deck ID"`
}

// CreateDeckRequest is the request body for creating a deck.
type CreateDeckRequest struct {
	Name    string    `json:"name" minLength:"1" maxLength:"100" doc:"Deck name"`
	Faction string    `json:"faction" doc:"Deck faction"`
	Leader  *CardBody `json:"leader,omitempty" doc:"Leader card"`
	Patch   string    `json:"patch,omitempty" maxLength:"32" doc:"Game patch"`
}

// CreateDeckInput wraps the create deck request for Huma.
type CreateDeckInput struct {
	Body CreateDeckRequest
}

// DeckIDResponse returns a newly assigned deck id.
type DeckIDResponse struct {
	ID string `json:"id" doc:"Deck ID"`
}

// DeckIDOutput wraps the deck id response for Huma.
type DeckIDOutput struct {
	Body DeckIDResponse
}

// RenameDeckRequest is the request body for renaming a deck.
type RenameDeckRequest struct {
	Name string `json:"name" minLength:"1" maxLength:"100" doc:"New deck name"`
}

// RenameDeckInput wraps the rename request for Huma.
type RenameDeckInput struct {
	ID   string `path:"id" doc:"Deck ID"`
	Body RenameDeckRequest
}

// MutationResponse reports a deck mutation.
type MutationResponse struct {
	Deck     *DeckResponse `json:"deck" doc:"Deck after the mutation, null if the deck does not exist"`
	Applied  bool          `json:"applied" doc:"False when the mutation changed nothing"`
	Attempts int           `json:"attempts" doc:"Transaction attempts used"`
}

// MutationOutput wraps the mutation response for Huma.
type MutationOutput struct {
	Body MutationResponse
}

func toMutationOutput(res service.MutationResult) *MutationOutput {
	return &MutationOutput{Body: MutationResponse{
		Deck:     toDeckResponse(res.Deck),
		Applied:  res.Applied,
		Attempts: res.Attempts,
	}}
}

// AddCardRequest adds a card either by catalog id or by snapshot.
type AddCardRequest struct {
	CardID string `json:"card_id,omitempty" doc:"Catalog card id to resolve"`
	CardBody
}

// AddCardInput wraps the add card request for Huma.
type AddCardInput struct {
	ID   string `path:"id" doc:"Deck ID"`
	Body AddCardRequest
}

// RemoveCardInput identifies the card to remove.
type RemoveCardInput struct {
	ID     string `path:"id" doc:"Deck ID"`
	CardID string `path:"cardId" doc:"Card ID"`
}

// PublishDeckRequest is the request body for publishing a deck.
type PublishDeckRequest struct {
	Week int `json:"week,omitempty" minimum:"0" doc:"Rotation week, 0 when unassigned"`
}

// PublishDeckInput wraps the publish request for Huma.
type PublishDeckInput struct {
	ID   string `path:"id" doc:"Deck ID"`
	Body PublishDeckRequest `required:"false"`
}

// PublishDeckResponse returns the published copy's id.
type PublishDeckResponse struct {
	PublicID string `json:"public_id" doc:"Public deck ID"`
}

// PublishDeckOutput wraps the publish response for Huma.
type PublishDeckOutput struct {
	Body PublishDeckResponse
}

// === Handlers ===

func (s *Server) handleListDecks(ctx context.Context, _ *struct{}) (*DeckListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	decks, err := s.services.Decks.ListDecks(ctx, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &DeckListOutput{Body: DeckListResponse{Decks: toDeckResponses(decks)}}, nil
}

func (s *Server) handleCreateDeck(ctx context.Context, input *CreateDeckInput) (*DeckIDOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.services.Decks.CreateDeck(ctx, userID, service.CreateDeckRequest{
		Name:    input.Body.Name,
		Faction: input.Body.Faction,
		Leader:  input.Body.Leader.toDomain(),
		Patch:   input.Body.Patch,
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return &DeckIDOutput{Body: DeckIDResponse{ID: id}}, nil
}

func (s *Server) handleGetDeck(ctx context.Context, input *DeckIDInput) (*DeckOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	deck, err := s.services.Decks.GetDeck(ctx, userID, input.ID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &DeckOutput{Body: *toDeckResponse(deck)}, nil
}

func (s *Server) handleRenameDeck(ctx context.Context, input *RenameDeckInput) (*MutationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Decks.RenameDeck(ctx, userID, input.ID, input.Body.Name)
	if err != nil {
		return nil, wrapErr(err)
	}
	return toMutationOutput(res), nil
}

func (s *Server) handleDeleteDeck(ctx context.Context, input *DeckIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Decks.DeleteDeck(ctx, userID, input.ID); err != nil {
		return nil, wrapErr(err)
	}
	return nil, nil
}

func (s *Server) handleAddCard(ctx context.Context, input *AddCardInput) (*MutationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	var res service.MutationResult
	if input.Body.CardID != "" {
		res, err = s.services.Decks.AddCardByID(ctx, userID, input.ID, input.Body.CardID)
	} else {
		res, err = s.services.Decks.AddCard(ctx, userID, input.ID, *input.Body.CardBody.toDomain())
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	return toMutationOutput(res), nil
}

func (s *Server) handleRemoveCard(ctx context.Context, input *RemoveCardInput) (*MutationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Decks.RemoveCard(ctx, userID, input.ID, input.CardID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return toMutationOutput(res), nil
}

func (s *Server) handlePublishDeck(ctx context.Context, input *PublishDeckInput) (*PublishDeckOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	publicID, err := s.services.Decks.PublishDeckByID(ctx, userID, input.ID, input.Body.Week)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &PublishDeckOutput{Body: PublishDeckResponse{PublicID: publicID}}, nil
}
