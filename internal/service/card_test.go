package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwentdecks/decks-server/internal/catalog"
	"github.com/gwentdecks/decks-server/internal/domain"
	domainerrors "github.com/gwentdecks/decks-server/internal/errors"
	"github.com/gwentdecks/decks-server/internal/store"
)

// fakeCatalog serves cards from a map and records which list endpoint was used.
type fakeCatalog struct {
	cards    map[string]domain.CardDetails
	err      error
	lastList string
}

func (f *fakeCatalog) GetCard(_ context.Context, id string) (*domain.CardDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.cards[id]
	if !ok {
		return nil, fmt.Errorf("catalog getCard: %w", &catalog.APIError{StatusCode: 404, Body: `{"detail":"Not found."}`})
	}
	return &c, nil
}

func (f *fakeCatalog) list(name string) ([]catalog.CardStub, error) {
	f.lastList = name
	if f.err != nil {
		return nil, f.err
	}
	return []catalog.CardStub{{Href: "https://example.test/cards/a", Name: "A"}}, nil
}

func (f *fakeCatalog) ListCards(context.Context, catalog.Page) ([]catalog.CardStub, error) {
	return f.list("all")
}

func (f *fakeCatalog) ListLeaders(context.Context, catalog.Page) ([]catalog.CardStub, error) {
	return f.list("leaders")
}

func (f *fakeCatalog) ListByFaction(_ context.Context, faction string, _ catalog.Page) ([]catalog.CardStub, error) {
	return f.list("faction:" + faction)
}

func (f *fakeCatalog) ListByRarity(_ context.Context, rarity string, _ catalog.Page) ([]catalog.CardStub, error) {
	return f.list("rarity:" + rarity)
}

func TestCardService_ListCards_Routing(t *testing.T) {
	fc := &fakeCatalog{}
	svc := NewCardService(fc, testLogger())
	ctx := context.Background()

	tests := []struct {
		filter CardFilter
		want   string
	}{
		{CardFilter{}, "all"},
		{CardFilter{Leader: true}, "leaders"},
		{CardFilter{Faction: "neutral"}, "faction:neutral"},
		{CardFilter{Rarity: "legendary"}, "rarity:legendary"},
	}
	for _, tt := range tests {
		stubs, err := svc.ListCards(ctx, tt.filter)
		require.NoError(t, err)
		assert.Len(t, stubs, 1)
		assert.Equal(t, tt.want, fc.lastList)
	}

	_, err := svc.ListCards(ctx, CardFilter{Leader: true, Rarity: "rare"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCardService_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *domainerrors.Error
	}{
		{name: "not found", err: &catalog.APIError{StatusCode: 404}, want: domainerrors.ErrNotFound},
		{name: "bad request", err: &catalog.APIError{StatusCode: 400}, want: domainerrors.ErrValidation},
		{name: "rate limited", err: &catalog.APIError{StatusCode: 429}, want: domainerrors.ErrRateLimited},
		{name: "server error", err: &catalog.APIError{StatusCode: 503, Body: "down"}, want: domainerrors.ErrUpstream},
		{name: "network", err: errors.New("connection refused"), want: domainerrors.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCardService(&fakeCatalog{err: tt.err}, testLogger())
			_, err := svc.GetCard(context.Background(), "x")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCardService_ErrorCarriesCatalogBody(t *testing.T) {
	svc := NewCardService(&fakeCatalog{}, testLogger())
	_, err := svc.GetCard(context.Background(), "missing")

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeNotFound, de.Code)
	assert.Equal(t, map[string]string{"catalog_response": `{"detail":"Not found."}`}, de.Details)
}

func TestCardService_ContextErrorsPassThrough(t *testing.T) {
	svc := NewCardService(&fakeCatalog{err: fmt.Errorf("wait: %w", context.Canceled)}, testLogger())
	_, err := svc.GetCard(context.Background(), "x")
	assert.ErrorIs(t, err, context.Canceled)
	var de *domainerrors.Error
	assert.False(t, errors.As(err, &de))
}

func TestDeckService_AddCardByID(t *testing.T) {
	tree := setupTree(t)
	cards := NewCardService(&fakeCatalog{cards: map[string]domain.CardDetails{
		"geralt": {IngameID: "geralt", Name: "Geralt of Rivia", Faction: string(domain.FactionNeutral), Patch: "0.9"},
	}}, testLogger())
	svc := NewDeckService(tree, nil, cards, DeckServiceOptions{}, testLogger())
	ctx := context.Background()
	deckID := createDeck(t, svc, "user-1", "Control")

	res, err := svc.AddCardByID(ctx, "user-1", deckID, "geralt")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "Geralt of Rivia", res.Deck.Cards["geralt"].Name)

	_, err = svc.AddCardByID(ctx, "user-1", deckID, "missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = tree.Get(ctx, store.UserDeckPath("user-1", deckID))
	require.NoError(t, err)
}

func TestDeckService_AddCardByID_NoCatalog(t *testing.T) {
	svc := NewDeckService(setupTree(t), nil, nil, DeckServiceOptions{}, testLogger())
	_, err := svc.AddCardByID(context.Background(), "user-1", "d", "x")
	assert.ErrorIs(t, err, domainerrors.ErrInternal)
}
