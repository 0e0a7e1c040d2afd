// Package service provides the business logic layer for decks and the card catalog.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/gwentdecks/decks-server/internal/domain"
	domainerrors "github.com/gwentdecks/decks-server/internal/errors"
	"github.com/gwentdecks/decks-server/internal/normalize"
	"github.com/gwentdecks/decks-server/internal/search"
	"github.com/gwentdecks/decks-server/internal/store"
	"github.com/gwentdecks/decks-server/internal/validation"
)

// PublicDeckIndex is the search index of published decks.
type PublicDeckIndex interface {
	IndexDeck(deck *domain.Deck) error
	DeleteDeck(id string) error
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
	Rebuild(ctx context.Context, decks iter.Seq2[*domain.Deck, error]) (int, error)
}

// DeckServiceOptions tunes DeckService behavior.
type DeckServiceOptions struct {
	// MaxTxnAttempts bounds optimistic retries per mutation (default store.DefaultMaxAttempts).
	MaxTxnAttempts int
	// ZeroCounts decides what RemoveCard does with a card whose count reaches zero.
	ZeroCounts domain.ZeroCountPolicy
}

// DeckService mutates and reads decks in the tree store.
//
// Every mutation of an existing deck is an optimistic transaction on the
// whole deck record, so concurrent writers never lose each other's updates.
type DeckService struct {
	tree      store.Tree
	index     PublicDeckIndex
	cards     *CardService
	validator *validation.Validator
	opts      DeckServiceOptions
	logger    *slog.Logger
}

// NewDeckService creates a new deck service. index and cards may be nil,
// which disables search and catalog lookups respectively.
func NewDeckService(
	tree store.Tree,
	index PublicDeckIndex,
	cards *CardService,
	opts DeckServiceOptions,
	logger *slog.Logger,
) *DeckService {
	if opts.MaxTxnAttempts <= 0 {
		opts.MaxTxnAttempts = store.DefaultMaxAttempts
	}
	return &DeckService{
		tree:      tree,
		index:     index,
		cards:     cards,
		validator: validation.New(),
		opts:      opts,
		logger:    logger,
	}
}

// CreateDeckRequest describes a new deck.
type CreateDeckRequest struct {
	Name    string              `json:"name" validate:"required,max=100"`
	Faction string              `json:"faction" validate:"required,faction"`
	Leader  *domain.CardDetails `json:"leader,omitempty"`
	Patch   string              `json:"patch" validate:"max=32"`
}

// cardInput is the part of a card a deck relies on.
type cardInput struct {
	IngameID string `json:"ingameId" validate:"required,pathkey,max=128"`
	Name     string `json:"name" validate:"max=200"`
}

type renameInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// MutationResult reports the outcome of a deck mutation.
type MutationResult struct {
	// Deck is the record after the mutation. Nil when the deck does not exist.
	Deck *domain.Deck `json:"deck"`
	// Applied is false when the mutation was a no-op.
	Applied  bool `json:"applied"`
	Attempts int  `json:"attempts"`
}

// CreateDeck writes a new empty deck owned by userID and returns its id.
// The id is known before the write completes; subscribers learn about the
// deck through the change feed.
func (s *DeckService) CreateDeck(ctx context.Context, userID string, req CreateDeckRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkUserID(userID); err != nil {
		return "", err
	}

	req.Name = normalize.DeckName(req.Name)
	if f := normalize.Faction(req.Faction); f != "" {
		req.Faction = f
	}
	if err := s.validator.Validate(&req); err != nil {
		return "", err
	}
	if req.Leader != nil {
		if err := s.validateCard(req.Leader); err != nil {
			return "", err
		}
	}

	parent := store.UserDecksPath(userID)
	deckID, err := s.tree.GenerateKey(parent)
	if err != nil {
		return "", fmt.Errorf("generate deck key: %w", err)
	}

	var leader *domain.CardDetails
	if req.Leader != nil {
		l := *req.Leader
		leader = &l
	}
	deck := domain.NewDeck(deckID, req.Name, req.Faction, leader, userID, req.Patch)

	data, err := json.Marshal(deck)
	if err != nil {
		return "", fmt.Errorf("encode deck: %w", err)
	}
	if err := s.tree.Set(ctx, store.Join(parent, deckID), data); err != nil {
		return "", storeError(err, "create deck")
	}

	s.logger.Info("deck created",
		"deck_id", deckID,
		"user_id", userID,
		"faction", req.Faction,
	)

	return deckID, nil
}

// AddCard adds one copy of card to the deck. Adding to a deck that does not
// exist is a no-op.
func (s *DeckService) AddCard(ctx context.Context, userID, deckID string, card domain.CardDetails) (MutationResult, error) {
	if err := checkDeckRef(userID, deckID); err != nil {
		return MutationResult{}, err
	}
	if err := s.validateCard(&card); err != nil {
		return MutationResult{}, err
	}

	return s.mutate(ctx, "add_card", store.UserDeckPath(userID, deckID), func(deck *domain.Deck) bool {
		deck.AddCard(card)
		return true
	})
}

// AddCardByID resolves cardID through the catalog and adds it to the deck.
func (s *DeckService) AddCardByID(ctx context.Context, userID, deckID, cardID string) (MutationResult, error) {
	if s.cards == nil {
		return MutationResult{}, domainerrors.Internal("card catalog is not configured")
	}
	if err := checkDeckRef(userID, deckID); err != nil {
		return MutationResult{}, err
	}
	card, err := s.cards.GetCard(ctx, cardID)
	if err != nil {
		return MutationResult{}, err
	}
	return s.AddCard(ctx, userID, deckID, *card)
}

// RemoveCard removes one copy of the card from the deck. A missing deck or a
// card the deck does not hold is a no-op.
func (s *DeckService) RemoveCard(ctx context.Context, userID, deckID, cardID string) (MutationResult, error) {
	if err := checkDeckRef(userID, deckID); err != nil {
		return MutationResult{}, err
	}
	if !validation.IsPathKey(cardID) {
		return MutationResult{}, domainerrors.Validation("invalid card id")
	}

	policy := s.opts.ZeroCounts
	return s.mutate(ctx, "remove_card", store.UserDeckPath(userID, deckID), func(deck *domain.Deck) bool {
		return deck.RemoveCard(cardID, policy)
	})
}

// RenameDeck changes the name of a private deck.
func (s *DeckService) RenameDeck(ctx context.Context, userID, deckID, name string) (MutationResult, error) {
	if err := checkDeckRef(userID, deckID); err != nil {
		return MutationResult{}, err
	}
	name = normalize.DeckName(name)
	if err := s.validator.Validate(&renameInput{Name: name}); err != nil {
		return MutationResult{}, err
	}

	res, err := s.mutate(ctx, "rename", store.UserDeckPath(userID, deckID), func(deck *domain.Deck) bool {
		if deck.Name == name {
			return false
		}
		deck.Name = name
		return true
	})
	if err != nil {
		return res, err
	}
	if res.Deck == nil {
		return res, domainerrors.NotFoundf("deck %s not found", deckID)
	}
	return res, nil
}

// PublishDeck writes an independent copy of deck to the public collection and
// returns the new public id. The source deck is not modified. A week of 0
// marks the deck as not assigned to a rotation week.
func (s *DeckService) PublishDeck(ctx context.Context, userID string, deck *domain.Deck, week int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkUserID(userID); err != nil {
		return "", err
	}
	if deck == nil {
		return "", domainerrors.Validation("deck is required")
	}
	if deck.Author != "" && deck.Author != userID {
		return "", domainerrors.Forbidden("cannot publish another user's deck")
	}
	if week < 0 {
		return "", domainerrors.ValidationWithDetails("validation failed", map[string]string{"week": "must be greater than or equal to 0"})
	}

	publicID, err := s.tree.GenerateKey(store.PublicDecksRoot)
	if err != nil {
		return "", fmt.Errorf("generate public deck key: %w", err)
	}

	published := deck.PublishedCopy(publicID, week)
	published.EnsureMaps()
	if published.Author == "" {
		published.Author = userID
	}

	data, err := json.Marshal(published)
	if err != nil {
		return "", fmt.Errorf("encode deck: %w", err)
	}
	if err := s.tree.Set(ctx, store.PublicDeckPath(publicID), data); err != nil {
		return "", storeError(err, "publish deck")
	}

	s.indexDeck(published)

	s.logger.Info("deck published",
		"deck_id", deck.ID,
		"public_id", publicID,
		"user_id", userID,
		"week", week,
	)

	return publicID, nil
}

// PublishDeckByID loads one of the user's decks and publishes it.
func (s *DeckService) PublishDeckByID(ctx context.Context, userID, deckID string, week int) (string, error) {
	deck, err := s.GetDeck(ctx, userID, deckID)
	if err != nil {
		return "", err
	}
	return s.PublishDeck(ctx, userID, deck, week)
}

// UnpublishDeck removes a published deck. Only its author may do so.
func (s *DeckService) UnpublishDeck(ctx context.Context, userID, publicID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	deck, err := s.GetPublicDeck(ctx, publicID)
	if err != nil {
		return err
	}
	if deck.Author != userID {
		return domainerrors.Forbidden("cannot unpublish another user's deck")
	}

	if err := s.tree.Delete(ctx, store.PublicDeckPath(publicID)); err != nil {
		return storeError(err, "unpublish deck")
	}
	if s.index != nil {
		if err := s.index.DeleteDeck(publicID); err != nil {
			s.logger.Warn("failed to remove deck from search index", "public_id", publicID, "error", err)
		}
	}

	s.logger.Info("deck unpublished", "public_id", publicID, "user_id", userID)
	return nil
}

// DeleteDeck removes a private deck. Deleting a missing deck succeeds.
// Published copies are independent and stay.
func (s *DeckService) DeleteDeck(ctx context.Context, userID, deckID string) error {
	if err := checkDeckRef(userID, deckID); err != nil {
		return err
	}
	if err := s.tree.Delete(ctx, store.UserDeckPath(userID, deckID)); err != nil {
		return storeError(err, "delete deck")
	}
	s.logger.Info("deck deleted", "deck_id", deckID, "user_id", userID)
	return nil
}

// GetDeck returns one of the user's decks.
func (s *DeckService) GetDeck(ctx context.Context, userID, deckID string) (*domain.Deck, error) {
	if err := checkDeckRef(userID, deckID); err != nil {
		return nil, err
	}
	return s.getDeck(ctx, store.UserDeckPath(userID, deckID), deckID)
}

// GetPublicDeck returns a published deck.
func (s *DeckService) GetPublicDeck(ctx context.Context, publicID string) (*domain.Deck, error) {
	if !validation.IsPathKey(publicID) {
		return nil, domainerrors.Validation("invalid deck id")
	}
	return s.getDeck(ctx, store.PublicDeckPath(publicID), publicID)
}

// ListDecks returns the user's decks ordered by name.
func (s *DeckService) ListDecks(ctx context.Context, userID string) ([]*domain.Deck, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	return s.listDecks(ctx, store.UserDecksPath(userID), store.DeckOrderField)
}

// ListPublicDecks returns every published deck ordered by week.
func (s *DeckService) ListPublicDecks(ctx context.Context) ([]*domain.Deck, error) {
	return s.listDecks(ctx, store.PublicDecksRoot, store.PublicDeckOrderField)
}

// PublicDecks yields every published deck in key order.
func (s *DeckService) PublicDecks(ctx context.Context) iter.Seq2[*domain.Deck, error] {
	return func(yield func(*domain.Deck, error) bool) {
		for node, err := range s.tree.Walk(ctx, store.PublicDecksRoot) {
			if err != nil {
				yield(nil, err)
				return
			}
			deck, err := decodeDeck(node.Value)
			if err != nil {
				s.logger.Warn("skipping undecodable public deck", "path", node.Path, "error", err)
				continue
			}
			if !yield(deck, nil) {
				return
			}
		}
	}
}

// SearchPublicDecks runs a full-text search over published decks.
func (s *DeckService) SearchPublicDecks(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if s.index == nil {
		return nil, domainerrors.Internal("search is not configured")
	}
	if params.Faction != "" {
		f := normalize.Faction(params.Faction)
		if f == "" {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"faction": "must be a valid faction"})
		}
		params.Faction = f
	}
	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	return result, nil
}

// RebuildSearchIndex reindexes every published deck.
func (s *DeckService) RebuildSearchIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	n, err := s.index.Rebuild(ctx, s.PublicDecks(ctx))
	if err != nil {
		return 0, fmt.Errorf("rebuild search index: %w", err)
	}
	return n, nil
}

// mutate runs fn inside an optimistic transaction on the deck at path.
// fn returning false leaves the record untouched. A missing deck is a no-op.
func (s *DeckService) mutate(ctx context.Context, op, path string, fn func(*domain.Deck) bool) (MutationResult, error) {
	res, err := store.Transact(ctx, s.tree, path, s.opts.MaxTxnAttempts, func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, store.ErrAbort
		}
		deck, err := decodeDeck(current)
		if err != nil {
			return nil, err
		}
		if !fn(deck) {
			return nil, store.ErrAbort
		}
		return json.Marshal(deck)
	})

	s.logger.Debug("transaction complete",
		"op", op,
		"path", path,
		"committed", res.Committed,
		"attempts", res.Attempts,
		"error", err,
	)

	if errors.Is(err, store.ErrConflictExhausted) {
		s.logger.Warn("transaction conflict exhausted",
			"op", op,
			"path", path,
			"attempts", res.Attempts,
		)
		return MutationResult{Attempts: res.Attempts}, domainerrors.Wrap(err, domainerrors.CodeConflict, "conflict exhausted")
	}
	if err != nil {
		return MutationResult{Attempts: res.Attempts}, storeError(err, op)
	}

	out := MutationResult{Applied: res.Committed, Attempts: res.Attempts}
	if res.Value != nil {
		deck, err := decodeDeck(res.Value)
		if err != nil {
			return out, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode deck")
		}
		out.Deck = deck
	}
	return out, nil
}

func (s *DeckService) getDeck(ctx context.Context, path, deckID string) (*domain.Deck, error) {
	node, err := s.tree.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("deck %s not found", deckID)
	}
	if err != nil {
		return nil, storeError(err, "get deck")
	}
	deck, err := decodeDeck(node.Value)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode deck")
	}
	return deck, nil
}

func (s *DeckService) listDecks(ctx context.Context, parent, orderField string) ([]*domain.Deck, error) {
	nodes, err := s.tree.Children(ctx, parent)
	if err != nil {
		return nil, storeError(err, "list decks")
	}
	store.SortByChild(nodes, orderField)

	decks := make([]*domain.Deck, 0, len(nodes))
	for _, n := range nodes {
		deck, err := decodeDeck(n.Value)
		if err != nil {
			s.logger.Warn("skipping undecodable deck", "path", n.Path, "error", err)
			continue
		}
		decks = append(decks, deck)
	}
	return decks, nil
}

// indexDeck updates the search index. Search lags the store on failure
// until the next rebuild, which is logged but not returned.
func (s *DeckService) indexDeck(deck *domain.Deck) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexDeck(deck); err != nil {
		s.logger.Warn("failed to index published deck", "public_id", deck.ID, "error", err)
	}
}

func (s *DeckService) validateCard(card *domain.CardDetails) error {
	return s.validator.Validate(&cardInput{IngameID: card.IngameID, Name: card.Name})
}

func decodeDeck(data json.RawMessage) (*domain.Deck, error) {
	var deck domain.Deck
	if err := json.Unmarshal(data, &deck); err != nil {
		return nil, fmt.Errorf("decode deck: %w", err)
	}
	deck.EnsureMaps()
	return &deck, nil
}

func checkUserID(userID string) error {
	if !validation.IsPathKey(userID) {
		return domainerrors.Unauthorized("missing or invalid user id")
	}
	return nil
}

func checkDeckRef(userID, deckID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}
	if !validation.IsPathKey(deckID) {
		return domainerrors.Validation("invalid deck id")
	}
	return nil
}

// storeError converts store failures to domain errors.
func storeError(err error, op string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrInvalidPath):
		return domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid path")
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "not found")
	default:
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "%s failed", op)
	}
}
