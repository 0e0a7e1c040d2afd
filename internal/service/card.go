package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gwentdecks/decks-server/internal/catalog"
	"github.com/gwentdecks/decks-server/internal/domain"
	domainerrors "github.com/gwentdecks/decks-server/internal/errors"
)

// CardCatalog is the card catalog the service reads from.
type CardCatalog interface {
	GetCard(ctx context.Context, id string) (*domain.CardDetails, error)
	ListCards(ctx context.Context, page catalog.Page) ([]catalog.CardStub, error)
	ListLeaders(ctx context.Context, page catalog.Page) ([]catalog.CardStub, error)
	ListByFaction(ctx context.Context, faction string, page catalog.Page) ([]catalog.CardStub, error)
	ListByRarity(ctx context.Context, rarity string, page catalog.Page) ([]catalog.CardStub, error)
}

// CardFilter selects which list endpoint to query. At most one filter may be set.
type CardFilter struct {
	Faction string
	Rarity  string
	Leader  bool
	Page    catalog.Page
}

// CardService proxies the card catalog and converts its failures to domain errors.
type CardService struct {
	catalog CardCatalog
	logger  *slog.Logger
}

// NewCardService creates a new card service.
func NewCardService(c CardCatalog, logger *slog.Logger) *CardService {
	return &CardService{catalog: c, logger: logger}
}

// GetCard fetches one card.
func (s *CardService) GetCard(ctx context.Context, id string) (*domain.CardDetails, error) {
	card, err := s.catalog.GetCard(ctx, id)
	if err != nil {
		return nil, s.catalogError(err, "get card")
	}
	return card, nil
}

// ListCards lists catalog cards matching filter.
func (s *CardService) ListCards(ctx context.Context, filter CardFilter) ([]catalog.CardStub, error) {
	set := 0
	for _, on := range []bool{filter.Faction != "", filter.Rarity != "", filter.Leader} {
		if on {
			set++
		}
	}
	if set > 1 {
		return nil, domainerrors.Validation("faction, rarity and leader filters are exclusive")
	}

	var (
		stubs []catalog.CardStub
		err   error
	)
	switch {
	case filter.Faction != "":
		stubs, err = s.catalog.ListByFaction(ctx, filter.Faction, filter.Page)
	case filter.Rarity != "":
		stubs, err = s.catalog.ListByRarity(ctx, filter.Rarity, filter.Page)
	case filter.Leader:
		stubs, err = s.catalog.ListLeaders(ctx, filter.Page)
	default:
		stubs, err = s.catalog.ListCards(ctx, filter.Page)
	}
	if err != nil {
		return nil, s.catalogError(err, "list cards")
	}
	return stubs, nil
}

// catalogError maps catalog failures onto domain codes. The raw body of a
// catalog error response travels as the error details.
func (s *CardService) catalogError(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var details any
	var apiErr *catalog.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		details = map[string]string{"catalog_response": apiErr.Body}
	}

	var out *domainerrors.Error
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		out = domainerrors.Wrap(err, domainerrors.CodeNotFound, "card not found")
	case errors.Is(err, catalog.ErrBadRequest):
		out = domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid card request")
	case errors.Is(err, catalog.ErrRateLimited):
		out = domainerrors.Wrap(err, domainerrors.CodeRateLimited, "card catalog rate limited")
	default:
		s.logger.Warn("card catalog request failed", "op", op, "error", err)
		out = domainerrors.Wrap(err, domainerrors.CodeUpstream, "card catalog unavailable")
	}
	if details != nil {
		out = out.WithDetails(details)
	}
	return out
}
