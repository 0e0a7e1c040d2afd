package providers

import (
	"github.com/samber/do/v2"

	"github.com/gwentdecks/decks-server/internal/catalog"
	"github.com/gwentdecks/decks-server/internal/config"
	"github.com/gwentdecks/decks-server/internal/domain"
	"github.com/gwentdecks/decks-server/internal/logger"
	"github.com/gwentdecks/decks-server/internal/service"
)

// CatalogClientHandle wraps the card catalog client with shutdown capability.
type CatalogClientHandle struct {
	*catalog.Client
}

// ProvideCatalogClient provides the rate-limited card catalog client.
func ProvideCatalogClient(i do.Injector) (*CatalogClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := catalog.New(catalog.Config{
		BaseURL:           cfg.Catalog.BaseURL,
		RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
		Burst:             cfg.Catalog.Burst,
		Timeout:           cfg.Catalog.Timeout,
	}, log.WithComponent("catalog").Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Card catalog client configured", "base_url", cfg.Catalog.BaseURL)
	return &CatalogClientHandle{Client: client}, nil
}

// ProvideCardService provides the card catalog service.
func ProvideCardService(i do.Injector) (*service.CardService, error) {
	client := do.MustInvoke[*CatalogClientHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewCardService(client.Client, log.WithComponent("cards").Logger), nil
}

// ProvideDeckService provides the deck service.
func ProvideDeckService(i do.Injector) (*service.DeckService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	cards := do.MustInvoke[*service.CardService](i)

	zeroCounts := domain.PruneZeroCounts
	if cfg.Decks.LegacyZeroCounts {
		zeroCounts = domain.RetainZeroCounts
	}

	return service.NewDeckService(
		storeHandle.Tree,
		indexHandle.SearchIndex,
		cards,
		service.DeckServiceOptions{
			MaxTxnAttempts: cfg.Store.MaxTxnAttempts,
			ZeroCounts:     zeroCounts,
		},
		log.WithComponent("decks").Logger,
	), nil
}
