// Package di provides dependency injection configuration for the deck server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/gwentdecks/decks-server/internal/config"
	"github.com/gwentdecks/decks-server/internal/di/providers"
	"github.com/gwentdecks/decks-server/internal/logger"
	"github.com/gwentdecks/decks-server/internal/service"
	"github.com/gwentdecks/decks-server/internal/sse"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideFeedHub)
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideSSEHandler)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Card catalog
	do.Provide(injector, providers.ProvideCatalogClient)

	// Business services
	do.Provide(injector, providers.ProvideCardService)
	do.Provide(injector, providers.ProvideDeckService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.FeedHubHandle](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*sse.Handler](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.CatalogClientHandle](injector)
	_ = do.MustInvoke[*service.CardService](injector)
	_ = do.MustInvoke[*service.DeckService](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	providers.TriggerSearchRebuildIfNeeded(injector)

	return nil
}
