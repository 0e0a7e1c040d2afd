package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/gwentdecks/decks-server/internal/config"
	"github.com/gwentdecks/decks-server/internal/logger"
	"github.com/gwentdecks/decks-server/internal/search"
	"github.com/gwentdecks/decks-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve index of public decks.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.SearchIndexPath(),
		Logger:   log.WithComponent("search").Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "created", index.Created())

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// TriggerSearchRebuildIfNeeded reindexes every public deck in the background
// when the index was created on this start.
// Should be called after all services are wired.
func TriggerSearchRebuildIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	if !indexHandle.Created() {
		return
	}

	decks := do.MustInvoke[*service.DeckService](i)
	log := do.MustInvoke[*logger.Logger](i)

	log.Info("Search index was recreated, rebuilding from public decks")

	go func() {
		n, err := decks.RebuildSearchIndex(context.Background())
		if err != nil {
			log.Error("Search index rebuild failed", "error", err)
			return
		}
		log.Info("Search index rebuild completed", "documents", n)
	}()
}
