package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/gwentdecks/decks-server/internal/config"
	"github.com/gwentdecks/decks-server/internal/feed"
	"github.com/gwentdecks/decks-server/internal/logger"
	"github.com/gwentdecks/decks-server/internal/sse"
	"github.com/gwentdecks/decks-server/internal/store"
	"github.com/gwentdecks/decks-server/internal/store/sqlite"
)

// StoreHandle wraps the tree store with shutdown capability.
type StoreHandle struct {
	store.Tree
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the tree store for the configured backend.
// The change feed hub is attached afterwards by ProvideFeedHub.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	tree, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}
	return &StoreHandle{Tree: tree}, nil
}

// OpenStore opens the tree store named by cfg.Store.Backend.
func OpenStore(cfg *config.Config, log *logger.Logger) (store.Tree, error) {
	if err := os.MkdirAll(cfg.Store.DataPath, 0o750); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}

	path := cfg.StorePath()
	storeLog := log.WithComponent("store").Logger

	var (
		tree store.Tree
		err  error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		tree, err = sqlite.Open(path, storeLog)
	default:
		tree, err = store.New(path, storeLog, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	log.Info("Database initialized", "backend", cfg.Store.Backend, "path", path)
	return tree, nil
}

// FeedHubHandle wraps the change feed hub with shutdown capability.
type FeedHubHandle struct {
	*feed.Hub
}

// Shutdown implements do.Shutdownable.
func (h *FeedHubHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideFeedHub creates the change feed hub and attaches it to the store.
func ProvideFeedHub(i do.Injector) (*FeedHubHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	hub := feed.NewHub(storeHandle.Tree, log.WithComponent("feed").Logger)
	storeHandle.SetEmitter(hub)

	log.Info("Change feed hub started")
	return &FeedHubHandle{Hub: hub}, nil
}

// SSEManagerHandle wraps the SSE manager for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	hub := do.MustInvoke[*FeedHubHandle](i)

	manager := sse.NewManager(hub.Hub, log.WithComponent("sse").Logger)
	return &SSEManagerHandle{Manager: manager}, nil
}

// ProvideSSEHandler provides the SSE stream handler.
func ProvideSSEHandler(i do.Injector) (*sse.Handler, error) {
	log := do.MustInvoke[*logger.Logger](i)
	manager := do.MustInvoke[*SSEManagerHandle](i)
	return sse.NewHandler(manager.Manager, log.WithComponent("sse").Logger), nil
}
