package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/gwentdecks/decks-server/internal/api"
	"github.com/gwentdecks/decks-server/internal/config"
	"github.com/gwentdecks/decks-server/internal/logger"
	"github.com/gwentdecks/decks-server/internal/service"
	"github.com/gwentdecks/decks-server/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	_ = h.api.Shutdown()
	return err
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	sseHandler := do.MustInvoke[*sse.Handler](i)

	services := &api.Services{
		Decks: do.MustInvoke[*service.DeckService](i),
		Cards: do.MustInvoke[*service.CardService](i),
	}

	apiServer := api.NewServer(
		storeHandle.Tree,
		services,
		indexHandle.SearchIndex,
		sseHandle.Manager,
		sseHandler,
		api.Options{
			CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
			RateLimitRPS:       cfg.Server.RateLimitRPS,
			RateLimitBurst:     cfg.Server.RateLimitBurst,
		},
		log.WithComponent("api").Logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, api: apiServer}, nil
}
