// Package main provides the entry point for the Gwent Decks server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/gwentdecks/decks-server/internal/di"
	"github.com/gwentdecks/decks-server/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// The container shuts handles down in reverse dependency order:
	// HTTP server, SSE streams, feed hub, then the search index and store.
	if err := injector.Shutdown(); err != nil {
		log.WithError(err).Fatal("Shutdown error")
	}

	log.Info("Shutdown complete")
}
