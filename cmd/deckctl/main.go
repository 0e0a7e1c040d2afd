// Package main provides deckctl, an operator tool for the deck tree.
// It opens the store directly, so the server must not be running.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
