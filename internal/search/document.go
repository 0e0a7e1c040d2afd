// Package search provides full-text search over published decks using Bleve.
package search

import (
	"slices"

	"github.com/gwentdecks/decks-server/internal/domain"
)

// DeckDocument is the indexed form of a published deck.
// Card and leader names are denormalized so a single query matches a deck
// by anything shown on its face.
type DeckDocument struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Faction string `json:"faction"`
	Author  string `json:"author"`
	Leader  string `json:"leader,omitempty"`
	Patch   string `json:"patch,omitempty"`

	Cards     []string `json:"cards,omitempty"` // Card names, one per distinct card
	CardTotal int      `json:"card_total"`
	Week      int      `json:"week"`
}

// ToMap converts the document to a map with the field names used by the mapping.
func (d *DeckDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"faction":    d.Faction,
		"author":     d.Author,
		"card_total": d.CardTotal,
		"week":       d.Week,
	}
	if d.Leader != "" {
		m["leader"] = d.Leader
	}
	if d.Patch != "" {
		m["patch"] = d.Patch
	}
	if len(d.Cards) > 0 {
		m["cards"] = d.Cards
	}
	return m
}

// DeckToDocument converts a deck to its search document.
func DeckToDocument(deck *domain.Deck) *DeckDocument {
	doc := &DeckDocument{
		ID:        deck.ID,
		Name:      deck.Name,
		Faction:   deck.Faction,
		Author:    deck.Author,
		Patch:     deck.Patch,
		CardTotal: deck.TotalCards(),
		Week:      deck.WeekOrZero(),
	}
	if deck.Leader != nil {
		doc.Leader = deck.Leader.Name
	}

	for id, card := range deck.Cards {
		if card == nil || deck.CardCount[id] <= 0 {
			continue
		}
		doc.Cards = append(doc.Cards, card.Name)
	}
	// Map order is random; a stable order keeps reindexing idempotent.
	slices.Sort(doc.Cards)

	return doc
}
