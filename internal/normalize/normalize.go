// Package normalize provides utilities for normalizing and sanitizing user input.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/gwentdecks/decks-server/internal/domain"
)

// factionAliases maps lowercased spellings seen in clients and the catalog to factions.
//
//nolint:gochecknoglobals // Static lookup table for faction normalization
var factionAliases = map[string]domain.Faction{
	"monster":         domain.FactionMonsters,
	"monsters":        domain.FactionMonsters,
	"northern realms": domain.FactionNorthernRealms,
	"northernrealms":  domain.FactionNorthernRealms,
	"northern-realms": domain.FactionNorthernRealms,
	"nr":              domain.FactionNorthernRealms,
	"scoiatael":       domain.FactionScoiatael,
	"scoia'tael":      domain.FactionScoiatael,
	"scoia’tael":      domain.FactionScoiatael,
	"st":              domain.FactionScoiatael,
	"skellige":        domain.FactionSkellige,
	"nilfgaard":       domain.FactionNilfgaard,
	"nilfgaardian":    domain.FactionNilfgaard,
	"neutral":         domain.FactionNeutral,
}

// DeckName cleans a user-supplied deck name: Unicode NFC, control characters
// dropped, whitespace runs collapsed to one space, ends trimmed.
// NFC keeps names that look identical sorting identically.
func DeckName(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Faction resolves a loosely spelled faction name to its stored form.
// Returns "" when the name is not a faction.
func Faction(raw string) string {
	key := strings.ToLower(strings.TrimSpace(norm.NFC.String(raw)))
	if f, ok := factionAliases[key]; ok {
		return string(f)
	}
	if f, ok := domain.ParseFaction(strings.TrimSpace(raw)); ok {
		return string(f)
	}
	return ""
}
