package domain

import "slices"

// Faction is one of the six fixed card alignments.
// Values are the display strings persisted in deck records.
type Faction string

// Factions in ordinal order. The ordinal is stable and used by clients that
// encode factions as integers.
const (
	FactionMonsters       Faction = "Monster"
	FactionNorthernRealms Faction = "Northern Realms"
	FactionScoiatael      Faction = "Scoiatael"
	FactionSkellige       Faction = "Skellige"
	FactionNilfgaard      Faction = "Nilfgaard"
	FactionNeutral        Faction = "Neutral"
)

// AllFactions lists every faction in ordinal order.
//
//nolint:gochecknoglobals // Static enumeration
var AllFactions = []Faction{
	FactionMonsters,
	FactionNorthernRealms,
	FactionScoiatael,
	FactionSkellige,
	FactionNilfgaard,
	FactionNeutral,
}

// ParseFaction converts a stored string to a Faction.
// Returns false for anything outside the enumeration.
func ParseFaction(s string) (Faction, bool) {
	f := Faction(s)
	if slices.Contains(AllFactions, f) {
		return f, true
	}
	return "", false
}

// FactionFromOrdinal converts an ordinal (0..5) to a Faction.
func FactionFromOrdinal(n int) (Faction, bool) {
	if n < 0 || n >= len(AllFactions) {
		return "", false
	}
	return AllFactions[n], true
}

// Ordinal returns the faction's stable integer, or -1 if the faction is unknown.
func (f Faction) Ordinal() int {
	return slices.Index(AllFactions, f)
}

// Valid reports whether f is one of the six factions.
func (f Faction) Valid() bool {
	return f.Ordinal() >= 0
}

func (f Faction) String() string {
	return string(f)
}
