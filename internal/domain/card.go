package domain

// CardDetails is an immutable snapshot of a catalog card.
// Decks embed these so they can be rendered without a catalog round trip.
type CardDetails struct {
	IngameID string `json:"ingameId"`
	Name     string `json:"name"`
	Faction  string `json:"faction"`
	Patch    string `json:"patch"`

	// Optional catalog fields, kept when the catalog provides them.
	Rarity   string `json:"rarity,omitempty"`
	Group    string `json:"group,omitempty"`
	Info     string `json:"info,omitempty"`
	Strength int    `json:"strength,omitempty"`
	Href     string `json:"href,omitempty"`
}

// IsLeader reports whether the card belongs to the leader group.
func (c *CardDetails) IsLeader() bool {
	return c.Group == "Leader"
}
