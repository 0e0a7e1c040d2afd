package domain

import "maps"

// ZeroCountPolicy decides what happens to a card whose count reaches zero on removal.
type ZeroCountPolicy int

const (
	// PruneZeroCounts removes the card from both cardCount and cards.
	PruneZeroCounts ZeroCountPolicy = iota
	// RetainZeroCounts keeps the zeroed key in cardCount and nulls the snapshot in cards.
	// This matches records written by older clients.
	RetainZeroCounts
)

// Deck is the aggregate root: a named, owned set of card copies plus a leader.
// CardCount and Cards share a key set for every card with a positive count.
type Deck struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Faction   string                  `json:"faction"`
	Leader    *CardDetails            `json:"leader,omitempty"`
	Author    string                  `json:"author"`
	Patch     string                  `json:"patch"`
	CardCount map[string]int          `json:"cardCount"`
	Cards     map[string]*CardDetails `json:"cards"`

	// Set only on published copies.
	PublicDeck bool `json:"publicDeck,omitempty"`
	Week       *int `json:"week,omitempty"`
}

// NewDeck creates an empty deck.
func NewDeck(id, name, faction string, leader *CardDetails, author, patch string) *Deck {
	return &Deck{
		ID:        id,
		Name:      name,
		Faction:   faction,
		Leader:    leader,
		Author:    author,
		Patch:     patch,
		CardCount: make(map[string]int),
		Cards:     make(map[string]*CardDetails),
	}
}

// EnsureMaps allocates the card maps when a decoded record omitted them.
// Empty maps are not always persisted, so every decoded deck goes through this.
func (d *Deck) EnsureMaps() {
	if d.CardCount == nil {
		d.CardCount = make(map[string]int)
	}
	if d.Cards == nil {
		d.Cards = make(map[string]*CardDetails)
	}
}

// AddCard adds one copy of card, overwriting any stale snapshot.
func (d *Deck) AddCard(card CardDetails) {
	d.EnsureMaps()
	d.CardCount[card.IngameID]++
	c := card
	d.Cards[card.IngameID] = &c
}

// RemoveCard removes one copy of the card with the given id.
// Returns false when the deck holds no copies, in which case nothing changes.
func (d *Deck) RemoveCard(cardID string, policy ZeroCountPolicy) bool {
	d.EnsureMaps()
	count, ok := d.CardCount[cardID]
	if !ok || count <= 0 {
		return false
	}

	count--
	if count > 0 {
		d.CardCount[cardID] = count
		return true
	}

	switch policy {
	case RetainZeroCounts:
		d.CardCount[cardID] = 0
		d.Cards[cardID] = nil
	default:
		delete(d.CardCount, cardID)
		delete(d.Cards, cardID)
	}
	return true
}

// CountOf returns how many copies of a card the deck holds.
func (d *Deck) CountOf(cardID string) int {
	return d.CardCount[cardID]
}

// TotalCards returns the number of card copies in the deck, leader excluded.
func (d *Deck) TotalCards() int {
	total := 0
	for _, n := range d.CardCount {
		if n > 0 {
			total += n
		}
	}
	return total
}

// Clone returns a deep copy sharing no maps or pointers with d.
func (d *Deck) Clone() *Deck {
	out := *d
	if d.Leader != nil {
		leader := *d.Leader
		out.Leader = &leader
	}
	out.CardCount = maps.Clone(d.CardCount)
	out.Cards = make(map[string]*CardDetails, len(d.Cards))
	for id, c := range d.Cards {
		if c == nil {
			out.Cards[id] = nil
			continue
		}
		cp := *c
		out.Cards[id] = &cp
	}
	if d.Week != nil {
		w := *d.Week
		out.Week = &w
	}
	if out.CardCount == nil {
		out.CardCount = make(map[string]int)
	}
	return &out
}

// PublishedCopy returns an independent copy tagged for the public collection.
func (d *Deck) PublishedCopy(id string, week int) *Deck {
	out := d.Clone()
	out.ID = id
	out.PublicDeck = true
	out.Week = &week
	return out
}

// WeekOrZero returns the rotation week, 0 for private decks.
func (d *Deck) WeekOrZero() int {
	if d.Week == nil {
		return 0
	}
	return *d.Week
}
