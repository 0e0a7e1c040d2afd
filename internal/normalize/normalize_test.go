package normalize

import "testing"

func TestDeckName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Control", "Control"},
		{"  Spaced   out\tname  ", "Spaced out name"},
		{"Null\x00byte", "Nullbyte"},
		{"line\nbreak", "line break"},
		// "e" + combining acute composes to a single rune.
		{"Cafe\u0301", "Caf\u00e9"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := DeckName(tt.input)
			if result != tt.expected {
				t.Errorf("DeckName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFaction(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Monster", "Monster"},
		{"monsters", "Monster"},
		{"Northern Realms", "Northern Realms"},
		{"northern-realms", "Northern Realms"},
		{"Scoia'tael", "Scoiatael"},
		{" SKELLIGE ", "Skellige"},
		{"Nilfgaard", "Nilfgaard"},
		{"neutral", "Neutral"},
		{"Syndicate", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := Faction(tt.input)
			if result != tt.expected {
				t.Errorf("Faction(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
