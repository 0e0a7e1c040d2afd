package store

import (
	"fmt"
	"strings"
)

// Roots of the deck tree.
const (
	UsersRoot       = "users"
	PublicDecksRoot = "public-decks"
	decksSegment    = "decks"
)

// Child fields the deck collections are ordered by.
const (
	DeckOrderField       = "name"
	PublicDeckOrderField = "week"
)

// UserDecksPath is the collection of a user's private decks.
func UserDecksPath(userID string) string {
	return Join(UsersRoot, userID, decksSegment)
}

// UserDeckPath is a single private deck.
func UserDeckPath(userID, deckID string) string {
	return Join(UsersRoot, userID, decksSegment, deckID)
}

// PublicDeckPath is a single published deck.
func PublicDeckPath(deckID string) string {
	return Join(PublicDecksRoot, deckID)
}

// Join joins path segments with slashes. It does not validate them.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// CleanPath validates p and strips leading and trailing slashes.
// Segments must be non-empty and free of the characters . # $ [ ] and control bytes.
func CleanPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for seg := range strings.SplitSeq(p, "/") {
		if err := validSegment(seg); err != nil {
			return "", fmt.Errorf("%w: %q: %w", ErrInvalidPath, p, err)
		}
	}
	return p, nil
}

func validSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("empty segment")
	}
	for _, r := range seg {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("control character in segment")
		}
		switch r {
		case '.', '#', '$', '[', ']':
			return fmt.Errorf("segment contains %q", r)
		}
	}
	return nil
}

// Split returns the parent path and the last segment of p.
// The parent of a top-level path is "".
func Split(p string) (parent, key string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}
