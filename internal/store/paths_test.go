package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "users/u1/decks", want: "users/u1/decks"},
		{in: "/public-decks/", want: "public-decks"},
		{in: "", wantErr: true},
		{in: "users//decks", wantErr: true},
		{in: "users/a.b", wantErr: true},
		{in: "users/#1", wantErr: true},
		{in: "users/a\tb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeckPaths(t *testing.T) {
	assert.Equal(t, "users/u1/decks", UserDecksPath("u1"))
	assert.Equal(t, "users/u1/decks/d1", UserDeckPath("u1", "d1"))
	assert.Equal(t, "public-decks/p1", PublicDeckPath("p1"))
}

func TestSplit(t *testing.T) {
	parent, key := Split("users/u1/decks/d1")
	assert.Equal(t, "users/u1/decks", parent)
	assert.Equal(t, "d1", key)

	parent, key = Split("users")
	assert.Empty(t, parent)
	assert.Equal(t, "users", key)
}
