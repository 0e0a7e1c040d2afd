package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwentdecks/decks-server/internal/domain"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) (*SearchIndex, string) {
	t.Helper()

	dir := t.TempDir()
	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return index, dir
}

func publicDeck(id, name string, faction domain.Faction, leader string, week int, cards ...string) *domain.Deck {
	var l *domain.CardDetails
	if leader != "" {
		l = &domain.CardDetails{IngameID: "leader-" + id, Name: leader, Faction: string(faction)}
	}
	deck := domain.NewDeck("src-"+id, name, string(faction), l, "user-1", "0.9")
	for _, c := range cards {
		deck.AddCard(domain.CardDetails{IngameID: c, Name: c, Faction: string(faction)})
	}
	return deck.PublishedCopy(id, week)
}

func TestNewSearchIndex(t *testing.T) {
	index, _ := setupTestIndex(t)

	assert.True(t, index.Created())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_ReopenKeepsDocuments(t *testing.T) {
	dir := t.TempDir()
	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexDeck(publicDeck("p1", "Swarm", domain.FactionMonsters, "", 1)))
	require.NoError(t, index.Close())

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	assert.False(t, reopened.Created())
	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestNewSearchIndex_VersionMismatchRecreates(t *testing.T) {
	dir := t.TempDir()
	index, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexDeck(publicDeck("p1", "Swarm", domain.FactionMonsters, "", 1)))
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "decks.bleve.version"), []byte("0"), 0o644))

	reopened, err := NewSearchIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Created())
	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexAndDelete(t *testing.T) {
	index, _ := setupTestIndex(t)

	require.NoError(t, index.IndexDecks([]*domain.Deck{
		publicDeck("p1", "Swarm", domain.FactionMonsters, "", 1),
		publicDeck("p2", "Spies", domain.FactionNilfgaard, "", 2),
	}))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	require.NoError(t, index.DeleteDeck("p1"))
	require.NoError(t, index.DeleteDeck("missing"))

	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_IndexDeck_Replaces(t *testing.T) {
	index, _ := setupTestIndex(t)

	deck := publicDeck("p1", "Swarm", domain.FactionMonsters, "", 1)
	require.NoError(t, index.IndexDeck(deck))
	deck.Name = "Consume"
	require.NoError(t, index.IndexDeck(deck))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	result, err := index.Search(context.Background(), SearchParams{Query: "consume"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "Consume", result.Hits[0].Name)
}

func TestSearchIndex_Search(t *testing.T) {
	index, _ := setupTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.IndexDecks([]*domain.Deck{
		publicDeck("p1", "Foltest Control", domain.FactionNorthernRealms, "Foltest", 3, "Blue Stripes", "Reaver Hunter"),
		publicDeck("p2", "Weather Swarm", domain.FactionMonsters, "Eredin", 1, "Frost", "Foglet"),
		publicDeck("p3", "Reaver Midrange", domain.FactionNorthernRealms, "Henselt", 2, "Reaver Hunter"),
		publicDeck("p4", "Spy Engine", domain.FactionNilfgaard, "Emhyr", 4, "Vicovaro Medic"),
	}))

	t.Run("name outranks leader", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{Query: "foltest"})
		require.NoError(t, err)
		require.NotEmpty(t, result.Hits)
		assert.Equal(t, "p1", result.Hits[0].ID)
		assert.Equal(t, "Foltest", result.Hits[0].Leader)
	})

	t.Run("card names match", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{Query: "foglet"})
		require.NoError(t, err)
		require.Len(t, result.Hits, 1)
		assert.Equal(t, "p2", result.Hits[0].ID)
	})

	t.Run("faction filter", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{
			Query:   "reaver",
			Faction: string(domain.FactionNorthernRealms),
		})
		require.NoError(t, err)
		ids := hitIDs(result)
		assert.ElementsMatch(t, []string{"p1", "p3"}, ids)
	})

	t.Run("faction only", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{Faction: string(domain.FactionNilfgaard)})
		require.NoError(t, err)
		assert.Equal(t, []string{"p4"}, hitIDs(result))
	})

	t.Run("week range sorted", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{MinWeek: 2, MaxWeek: 3, SortBy: "week", SortOrder: "asc"})
		require.NoError(t, err)
		assert.Equal(t, []string{"p3", "p1"}, hitIDs(result))
		assert.Equal(t, 2, result.Hits[0].Week)
	})

	t.Run("limit and total", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{Limit: 2, SortBy: "week"})
		require.NoError(t, err)
		assert.Equal(t, uint64(4), result.Total)
		assert.Len(t, result.Hits, 2)
	})

	t.Run("facets", func(t *testing.T) {
		result, err := index.Search(ctx, SearchParams{IncludeFacets: true})
		require.NoError(t, err)
		counts := map[string]int{}
		for _, f := range result.Facets.Factions {
			counts[f.Value] = f.Count
		}
		assert.Equal(t, 2, counts[string(domain.FactionNorthernRealms)])
		assert.Equal(t, 1, counts[string(domain.FactionMonsters)])
	})
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index, _ := setupTestIndex(t)
	require.NoError(t, index.IndexDeck(publicDeck("stale", "Old", domain.FactionSkellige, "", 1)))

	decks := []*domain.Deck{
		publicDeck("p1", "Swarm", domain.FactionMonsters, "", 1),
		publicDeck("p2", "Spies", domain.FactionNilfgaard, "", 2),
	}
	n, err := index.Rebuild(context.Background(), func(yield func(*domain.Deck, error) bool) {
		for _, d := range decks {
			if !yield(d, nil) {
				return
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestSearchIndex_Rebuild_SourceError(t *testing.T) {
	index, _ := setupTestIndex(t)
	boom := errors.New("boom")

	_, err := index.Rebuild(context.Background(), func(yield func(*domain.Deck, error) bool) {
		yield(nil, boom)
	})
	assert.ErrorIs(t, err, boom)
}

func TestDeckToDocument(t *testing.T) {
	deck := publicDeck("p1", "Swarm", domain.FactionMonsters, "Eredin", 5, "b", "a", "a")
	deck.RemoveCard("b", domain.RetainZeroCounts)

	doc := DeckToDocument(deck)

	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "Eredin", doc.Leader)
	assert.Equal(t, 5, doc.Week)
	assert.Equal(t, 2, doc.CardTotal)
	assert.Equal(t, []string{"a"}, doc.Cards)
}

func hitIDs(result *SearchResult) []string {
	ids := make([]string, 0, len(result.Hits))
	for _, h := range result.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}
