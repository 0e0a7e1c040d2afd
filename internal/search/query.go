package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// SearchParams configures a search query.
type SearchParams struct {
	Query   string // User's search query
	Faction string // Exact faction filter (stored form)
	Author  string // Exact author filter

	// Week range, inclusive. MaxWeek 0 means unbounded.
	MinWeek int
	MaxWeek int

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "name", "week"
	SortOrder string // "asc", "desc"

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         defaultLimit,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit is a single matching deck.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	Faction    string            `json:"faction"`
	Author     string            `json:"author,omitempty"`
	Leader     string            `json:"leader,omitempty"`
	Week       int               `json:"week"`
	CardTotal  int               `json:"card_total"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Factions []FacetCount `json:"factions,omitempty"`
	Patches  []FacetCount `json:"patches,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = defaultLimit
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("faction", bleve.NewFacetRequest("faction", 6))
		searchRequest.AddFacet("patch", bleve.NewFacetRequest("patch", 10))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("leader")
		searchRequest.Highlight.AddField("cards")
	}

	searchRequest.Fields = []string{"name", "faction", "author", "leader", "week", "card_total"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		if v, ok := hit.Fields["name"].(string); ok {
			h.Name = v
		}
		if v, ok := hit.Fields["faction"].(string); ok {
			h.Faction = v
		}
		if v, ok := hit.Fields["author"].(string); ok {
			h.Author = v
		}
		if v, ok := hit.Fields["leader"].(string); ok {
			h.Leader = v
		}
		if v, ok := hit.Fields["week"].(float64); ok {
			h.Week = int(v)
		}
		if v, ok := hit.Fields["card_total"].(float64); ok {
			h.CardTotal = int(v)
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	// Deck names rank above leader and card matches, so "Foltest" finds decks
	// named for him before every deck that merely runs him as leader.
	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		leaderMatch := bleve.NewMatchQuery(q)
		leaderMatch.SetField("leader")
		leaderMatch.SetBoost(2.0)

		cardsMatch := bleve.NewMatchQuery(q)
		cardsMatch.SetField("cards")

		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, leaderMatch, cardsMatch, fuzzyQuery}

		// Prefix query for autocomplete (minimum 2 chars)
		if len(q) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if params.Faction != "" {
		fq := bleve.NewTermQuery(params.Faction)
		fq.SetField("faction")
		queries = append(queries, fq)
	}

	if params.Author != "" {
		aq := bleve.NewTermQuery(params.Author)
		aq.SetField("author")
		queries = append(queries, aq)
	}

	if params.MinWeek > 0 || params.MaxWeek > 0 {
		minWeek := float64(params.MinWeek)
		var maxWeek *float64
		if params.MaxWeek > 0 {
			m := float64(params.MaxWeek)
			maxWeek = &m
		}
		inclusive := true
		rangeQuery := bleve.NewNumericRangeInclusiveQuery(&minWeek, maxWeek, &inclusive, &inclusive)
		rangeQuery.SetField("week")
		queries = append(queries, rangeQuery)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case "name":
		if desc {
			req.SortBy([]string{"-name_sort", "_id"})
		} else {
			req.SortBy([]string{"name_sort", "_id"})
		}
	case "week":
		if desc {
			req.SortBy([]string{"-week", "_id"})
		} else {
			req.SortBy([]string{"week", "_id"})
		}
	default:
		req.SortBy([]string{"-_score", "_id"})
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	facets := SearchFacets{}

	if f, ok := result.Facets["faction"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Factions = append(facets.Factions, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	if f, ok := result.Facets["patch"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Patches = append(facets.Patches, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return facets
}
