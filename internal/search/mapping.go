package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for deck documents.
//
// Deck and card names get English stemming. Faction, author and patch are
// keywords so they filter and facet exactly. Week and card total are numeric
// for range filters and sorting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields ---

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting

	// Unstemmed copy of the name for sorting
	nameSortMapping := bleve.NewTextFieldMapping()
	nameSortMapping.Name = "name_sort"
	nameSortMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("name", nameFieldMapping, nameSortMapping)

	leaderFieldMapping := bleve.NewTextFieldMapping()
	leaderFieldMapping.Analyzer = simple.Name
	leaderFieldMapping.Store = true
	leaderFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("leader", leaderFieldMapping)

	cardsFieldMapping := bleve.NewTextFieldMapping()
	cardsFieldMapping.Analyzer = simple.Name
	cardsFieldMapping.Store = false
	cardsFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("cards", cardsFieldMapping)

	// --- Keyword fields ---

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	factionFieldMapping := bleve.NewTextFieldMapping()
	factionFieldMapping.Analyzer = keyword.Name
	factionFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("faction", factionFieldMapping)

	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = keyword.Name
	authorFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	patchFieldMapping := bleve.NewTextFieldMapping()
	patchFieldMapping.Analyzer = keyword.Name
	patchFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("patch", patchFieldMapping)

	// --- Numeric fields ---

	weekFieldMapping := bleve.NewNumericFieldMapping()
	weekFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("week", weekFieldMapping)

	totalFieldMapping := bleve.NewNumericFieldMapping()
	totalFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("card_total", totalFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
