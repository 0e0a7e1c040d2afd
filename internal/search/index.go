package search

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/gwentdecks/decks-server/internal/domain"
)

// SearchIndex wraps a Bleve index of published decks.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index corruption during rebuild operations.
type SearchIndex struct {
	index   bleve.Index
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	created bool
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses discard if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// This triggers an automatic rebuild on startup when the version doesn't match.
const mappingVersion = "1"

const batchSize = 500

// NewSearchIndex creates or opens a search index.
// An existing index with a missing or outdated mapping version, or one that
// fails to open, is removed and recreated. Created reports whether that
// happened so the caller can reindex from the store.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create search directory: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "decks.bleve")
	versionPath := filepath.Join(opts.DataPath, "decks.bleve.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("search index has no version file, will rebuild with current mapping",
				"new_version", mappingVersion,
			)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	created := false
	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		created = true
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{
		index:   index,
		path:    indexPath,
		logger:  logger,
		created: created,
	}, nil
}

// Created reports whether the index was created empty when opened.
func (s *SearchIndex) Created() bool {
	return s.created
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Shutdown implements do.Shutdowner.
func (s *SearchIndex) Shutdown() error {
	return s.Close()
}

// IndexDeck indexes or replaces one published deck.
func (s *SearchIndex) IndexDeck(deck *domain.Deck) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := DeckToDocument(deck)
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexDecks indexes decks in batches.
func (s *SearchIndex) IndexDecks(decks []*domain.Deck) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexBatches(func(yield func(*domain.Deck, error) bool) {
		for _, d := range decks {
			if !yield(d, nil) {
				return
			}
		}
	})
}

// DeleteDeck removes a deck from the index. Deleting an unknown id is not an error.
func (s *SearchIndex) DeleteDeck(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the total number of indexed decks.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and refills it from decks.
//
// This holds the exclusive lock for the whole reindex, so searches block
// until it returns.
func (s *SearchIndex) Rebuild(ctx context.Context, decks iter.Seq2[*domain.Deck, error]) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return 0, fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return 0, fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("create index: %w", err)
	}
	s.index = index

	count := 0
	counted := func(yield func(*domain.Deck, error) bool) {
		for d, err := range decks {
			if err == nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				} else {
					count++
				}
			}
			if !yield(d, err) {
				return
			}
		}
	}
	if err := s.indexBatches(counted); err != nil {
		return 0, err
	}

	s.logger.Info("rebuilt search index", "path", s.path, "decks", count)
	return count, nil
}

// indexBatches commits decks in chunks of batchSize. Callers hold mu.
func (s *SearchIndex) indexBatches(decks iter.Seq2[*domain.Deck, error]) error {
	batch := s.index.NewBatch()
	for d, err := range decks {
		if err != nil {
			return fmt.Errorf("read deck: %w", err)
		}
		doc := DeckToDocument(d)
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := s.index.Batch(batch); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
	}
	return nil
}
