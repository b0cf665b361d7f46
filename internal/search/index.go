package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// BookIndex wraps a Bleve index of listings.
//
// All public methods are safe for concurrent use. The mutex only excludes
// Rebuild from everything else.
type BookIndex struct {
	index   bleve.Index
	path    string
	logger  *slog.Logger
	created bool
	mu      sync.RWMutex
}

// Options configures the search index.
type Options struct {
	// Path is the index directory. A sibling "<Path>.version" file records
	// the mapping version.
	Path   string
	Logger *slog.Logger
}

// mappingVersion is bumped whenever the mapping changes, forcing a rebuild
// on the next start.
const mappingVersion = "1"

// NewBookIndex opens the index at opts.Path, recreating it when it is
// missing, unreadable or built with an older mapping.
func NewBookIndex(opts Options) (*BookIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := opts.Path
	versionPath := opts.Path + ".version"

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
			logger.Info("search index has no version file, will rebuild", "new_version", mappingVersion)
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
			logger.Warn("failed to open existing index, will recreate", "path", indexPath, "error", err)
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

	return &BookIndex{
		index:   index,
		path:    indexPath,
		logger:  logger,
		created: created,
	}, nil
}

// Created reports whether the index was freshly created and needs to be
// populated from the store.
func (s *BookIndex) Created() bool {
	return s.created
}

// Close closes the index.
func (s *BookIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// Shutdown lets the DI container close the index.
func (s *BookIndex) Shutdown() error {
	return s.Close()
}

// IndexBook adds or replaces a listing. Deleted listings are removed.
func (s *BookIndex) IndexBook(_ context.Context, book *domain.Book) error {
	if book.IsDeleted() {
		return s.DeleteBook(context.Background(), book.ID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(book.ID, BookToDocument(book).ToMap())
}

// IndexBooks indexes listings in batches of 500.
func (s *BookIndex) IndexBooks(books []*domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(books); i += batchSize {
		end := min(i+batchSize, len(books))

		batch := s.index.NewBatch()
		for _, book := range books[i:end] {
			if book.IsDeleted() {
				batch.Delete(book.ID)
				continue
			}
			if err := batch.Index(book.ID, BookToDocument(book).ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", book.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteBook removes a listing.
func (s *BookIndex) DeleteBook(_ context.Context, bookID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(bookID)
}

// DocumentCount returns the number of indexed listings.
func (s *BookIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and creates an empty one. It blocks every other
// operation while it runs.
func (s *BookIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}
