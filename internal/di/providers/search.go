package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/booksswap/booksswap-server/internal/config"
	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/search"
	"github.com/booksswap/booksswap-server/internal/store"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.BookIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index and wires it to the
// store so listing changes are indexed as they are written.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.NewBookIndex(search.Options{
		Path:   cfg.Search.IndexPath,
		Logger: log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	storeHandle.SetSearchIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "created", index.Created())

	return &SearchIndexHandle{BookIndex: index}, nil
}

// TriggerSearchReindexIfNeeded repopulates a freshly created index from
// the store in the background.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !indexHandle.Created() {
		return
	}

	go func() {
		count, err := reindexAvailableBooks(context.Background(), storeHandle.Store, indexHandle.BookIndex)
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		log.Info("Initial search reindex completed", "books", count)
	}()
}

// reindexAvailableBooks pages through available listings and indexes them.
func reindexAvailableBooks(ctx context.Context, books store.BookStore, index *search.BookIndex) (int, error) {
	page := store.PaginationParams{Limit: 100}
	total := 0
	for {
		res, err := books.ListBooks(ctx, store.BookFilter{Status: domain.BookAvailable}, page)
		if err != nil {
			return total, fmt.Errorf("list books: %w", err)
		}
		if err := index.IndexBooks(res.Items); err != nil {
			return total, err
		}
		total += len(res.Items)
		if !res.HasMore {
			return total, nil
		}
		page.Offset += len(res.Items)
	}
}
