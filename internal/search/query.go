package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// SearchParams configures a book search. Only available listings match.
type SearchParams struct {
	Query    string
	Postcode string
	Type     domain.BookType

	Limit  int
	Offset int

	// SortBy is "relevance" (default) or "recent".
	SortBy string

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns the defaults used by the API.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult holds matching listing IDs in rank order.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets"`
}

// SearchHit is one matching listing.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Author     string            `json:"author"`
	Postcode   string            `json:"postcode"`
	Type       string            `json:"type"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets counts matches per filter value.
type SearchFacets struct {
	Types     []FacetCount `json:"types,omitempty"`
	Postcodes []FacetCount `json:"postcodes,omitempty"`
}

// FacetCount is a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs params against the index.
func (s *BookIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)

	if params.SortBy == "recent" {
		req.SortBy([]string{"-created_at"})
	} else {
		req.SortBy([]string{"-_score", "-created_at"})
	}

	if params.IncludeFacets {
		req.AddFacet("type", bleve.NewFacetRequest("type", 2))
		req.AddFacet("postcode", bleve.NewFacetRequest("postcode", 20))
	}

	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("author")
	}

	req.Fields = []string{"title", "author", "postcode", "type"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		if v, ok := hit.Fields["author"].(string); ok {
			h.Author = v
		}
		if v, ok := hit.Fields["postcode"].(string); ok {
			h.Postcode = v
		}
		if v, ok := hit.Fields["type"].(string); ok {
			h.Type = v
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(res)
	}
	return result, nil
}

// buildSearchQuery matches title and author, with fuzzy and prefix variants
// on the title, and filters to available listings.
func buildSearchQuery(params SearchParams) query.Query {
	available := bleve.NewTermQuery(string(domain.BookAvailable))
	available.SetField("status")
	queries := []query.Query{available}

	if q := strings.TrimSpace(fold(params.Query)); q != "" {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("author")
		authorMatch.SetBoost(2.0)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")
		descMatch.SetBoost(0.5)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		text := []query.Query{titleMatch, authorMatch, descMatch, fuzzy}

		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if params.Postcode != "" {
		pq := bleve.NewTermQuery(domain.NormalizePostcode(params.Postcode))
		pq.SetField("postcode")
		queries = append(queries, pq)
	}

	if params.Type != "" {
		tq := bleve.NewTermQuery(string(params.Type))
		tq.SetField("type")
		queries = append(queries, tq)
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

func extractFacets(result *bleve.SearchResult) SearchFacets {
	var facets SearchFacets

	if f, ok := result.Facets["type"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Types = append(facets.Types, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	if f, ok := result.Facets["postcode"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Postcodes = append(facets.Postcodes, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return facets
}
