package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/search"
	"github.com/booksswap/booksswap-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/books",
		Summary:     "List available books",
		Description: "Lists available books, newest first, optionally filtered by postcode and type",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          apiPrefix + "/books",
		Summary:       "List a book",
		Description:   "Creates a listing. Requires an active or trialing subscription.",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyBooks",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/books/mine",
		Summary:     "List my books",
		Description: "Lists the caller's listings in every status",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMyBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/books/search",
		Summary:     "Search books",
		Description: "Full-text search over available books by title, author, description and ISBN",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/books/{id}",
		Summary:     "Get book",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBook",
		Method:        http.MethodDelete,
		Path:          apiPrefix + "/books/{id}",
		Summary:       "Delete book",
		Description:   "Removes an available listing owned by the caller",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteBook)
}

// === DTOs ===

// BookResponse is a listing in API responses.
type BookResponse struct {
	ID          string    `json:"id" doc:"Book ID"`
	Title       string    `json:"title" doc:"Title"`
	Author      string    `json:"author" doc:"Author"`
	ISBN        string    `json:"isbn,omitempty" doc:"ISBN"`
	Image       string    `json:"image,omitempty" doc:"Cover image URL"`
	Description string    `json:"description,omitempty" doc:"Description"`
	Condition   string    `json:"condition" doc:"like-new, good, fair or poor"`
	Type        string    `json:"type" doc:"adult or children"`
	Status      string    `json:"status" doc:"available, pending or swapped"`
	OwnerID     string    `json:"owner_id" doc:"Owner user ID"`
	OwnerName   string    `json:"owner_name" doc:"Owner name at listing time"`
	Postcode    string    `json:"postcode" doc:"Owner postcode at listing time"`
	CreatedAt   time.Time `json:"created_at" doc:"Listing time"`
}

// ListBooksInput filters the public listing.
type ListBooksInput struct {
	Postcode string `query:"postcode" doc:"Postcode filter"`
	Type     string `query:"type" enum:"adult,children" doc:"Type filter"`
	Limit    int    `query:"limit" minimum:"0" maximum:"100" doc:"Page size, default 20"`
	Offset   int    `query:"offset" minimum:"0" doc:"Items to skip"`
}

// BookListResponse is a page of listings.
type BookListResponse struct {
	Books   []BookResponse `json:"books" doc:"Listings"`
	Total   int            `json:"total" doc:"Total matching listings"`
	HasMore bool           `json:"has_more" doc:"Whether more pages exist"`
}

// BookListOutput wraps a book page for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// CreateBookInput wraps a new listing for Huma.
type CreateBookInput struct {
	Body struct {
		Title       string `json:"title" doc:"Title"`
		Author      string `json:"author" doc:"Author"`
		ISBN        string `json:"isbn,omitempty" doc:"ISBN"`
		Image       string `json:"image,omitempty" doc:"Cover image URL"`
		Description string `json:"description,omitempty" doc:"Description"`
		Condition   string `json:"condition,omitempty" doc:"like-new, good, fair or poor; default good"`
		Type        string `json:"type,omitempty" doc:"adult or children; default adult"`
	}
}

// CreateBookOutput returns the listing and any newly earned badges.
type CreateBookOutput struct {
	Body struct {
		Book      BookResponse `json:"book" doc:"The new listing"`
		NewBadges []string     `json:"new_badges" doc:"Badges earned by this listing"`
	}
}

// BookIDInput selects a book by path.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body BookResponse
}

// MyBooksOutput wraps the caller's listings for Huma.
type MyBooksOutput struct {
	Body struct {
		Books []BookResponse `json:"books" doc:"Caller's listings, newest first"`
	}
}

// SearchBooksInput holds search query parameters.
type SearchBooksInput struct {
	Query    string `query:"q" doc:"Search text"`
	Postcode string `query:"postcode" doc:"Postcode filter"`
	Type     string `query:"type" enum:"adult,children" doc:"Type filter"`
	Sort     string `query:"sort" enum:"relevance,recent" doc:"Result order, default relevance"`
	Limit    int    `query:"limit" minimum:"0" maximum:"100" doc:"Page size, default 20"`
	Offset   int    `query:"offset" minimum:"0" doc:"Items to skip"`
}

// SearchBooksOutput wraps search results for Huma.
type SearchBooksOutput struct {
	Body struct {
		Books  []BookResponse      `json:"books" doc:"Matching available listings"`
		Total  int                 `json:"total" doc:"Total matches"`
		Facets search.SearchFacets `json:"facets" doc:"Counts by type and postcode"`
	}
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*BookListOutput, error) {
	page, err := s.services.Book.ListAvailable(ctx, service.ListBooksParams{
		Postcode: input.Postcode,
		Type:     domain.BookType(input.Type),
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: BookListResponse{
		Books:   mapBooks(page.Items),
		Total:   page.Total,
		HasMore: page.HasMore,
	}}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*CreateBookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Book.Create(ctx, userID, service.CreateBookRequest{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		ISBN:        input.Body.ISBN,
		Image:       input.Body.Image,
		Description: input.Body.Description,
		Condition:   domain.BookCondition(input.Body.Condition),
		Type:        domain.BookType(input.Body.Type),
	})
	if err != nil {
		return nil, err
	}

	out := &CreateBookOutput{}
	out.Body.Book = mapBook(res.Book)
	out.Body.NewBadges = nonNil(res.NewBadges)
	return out, nil
}

func (s *Server) handleListMyBooks(ctx context.Context, _ *struct{}) (*MyBooksOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	books, err := s.services.Book.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &MyBooksOutput{}
	out.Body.Books = mapBooks(books)
	return out, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.Postcode = input.Postcode
	params.Type = domain.BookType(input.Type)
	params.Limit = input.Limit
	params.Offset = input.Offset
	params.Highlight = false
	if input.Sort != "" {
		params.SortBy = input.Sort
	}

	res, err := s.services.Book.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &SearchBooksOutput{}
	out.Body.Books = mapBooks(res.Books)
	out.Body.Total = res.Total
	out.Body.Facets = res.Facets
	return out, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	book, err := s.services.Book.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBook(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Book.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func mapBook(b *domain.Book) BookResponse {
	return BookResponse{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		ISBN:        b.ISBN,
		Image:       b.Image,
		Description: b.Description,
		Condition:   string(b.Condition),
		Type:        string(b.Type),
		Status:      string(b.Status),
		OwnerID:     b.OwnerID,
		OwnerName:   b.OwnerName,
		Postcode:    b.Postcode,
		CreatedAt:   b.CreatedAt,
	}
}

func mapBooks(books []*domain.Book) []BookResponse {
	out := make([]BookResponse, len(books))
	for i, b := range books {
		out[i] = mapBook(b)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
