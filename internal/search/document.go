// Package search provides full-text search over book listings using Bleve.
// Only the fields needed to find and filter a listing are indexed; the entity
// store remains the source of truth.
package search

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/booksswap/booksswap-server/internal/domain"
)

// BookDocument is the indexed form of a listing.
type BookDocument struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn,omitempty"`
	Description string `json:"description,omitempty"`

	// Keyword fields for filtering.
	Postcode  string `json:"postcode"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Condition string `json:"condition"`

	CreatedAt int64 `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *BookDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"author":     d.Author,
		"postcode":   d.Postcode,
		"status":     d.Status,
		"type":       d.Type,
		"condition":  d.Condition,
		"created_at": d.CreatedAt,
	}
	if d.ISBN != "" {
		m["isbn"] = d.ISBN
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	return m
}

// BookToDocument converts a listing to its index document. Text is NFKC
// folded so composed and decomposed accents match.
func BookToDocument(book *domain.Book) *BookDocument {
	return &BookDocument{
		ID:          book.ID,
		Title:       fold(book.Title),
		Author:      fold(book.Author),
		ISBN:        strings.ReplaceAll(book.ISBN, "-", ""),
		Description: fold(book.Description),
		Postcode:    domain.NormalizePostcode(book.Postcode),
		Status:      string(book.Status),
		Type:        string(book.Type),
		Condition:   string(book.Condition),
		CreatedAt:   book.CreatedAt.UnixMilli(),
	}
}

func fold(s string) string {
	return norm.NFKC.String(s)
}
