// Package id generates prefixed entity identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each persisted entity.
const (
	PrefixUser  = "usr"
	PrefixBook  = "book"
	PrefixSwap  = "swap"
	PrefixBadge = "bdg"
)

// Generate returns prefix + "-" + a 21 character NanoID,
// e.g. "book-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// NewUser returns a new user ID.
func NewUser() (string, error) { return Generate(PrefixUser) }

// NewBook returns a new book ID.
func NewBook() (string, error) { return Generate(PrefixBook) }

// NewSwap returns a new swap request ID.
func NewSwap() (string, error) { return Generate(PrefixSwap) }

// NewBadge returns a new badge ID.
func NewBadge() (string, error) { return Generate(PrefixBadge) }
