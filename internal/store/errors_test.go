package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/booksswap/booksswap-server/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := &store.Error{Code: http.StatusNotFound, Message: "not found"}
	assert.Equal(t, "not found", err.Error())
	assert.Equal(t, http.StatusNotFound, err.HTTPCode())
}

func TestError_WithCause(t *testing.T) {
	cause := errors.New("no rows")
	err := store.ErrNotFound.WithCause(cause)

	assert.Contains(t, err.Error(), "resource not found")
	assert.Contains(t, err.Error(), "no rows")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestError_SentinelsAreDistinct(t *testing.T) {
	wrapped := fmt.Errorf("update swap: %w", store.ErrConflict)

	assert.ErrorIs(t, wrapped, store.ErrConflict)
	assert.NotErrorIs(t, wrapped, store.ErrAlreadyExists)
	assert.NotErrorIs(t, wrapped, store.ErrNotFound)
}
