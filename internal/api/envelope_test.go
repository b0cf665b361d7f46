package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/store"
)

func marshalMap(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestEnvelopeTransformer_Success(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", map[string]string{"id": "book-1"})
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, float64(1), out["v"])
	assert.Equal(t, true, out["success"])
	assert.Equal(t, map[string]any{"id": "book-1"}, out["data"])
	assert.NotContains(t, out, "error")
	assert.NotContains(t, out, "code")
}

func TestEnvelopeTransformer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode string
		wantMsg  string
	}{
		{
			name:     "api error",
			body:     &APIError{status: http.StatusNotFound, Code: "NOT_FOUND", Message: "book not found"},
			wantCode: "NOT_FOUND",
			wantMsg:  "book not found",
		},
		{
			name:     "domain error",
			body:     domainerrors.SubscriptionRequired("subscription required"),
			wantCode: "SUBSCRIPTION_REQUIRED",
			wantMsg:  "subscription required",
		},
		{
			name:     "huma error model",
			body:     &huma.ErrorModel{Status: http.StatusUnprocessableEntity, Detail: "validation failed"},
			wantCode: "VALIDATION",
			wantMsg:  "validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, "400", tt.body)
			require.NoError(t, err)

			out := marshalMap(t, result)
			assert.Equal(t, float64(1), out["v"])
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.wantCode, out["code"])
			assert.Equal(t, tt.wantMsg, out["error"])
			assert.NotContains(t, out, "data")
		})
	}
}

func TestRegisterErrorHandler(t *testing.T) {
	RegisterErrorHandler()

	t.Run("domain error keeps status and code", func(t *testing.T) {
		se := huma.NewError(http.StatusInternalServerError, "unexpected",
			domainerrors.InvalidOperation("book is not available"))
		assert.Equal(t, http.StatusConflict, se.GetStatus())
		apiErr, ok := se.(*APIError)
		require.True(t, ok)
		assert.Equal(t, "INVALID_OPERATION", apiErr.Code)
	})

	t.Run("store not found", func(t *testing.T) {
		se := huma.NewError(http.StatusInternalServerError, "unexpected",
			errors.Join(errors.New("lookup"), store.ErrNotFound))
		assert.Equal(t, http.StatusNotFound, se.GetStatus())
	})

	t.Run("plain status", func(t *testing.T) {
		se := huma.NewError(http.StatusUnauthorized, "Authentication required")
		apiErr, ok := se.(*APIError)
		require.True(t, ok)
		assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
	})
}
