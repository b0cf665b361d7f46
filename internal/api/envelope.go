package api

import (
	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the shared envelope.
// Error bodies become {"v":1,"success":false,"error":...,"code":...}.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case response.Envelope:
		return body, nil
	case *domainerrors.Error:
		return response.Fail(string(body.Code), body.Message, body.Details), nil
	case *APIError:
		return response.Fail(body.Code, body.Message, body.Details), nil
	case *huma.ErrorModel:
		return response.Fail(statusToCode(body.Status), body.Detail, body.Errors), nil
	default:
		return response.Ok(v), nil
	}
}
