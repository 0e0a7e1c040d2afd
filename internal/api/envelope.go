package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/gwentdecks/decks-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the versioned envelope.
// Errors produced by the registered error handler keep their code and details;
// an APIError without a code is rendered in the simple {error} form.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return response.WrapError(body.Code, body.Message, body.Details), nil
	case *huma.ErrorModel:
		code := response.CodeForStatus(body.Status)
		return response.WrapError(string(code), body.Detail, body.Errors), nil
	case response.Envelope, response.ErrorEnvelope:
		return body, nil
	default:
		return response.Wrap(v), nil
	}
}
