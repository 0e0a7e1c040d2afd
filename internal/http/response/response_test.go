package response

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/gwentdecks/decks-server/internal/errors"
	"github.com/gwentdecks/decks-server/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	Success(w, map[string]string{"id": "d1"}, testLogger())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	body := decode(t, w)
	assert.Equal(t, float64(Version), body["v"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"id": "d1"}, body["data"])
}

func TestWrapError_Forms(t *testing.T) {
	simple := WrapError("", "boom", nil)
	assert.Equal(t, "boom", simple.Error)
	assert.Empty(t, simple.Code)

	coded := WrapError("CONFLICT", "taken", map[string]string{"id": "x"})
	assert.Empty(t, coded.Error)
	assert.Equal(t, "CONFLICT", coded.Code)
	assert.Equal(t, "taken", coded.Message)
	assert.False(t, coded.Success)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"domain", domainerrors.Forbidden("not yours"), http.StatusForbidden, "FORBIDDEN"},
		{"store", store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tt.err, testLogger())

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantCode, body["code"])
		})
	}
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequests(w, "slow down", testLogger())

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["code"])
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, domainerrors.CodeValidation, CodeForStatus(http.StatusUnprocessableEntity))
	assert.Equal(t, domainerrors.CodeUpstream, CodeForStatus(http.StatusBadGateway))
	assert.Equal(t, domainerrors.CodeInternal, CodeForStatus(http.StatusTeapot))
}
