package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/cartstore/pkg/errors"
	"github.com/utafrali/cartstore/pkg/logger"
	"github.com/utafrali/cartstore/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// --- WriteJSON ---

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: map[string]string{"total": "25.50"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"total":"25.50"}}`, rec.Body.String())
}

func TestWriteData_OmitsError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusOK, "ok")

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	_, hasError := raw["error"]
	assert.False(t, hasError)
	assert.JSONEq(t, `"ok"`, string(raw["data"]))
}

// --- WriteError ---

func TestWriteError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"app not found", apperrors.NotFound("cart entry", "Widget"), http.StatusNotFound, "NOT_FOUND"},
		{"app conflict", apperrors.Conflict("cart changed concurrently"), http.StatusConflict, "CONFLICT"},
		{"limit exceeded", apperrors.LimitExceeded("too many entries"), http.StatusUnprocessableEntity, "LIMIT_EXCEEDED"},
		{"not implemented", apperrors.NotImplemented("checkout"), http.StatusNotImplemented, "NOT_IMPLEMENTED"},
		{"wrapped app error", fmt.Errorf("service: %w", apperrors.InvalidInput("bad")), http.StatusBadRequest, "INVALID_INPUT"},
		{"sentinel not found", apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"sentinel invalid", apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{"sentinel conflict", apperrors.ErrConflict, http.StatusConflict, "CONFLICT"},
		{"unknown", fmt.Errorf("something unexpected"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"wrapped unknown", fmt.Errorf("get cart: %w", fmt.Errorf("redis: timeout")), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)

			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestWriteError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)

	WriteError(rec, req, fmt.Errorf("get cart: %w", fmt.Errorf("redis: secret host")), testLogger())

	resp := decode(t, rec)
	assert.Equal(t, "an internal error occurred", resp.Error.Message)
	assert.NotContains(t, resp.Error.Message, "secret")
}

func TestWriteError_RequestID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-123")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil).WithContext(ctx)
	WriteError(rec, req, apperrors.NotFound("cart entry", "Widget"), testLogger())
	assert.Equal(t, "corr-123", decode(t, rec).Error.RequestID)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	WriteError(rec, req, apperrors.ErrNotFound, testLogger())

	var raw map[string]map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	_, hasRequestID := raw["error"]["request_id"]
	assert.False(t, hasRequestID)
}

// --- WriteValidationError ---

func TestWriteValidationError(t *testing.T) {
	type req struct {
		Name string `json:"name" validate:"required"`
	}
	valErr := validator.Validate(req{})
	require.Error(t, valErr)

	rec := httptest.NewRecorder()
	WriteValidationError(rec, valErr)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "is required", resp.Error.Fields["name"])
}

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, fmt.Errorf("invalid JSON body"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Equal(t, "invalid JSON body", resp.Error.Message)
}

// --- PathParam ---

func TestPathParam(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"plain", "/items/Widget", "Widget", false},
		{"escaped space", "/items/Blue%20Mug", "Blue Mug", false},
		{"escaped slash", "/items/A%2FB", "A/B", false},
		{"escaped percent", "/items/100%25%20Cotton", "100% Cotton", false},
		{"percent is not decoded twice", "/items/a%2541", "a%41", false},
		{"escaped slash and percent", "/items/A%2FB%25", "A/B%", false},
		{"blank", "/items/%20", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				got string
				err error
			)
			r := chi.NewRouter()
			r.Get("/items/{name}", func(w http.ResponseWriter, r *http.Request) {
				got, err = PathParam(r, "name")
			})
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
