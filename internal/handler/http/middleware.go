package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/cartstore/pkg/errors"
	"github.com/utafrali/cartstore/pkg/httputil"
	"github.com/utafrali/cartstore/pkg/logger"
	"github.com/utafrali/cartstore/pkg/middleware"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// RequireSession reads the X-Session-ID header issued by POST /api/v1/sessions
// and stores it in the request context. A missing header is rejected with 401
// and a value that is not a UUID with 400.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(middleware.SessionIDHeader))
		if raw == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized(middleware.SessionIDHeader+" header is required"), nil)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput(middleware.SessionIDHeader+" must be a valid UUID"), nil)
			return
		}

		sid := id.String()
		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		ctx = logger.WithSessionID(ctx, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
