package requestctx

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// This package carries the per-request ID from the HTTP edge to the handlers,
// the service and the usage ledger.

// contextKey is a private type to avoid key collisions in the context.
type contextKey string

// RequestIDKey is the context key for the request ID.
const RequestIDKey = contextKey("request_id")

// Header is the HTTP header the request ID is read from and echoed in.
const Header = "X-Request-ID"

// SetRequestID returns a new request with the ID added to its context.
func SetRequestID(r *http.Request, id string) *http.Request {
	return r.WithContext(WithRequestID(r.Context(), id))
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID retrieves the request ID from the context, or "" if the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Middleware assigns every request an ID. A valid UUID supplied by the caller
// in X-Request-ID is kept; anything else is replaced with a fresh one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(Header, id)
		next.ServeHTTP(w, SetRequestID(r, id))
	})
}
