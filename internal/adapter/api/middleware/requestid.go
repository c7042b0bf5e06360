package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id for a request.
const RequestIDHeader = "X-Request-ID"

// RequestID is a middleware factory that assigns a correlation id to every
// request that does not already carry one. The id is echoed on the response
// so clients can quote it when reporting problems.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)

			next.ServeHTTP(w, r)
		})
	}
}
