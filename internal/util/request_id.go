package util

import (
	"net/http"
	"strings"
)

const requestIDHeader = "X-Request-Id"

// WithRequestID propagates an incoming X-Request-Id or generates one. The id
// is echoed on the response and attached to the request logger.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = NewID()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx, _ := WithLogAttrs(r.Context(), "request_id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
