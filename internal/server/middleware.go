package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"

	"github.com/prateekshukla17/XenCRM-Backend/internal/logging"
	"github.com/prateekshukla17/XenCRM-Backend/internal/security"
)

// requestID tags every request with an id carried in the context logger and
// echoed back to the caller.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// apiKeyAuth validates the X-Api-Key header against the configured key.
// Comparison runs over hashes so key length never leaks.
func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if key == "" {
			errorJSON(w, http.StatusUnauthorized, "missing API key")
			return
		}
		hash := security.HashKey(key)
		if subtle.ConstantTimeCompare([]byte(hash), []byte(s.apiKeyHash)) != 1 {
			errorJSON(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
