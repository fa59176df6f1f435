// ABOUTME: JSON response helpers and upstream error mapping for HTTP handlers
// ABOUTME: All error bodies are {"error": string}; causes never leak to clients

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tobiasmay/driftsky/internal/bsky"
)

// Client-facing error messages
const (
	msgSessionNotFound = "Chat session not found."
	msgSessionExpired  = "Chat session expired."
	msgRateLimited     = "Rate limit exceeded."
	msgNotFound        = "Not found."
	msgUnexpected      = "Something went wrong."
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a {"error": message} body with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeRaw relays an upstream JSON payload untouched.
func writeRaw(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// upstreamStatus maps a tagged upstream error onto the status code and
// message we expose. A proxied auth failure is reported as an expired
// session, distinct from the missing-session 401.
func upstreamStatus(err error) (int, string) {
	switch bsky.KindOf(err) {
	case bsky.KindAuth:
		return http.StatusUnauthorized, msgSessionExpired
	case bsky.KindRateLimited:
		return http.StatusTooManyRequests, msgRateLimited
	case bsky.KindValidation:
		var e *bsky.Error
		if errors.As(err, &e) && e.Message != "" {
			return http.StatusBadRequest, e.Message
		}
		return http.StatusBadRequest, "Invalid request."
	case bsky.KindNotFound:
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgUnexpected
	}
}
