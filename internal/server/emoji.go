// ABOUTME: Passthrough proxy for the emoji lookup service
// ABOUTME: Relays status, content type, and cache policy; bodies stream through

package server

import (
	"io"
	"net/http"
	"strings"
)

const emojiCacheControl = "public, max-age=86400"

// handleEmoji forwards GET and HEAD requests under /emoji/ to the upstream
// emoji service. The client never talks to the upstream directly, so the
// proxy keeps the response surface minimal: status, Content-Type, and a
// cache policy.
func (s *Server) handleEmoji(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/emoji/")
	target := strings.TrimSuffix(s.config.Upstream.EmojiURL, "/") + "/" + rest
	if req.URL.RawQuery != "" {
		target += "?" + req.URL.RawQuery
	}

	upstream, err := http.NewRequestWithContext(req.Context(), req.Method, target, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgUnexpected)
		return
	}
	upstream.Header.Set("User-Agent", "driftsky/"+Version)
	if accept := req.Header.Get("Accept"); accept != "" {
		upstream.Header.Set("Accept", accept)
	}

	resp, err := s.emoji.Do(upstream)
	if err != nil {
		s.logger.Error("emoji proxy request failed", "target", target, "error", err)
		writeError(w, http.StatusBadGateway, msgUnexpected)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	cache := resp.Header.Get("Cache-Control")
	if cache == "" {
		cache = emojiCacheControl
	}
	w.Header().Set("Cache-Control", cache)
	w.WriteHeader(resp.StatusCode)

	if req.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug("emoji body copy interrupted", "error", err)
	}
}
