// ABOUTME: Request dispatch: CORS, API routes, static assets, and the SPA shell
// ABOUTME: GET falls through build root, then public root, then the injected shell

package server

import (
	"net/http"
	"strings"

	"github.com/tobiasmay/driftsky/internal/meta"
)

// Handler builds the root dispatcher. Order matters: CORS headers are set
// on every allowed-origin response, preflights short-circuit, exact API
// routes win over static files, and anything else a browser would GET is
// answered with the application shell.
func (s *Server) Handler() http.Handler {
	routes := map[string]http.HandlerFunc{
		"POST /chat/login":                    s.handleLogin,
		"POST /chat/resume":                   s.handleResume,
		"POST /chat/logout":                   s.handleLogout,
		"GET /chat/conversations":             s.handleListConvos,
		"GET /chat/conversation":              s.handleGetConvo,
		"GET /chat/conversation/for-members":  s.handleConvoForMembers,
		"GET /chat/conversation/availability": s.handleConvoAvailability,
		"GET /chat/messages":                  s.handleGetMessages,
		"POST /chat/message":                  s.handleSendMessage,
		"POST /chat/message/delete":           s.handleDeleteMessage,
		"POST /chat/read":                     s.handleUpdateRead,
		"POST /chat/leave":                    s.handleLeaveConvo,
		"GET /health":                         s.handleHealth,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.applyCORS(w, req)

		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if h, ok := routes[req.Method+" "+req.URL.Path]; ok {
			h(w, req)
			return
		}

		if req.Method == http.MethodGet || req.Method == http.MethodHead {
			if strings.HasPrefix(req.URL.Path, "/emoji/") {
				s.handleEmoji(w, req)
				return
			}
			if s.buildRoot.Serve(w, req, req.URL.Path) {
				return
			}
			if s.publicRoot.Serve(w, req, req.URL.Path) {
				return
			}
			s.serveShell(w, req)
			return
		}

		writeError(w, http.StatusNotFound, msgNotFound)
	})
}

// applyCORS echoes the origin back for configured origins only. Requests
// from origins outside the allow list get no CORS headers at all; the
// browser enforces the rest.
func (s *Server) applyCORS(w http.ResponseWriter, req *http.Request) {
	origin := req.Header.Get("Origin")
	if origin == "" || !s.originAllowed(origin) {
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Add("Vary", "Origin")
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// serveShell renders the SPA shell with request-specific social metadata.
// Metadata resolution never fails; on any upstream trouble the resolver
// hands back the site defaults and the shell renders regardless.
func (s *Server) serveShell(w http.ResponseWriter, req *http.Request) {
	var m meta.PageMeta
	if req.Method == http.MethodHead {
		m = s.resolver.Default(req.URL.Path)
	} else {
		m = s.resolver.Resolve(req.Context(), req.URL.Path)
	}
	body := meta.Inject(string(s.shell), m)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if req.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(body))
}
