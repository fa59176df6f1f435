// ABOUTME: HTTP handlers for chat session lifecycle and messaging proxy routes
// ABOUTME: Every messaging route requires a session cookie and relays upstream JSON

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/tobiasmay/driftsky/internal/bsky"
	"github.com/tobiasmay/driftsky/internal/session"
)

const msgInvalidCredentials = "Invalid identifier or password."

// decodeBody decodes a JSON request body into v. An empty body is treated
// as an empty object so handlers validate fields, not framing.
func decodeBody(req *http.Request, v any) error {
	defer req.Body.Close()
	if err := json.NewDecoder(req.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// requireSession resolves the request's session cookie into a live record.
// Writes the 401 response itself when no usable session exists.
func (s *Server) requireSession(w http.ResponseWriter, req *http.Request) (*session.Record, bool) {
	token := session.TokenFromRequest(req)
	if token == "" {
		writeError(w, http.StatusUnauthorized, msgSessionNotFound)
		return nil, false
	}
	rec, err := s.store.Get(req.Context(), token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, msgSessionNotFound)
		} else {
			s.logger.Error("session lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, msgUnexpected)
		}
		return nil, false
	}
	return rec, true
}

// relay writes the upstream payload or maps the upstream error. An auth
// failure from the proxied service means the stored credentials are dead:
// the local session is destroyed and the cookie cleared before the 401.
func (s *Server) relay(w http.ResponseWriter, req *http.Request, rec *session.Record, payload json.RawMessage, err error) {
	if err == nil {
		writeRaw(w, payload)
		return
	}
	if bsky.IsAuth(err) {
		if delErr := s.store.Delete(req.Context(), rec.Token); delErr != nil {
			s.logger.Error("destroying expired session failed", "error", delErr)
		}
		http.SetCookie(w, session.ExpiredCookie(s.config.Cookie.Domain, s.config.Server.Production))
		writeError(w, http.StatusUnauthorized, msgSessionExpired)
		return
	}
	status, msg := upstreamStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("upstream chat call failed", "path", req.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.Identifier == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "identifier and password are required.")
		return
	}

	client, err := bsky.Login(req.Context(), s.config.Upstream.ServiceURL, body.Identifier, body.Password)
	if err != nil {
		switch {
		case bsky.IsAuth(err):
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		case bsky.IsRateLimited(err):
			writeError(w, http.StatusTooManyRequests, msgRateLimited)
		default:
			s.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, msgUnexpected)
		}
		return
	}

	s.issueSession(w, req, client)
}

type resumeRequest struct {
	RefreshJWT string `json:"refreshJwt"`
}

func (s *Server) handleResume(w http.ResponseWriter, req *http.Request) {
	var body resumeRequest
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.RefreshJWT == "" {
		writeError(w, http.StatusBadRequest, "refreshJwt is required.")
		return
	}

	client, err := bsky.Resume(req.Context(), s.config.Upstream.ServiceURL, body.RefreshJWT)
	if err != nil {
		switch {
		case bsky.IsAuth(err):
			writeError(w, http.StatusUnauthorized, msgSessionExpired)
		case bsky.IsRateLimited(err):
			writeError(w, http.StatusTooManyRequests, msgRateLimited)
		default:
			s.logger.Error("session resume failed", "error", err)
			writeError(w, http.StatusInternalServerError, msgUnexpected)
		}
		return
	}

	s.issueSession(w, req, client)
}

// issueSession mints a fresh token for an authenticated upstream capability,
// stores the record, and sets the session cookie. Tokens issued earlier for
// the same account keep working; each login stands alone.
func (s *Server) issueSession(w http.ResponseWriter, req *http.Request, client *bsky.Session) {
	token, err := session.NewToken()
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgUnexpected)
		return
	}

	rec := session.NewRecord(token, client)
	if err := s.store.Put(req.Context(), rec); err != nil {
		s.logger.Error("storing session failed", "error", err)
		writeError(w, http.StatusInternalServerError, msgUnexpected)
		return
	}

	http.SetCookie(w, session.SessionCookie(token, s.config.Cookie.Domain, s.config.Server.Production))
	writeJSON(w, http.StatusOK, map[string]string{
		"did":    client.DID,
		"handle": client.Handle,
	})
}

// handleLogout destroys the local session without contacting the upstream.
// An absent or unknown cookie still succeeds; logout is idempotent.
func (s *Server) handleLogout(w http.ResponseWriter, req *http.Request) {
	if token := session.TokenFromRequest(req); token != "" {
		if err := s.store.Delete(req.Context(), token); err != nil && !errors.Is(err, session.ErrNotFound) {
			s.logger.Error("deleting session failed", "error", err)
		}
	}
	http.SetCookie(w, session.ExpiredCookie(s.config.Cookie.Domain, s.config.Server.Production))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListConvos(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}

	q := req.URL.Query()
	var query bsky.ListConvosQuery
	query.Cursor = q.Get("cursor")
	query.ReadState = q.Get("readState")
	query.Status = q.Get("status")
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number.")
			return
		}
		query.Limit = limit
	}

	payload, err := rec.Client.ListConvos(req.Context(), query)
	s.relay(w, req, rec, payload, err)
}

func (s *Server) handleGetConvo(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	convoID := req.URL.Query().Get("convoId")
	if convoID == "" {
		writeError(w, http.StatusBadRequest, "convoId is required.")
		return
	}

	payload, err := rec.Client.GetConvo(req.Context(), convoID)
	s.relay(w, req, rec, payload, err)
}

func (s *Server) handleConvoForMembers(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	members := req.URL.Query()["members"]
	if len(members) == 0 {
		writeError(w, http.StatusBadRequest, "members is required.")
		return
	}

	payload, err := rec.Client.GetConvoForMembers(req.Context(), members)
	s.relay(w, req, rec, payload, err)
}

func (s *Server) handleConvoAvailability(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	members := req.URL.Query()["members"]
	if len(members) == 0 {
		writeError(w, http.StatusBadRequest, "members is required.")
		return
	}

	payload, err := rec.Client.GetConvoAvailability(req.Context(), members)
	s.relay(w, req, rec, payload, err)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	q := req.URL.Query()
	convoID := q.Get("convoId")
	if convoID == "" {
		writeError(w, http.StatusBadRequest, "convoId is required.")
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number.")
			return
		}
		limit = n
	}

	payload, err := rec.Client.GetMessages(req.Context(), convoID, q.Get("cursor"), limit)
	s.relay(w, req, rec, payload, err)
}

type sendMessageRequest struct {
	ConvoID string `json:"convoId"`
	Text    string `json:"text"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	var body sendMessageRequest
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.ConvoID == "" {
		writeError(w, http.StatusBadRequest, "convoId is required.")
		return
	}
	if body.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required.")
		return
	}

	payload, err := rec.Client.SendMessage(req.Context(), body.ConvoID, body.Text)
	s.relay(w, req, rec, payload, err)
}

type messageRefRequest struct {
	ConvoID   string `json:"convoId"`
	MessageID string `json:"messageId"`
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	var body messageRefRequest
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.ConvoID == "" {
		writeError(w, http.StatusBadRequest, "convoId is required.")
		return
	}
	if body.MessageID == "" {
		writeError(w, http.StatusBadRequest, "messageId is required.")
		return
	}

	payload, err := rec.Client.DeleteMessageForSelf(req.Context(), body.ConvoID, body.MessageID)
	s.relay(w, req, rec, payload, err)
}

// handleUpdateRead marks a conversation read. messageId is optional; when
// absent the upstream marks the whole conversation.
func (s *Server) handleUpdateRead(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	var body messageRefRequest
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.ConvoID == "" {
		writeError(w, http.StatusBadRequest, "convoId is required.")
		return
	}

	payload, err := rec.Client.UpdateRead(req.Context(), body.ConvoID, body.MessageID)
	s.relay(w, req, rec, payload, err)
}

type leaveConvoRequest struct {
	ConvoID string `json:"convoId"`
}

func (s *Server) handleLeaveConvo(w http.ResponseWriter, req *http.Request) {
	rec, ok := s.requireSession(w, req)
	if !ok {
		return
	}
	var body leaveConvoRequest
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if body.ConvoID == "" {
		writeError(w, http.StatusBadRequest, "convoId is required.")
		return
	}

	payload, err := rec.Client.LeaveConvo(req.Context(), body.ConvoID)
	s.relay(w, req, rec, payload, err)
}
