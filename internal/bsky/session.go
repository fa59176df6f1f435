// ABOUTME: Authenticated upstream session and the chat capability it carries
// ABOUTME: Handles credential exchange, resumption, and messaging-service calls

package bsky

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// chatProxy is the service proxy header value that scopes a call to the
// messaging sub-service instead of the PDS itself.
const chatProxy = "did:web:api.bsky.chat#bsky_chat"

// Session is an authenticated capability bound to one upstream identity.
// It is created by Login or Resume and owned by a session record; every
// chat operation goes through it.
type Session struct {
	service string
	http    *http.Client

	DID    string
	Handle string

	accessJWT  string
	refreshJWT string
}

// credentials is the wire shape of createSession/refreshSession responses.
type credentials struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJWT  string `json:"accessJwt"`
	RefreshJWT string `json:"refreshJwt"`
}

// Login exchanges an identifier and app password for a new session.
func Login(ctx context.Context, service, identifier, password string) (*Session, error) {
	s := &Session{
		service: strings.TrimSuffix(service, "/"),
		http:    http.DefaultClient,
	}

	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	raw, err := s.procedure(ctx, "com.atproto.server.createSession", "", body, false)
	if err != nil {
		return nil, err
	}

	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: "decoding credentials: " + err.Error()}
	}

	s.DID = creds.DID
	s.Handle = creds.Handle
	s.accessJWT = creds.AccessJWT
	s.refreshJWT = creds.RefreshJWT
	return s, nil
}

// Resume rebuilds a session from a previously-issued refresh credential.
func Resume(ctx context.Context, service, refreshJWT string) (*Session, error) {
	s := &Session{
		service: strings.TrimSuffix(service, "/"),
		http:    http.DefaultClient,
	}

	raw, err := s.procedure(ctx, "com.atproto.server.refreshSession", refreshJWT, nil, false)
	if err != nil {
		return nil, err
	}

	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, &Error{Kind: KindUnexpected, Message: "decoding credentials: " + err.Error()}
	}

	s.DID = creds.DID
	s.Handle = creds.Handle
	s.accessJWT = creds.AccessJWT
	s.refreshJWT = creds.RefreshJWT
	return s, nil
}

// Restore rebuilds a session capability from persisted tokens without an
// upstream call. Used by the sqlite-backed session store.
func Restore(service, did, handle, accessJWT, refreshJWT string) *Session {
	return &Session{
		service:    strings.TrimSuffix(service, "/"),
		http:       http.DefaultClient,
		DID:        did,
		Handle:     handle,
		accessJWT:  accessJWT,
		refreshJWT: refreshJWT,
	}
}

// AccessToken returns the current access credential for persistence.
func (s *Session) AccessToken() string { return s.accessJWT }

// RefreshToken returns the refresh credential for persistence and resumption.
func (s *Session) RefreshToken() string { return s.refreshJWT }

// Service returns the PDS base URL this session is bound to.
func (s *Session) Service() string { return s.service }

// ListConvosQuery holds the optional filters for ListConvos.
type ListConvosQuery struct {
	Limit     int
	Cursor    string
	ReadState string
	Status    string
}

// ListConvos lists the identity's conversations, newest activity first.
func (s *Session) ListConvos(ctx context.Context, q ListConvosQuery) (json.RawMessage, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.ReadState != "" {
		params.Set("readState", q.ReadState)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	return s.chatQuery(ctx, "chat.bsky.convo.listConvos", params)
}

// GetConvoForMembers returns (creating if necessary) the conversation for
// the given member set.
func (s *Session) GetConvoForMembers(ctx context.Context, members []string) (json.RawMessage, error) {
	params := url.Values{"members": members}
	return s.chatQuery(ctx, "chat.bsky.convo.getConvoForMembers", params)
}

// GetConvoAvailability reports whether a conversation with the given
// members can be started.
func (s *Session) GetConvoAvailability(ctx context.Context, members []string) (json.RawMessage, error) {
	params := url.Values{"members": members}
	return s.chatQuery(ctx, "chat.bsky.convo.getConvoAvailability", params)
}

// GetConvo fetches a single conversation.
func (s *Session) GetConvo(ctx context.Context, convoID string) (json.RawMessage, error) {
	params := url.Values{"convoId": {convoID}}
	return s.chatQuery(ctx, "chat.bsky.convo.getConvo", params)
}

// GetMessages lists messages in a conversation, cursor-paginated.
func (s *Session) GetMessages(ctx context.Context, convoID, cursor string, limit int) (json.RawMessage, error) {
	params := url.Values{"convoId": {convoID}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return s.chatQuery(ctx, "chat.bsky.convo.getMessages", params)
}

// SendMessage sends a text message to a conversation.
func (s *Session) SendMessage(ctx context.Context, convoID, text string) (json.RawMessage, error) {
	body := map[string]any{
		"convoId": convoID,
		"message": map[string]string{"text": text},
	}
	return s.chatProcedure(ctx, "chat.bsky.convo.sendMessage", body)
}

// DeleteMessageForSelf removes a message from the identity's own view.
func (s *Session) DeleteMessageForSelf(ctx context.Context, convoID, messageID string) (json.RawMessage, error) {
	body := map[string]string{
		"convoId":   convoID,
		"messageId": messageID,
	}
	return s.chatProcedure(ctx, "chat.bsky.convo.deleteMessageForSelf", body)
}

// UpdateRead marks a conversation read up to messageID, or fully read
// when messageID is empty.
func (s *Session) UpdateRead(ctx context.Context, convoID, messageID string) (json.RawMessage, error) {
	body := map[string]string{"convoId": convoID}
	if messageID != "" {
		body["messageId"] = messageID
	}
	return s.chatProcedure(ctx, "chat.bsky.convo.updateRead", body)
}

// LeaveConvo removes the identity from a conversation.
func (s *Session) LeaveConvo(ctx context.Context, convoID string) (json.RawMessage, error) {
	body := map[string]string{"convoId": convoID}
	return s.chatProcedure(ctx, "chat.bsky.convo.leaveConvo", body)
}

// chatQuery performs a GET against the messaging sub-service.
func (s *Session) chatQuery(ctx context.Context, nsid string, params url.Values) (json.RawMessage, error) {
	u := s.service + "/xrpc/" + nsid
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessJWT)
	req.Header.Set("Atproto-Proxy", chatProxy)
	req.Header.Set("Accept", "application/json")

	return s.do(req)
}

// chatProcedure performs a POST against the messaging sub-service.
func (s *Session) chatProcedure(ctx context.Context, nsid string, body any) (json.RawMessage, error) {
	raw, err := s.procedure(ctx, nsid, s.accessJWT, body, true)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// procedure performs a POST to the PDS. The chat flag attaches the
// messaging-service proxy header.
func (s *Session) procedure(ctx context.Context, nsid, bearer string, body any, chat bool) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindUnexpected, Message: "encoding request: " + err.Error()}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.service+"/xrpc/"+nsid, reader)
	if err != nil {
		return nil, transportError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if chat {
		req.Header.Set("Atproto-Proxy", chatProxy)
	}
	req.Header.Set("Accept", "application/json")

	return s.do(req)
}

func (s *Session) do(req *http.Request) (json.RawMessage, error) {
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classify(resp.StatusCode, payload)
	}

	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return json.RawMessage(payload), nil
}
