// ABOUTME: Tests for authenticated sessions and chat capability calls
// ABOUTME: Verifies credential exchange, proxy headers, and payload relay

package bsky

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const credentialsBody = `{
	"did": "did:plc:abc123",
	"handle": "alice.test",
	"accessJwt": "access-token",
	"refreshJwt": "refresh-token"
}`

func TestLogin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/xrpc/com.atproto.server.createSession", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "alice.test", req["identifier"])
		assert.Equal(t, "hunter2", req["password"])

		w.Write([]byte(credentialsBody))
	}))
	defer ts.Close()

	sess, err := Login(context.Background(), ts.URL, "alice.test", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc123", sess.DID)
	assert.Equal(t, "alice.test", sess.Handle)
	assert.Equal(t, "refresh-token", sess.RefreshToken())
}

func TestLogin_BadCredentials(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
	}))
	defer ts.Close()

	_, err := Login(context.Background(), ts.URL, "alice.test", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
}

func TestResume(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/com.atproto.server.refreshSession", r.URL.Path)
		assert.Equal(t, "Bearer old-refresh", r.Header.Get("Authorization"))
		w.Write([]byte(credentialsBody))
	}))
	defer ts.Close()

	sess, err := Resume(context.Background(), ts.URL, "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc123", sess.DID)
	assert.Equal(t, "access-token", sess.AccessToken())
}

func TestChatQuery_ProxyHeaderAndRelay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/chat.bsky.convo.listConvos", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		assert.Equal(t, chatProxy, r.Header.Get("Atproto-Proxy"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "unread", r.URL.Query().Get("readState"))
		w.Write([]byte(`{"convos": []}`))
	}))
	defer ts.Close()

	sess := Restore(ts.URL, "did:plc:abc123", "alice.test", "access-token", "refresh-token")
	raw, err := sess.ListConvos(context.Background(), ListConvosQuery{Limit: 25, ReadState: "unread"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"convos": []}`, string(raw))
}

func TestSendMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/chat.bsky.convo.sendMessage", r.URL.Path)
		assert.Equal(t, chatProxy, r.Header.Get("Atproto-Proxy"))

		body, _ := io.ReadAll(r.Body)
		var req struct {
			ConvoID string `json:"convoId"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "convo-1", req.ConvoID)
		assert.Equal(t, "hey there", req.Message.Text)

		w.Write([]byte(`{"id": "msg-1", "text": "hey there"}`))
	}))
	defer ts.Close()

	sess := Restore(ts.URL, "did:plc:abc123", "alice.test", "access-token", "refresh-token")
	raw, err := sess.SendMessage(context.Background(), "convo-1", "hey there")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "msg-1")
}

func TestChatProcedure_ExpiredToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"ExpiredToken","message":"Token has expired"}`))
	}))
	defer ts.Close()

	sess := Restore(ts.URL, "did:plc:abc123", "alice.test", "stale", "stale")
	_, err := sess.LeaveConvo(context.Background(), "convo-1")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
}

func TestChatProcedure_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"RateLimitExceeded","message":"Rate limit exceeded"}`))
	}))
	defer ts.Close()

	sess := Restore(ts.URL, "did:plc:abc123", "alice.test", "access", "refresh")
	_, err := sess.UpdateRead(context.Background(), "convo-1", "")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestChatQuery_EmptyBodyBecomesEmptyObject(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sess := Restore(ts.URL, "did:plc:abc123", "alice.test", "access", "refresh")
	raw, err := sess.GetConvo(context.Background(), "convo-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}
