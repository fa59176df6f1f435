// ABOUTME: Tests for the public appview client
// ABOUTME: Uses httptest upstreams to verify query building and decoding

package bsky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHandle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/com.atproto.identity.resolveHandle", r.URL.Path)
		assert.Equal(t, "alice.test", r.URL.Query().Get("handle"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"did":"did:plc:abc123"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	did, err := client.ResolveHandle(context.Background(), "alice.test")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc123", did)
}

func TestResolveHandle_Unresolvable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"InvalidRequest","message":"Unable to resolve handle"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	_, err := client.ResolveHandle(context.Background(), "nobody.test")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestGetProfile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/app.bsky.actor.getProfile", r.URL.Path)
		assert.Equal(t, "did:plc:abc123", r.URL.Query().Get("actor"))
		w.Write([]byte(`{
			"did": "did:plc:abc123",
			"handle": "alice.test",
			"displayName": "Alice",
			"description": "just here for the posts",
			"avatar": "https://cdn.test/avatar.jpg"
		}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	profile, err := client.GetProfile(context.Background(), "did:plc:abc123")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, "alice.test", profile.Handle)
	assert.Equal(t, "https://cdn.test/avatar.jpg", profile.Avatar)
}

func TestGetPostThread(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/app.bsky.feed.getPostThread", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("depth"))
		assert.Equal(t, "0", r.URL.Query().Get("parentHeight"))
		w.Write([]byte(`{
			"thread": {
				"post": {
					"uri": "at://did:plc:abc123/app.bsky.feed.post/xyz",
					"author": {"did": "did:plc:abc123", "handle": "alice.test", "displayName": "Alice"},
					"record": {"text": "hello world"},
					"embed": {"images": [{"fullsize": "https://cdn.test/img1.jpg"}]}
				}
			}
		}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	post, err := client.GetPostThread(context.Background(), "at://did:plc:abc123/app.bsky.feed.post/xyz")
	require.NoError(t, err)
	assert.Equal(t, "hello world", post.Text)
	assert.Equal(t, "Alice", post.Author.DisplayName)
	require.Len(t, post.Images, 1)
	assert.Equal(t, "https://cdn.test/img1.jpg", post.Images[0])
}

func TestGetPostThread_NotFoundMarker(t *testing.T) {
	// Deleted posts come back 200 with a notFound thread view
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"thread": {"notFound": true}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	_, err := client.GetPostThread(context.Background(), "at://did:plc:abc123/app.bsky.feed.post/gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // refuse connections

	client := NewClient(ts.URL)
	_, err := client.GetProfile(context.Background(), "alice.test")
	require.Error(t, err)
	assert.Equal(t, KindUnexpected, KindOf(err))
}

func TestPostURI(t *testing.T) {
	uri := PostURI("did:plc:abc123", "3k44deefydk2g")
	assert.Equal(t, "at://did:plc:abc123/app.bsky.feed.post/3k44deefydk2g", uri)
}
