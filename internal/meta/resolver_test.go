// ABOUTME: Tests for per-route metadata resolution
// ABOUTME: Covers pattern priority, truncation, fallbacks, and hashtag synthesis

package meta

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tobiasmay/driftsky/internal/bsky"
)

// fakeUpstream is a scriptable Upstream with call counting.
type fakeUpstream struct {
	did        string
	profile    *bsky.Profile
	post       *bsky.Post
	resolveErr error
	profileErr error
	postErr    error
	calls      int
}

func (f *fakeUpstream) ResolveHandle(_ context.Context, handle string) (string, error) {
	f.calls++
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.did, nil
}

func (f *fakeUpstream) GetProfile(_ context.Context, actor string) (*bsky.Profile, error) {
	f.calls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeUpstream) GetPostThread(_ context.Context, uri string) (*bsky.Post, error) {
	f.calls++
	if f.postErr != nil {
		return nil, f.postErr
	}
	return f.post, nil
}

var testSite = Site{
	Name:         "deck.blue",
	PublicURL:    "https://deck.blue",
	Description:  "A multi-column client.",
	DefaultImage: "https://deck.blue/img/card.png",
}

func TestResolve_DefaultRoute(t *testing.T) {
	upstream := &fakeUpstream{}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/settings")

	assert.Equal(t, "deck.blue", m.Title)
	assert.Equal(t, "A multi-column client.", m.Description)
	assert.Equal(t, "https://deck.blue/settings", m.CanonicalURL)
	assert.Equal(t, "https://deck.blue/img/card.png", m.Image)
	assert.Equal(t, "website", m.ContentType)
	assert.Equal(t, CardSummary, m.Card)
	assert.Zero(t, upstream.calls)
}

func TestResolve_Hashtag_NoNetworkCall(t *testing.T) {
	upstream := &fakeUpstream{}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/hashtag/rust")

	assert.Equal(t, "#rust on deck.blue", m.Title)
	assert.Equal(t, "Latest posts tagged #rust on deck.blue.", m.Description)
	assert.Equal(t, "https://deck.blue/hashtag/rust", m.CanonicalURL)
	assert.Zero(t, upstream.calls, "hashtag metadata must be synthetic")
}

func TestResolve_Profile(t *testing.T) {
	upstream := &fakeUpstream{
		profile: &bsky.Profile{
			DID:         "did:plc:abc",
			Handle:      "alice.test",
			DisplayName: "Alice",
			Description: "here for the posts",
			Avatar:      "https://cdn.test/avatar.jpg",
		},
	}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/profile/alice.test")

	assert.Equal(t, "Alice", m.Title)
	assert.Equal(t, "here for the posts", m.Description)
	assert.Equal(t, "https://cdn.test/avatar.jpg", m.Image)
	assert.Equal(t, "profile", m.ContentType)
}

func TestResolve_Profile_NoDisplayNameOrBio(t *testing.T) {
	upstream := &fakeUpstream{
		profile: &bsky.Profile{Handle: "alice.test"},
	}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/profile/alice.test")

	assert.Equal(t, "@alice.test", m.Title)
	assert.Equal(t, "@alice.test on deck.blue.", m.Description)
	assert.Equal(t, testSite.DefaultImage, m.Image)
}

func TestResolve_Profile_UpstreamFailureFallsBack(t *testing.T) {
	upstream := &fakeUpstream{profileErr: &bsky.Error{Kind: bsky.KindUnexpected, Message: "boom"}}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/profile/alice.test")

	assert.Equal(t, r.Default("/profile/alice.test"), m)
}

func TestResolve_Post(t *testing.T) {
	upstream := &fakeUpstream{
		did: "did:plc:abc",
		post: &bsky.Post{
			Author: bsky.Profile{Handle: "alice.test", DisplayName: "Alice", Avatar: "https://cdn.test/avatar.jpg"},
			Text:   "hello world",
			Images: []string{"https://cdn.test/img1.jpg"},
		},
	}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/profile/alice.test/post/abc123")

	assert.Equal(t, "Post by Alice", m.Title)
	assert.Equal(t, "hello world", m.Description)
	assert.Equal(t, "https://cdn.test/img1.jpg", m.Image)
	assert.Equal(t, CardLargeImage, m.Card)
	assert.Equal(t, "article", m.ContentType)
}

func TestResolve_Post_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("a", 250)
	upstream := &fakeUpstream{
		did:  "did:plc:abc",
		post: &bsky.Post{Author: bsky.Profile{Handle: "alice.test"}, Text: long},
	}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/profile/alice.test/post/abc123")

	assert.Equal(t, strings.Repeat("a", 200)+"…", m.Description)
	assert.True(t, len([]rune(m.Description)) <= maxDescriptionLen+1)
}

func TestResolve_Post_ShortTextUntruncated(t *testing.T) {
	exact := strings.Repeat("b", 200)
	upstream := &fakeUpstream{
		did:  "did:plc:abc",
		post: &bsky.Post{Author: bsky.Profile{Handle: "alice.test"}, Text: exact},
	}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/profile/alice.test/post/abc123")

	assert.Equal(t, exact, m.Description)
	assert.False(t, strings.HasSuffix(m.Description, "…"))
}

func TestResolve_Post_EmptyTextUsesGenericDescription(t *testing.T) {
	upstream := &fakeUpstream{
		did:  "did:plc:abc",
		post: &bsky.Post{Author: bsky.Profile{Handle: "alice.test", Avatar: "https://cdn.test/a.jpg"}},
	}
	r := NewResolver(upstream, testSite)

	m := r.Resolve(context.Background(), "/profile/alice.test/post/abc123")

	assert.Equal(t, "Post by @alice.test", m.Description)
	// No media: avatar image, summary card
	assert.Equal(t, "https://cdn.test/a.jpg", m.Image)
	assert.Equal(t, CardSummary, m.Card)
}

func TestResolve_Post_HandleResolutionFailureFallsBack(t *testing.T) {
	upstream := &fakeUpstream{resolveErr: &bsky.Error{Kind: bsky.KindNotFound, Message: "no such handle"}}
	r := NewResolver(upstream, testSite)

	pathname := "/profile/ghost.test/post/abc123"
	m := r.Resolve(context.Background(), pathname)

	assert.Equal(t, r.Default(pathname), m)
}

func TestResolve_Post_NotFoundFallsBack(t *testing.T) {
	upstream := &fakeUpstream{did: "did:plc:abc", postErr: &bsky.Error{Kind: bsky.KindNotFound}}
	r := NewResolver(upstream, testSite)

	pathname := "/profile/alice.test/post/deleted"
	m := r.Resolve(context.Background(), pathname)

	assert.Equal(t, r.Default(pathname), m)
}

func TestResolve_Post_DIDSkipsHandleResolution(t *testing.T) {
	upstream := &fakeUpstream{
		post: &bsky.Post{Author: bsky.Profile{Handle: "alice.test"}, Text: "hi"},
	}
	r := NewResolver(upstream, testSite)

	r.Resolve(context.Background(), "/profile/did:plc:abc123/post/xyz")

	// Only the thread fetch, no resolveHandle round trip
	assert.Equal(t, 1, upstream.calls)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 200))
	assert.Equal(t, "ab…", truncate("abcd", 2))

	// Rune-aware: multibyte text is not split mid-character
	assert.Equal(t, "héllo…", truncate("héllo wörld", 5))
}
