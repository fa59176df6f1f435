// ABOUTME: Unauthenticated client for the public social-graph API
// ABOUTME: Provides handle resolution, profile lookup, and post-thread retrieval

package bsky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to the public appview API. All calls are unauthenticated
// and read-only; callers treat every failure as "use the fallback".
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a public API client for the given appview base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  slog.Default().With("component", "bsky"),
	}
}

// Profile is the subset of an actor profile that page metadata needs.
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
}

// Post is the subset of a post that page metadata needs.
type Post struct {
	URI    string
	Author Profile
	Text   string

	// Images holds fullsize URLs of embedded media, in order
	Images []string
}

// ResolveHandle resolves a handle to its stable DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	var out struct {
		DID string `json:"did"`
	}
	params := url.Values{"handle": {handle}}
	if err := c.get(ctx, "com.atproto.identity.resolveHandle", params, &out); err != nil {
		return "", err
	}
	return out.DID, nil
}

// GetProfile fetches the public profile for an actor (handle or DID).
func (c *Client) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	var out Profile
	params := url.Values{"actor": {actor}}
	if err := c.get(ctx, "app.bsky.actor.getProfile", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// threadResponse mirrors the slice of app.bsky.feed.getPostThread we consume.
type threadResponse struct {
	Thread struct {
		Post struct {
			URI    string  `json:"uri"`
			Author Profile `json:"author"`
			Record struct {
				Text string `json:"text"`
			} `json:"record"`
			Embed struct {
				Images []struct {
					Fullsize string `json:"fullsize"`
				} `json:"images"`
				Media struct {
					Images []struct {
						Fullsize string `json:"fullsize"`
					} `json:"images"`
				} `json:"media"`
			} `json:"embed"`
		} `json:"post"`
		NotFound bool `json:"notFound"`
	} `json:"thread"`
}

// GetPostThread fetches a single post by at:// URI with no ancestor or
// reply context (depth 0).
func (c *Client) GetPostThread(ctx context.Context, uri string) (*Post, error) {
	var out threadResponse
	params := url.Values{
		"uri":          {uri},
		"depth":        {"0"},
		"parentHeight": {"0"},
	}
	if err := c.get(ctx, "app.bsky.feed.getPostThread", params, &out); err != nil {
		return nil, err
	}
	if out.Thread.NotFound {
		return nil, &Error{Kind: KindNotFound, Message: "post not found"}
	}

	post := &Post{
		URI:    out.Thread.Post.URI,
		Author: out.Thread.Post.Author,
		Text:   out.Thread.Post.Record.Text,
	}
	for _, img := range out.Thread.Post.Embed.Images {
		post.Images = append(post.Images, img.Fullsize)
	}
	// Record-with-media embeds nest their images one level deeper
	for _, img := range out.Thread.Post.Embed.Media.Images {
		post.Images = append(post.Images, img.Fullsize)
	}
	return post, nil
}

// PostURI builds the canonical at:// reference for a post record.
func PostURI(did, rkey string) string {
	return fmt.Sprintf("at://%s/app.bsky.feed.post/%s", did, rkey)
}

// get performs an XRPC query and decodes the response into out.
func (c *Client) get(ctx context.Context, nsid string, params url.Values, out any) error {
	u := c.baseURL + "/xrpc/" + nsid
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return transportError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := classify(resp.StatusCode, body)
		c.logger.Debug("upstream query failed", "nsid", nsid, "status", resp.StatusCode, "kind", apiErr.Kind.String())
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindUnexpected, Message: fmt.Sprintf("decoding %s response: %v", nsid, err)}
	}
	return nil
}
