// ABOUTME: Per-route page metadata resolution for link previews and SEO
// ABOUTME: Pattern-matches request paths and fetches upstream data best-effort

package meta

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/tobiasmay/driftsky/internal/bsky"
)

// PageMeta is the preview-card tuple injected into the SPA shell. It is
// constructed fresh per request and never persisted.
type PageMeta struct {
	Title        string
	Description  string
	CanonicalURL string

	// Image is empty when the page has no preview image at all
	Image string

	// ContentType is the og:type value: website, article, or profile
	ContentType string

	// Card is the twitter:card style: summary or summary_large_image
	Card string

	SiteName string
}

// Card styles
const (
	CardSummary    = "summary"
	CardLargeImage = "summary_large_image"
)

// maxDescriptionLen is the rune budget for descriptions before truncation
const maxDescriptionLen = 200

// Upstream is the slice of the public API the resolver needs.
type Upstream interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
	GetProfile(ctx context.Context, actor string) (*bsky.Profile, error)
	GetPostThread(ctx context.Context, uri string) (*bsky.Post, error)
}

// Site describes the deployment's own identity for default metadata.
type Site struct {
	Name         string
	PublicURL    string
	Description  string
	DefaultImage string
}

// Route patterns, evaluated in priority order
var (
	postPattern    = regexp.MustCompile(`^/profile/([^/]+)/post/([^/]+)/?$`)
	profilePattern = regexp.MustCompile(`^/profile/([^/]+)/?$`)
	hashtagPattern = regexp.MustCompile(`^/hashtag/([^/]+)/?$`)
)

// Resolver derives PageMeta for a request path. Every upstream fetch is
// best-effort: any failure falls back to default metadata so the page
// always renders. Concurrent resolutions of the same path share a single
// upstream fetch.
type Resolver struct {
	upstream Upstream
	site     Site
	group    singleflight.Group
	logger   *slog.Logger
}

// NewResolver creates a metadata resolver for the given site identity.
func NewResolver(upstream Upstream, site Site) *Resolver {
	return &Resolver{
		upstream: upstream,
		site:     site,
		logger:   slog.Default().With("component", "meta"),
	}
}

// Resolve determines the metadata for a request path.
func (r *Resolver) Resolve(ctx context.Context, pathname string) PageMeta {
	if m := postPattern.FindStringSubmatch(pathname); m != nil {
		return r.shared(ctx, pathname, func() PageMeta {
			return r.resolvePost(ctx, pathname, m[1], m[2])
		})
	}
	if m := profilePattern.FindStringSubmatch(pathname); m != nil {
		return r.shared(ctx, pathname, func() PageMeta {
			return r.resolveProfile(ctx, pathname, m[1])
		})
	}
	if m := hashtagPattern.FindStringSubmatch(pathname); m != nil {
		return r.resolveHashtag(pathname, m[1])
	}
	return r.Default(pathname)
}

// shared collapses concurrent resolutions for the same path into one fetch.
func (r *Resolver) shared(ctx context.Context, pathname string, fn func() PageMeta) PageMeta {
	v, _, _ := r.group.Do(pathname, func() (any, error) {
		return fn(), nil
	})
	return v.(PageMeta)
}

// Default returns the static site metadata for a path.
func (r *Resolver) Default(pathname string) PageMeta {
	description := r.site.Description
	if description == "" {
		description = fmt.Sprintf("%s on the open social web.", r.site.Name)
	}
	return PageMeta{
		Title:        r.site.Name,
		Description:  description,
		CanonicalURL: r.canonical(pathname),
		Image:        r.site.DefaultImage,
		ContentType:  "website",
		Card:         CardSummary,
		SiteName:     r.site.Name,
	}
}

// resolvePost builds metadata for /profile/{handle}/post/{rkey}.
func (r *Resolver) resolvePost(ctx context.Context, pathname, handle, rkey string) PageMeta {
	did := handle
	if !strings.HasPrefix(handle, "did:") {
		resolved, err := r.upstream.ResolveHandle(ctx, handle)
		if err != nil {
			r.logger.Debug("handle resolution failed, using defaults", "handle", handle, "error", err)
			return r.Default(pathname)
		}
		did = resolved
	}

	post, err := r.upstream.GetPostThread(ctx, bsky.PostURI(did, rkey))
	if err != nil {
		r.logger.Debug("post fetch failed, using defaults", "did", did, "rkey", rkey, "error", err)
		return r.Default(pathname)
	}

	author := post.Author.DisplayName
	if author == "" {
		author = "@" + post.Author.Handle
	}

	description := fmt.Sprintf("Post by @%s", post.Author.Handle)
	if post.Text != "" {
		description = truncate(post.Text, maxDescriptionLen)
	}

	m := PageMeta{
		Title:        fmt.Sprintf("Post by %s", author),
		Description:  description,
		CanonicalURL: r.canonical(pathname),
		ContentType:  "article",
		Card:         CardSummary,
		SiteName:     r.site.Name,
	}

	switch {
	case len(post.Images) > 0:
		m.Image = post.Images[0]
		m.Card = CardLargeImage
	case post.Author.Avatar != "":
		m.Image = post.Author.Avatar
	default:
		m.Image = r.site.DefaultImage
	}

	return m
}

// resolveProfile builds metadata for /profile/{handle}.
func (r *Resolver) resolveProfile(ctx context.Context, pathname, handle string) PageMeta {
	profile, err := r.upstream.GetProfile(ctx, handle)
	if err != nil {
		r.logger.Debug("profile fetch failed, using defaults", "handle", handle, "error", err)
		return r.Default(pathname)
	}

	title := profile.DisplayName
	if title == "" {
		title = "@" + profile.Handle
	}

	description := fmt.Sprintf("@%s on %s.", profile.Handle, r.site.Name)
	if profile.Description != "" {
		description = truncate(profile.Description, maxDescriptionLen)
	}

	image := profile.Avatar
	if image == "" {
		image = r.site.DefaultImage
	}

	return PageMeta{
		Title:        title,
		Description:  description,
		CanonicalURL: r.canonical(pathname),
		Image:        image,
		ContentType:  "profile",
		Card:         CardSummary,
		SiteName:     r.site.Name,
	}
}

// resolveHashtag builds synthetic metadata for /hashtag/{tag}. No network
// call is made.
func (r *Resolver) resolveHashtag(pathname, tag string) PageMeta {
	return PageMeta{
		Title:        fmt.Sprintf("#%s on %s", tag, r.site.Name),
		Description:  fmt.Sprintf("Latest posts tagged #%s on %s.", tag, r.site.Name),
		CanonicalURL: r.canonical(pathname),
		Image:        r.site.DefaultImage,
		ContentType:  "website",
		Card:         CardSummary,
		SiteName:     r.site.Name,
	}
}

func (r *Resolver) canonical(pathname string) string {
	return strings.TrimSuffix(r.site.PublicURL, "/") + pathname
}

// truncate cuts s to max runes, appending an ellipsis when it was longer.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
