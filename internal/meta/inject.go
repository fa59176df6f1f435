// ABOUTME: Textual HTML metadata injection into the cached SPA shell
// ABOUTME: Idempotent regex upserts of title, meta, and canonical link tags

package meta

import (
	"fmt"
	"regexp"
	"strings"
)

// The injector deliberately avoids a DOM parser: the shell template is
// trusted build output, the tag set is fixed, and textual replacement
// keeps startup cost and the dependency footprint down. Everything is
// funneled through upsertTitle and upsertTag so a real parser could be
// swapped in behind the same seam.

var (
	titlePattern = regexp.MustCompile(`(?is)<title[^>]*>.*?</title>`)
	headClose    = regexp.MustCompile(`(?i)</head>`)
)

// metaPattern matches a meta tag whose name or property attribute equals key.
func metaPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)<meta[^>]*\b(?:name|property)=["']` + regexp.QuoteMeta(key) + `["'][^>]*/?>`)
}

var (
	descriptionPattern = metaPattern("description")
	canonicalPattern   = regexp.MustCompile(`(?i)<link[^>]*\brel=["']canonical["'][^>]*/?>`)

	ogTitlePattern       = metaPattern("og:title")
	ogDescriptionPattern = metaPattern("og:description")
	ogURLPattern         = metaPattern("og:url")
	ogTypePattern        = metaPattern("og:type")
	ogSiteNamePattern    = metaPattern("og:site_name")
	ogImagePattern       = metaPattern("og:image")

	twitterTitlePattern       = metaPattern("twitter:title")
	twitterDescriptionPattern = metaPattern("twitter:description")
	twitterCardPattern        = metaPattern("twitter:card")
	twitterImagePattern       = metaPattern("twitter:image")
)

// Inject rewrites the shell document's metadata tags to match m. Existing
// tags are replaced in place; missing ones are inserted before </head>.
// All interpolated values are HTML-escaped, and applying the same metadata
// twice yields byte-identical output.
func Inject(html string, m PageMeta) string {
	html = upsertTitle(html, m.Title)

	html = upsertTag(html, descriptionPattern,
		fmt.Sprintf(`<meta name="description" content="%s">`, escape(m.Description)))
	html = upsertTag(html, canonicalPattern,
		fmt.Sprintf(`<link rel="canonical" href="%s">`, escape(m.CanonicalURL)))

	html = upsertTag(html, ogTitlePattern,
		fmt.Sprintf(`<meta property="og:title" content="%s">`, escape(m.Title)))
	html = upsertTag(html, ogDescriptionPattern,
		fmt.Sprintf(`<meta property="og:description" content="%s">`, escape(m.Description)))
	html = upsertTag(html, ogURLPattern,
		fmt.Sprintf(`<meta property="og:url" content="%s">`, escape(m.CanonicalURL)))
	html = upsertTag(html, ogTypePattern,
		fmt.Sprintf(`<meta property="og:type" content="%s">`, escape(m.ContentType)))
	html = upsertTag(html, ogSiteNamePattern,
		fmt.Sprintf(`<meta property="og:site_name" content="%s">`, escape(m.SiteName)))

	html = upsertTag(html, twitterTitlePattern,
		fmt.Sprintf(`<meta name="twitter:title" content="%s">`, escape(m.Title)))
	html = upsertTag(html, twitterDescriptionPattern,
		fmt.Sprintf(`<meta name="twitter:description" content="%s">`, escape(m.Description)))
	html = upsertTag(html, twitterCardPattern,
		fmt.Sprintf(`<meta name="twitter:card" content="%s">`, escape(m.Card)))

	if m.Image != "" {
		html = upsertTag(html, ogImagePattern,
			fmt.Sprintf(`<meta property="og:image" content="%s">`, escape(m.Image)))
		html = upsertTag(html, twitterImagePattern,
			fmt.Sprintf(`<meta name="twitter:image" content="%s">`, escape(m.Image)))
	}

	return html
}

// upsertTitle replaces the document title, inserting one if absent.
func upsertTitle(html, title string) string {
	tag := fmt.Sprintf("<title>%s</title>", escape(title))
	if loc := titlePattern.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + tag + html[loc[1]:]
	}
	return insertBeforeHeadClose(html, tag)
}

// upsertTag replaces the first tag matching pattern with tag, inserting
// tag before </head> when no match exists.
func upsertTag(html string, pattern *regexp.Regexp, tag string) string {
	if loc := pattern.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + tag + html[loc[1]:]
	}
	return insertBeforeHeadClose(html, tag)
}

// insertBeforeHeadClose places tag immediately before the closing head
// marker, or appends it when the document has no head.
func insertBeforeHeadClose(html, tag string) string {
	if loc := headClose.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + tag + "\n" + html[loc[0]:]
	}
	return html + tag + "\n"
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// escape HTML-escapes upstream-sourced text before interpolation.
func escape(s string) string {
	return escaper.Replace(s)
}
