// ABOUTME: Session cookie codec: parsing and serialization with security attributes
// ABOUTME: HttpOnly, Path=/, SameSite=Lax always; Domain and Secure conditional

package session

import (
	"net/http"
	"net/url"
	"strings"
)

// CookieName is the name of the session cookie.
const CookieName = "driftsky-session"

// ParseCookies parses a raw Cookie header into a key-value map. Pairs are
// split on ";", each on the first "=", and values are URL-decoded. Pairs
// without "=" or with an empty key are skipped. For duplicate keys the
// first occurrence wins.
func ParseCookies(header string) map[string]string {
	cookies := make(map[string]string)

	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}
		if _, seen := cookies[name]; seen {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		cookies[name] = value
	}

	return cookies
}

// TokenFromRequest extracts the session token from a request's cookies,
// or "" when absent.
func TokenFromRequest(r *http.Request) string {
	return ParseCookies(r.Header.Get("Cookie"))[CookieName]
}

// SessionCookie builds the session cookie for a token. The Domain
// attribute is emitted only when domain is configured, dot-prefixed if it
// isn't already; Secure only in production deployments.
func SessionCookie(token, domain string, production bool) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   production,
	}
	if domain != "" {
		if !strings.HasPrefix(domain, ".") {
			domain = "." + domain
		}
		c.Domain = domain
	}
	return c
}

// ExpiredCookie builds a cookie that clears the session on the browser.
func ExpiredCookie(domain string, production bool) *http.Cookie {
	c := SessionCookie("", domain, production)
	c.MaxAge = -1
	return c
}
