// Package assets serves the client's static files from the build-output and
// public roots. It resolves URL paths against a root with path-traversal
// protection and applies content-type and caching policy per file class.
package assets

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Root is a single read-only filesystem root that URL paths resolve against.
type Root struct {
	dir    string
	logger *slog.Logger
}

// NewRoot creates an asset root for the given directory. The directory is
// resolved to an absolute path once so that prefix checks are stable.
func NewRoot(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Root{
		dir:    abs,
		logger: slog.Default().With("component", "assets"),
	}, nil
}

// Dir returns the absolute directory this root serves from.
func (r *Root) Dir() string { return r.dir }

// Resolve maps a URL pathname to an absolute file path under the root.
// Returns "" when the pathname escapes the root. The check runs on the
// cleaned, joined path, not the raw input, so encoded and nested ".."
// segments cannot slip through.
func (r *Root) Resolve(pathname string) string {
	trimmed := strings.TrimLeft(pathname, "/")
	resolved := filepath.Join(r.dir, filepath.FromSlash(trimmed))

	if resolved != r.dir && !strings.HasPrefix(resolved, r.dir+string(filepath.Separator)) {
		return ""
	}
	return resolved
}

// Serve resolves pathname and writes the file if it exists. Returns false
// when the path escapes the root, does not exist, or is not a regular
// file, so the caller can continue its fallback chain. HEAD requests get
// headers only.
func (r *Root) Serve(w http.ResponseWriter, req *http.Request, pathname string) bool {
	path := r.Resolve(pathname)
	if path == "" {
		r.logger.Warn("rejected traversal attempt", "path", pathname)
		return false
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	w.Header().Set("Content-Type", mimeFromExt(ext))
	w.Header().Set("Cache-Control", cachePolicy(ext))

	if req.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return true
	}

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		r.logger.Debug("asset write interrupted", "path", pathname, "error", err)
	}
	return true
}

// mimeFromExt returns the content type for a file extension from a fixed
// lookup table, defaulting to application/octet-stream.
func mimeFromExt(ext string) string {
	switch ext {
	case ".html":
		return "text/html; charset=utf-8"
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".json", ".map":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".ico":
		return "image/x-icon"
	case ".woff":
		return "font/woff"
	case ".woff2":
		return "font/woff2"
	case ".ttf":
		return "font/ttf"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// cachePolicy returns the Cache-Control value for a file extension.
// HTML is revalidated on every request; everything else ships with
// content-hashed filenames and is safe to cache forever.
func cachePolicy(ext string) string {
	if ext == ".html" {
		return "no-cache"
	}
	return "public, max-age=31536000, immutable"
}
