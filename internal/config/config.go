// ABOUTME: Configuration loading and parsing for driftsky
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete driftsky configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Site     SiteConfig     `yaml:"site"`
	Cookie   CookieConfig   `yaml:"cookie"`
	Assets   AssetsConfig   `yaml:"assets"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address and CORS configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// AllowedOrigins is the CORS allow-list. Requests whose Origin header is
	// absent from this list receive no CORS headers at all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Production controls security-sensitive behavior such as the Secure
	// cookie attribute.
	Production bool `yaml:"production"`
}

// SiteConfig holds the public identity of the deployment, used when
// building page metadata for link previews.
type SiteConfig struct {
	// PublicURL is the externally visible base URL, e.g. "https://deck.blue"
	PublicURL string `yaml:"public_url"`

	// Name overrides the display name derived from PublicURL's host
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// DefaultImage is the preview image used when a page has no better one
	DefaultImage string `yaml:"default_image"`
}

// CookieConfig holds session cookie attributes
type CookieConfig struct {
	// Domain, when set, is emitted as the cookie Domain attribute
	// (dot-prefixed if not already)
	Domain string `yaml:"domain"`
}

// AssetsConfig holds the static content roots and the SPA shell template
type AssetsConfig struct {
	// BuildRoot is the bundler output directory, tried first
	BuildRoot string `yaml:"build_root"`

	// PublicRoot holds unprocessed public files, tried second
	PublicRoot string `yaml:"public_root"`

	// IndexTemplate is the HTML document served for all non-asset routes,
	// rewritten per request with resolved metadata
	IndexTemplate string `yaml:"index_template"`
}

// UpstreamConfig holds the external services driftsky talks to
type UpstreamConfig struct {
	// AppViewURL is the public (unauthenticated) social-graph API
	AppViewURL string `yaml:"appview_url"`

	// ServiceURL is the PDS used for credential exchange and chat proxying
	ServiceURL string `yaml:"service_url"`

	// EmojiURL is the emoji-lookup service the passthrough proxy targets
	EmojiURL string `yaml:"emoji_url"`
}

// SessionsConfig selects the session store backend
type SessionsConfig struct {
	// Backend is "memory" (default) or "sqlite"
	Backend string `yaml:"backend"`

	// Path is the sqlite database path, required for the sqlite backend
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Session store backends accepted by sessions.backend
const (
	SessionBackendMemory = "memory"
	SessionBackendSQLite = "sqlite"
)

// Defaults applied by Load before validation
const (
	DefaultListenAddr = ":8080"
	DefaultAppViewURL = "https://public.api.bsky.app"
	DefaultServiceURL = "https://bsky.social"
	DefaultEmojiURL   = "https://emoji.deck.blue"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables are replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Upstream.AppViewURL == "" {
		c.Upstream.AppViewURL = DefaultAppViewURL
	}
	if c.Upstream.ServiceURL == "" {
		c.Upstream.ServiceURL = DefaultServiceURL
	}
	if c.Upstream.EmojiURL == "" {
		c.Upstream.EmojiURL = DefaultEmojiURL
	}
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = SessionBackendMemory
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Site.PublicURL == "" {
		return fmt.Errorf("site.public_url is required")
	}
	if _, err := url.Parse(c.Site.PublicURL); err != nil {
		return fmt.Errorf("site.public_url is not a valid URL: %w", err)
	}

	if c.Assets.BuildRoot == "" {
		return fmt.Errorf("assets.build_root is required")
	}
	if c.Assets.PublicRoot == "" {
		return fmt.Errorf("assets.public_root is required")
	}
	if c.Assets.IndexTemplate == "" {
		return fmt.Errorf("assets.index_template is required")
	}

	switch c.Sessions.Backend {
	case SessionBackendMemory:
	case SessionBackendSQLite:
		if c.Sessions.Path == "" {
			return fmt.Errorf("sessions.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("sessions.backend must be %q or %q, got %q", SessionBackendMemory, SessionBackendSQLite, c.Sessions.Backend)
	}

	return nil
}

// SiteName returns the configured site display name, falling back to the
// hostname of the public URL.
func (c *Config) SiteName() string {
	if c.Site.Name != "" {
		return c.Site.Name
	}
	u, err := url.Parse(c.Site.PublicURL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(c.Site.PublicURL, "https://")
	}
	return u.Host
}
