// ABOUTME: Server orchestrator wiring sessions, assets, metadata, and upstream clients
// ABOUTME: Manages the HTTP server lifecycle with graceful shutdown

package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/tobiasmay/driftsky/internal/assets"
	"github.com/tobiasmay/driftsky/internal/bsky"
	"github.com/tobiasmay/driftsky/internal/config"
	"github.com/tobiasmay/driftsky/internal/meta"
	"github.com/tobiasmay/driftsky/internal/session"
)

// Version is the release identifier reported in outbound User-Agent headers.
// Overridden at build time via -ldflags.
var Version = "dev"

// Server coordinates the driftsky backend components: the session store,
// the upstream AT Protocol clients, static asset roots, and the metadata
// resolver feeding the SPA shell.
type Server struct {
	config     *config.Config
	store      session.Store
	appview    *bsky.Client
	resolver   *meta.Resolver
	buildRoot  *assets.Root
	publicRoot *assets.Root
	shell      []byte
	httpServer *http.Server
	logger     *slog.Logger
	emoji      *http.Client
}

// New creates a server from the given configuration. The index template is
// read once at startup; a missing template is a startup error, not a
// per-request one.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	shell, err := os.ReadFile(cfg.Assets.IndexTemplate)
	if err != nil {
		return nil, fmt.Errorf("reading index template: %w", err)
	}

	appview := bsky.NewClient(cfg.Upstream.AppViewURL)

	site := meta.Site{
		Name:         cfg.SiteName(),
		PublicURL:    cfg.Site.PublicURL,
		Description:  cfg.Site.Description,
		DefaultImage: cfg.Site.DefaultImage,
	}

	buildRoot, err := assets.NewRoot(cfg.Assets.BuildRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving build root: %w", err)
	}
	publicRoot, err := assets.NewRoot(cfg.Assets.PublicRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving public root: %w", err)
	}

	store, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:     cfg,
		store:      store,
		appview:    appview,
		resolver:   meta.NewResolver(appview, site),
		buildRoot:  buildRoot,
		publicRoot: publicRoot,
		shell:      shell,
		logger:     logger.With("component", "server"),
		emoji:      &http.Client{Timeout: 15 * time.Second},
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           withRequestLog(logger.With("component", "http"), s.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// initStore creates a session store based on config. The in-memory backend
// is the default; sqlite persists sessions across restarts.
func initStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Sessions.Backend {
	case "", config.SessionBackendMemory:
		return session.NewMemoryStore(), nil
	case config.SessionBackendSQLite:
		store, err := session.NewSQLiteStore(cfg.Sessions.Path, cfg.Upstream.ServiceURL)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.ListenAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes the session store.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}
