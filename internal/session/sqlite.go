// ABOUTME: SQLite-backed session store for deployments that restart
// ABOUTME: Persists upstream credentials and rebuilds capabilities on load

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tobiasmay/driftsky/internal/bsky"
)

// SQLiteStore persists session records to a sqlite database. The upstream
// capability is rebuilt from the stored credentials on every Get.
type SQLiteStore struct {
	db      *sql.DB
	service string
	logger  *slog.Logger
}

// NewSQLiteStore opens (creating if necessary) the session database at path.
// service is the PDS base URL used to rebuild capabilities.
func NewSQLiteStore(path, service string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "sessions")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating session database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		service: service,
		logger:  logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		token       TEXT PRIMARY KEY,
		did         TEXT NOT NULL,
		handle      TEXT NOT NULL DEFAULT '',
		access_jwt  TEXT NOT NULL,
		refresh_jwt TEXT NOT NULL,
		created_at  TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_did ON sessions(did);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the record for a token, rebuilding its upstream capability
// from the persisted credentials. Returns ErrNotFound for unknown tokens.
func (s *SQLiteStore) Get(ctx context.Context, token string) (*Record, error) {
	var (
		did, handle, accessJWT, refreshJWT string
		createdAt                          time.Time
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT did, handle, access_jwt, refresh_jwt, created_at FROM sessions WHERE token = ?`,
		token,
	).Scan(&did, &handle, &accessJWT, &refreshJWT, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	return &Record{
		Token:     token,
		DID:       did,
		Handle:    handle,
		Client:    bsky.Restore(s.service, did, handle, accessJWT, refreshJWT),
		CreatedAt: createdAt,
	}, nil
}

// Put stores a record, replacing any existing row for the same token.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (token, did, handle, access_jwt, refresh_jwt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Token, rec.DID, rec.Handle, rec.Client.AccessToken(), rec.Client.RefreshToken(), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// Delete removes a token. Unknown tokens are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
