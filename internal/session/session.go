// ABOUTME: Session registry types and store interface for driftsky
// ABOUTME: Maps opaque browser tokens to authenticated upstream capabilities

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/tobiasmay/driftsky/internal/bsky"
)

// ErrNotFound is returned when no session exists for a token
var ErrNotFound = errors.New("session not found")

// Record binds an opaque browser token to an authenticated upstream
// capability. Records are owned exclusively by the store; handlers read
// them but never mutate them.
type Record struct {
	// Token is the opaque value carried by the session cookie
	Token string

	// DID is the stable upstream identifier for the actor
	DID string

	// Handle is the human-readable name, informational only
	Handle string

	// Client is the capability bound to the identity
	Client *bsky.Session

	CreatedAt time.Time
}

// Store is the injected session registry. Backed by an in-process map for
// single-instance deployments and tests, or by sqlite when sessions should
// survive a restart. Entries live until explicitly deleted; there is no TTL.
type Store interface {
	// Get returns the record for a token, or ErrNotFound
	Get(ctx context.Context, token string) (*Record, error)

	// Put stores a record under its token
	Put(ctx context.Context, rec *Record) error

	// Delete removes a token. Deleting an unknown token is a no-op.
	Delete(ctx context.Context, token string) error
}

// NewToken generates a cryptographically random session token. At 32 bytes
// of entropy no collision check is performed; a collision would silently
// replace the previous owner's session.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewRecord builds a record for a freshly authenticated capability.
func NewRecord(token string, client *bsky.Session) *Record {
	return &Record{
		Token:     token,
		DID:       client.DID,
		Handle:    client.Handle,
		Client:    client,
		CreatedAt: time.Now().UTC(),
	}
}
