// ABOUTME: Tests for the session registry and token generation
// ABOUTME: Covers the memory store lifecycle and concurrency safety

package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasmay/driftsky/internal/bsky"
)

func testRecord(t *testing.T, token string) *Record {
	t.Helper()
	client := bsky.Restore("https://pds.test", "did:plc:abc123", "alice.test", "access", "refresh")
	return NewRecord(token, client)
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	require.NoError(t, err)
	b, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, a, 64) // 32 bytes hex-encoded
	assert.NotEqual(t, a, b)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := testRecord(t, "token-1")
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:abc123", got.DID)
	assert.Equal(t, "alice.test", got.Handle)
	assert.NotNil(t, got.Client)

	require.NoError(t, store.Delete(ctx, "token-1"))

	_, err = store.Get(ctx, "token-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteUnknownToken(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}

func TestMemoryStore_IndependentSessionsPerIdentity(t *testing.T) {
	// Two logins for the same DID coexist; neither invalidates the other
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, testRecord(t, "token-a")))
	require.NoError(t, store.Put(ctx, testRecord(t, "token-b")))

	a, err := store.Get(ctx, "token-a")
	require.NoError(t, err)
	b, err := store.Get(ctx, "token-b")
	require.NoError(t, err)

	assert.Equal(t, a.DID, b.DID)
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := NewToken()
			if err != nil {
				t.Error(err)
				return
			}
			rec := NewRecord(token, bsky.Restore("https://pds.test", "did:plc:abc123", "alice.test", "a", "r"))
			if err := store.Put(ctx, rec); err != nil {
				t.Error(err)
				return
			}
			if _, err := store.Get(ctx, token); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, store.Len())
}
