package oauth

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *StateRegistry {
	t.Helper()
	r := NewStateRegistry()
	t.Cleanup(r.Stop)
	return r
}

func TestStateRegistry_IssueAndConsume(t *testing.T) {
	r := newTestRegistry(t)

	nonce, err := r.Issue("user-1")
	require.NoError(t, err)
	assert.Len(t, nonce, 43, "32 random bytes base64url-encoded")

	userID, err := r.Consume(nonce)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestStateRegistry_NoncesAreUnique(t *testing.T) {
	r := newTestRegistry(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		nonce, err := r.Issue("user-1")
		require.NoError(t, err)
		assert.False(t, seen[nonce], "nonce reuse")
		seen[nonce] = true
	}
}

func TestStateRegistry_SingleUse(t *testing.T) {
	r := newTestRegistry(t)

	nonce, err := r.Issue("user-1")
	require.NoError(t, err)

	_, err = r.Consume(nonce)
	require.NoError(t, err)

	// Immediate replay of a legitimately used nonce must fail.
	_, err = r.Consume(nonce)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateRegistry_UnknownNonce(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Consume("never-issued")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateRegistry_Expiry(t *testing.T) {
	r := newTestRegistry(t)

	nonce, err := r.Issue("user-1")
	require.NoError(t, err)

	// Push the clock past the TTL without sweeping.
	r.now = func() time.Time { return time.Now().Add(stateTTL + time.Second) }

	_, err = r.Consume(nonce)
	assert.ErrorIs(t, err, ErrStateExpired)

	// The expired entry was deleted on the failed attempt.
	_, err = r.Consume(nonce)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateRegistry_ConcurrentConsumeSingleWinner(t *testing.T) {
	r := newTestRegistry(t)

	nonce, err := r.Issue("user-1")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Consume(nonce); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestStateRegistry_Sweep(t *testing.T) {
	r := newTestRegistry(t)

	expired, err := r.Issue("user-1")
	require.NoError(t, err)

	r.now = func() time.Time { return time.Now().Add(stateTTL + time.Second) }
	live, err := r.Issue("user-2")
	require.NoError(t, err)

	r.sweep()

	_, err = r.Consume(expired)
	assert.ErrorIs(t, err, ErrStateNotFound)

	userID, err := r.Consume(live)
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)
}
