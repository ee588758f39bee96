package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/kindredhq/kindred/internal/logger"
	"go.uber.org/zap"
)

const (
	// stateTTL is the validity window of an issued state nonce. A pending
	// authorization times out automatically when its nonce expires.
	stateTTL = 10 * time.Minute

	sweepInterval = time.Minute
)

type stateEntry struct {
	userID    string
	expiresAt time.Time
}

// StateRegistry issues single-use CSRF nonces binding an authorization
// redirect to the user who requested it. Process-local; a horizontally
// scaled deployment needs callbacks sticky to one instance or a shared
// registry behind the same Issue/Consume contract.
type StateRegistry struct {
	mu     sync.Mutex
	states map[string]stateEntry

	now       func() time.Time
	stopSweep chan struct{}
}

// NewStateRegistry creates a registry and starts its background sweep.
func NewStateRegistry() *StateRegistry {
	r := &StateRegistry{
		states:    make(map[string]stateEntry),
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}

	go r.sweepLoop()

	return r
}

// Issue generates a cryptographically random nonce bound to userID, valid
// for the TTL window.
func (r *StateRegistry) Issue(userID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(raw)

	r.mu.Lock()
	r.states[nonce] = stateEntry{
		userID:    userID,
		expiresAt: r.now().Add(stateTTL),
	}
	r.mu.Unlock()

	return nonce, nil
}

// Consume looks up a nonce and returns the bound user. The entry is deleted
// on every attempt, valid or not, so a nonce can never be replayed: exactly
// one concurrent caller wins, all others observe ErrStateNotFound.
func (r *StateRegistry) Consume(nonce string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.states[nonce]
	if !ok {
		return "", ErrStateNotFound
	}
	delete(r.states, nonce)

	if r.now().After(entry.expiresAt) {
		return "", ErrStateExpired
	}

	return entry.userID, nil
}

// Stop stops the background sweep goroutine.
func (r *StateRegistry) Stop() {
	close(r.stopSweep)
}

// sweepLoop bounds memory growth from abandoned authorizations. Consume
// checks expiry itself, so correctness never depends on sweep timing.
func (r *StateRegistry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopSweep:
			return
		}
	}
}

func (r *StateRegistry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	now := r.now()
	for nonce, entry := range r.states {
		if now.After(entry.expiresAt) {
			delete(r.states, nonce)
			count++
		}
	}

	if count > 0 {
		logger.Debug("Swept expired authorization states", zap.Int("count", count))
	}
}
