package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestMemoryStore_UpsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	cred := &Credential{
		UserID:                "user-1",
		EncryptedAccessToken:  "aa:bb:cc",
		EncryptedRefreshToken: "dd:ee:ff",
		ExpiresAt:             time.Now().Add(time.Hour).UTC(),
		AccountEmail:          "ada@example.com",
		Scopes:                []string{"mail.send", "mail.read"},
	}
	require.NoError(t, s.Upsert(ctx, cred))

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)

	diff := cmp.Diff(cred, got, cmpopts.IgnoreFields(Credential{}, "CreatedAt", "UpdatedAt"))
	assert.Empty(t, diff)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestMemoryStore_UpsertIsInPlace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &Credential{UserID: "user-1", AccountEmail: "old@example.com"}))

	first, err := s.Get(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, &Credential{UserID: "user-1", AccountEmail: "new@example.com"}))

	second, err := s.Get(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", second.AccountEmail)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "CreatedAt survives re-link")
	assert.Equal(t, 1, s.Count(), "update must not duplicate the record")
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &Credential{UserID: "user-1", Scopes: []string{"mail.send"}}))

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	got.Scopes[0] = "mutated"
	got.AccountEmail = "mutated@example.com"

	again, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mail.send"}, again.Scopes)
	assert.Empty(t, again.AccountEmail)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &Credential{UserID: "user-1"}))
	require.NoError(t, s.Delete(ctx, "user-1"))

	_, err := s.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	// Deleting a missing record is not an error.
	assert.NoError(t, s.Delete(ctx, "user-1"))
}

func TestMemoryStore_ConcurrentUpserts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Upsert(ctx, &Credential{
				UserID:                "user-1",
				EncryptedAccessToken:  "access",
				EncryptedRefreshToken: "refresh",
			})
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "access", got.EncryptedAccessToken)
	assert.Equal(t, "refresh", got.EncryptedRefreshToken)
	assert.Equal(t, 1, s.Count())
}
