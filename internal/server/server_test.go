package server

import (
	"context"
	"testing"
	"time"

	"github.com/kindredhq/kindred/internal/config"
	"github.com/kindredhq/kindred/internal/crypto"
	"github.com/kindredhq/kindred/internal/oauth"
	"github.com/kindredhq/kindred/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerStartsAndShutsDown(t *testing.T) {
	key := make([]byte, 32)
	cipher, err := crypto.NewTokenCipher(key)
	require.NoError(t, err)

	registry := oauth.NewStateRegistry()
	t.Cleanup(registry.Stop)
	svc := oauth.NewService(&fakeProvider{}, registry, store.NewMemoryStore(), cipher)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
	}
	srv := NewServer(cfg, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(ctx)
	}()

	// Give the listener a moment to come up, then trigger shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
