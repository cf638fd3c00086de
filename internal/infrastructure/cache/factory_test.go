package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolfees/backend/internal/infrastructure/config"
)

func TestClaimStoreFactory_CreateStore(t *testing.T) {
	t.Run("redis disabled uses memory", func(t *testing.T) {
		store, err := NewClaimStoreFactory(config.RedisConfig{Enabled: false}).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryClaimStore{}, store)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		store, err := NewClaimStoreFactory(cfg).CreateStore()
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryClaimStore{}, store)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		_, err := NewClaimStoreFactory(cfg, WithInMemoryFallback(false)).CreateStore()
		assert.Error(t, err)
	})
}
