package main

import (
	"testing"

	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/persistence"
	"github.com/Layr-Labs/bip322-go/pkg/persistence/badger"
	"github.com/Layr-Labs/bip322-go/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildCache(t *testing.T) {
	l := zap.NewNop()

	t.Run("none", func(t *testing.T) {
		cache, err := buildCache(&config.ServerConfig{CacheType: config.CacheTypeNone}, l)
		require.NoError(t, err)
		assert.Nil(t, cache)
	})

	t.Run("memory", func(t *testing.T) {
		cache, err := buildCache(&config.ServerConfig{CacheType: config.CacheTypeMemory}, l)
		require.NoError(t, err)
		_, ok := cache.(*memory.MemoryCache)
		assert.True(t, ok)
		require.NoError(t, cache.Close())
	})

	t.Run("badger", func(t *testing.T) {
		cache, err := buildCache(&config.ServerConfig{
			CacheType: config.CacheTypeBadger,
			CachePath: t.TempDir(),
		}, l)
		require.NoError(t, err)
		_, ok := cache.(*badger.BadgerCache)
		require.True(t, ok)
		defer func() { _ = cache.Close() }()

		key := persistence.CacheKey("addr", []byte("msg"), "sig")
		require.NoError(t, cache.Put(key, &persistence.CachedResult{Address: "addr", Valid: true, CachedAt: 1}))
		got, err := cache.Get(key)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Valid)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := buildCache(&config.ServerConfig{CacheType: "etcd"}, l)
		assert.Error(t, err)
	})
}
