package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	// 禁用时不检查其它字段
	cfg := Config{Enabled: false}
	require.NoError(t, cfg.Validate())

	cfg = Config{Enabled: true}
	require.Error(t, cfg.Validate())

	cfg = Config{Enabled: true, Addr: "localhost:6379", TTL: "not-a-duration"}
	require.Error(t, cfg.Validate())

	cfg = Config{Enabled: true, Addr: "localhost:6379", TTL: "1m"}
	require.NoError(t, cfg.Validate())
}

func TestNewDisabledReturnsNil(t *testing.T) {
	c, err := New(Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNilCacheIsSafe(t *testing.T) {
	ctx := context.Background()
	var c *SearchCache

	var out []string
	assert.False(t, c.Get(ctx, "docs", "key", &out))

	// nil 缓存上的写入和失效都是空操作
	c.Set(ctx, "docs", "key", []string{"value"})
	c.Invalidate(ctx, "docs")
	assert.NoError(t, c.Close())
}
