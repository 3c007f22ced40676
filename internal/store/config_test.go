package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvFillsUnsetFields(t *testing.T) {
	t.Setenv("VECSTORE_ENGINE", "opensearch")
	t.Setenv("VECSTORE_COLLECTION_NAME", "env_docs")
	t.Setenv("VECSTORE_DISTANCE_METRIC", "l2")
	t.Setenv("VECSTORE_BATCH_SIZE", "25")
	t.Setenv("VECSTORE_MAX_RETRIES", "7")
	t.Setenv("VECSTORE_AUTO_CREATE_COLLECTION", "false")
	t.Setenv("VECSTORE_AUTO_CLEAR_ON_INIT", "yes")

	var cfg Config
	cfg.ApplyEnv()

	assert.Equal(t, "opensearch", cfg.Engine)
	assert.Equal(t, "env_docs", cfg.CollectionName)
	assert.Equal(t, "l2", cfg.DistanceMetric)
	require.NotNil(t, cfg.BatchSize)
	assert.Equal(t, 25, *cfg.BatchSize)
	require.NotNil(t, cfg.MaxRetries)
	assert.Equal(t, 7, *cfg.MaxRetries)
	require.NotNil(t, cfg.AutoCreateCollection)
	assert.False(t, *cfg.AutoCreateCollection)
	assert.True(t, cfg.AutoClearOnInit)
}

func TestApplyEnvFileValuesWin(t *testing.T) {
	t.Setenv("VECSTORE_ENGINE", "opensearch")
	t.Setenv("VECSTORE_BATCH_SIZE", "25")
	t.Setenv("VECSTORE_AUTO_CREATE_COLLECTION", "false")

	// 配置文件里的显式值优先于环境变量
	cfg := Config{
		Engine:               EngineMemory,
		BatchSize:            intPtr(10),
		AutoCreateCollection: boolPtr(true),
	}
	cfg.ApplyEnv()

	assert.Equal(t, EngineMemory, cfg.Engine)
	assert.Equal(t, 10, *cfg.BatchSize)
	assert.True(t, *cfg.AutoCreateCollection)
}

func TestApplyEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("VECSTORE_BATCH_SIZE", "lots")

	var cfg Config
	cfg.ApplyEnv()

	assert.Nil(t, cfg.BatchSize)
	assert.Equal(t, DefaultBatchSize, cfg.batchSize())
}

func TestValidatePersistLocationCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/data"
	cfg := Config{PersistLocation: dir}

	require.NoError(t, cfg.Validate())
	assert.DirExists(t, dir)
}

func TestReconstructEntryFallbacks(t *testing.T) {
	// content 缺失时回退到 metadata 里的 content 键
	entry := reconstructEntry("a", map[string]any{
		"metadata": map[string]any{"content": "fallback text", "category": "A"},
	})
	assert.Equal(t, "fallback text", entry.Content)
	assert.Equal(t, "A", entry.Metadata["category"])
	assert.Empty(t, entry.Embedding)

	// JSON 往返产生的 []any 向量被还原成 []float32
	entry = reconstructEntry("b", map[string]any{
		"content":   "typed",
		"embedding": []any{float64(0.1), float64(0.2)},
	})
	assert.Equal(t, "typed", entry.Content)
	assert.Equal(t, []float32{0.1, 0.2}, entry.Embedding)
	assert.NotNil(t, entry.Metadata)
	assert.Empty(t, entry.Metadata)

	// 完全空的文档退化为零值而不是报错
	entry = reconstructEntry("c", map[string]any{})
	assert.Equal(t, "c", entry.ID)
	assert.Empty(t, entry.Content)
	assert.NotNil(t, entry.Metadata)
}
