package embed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	// 禁用时不检查凭证
	cfg := Config{Enabled: false}
	require.NoError(t, cfg.Validate())

	cfg = Config{Enabled: true, Model: "text-embedding-3-small"}
	require.Error(t, cfg.Validate())

	cfg = Config{Enabled: true, APIKey: "sk-test"}
	require.Error(t, cfg.Validate())

	cfg = Config{Enabled: true, APIKey: "sk-test", Model: "text-embedding-3-small"}
	require.NoError(t, cfg.Validate())

	cfg = Config{Enabled: true, APIKey: "sk-test", Model: "m", Dimensions: -1}
	require.Error(t, cfg.Validate())
}
