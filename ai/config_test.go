package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, 32, cfg.BatchSize)
}

func TestConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://localhost:9100"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithRerankModel("qwen2.5:3b"),
		WithJudgeModel("qwen2.5:7b"),
		WithCacheDir("/var/cache/models"),
		WithTaskPrefix("search_document: "),
		WithQueryPrefix("search_query: "),
		WithMaxTokens(512),
		WithBatchSize(8),
	)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:9100/v1", cfg.Host) // normalized
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.RerankModel)
	assert.Equal(t, "qwen2.5:7b", cfg.JudgeModel)
	assert.Equal(t, "/var/cache/models", cfg.CacheDir)
	assert.Equal(t, "search_document: ", cfg.TaskPrefix)
	assert.Equal(t, "search_query: ", cfg.QueryPrefix)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.Equal(t, 8, cfg.BatchSize)
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "bare host", host: "http://localhost:11434", want: "http://localhost:11434/v1"},
		{name: "trailing slash", host: "http://localhost:11434/", want: "http://localhost:11434/v1"},
		{name: "already suffixed", host: "http://localhost:11434/v1", want: "http://localhost:11434/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithHost(tt.host))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.Host)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("missing host", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Host = ""
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfig)
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingModel(""))
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfig)
	})

	t.Run("negative max tokens", func(t *testing.T) {
		cfg := NewConfig(WithMaxTokens(-1))
		assert.ErrorIs(t, cfg.Validate(), core.ErrConfig)
	})
}
