package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

type stubEmbedder struct {
	model string
}

func (s *stubEmbedder) EmbedText(_ context.Context, _ string) (Embedding, error) {
	return Embedding{Vector: []float32{1}}, nil
}

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([]Embedding, error) {
	out := make([]Embedding, len(texts))
	for i := range out {
		out[i] = Embedding{Vector: []float32{1}}
	}
	return out, nil
}

func (s *stubEmbedder) Model() string { return s.model }

func TestNewRegistry_RequiresFactory(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestRegistry_LoadsOncePerKey(t *testing.T) {
	var loads atomic.Int32
	registry, err := NewRegistry(func(config *Config) (Embedder, error) {
		loads.Add(1)
		return &stubEmbedder{model: config.EmbeddingModel}, nil
	})
	require.NoError(t, err)

	cfg := NewConfig(WithEmbeddingModel("model-a"), WithCacheDir("/tmp/models"))

	first, err := registry.Embedder(cfg)
	require.NoError(t, err)
	second, err := registry.Embedder(cfg)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), loads.Load())
}

func TestRegistry_DistinctKeysLoadSeparately(t *testing.T) {
	var loads atomic.Int32
	registry, err := NewRegistry(func(config *Config) (Embedder, error) {
		loads.Add(1)
		return &stubEmbedder{model: config.EmbeddingModel}, nil
	})
	require.NoError(t, err)

	_, err = registry.Embedder(NewConfig(WithEmbeddingModel("model-a")))
	require.NoError(t, err)
	_, err = registry.Embedder(NewConfig(WithEmbeddingModel("model-b")))
	require.NoError(t, err)
	_, err = registry.Embedder(NewConfig(WithEmbeddingModel("model-a"), WithCacheDir("/elsewhere")))
	require.NoError(t, err)

	assert.Equal(t, int32(3), loads.Load())
	assert.Equal(t, 3, registry.Len())
}

func TestRegistry_ConcurrentFirstCallersShareOneLoad(t *testing.T) {
	var loads atomic.Int32
	registry, err := NewRegistry(func(config *Config) (Embedder, error) {
		loads.Add(1)
		return &stubEmbedder{model: config.EmbeddingModel}, nil
	})
	require.NoError(t, err)

	cfg := NewConfig(WithEmbeddingModel("model-a"))

	var wg sync.WaitGroup
	embedders := make([]Embedder, 16)
	for i := range embedders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := registry.Embedder(cfg)
			require.NoError(t, err)
			embedders[i] = e
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, e := range embedders {
		assert.Same(t, embedders[0], e)
	}
}

func TestRegistry_FailedLoadIsModelLoadError(t *testing.T) {
	registry, err := NewRegistry(func(config *Config) (Embedder, error) {
		return nil, errors.New("connection refused")
	})
	require.NoError(t, err)

	cfg := NewConfig(WithEmbeddingModel("unreachable"))

	_, err = registry.Embedder(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrModelLoad)

	// No built-in retry: the second call observes the cached failure.
	_, err2 := registry.Embedder(cfg)
	assert.Equal(t, err, err2)
}
