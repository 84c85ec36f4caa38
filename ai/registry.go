package ai

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/retrievit/core"
)

// EmbedderFactory loads an embedder for the given configuration.
type EmbedderFactory func(config *Config) (Embedder, error)

// Registry is the process-wide embedding model cache. It is owned by the
// application's composition root and keyed by (model identifier, cache dir):
// the first caller for a key loads the model, concurrent callers for the
// same key wait on that load, and later callers share the loaded instance.
//
// A failed load is cached too; there is no built-in retry. The caller
// decides whether to construct a fresh Registry and try again.
type Registry struct {
	factory EmbedderFactory
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[registryKey]*registryEntry
}

type registryKey struct {
	model    string
	cacheDir string
}

type registryEntry struct {
	once     sync.Once
	embedder Embedder
	err      error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewRegistry creates a Registry backed by the given factory.
func NewRegistry(factory EmbedderFactory, opts ...RegistryOption) (*Registry, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: registry: embedder factory is required", core.ErrConfig)
	}
	r := &Registry{
		factory: factory,
		logger:  slog.Default(),
		entries: make(map[registryKey]*registryEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Embedder returns the embedder for the configuration's (model, cache dir)
// key, loading it on first use. Concurrent first callers do not trigger
// duplicate loads.
func (r *Registry) Embedder(config *Config) (Embedder, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: registry: config is required", core.ErrConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	key := registryKey{model: config.EmbeddingModel, cacheDir: config.CacheDir}

	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &registryEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		r.logger.Info("loading embedding model", "model", key.model, "cacheDir", key.cacheDir)
		entry.embedder, entry.err = r.factory(config)
		if entry.err != nil {
			entry.err = fmt.Errorf("%w: embedding model %q: %v", core.ErrModelLoad, key.model, entry.err)
			r.logger.Error("embedding model load failed", "model", key.model, "err", entry.err)
		}
	})

	return entry.embedder, entry.err
}

// Len reports how many (model, cache dir) entries the registry holds,
// including failed loads.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
