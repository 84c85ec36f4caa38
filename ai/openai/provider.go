// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"log/slog"

	"github.com/poiesic/retrievit/ai"
)

// Provider implements ai.Provider using OpenAI-compatible services.
// The reranker and judge are constructed only when their models are
// configured; an explicitly requested but unconstructible optional model
// fails provider creation rather than being silently skipped.
type Provider struct {
	config   *ai.Config
	embedder ai.Embedder
	reranker *Reranker
	judge    *Judge
	logger   *slog.Logger
}

// ProviderOption configures provider construction.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	registry *ai.Registry
}

// WithRegistry routes embedder construction through the given model
// cache, so providers sharing a (model, cache dir) key share one loaded
// embedder instance instead of each loading their own.
func WithRegistry(registry *ai.Registry) ProviderOption {
	return func(o *providerOptions) {
		o.registry = registry
	}
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config, opts ...ProviderOption) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options := &providerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var embedder ai.Embedder
	var err error
	if options.registry != nil {
		embedder, err = options.registry.Embedder(config)
	} else {
		embedder, err = newEmbedder(config)
	}
	if err != nil {
		return nil, err
	}

	p := &Provider{
		config:   config,
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-provider"),
	}

	if config.RerankModel != "" {
		p.reranker, err = newReranker(config)
		if err != nil {
			return nil, err
		}
	}
	if config.JudgeModel != "" {
		p.judge, err = newJudge(config)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Reranker returns the pairwise relevance scorer, or nil when no rerank
// model was configured.
func (p *Provider) Reranker() ai.Reranker {
	if p.reranker == nil {
		return nil
	}
	return p.reranker
}

// Judge returns the evaluation judge, or nil when no judge model was
// configured.
func (p *Provider) Judge() ai.Judge {
	if p.judge == nil {
		return nil
	}
	return p.judge
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
