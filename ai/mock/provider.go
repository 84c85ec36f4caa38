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


package mock

import "github.com/poiesic/retrievit/ai"

// Provider is a test double for ai.Provider.
// It aggregates mock embedder, reranker, and judge instances.
type Provider struct {
	embedder *Embedder
	reranker *Reranker
	judge    *Judge
}

// NewProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production
// constructors. Use GetEmbedder()/GetReranker()/GetJudge() to access
// concrete types for test assertions.
func NewProvider() ai.Provider {
	return &Provider{
		embedder: NewEmbedder(),
		reranker: NewReranker(),
		judge:    NewJudge(),
	}
}

// NewProviderWithServices creates a mock provider with custom mock
// services. Nil services are reported as unavailable.
func NewProviderWithServices(embedder *Embedder, reranker *Reranker, judge *Judge) ai.Provider {
	return &Provider{embedder: embedder, reranker: reranker, judge: judge}
}

// Embedder returns the mock embedder.
func (p *Provider) Embedder() ai.Embedder {
	if p.embedder == nil {
		return nil
	}
	return p.embedder
}

// Reranker returns the mock reranker.
func (p *Provider) Reranker() ai.Reranker {
	if p.reranker == nil {
		return nil
	}
	return p.reranker
}

// Judge returns the mock judge.
func (p *Provider) Judge() ai.Judge {
	if p.judge == nil {
		return nil
	}
	return p.judge
}

// Close is a no-op for mock provider.
func (p *Provider) Close() error {
	return nil
}

// GetEmbedder returns the underlying mock embedder for test assertions.
func (p *Provider) GetEmbedder() *Embedder { return p.embedder }

// GetReranker returns the underlying mock reranker for test assertions.
func (p *Provider) GetReranker() *Reranker { return p.reranker }

// GetJudge returns the underlying mock judge for test assertions.
func (p *Provider) GetJudge() *Judge { return p.judge }
