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


package ai

import (
	"fmt"
	"strings"

	"github.com/poiesic/retrievit/core"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Host is the base URL for the OpenAI-compatible model server.
	// Example: "http://localhost:11434/v1" for a local Ollama instance.
	Host string

	// EmbeddingModel is the model identifier used for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// RerankModel is the model identifier used for pairwise relevance
	// scoring. Empty disables reranking support.
	RerankModel string

	// JudgeModel is the model identifier used by the evaluation harness
	// for generation and grading. Empty disables generation metrics.
	JudgeModel string

	// CacheDir is the local model cache location, part of the registry
	// key so the same model from two caches loads twice.
	CacheDir string

	// TaskPrefix is prepended to every embedded text, for models that
	// expect a task instruction (e.g. "search_document: ").
	TaskPrefix string

	// QueryPrefix is prepended to query text instead of TaskPrefix,
	// for models with asymmetric document/query instructions.
	QueryPrefix string

	// MaxTokens is the model's input token limit. Longer inputs are
	// truncated, never rejected. Zero disables truncation.
	MaxTokens int

	// BatchSize is the number of chunks embedded per backend call.
	// Default: 32
	BatchSize int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the model server host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) { c.Host = host }
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) { c.EmbeddingModel = model }
}

// WithRerankModel sets the reranker model identifier.
func WithRerankModel(model string) ConfigOption {
	return func(c *Config) { c.RerankModel = model }
}

// WithJudgeModel sets the evaluation judge model identifier.
func WithJudgeModel(model string) ConfigOption {
	return func(c *Config) { c.JudgeModel = model }
}

// WithCacheDir sets the local model cache location.
func WithCacheDir(dir string) ConfigOption {
	return func(c *Config) { c.CacheDir = dir }
}

// WithTaskPrefix sets the instruction prefix for document embeddings.
func WithTaskPrefix(prefix string) ConfigOption {
	return func(c *Config) { c.TaskPrefix = prefix }
}

// WithQueryPrefix sets the instruction prefix for query embeddings.
func WithQueryPrefix(prefix string) ConfigOption {
	return func(c *Config) { c.QueryPrefix = prefix }
}

// WithMaxTokens sets the input token limit for truncation.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) { c.MaxTokens = n }
}

// WithBatchSize sets the embedding batch size.
func WithBatchSize(n int) ConfigOption {
	return func(c *Config) { c.BatchSize = n }
}

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible service.
func DefaultConfig() *Config {
	return &Config{
		Host:           "http://localhost:11434/v1",
		EmbeddingModel: "embeddinggemma",
		MaxTokens:      2048,
		BatchSize:      32,
	}
}

// NewConfig creates a Config with default values and applies the provided
// options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form. It adds the
// /v1 suffix to the host if missing, which is required by most
// OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
	if c.BatchSize < 1 {
		c.BatchSize = 32
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return fmt.Errorf("%w: ai config: Host is required", core.ErrConfig)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: ai config: EmbeddingModel is required", core.ErrConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: ai config: MaxTokens must not be negative", core.ErrConfig)
	}
	return nil
}
