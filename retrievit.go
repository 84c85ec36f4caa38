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

package retrievit

import (
	"log/slog"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/ai/openai"
	"github.com/poiesic/retrievit/chunking"
	"github.com/poiesic/retrievit/eval"
	"github.com/poiesic/retrievit/ingestion"
	"github.com/poiesic/retrievit/retrieval"
	"github.com/poiesic/retrievit/storage"
	"github.com/poiesic/retrievit/storage/badger"
)

// embedders is the process-wide embedding model cache. Every database in
// the process draws its embedder from here, so repeated opens sharing a
// (model, cache dir) key share one loaded instance.
var embedders = newEmbedderRegistry()

func newEmbedderRegistry() *ai.Registry {
	registry, err := ai.NewRegistry(openai.NewEmbedder)
	if err != nil {
		panic(err)
	}
	return registry
}

type Database struct {
	backend         *badger.Backend
	documentRepo    storage.DocumentRepository
	chunkRepo       storage.ChunkRepository
	provider        ai.Provider
	chunkingConfig  chunking.Config
	retrievalConfig retrieval.Config
	logger          *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig        *ai.Config
	chunkingConfig  chunking.Config
	retrievalConfig retrieval.Config
	provider        ai.Provider
	inMemory        bool
	includeObsolete bool
}

// WithAIConfig sets the model configuration used to construct the AI
// provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithChunkingConfig sets the chunking parameters used by ingestion
// pipelines created from this database.
func WithChunkingConfig(config chunking.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.chunkingConfig = config
	}
}

// WithRetrievalConfig sets the retrieval parameters used by
// orchestrators created from this database.
func WithRetrievalConfig(config retrieval.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.retrievalConfig = config
	}
}

// WithProvider supplies a pre-built AI provider instead of constructing
// one from the AI config. The database takes ownership and closes it.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory opens the storage backend in memory, discarding all data
// on close.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithObsoleteVisible makes similarity search and chunk listings include
// chunks belonging to obsolete document versions.
func WithObsoleteVisible() DatabaseOption {
	return func(o *databaseOptions) {
		o.includeObsolete = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig:        ai.DefaultConfig(), // Default if not provided
		chunkingConfig:  chunking.DefaultConfig(),
		retrievalConfig: retrieval.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	// Create document repository
	documentRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create the AI provider first so the chunk repository can pin its
	// vector index to the configured embedding model.
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig, openai.WithRegistry(embedders))
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	chunkOpts := []badger.Option{
		badger.WithModel(provider.Embedder().Model()),
	}
	if options.includeObsolete {
		chunkOpts = append(chunkOpts, badger.WithIncludeObsolete())
	}
	chunkRepo, err := badger.NewChunkRepository(backend, chunkOpts...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:         backend,
		documentRepo:    documentRepo,
		chunkRepo:       chunkRepo,
		provider:        provider,
		chunkingConfig:  options.chunkingConfig,
		retrievalConfig: options.retrievalConfig,
		logger:          slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	// Close repositories
	if err := db.chunkRepo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := db.documentRepo.Close(); err != nil {
		db.logger.Error("error closing document repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) DocumentRepository() storage.DocumentRepository {
	return db.documentRepo
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

func (db *Database) Provider() ai.Provider {
	return db.provider
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	chunker, err := chunking.New(db.chunkingConfig)
	if err != nil {
		return nil, err
	}
	return ingestion.NewPipeline(db.chunkRepo, db.provider.Embedder(), chunker, opts...)
}

func (db *Database) NewOrchestrator(opts ...retrieval.Option) (*retrieval.Orchestrator, error) {
	if db.retrievalConfig.Rerank {
		if reranker := db.provider.Reranker(); reranker != nil {
			opts = append(opts, retrieval.WithReranker(reranker))
		}
	}
	return retrieval.New(db.provider.Embedder(), db.chunkRepo, db.retrievalConfig, opts...)
}

func (db *Database) NewHarness(opts ...eval.Option) (*eval.Harness, error) {
	orchestrator, err := db.NewOrchestrator()
	if err != nil {
		return nil, err
	}
	if judge := db.provider.Judge(); judge != nil {
		opts = append(opts, eval.WithJudge(judge))
	}
	return eval.New(orchestrator, opts...)
}
