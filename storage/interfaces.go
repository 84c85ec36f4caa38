package storage

import (
	"context"

	"github.com/poiesic/retrievit/core"
)

// UpsertSummary reports what an Upsert did for one document.
type UpsertSummary struct {
	DocumentId core.ID
	// Created counts chunk triples written to storage.
	Created int
	// Skipped counts chunk triples dropped by content-hash deduplication.
	Skipped int
	// Failures counts chunk triples rejected by validation.
	Failures int
}

// CompactSummary reports what a Compact pass removed.
type CompactSummary struct {
	Documents int
	Chunks    int
}

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing ingested documents.
type DocumentRepository interface {
	Repository
	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocumentByName retrieves the current (non-obsolete) version of a
	// document by name. Returns ErrNotFound if no version exists.
	GetDocumentByName(ctx context.Context, name string) (*core.Document, error)

	// GetAllDocuments retrieves every stored document version, obsolete
	// versions included.
	GetAllDocuments(ctx context.Context) ([]*core.Document, error)
}

// ChunkRepository is the vector index: chunks, their embeddings, and
// similarity search over them.
type ChunkRepository interface {
	Repository
	// Upsert stores a document's chunks and embeddings in one transaction.
	// Chunks whose content hash already exists under the same
	// (model, chunk size, overlap) triple are skipped. Re-ingesting a
	// document whose content hash changed marks the prior version obsolete.
	// Re-ingesting an identical document changes nothing.
	Upsert(ctx context.Context, doc *core.Document, chunks []*core.Chunk, embeddings []*core.EmbeddingRecord) (*UpsertSummary, error)

	// Query finds the topK chunks most similar to the given vector by
	// cosine similarity, best first. An empty index yields an empty list,
	// not an error. Chunks of obsolete documents are excluded unless the
	// repository was opened with WithIncludeObsolete.
	Query(ctx context.Context, vector []float32, topK int) ([]core.SimilarityMatch, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetEmbedding retrieves the embedding stored for a chunk under the
	// given model. Returns ErrNotFound if none exists.
	GetEmbedding(ctx context.Context, chunkID core.ID, model string) (*core.EmbeddingRecord, error)

	// GetAllChunks retrieves up to limit chunks; limit <= 0 means all.
	// Obsolete documents' chunks are excluded unless the repository was
	// opened with WithIncludeObsolete.
	GetAllChunks(ctx context.Context, limit int) ([]*core.Chunk, error)

	// GetChunkCount returns the number of stored chunks, obsolete included.
	GetChunkCount(ctx context.Context) (int, error)

	// DeleteByDocument removes every version of the named document along
	// with its chunks and embeddings. Returns ErrNotFound if no version
	// of the document exists.
	DeleteByDocument(ctx context.Context, name string) error

	// Compact removes obsolete documents and their data. It is triggered
	// by an operator, never by ingestion.
	Compact(ctx context.Context) (*CompactSummary, error)
}
