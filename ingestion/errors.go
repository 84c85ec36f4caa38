package ingestion

import "errors"

var (
	// ErrChunkRepositoryRequired indicates the pipeline was created without storage.
	ErrChunkRepositoryRequired = errors.New("chunk repository is required")

	// ErrEmbedderRequired indicates the pipeline was created without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrChunkerRequired indicates the pipeline was created without a chunker.
	ErrChunkerRequired = errors.New("chunker is required")

	// ErrEmptySource indicates a source document with no text.
	ErrEmptySource = errors.New("source document has no text")
)
