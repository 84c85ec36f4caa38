package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkHash fingerprints a chunk for deduplication. The hash covers the chunk
// text, its index within the document, and the owning document so that the
// same sentence appearing in two documents is not collapsed into one chunk.
func ChunkHash(text string, index int, documentID ID) ID {
	return IDFromContent(text + "\x1f" + strconv.Itoa(index) + "\x1f" + strconv.FormatUint(uint64(documentID), 16))
}

// Document represents one ingested source document.
// Superseding a document obsoletes the prior version without deleting it.
type Document struct {
	Id          ID
	Name        string
	ContentHash ID
	Version     int
	Obsolete    bool
	SourcePath  string
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// Chunk is a bounded slice of a document's text, the atomic retrieval unit.
// A chunk is immutable once it has been embedded.
type Chunk struct {
	Id          ID
	DocumentId  ID
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
	Page        int    // 1-based page number, 0 when unknown
	Label       string // optional section/page label carried from extraction
	ContentHash ID
}

// EmbeddingRecord associates a chunk with the vector produced for it,
// along with the exact configuration that produced the vector.
type EmbeddingRecord struct {
	ChunkId   ID
	Model     string
	Vector    []float32
	ChunkSize int
	Overlap   int
	Truncated bool // input exceeded the model's token limit and was cut
}

// Strategy selects how a query is dispatched.
type Strategy int

const (
	// StrategyDense searches the vector index only.
	StrategyDense Strategy = iota + 1
	// StrategySparse searches the lexical index only.
	StrategySparse
	// StrategyHybrid fuses dense and sparse rankings.
	StrategyHybrid
)

// ParseStrategy converts a strategy name to its Strategy value.
// Unknown names are a configuration error, never a silent fallback.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "dense":
		return StrategyDense, nil
	case "sparse":
		return StrategySparse, nil
	case "hybrid":
		return StrategyHybrid, nil
	default:
		return 0, fmt.Errorf("%w: unknown retrieval strategy %q", ErrConfig, name)
	}
}

// String returns the canonical strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyDense:
		return "dense"
	case StrategySparse:
		return "sparse"
	case StrategyHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// RetrievalResult is one ranked chunk returned by a retrieval operation.
type RetrievalResult struct {
	Chunk    *Chunk
	Score    float32
	Strategy Strategy
	Rank     int // 1-based rank within the returned list
}

// SimilarityMatch represents a chunk match from vector similarity search.
type SimilarityMatch struct {
	ChunkId ID
	Score   float32
}
