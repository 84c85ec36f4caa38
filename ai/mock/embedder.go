package mock

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
)

// Embedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type Embedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) (ai.Embedding, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([]ai.Embedding, error)

	mu        sync.Mutex
	callCount int
}

// NewEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// Model returns the mock model identifier.
func (m *Embedder) Model() string { return "mock-embedder" }

// EmbedText generates a deterministic embedding from the text's tokens.
func (m *Embedder) EmbedText(ctx context.Context, text string) (ai.Embedding, error) {
	m.count()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return ai.Embedding{Vector: DeterministicVector(text, 384)}, nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([]ai.Embedding, error) {
	m.count()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	embeddings := make([]ai.Embedding, len(texts))
	for i, text := range texts {
		embeddings[i] = ai.Embedding{Vector: DeterministicVector(text, 384)}
	}
	return embeddings, nil
}

// CallCount returns the number of times any method was called.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *Embedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

func (m *Embedder) count() {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
}

// DeterministicVector creates a normalized bag-of-words hash embedding.
// Texts sharing tokens get similar vectors, so retrieval tests behave the
// way a real embedding model would: an exact sentence reuse scores near 1,
// unrelated text scores near 0.
func DeterministicVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:'\"-()[]{}")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		sum := h.Sum32()
		vector[sum%uint32(dim)] += 1
		// A second bucket smooths out collisions.
		vector[(sum>>16)%uint32(dim)] += 0.5
	}
	return core.NormalizeVector(vector)
}
