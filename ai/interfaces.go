package ai

import "context"

// Embedding is the result of embedding one piece of text.
type Embedding struct {
	// Vector is L2-normalized by the embedder.
	Vector []float32

	// Truncated reports that the input exceeded the model's token limit
	// and was cut before embedding, rather than failing the call.
	Truncated bool
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a normalized vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) (Embedding, error)

	// EmbedTexts generates embeddings for multiple texts in a batch.
	// The returned slice preserves input order.
	EmbedTexts(ctx context.Context, texts []string) ([]Embedding, error)

	// Model returns the identifier of the loaded embedding model.
	Model() string
}

// Reranker scores (query, passage) pairs with a more expensive pairwise
// relevance model. Implementations must be thread-safe for concurrent use.
type Reranker interface {
	// ScorePairs returns one relevance score per passage, higher is more
	// relevant. Scores are comparable within a single call only.
	ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Judge produces and grades answers for the evaluation harness's optional
// generation benchmarking path. It is never used on the query path.
type Judge interface {
	// Generate answers a question from the retrieved contexts.
	Generate(ctx context.Context, question string, contexts []string) (string, error)

	// Faithfulness scores in [0,1] how well the answer is grounded in the
	// given contexts.
	Faithfulness(ctx context.Context, question, answer string, contexts []string) (float64, error)

	// Relevance scores in [0,1] how well the answer addresses the question.
	Relevance(ctx context.Context, question, answer string) (float64, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages the embedder and
// the optional reranker and judge, ensuring they share configuration.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Reranker returns the pairwise relevance scorer, or nil when
	// reranking was not configured.
	Reranker() Reranker

	// Judge returns the evaluation judge, or nil when no judge model
	// was configured.
	Judge() Judge

	// Close releases resources held by the provider and its services.
	Close() error
}
