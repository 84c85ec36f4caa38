package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
)

// Token counting uses the cl100k_base encoding as a model-agnostic
// approximation; local models ignore a few tokens of slack.
const truncationEncoding = "cl100k_base"

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder   embeddings.Embedder
	model      string
	taskPrefix string
	maxTokens  int
	batchSize  int
	codec      *tiktoken.Tiktoken
	logger     *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't
	// require authentication.
	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding client for %q: %v", core.ErrModelLoad, config.EmbeddingModel, err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("%w: embedder for %q: %v", core.ErrModelLoad, config.EmbeddingModel, err)
	}

	var codec *tiktoken.Tiktoken
	if config.MaxTokens > 0 {
		codec, err = tiktoken.GetEncoding(truncationEncoding)
		if err != nil {
			return nil, fmt.Errorf("%w: token encoding %s: %v", core.ErrModelLoad, truncationEncoding, err)
		}
	}

	return &Embedder{
		embedder:   embedder,
		model:      config.EmbeddingModel,
		taskPrefix: config.TaskPrefix,
		maxTokens:  config.MaxTokens,
		batchSize:  config.BatchSize,
		codec:      codec,
		logger:     slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Model returns the embedding model identifier.
func (e *Embedder) Model() string { return e.model }

// EmbedText generates a normalized vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) (ai.Embedding, error) {
	results, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return ai.Embedding{}, err
	}
	if len(results) == 0 {
		e.logger.Warn("embedder returned empty result")
		return ai.Embedding{}, nil
	}
	return results[0], nil
}

// EmbedTexts generates embeddings for multiple texts, batching backend
// calls at the configured batch size. Over-long inputs are truncated to
// the model's token limit rather than failing, with the Truncated flag
// set on the affected results.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([]ai.Embedding, error) {
	prepared := make([]string, len(texts))
	truncated := make([]bool, len(texts))
	for i, text := range texts {
		prepared[i], truncated[i] = e.prepare(text)
	}

	results := make([]ai.Embedding, 0, len(texts))
	for start := 0; start < len(prepared); start += e.batchSize {
		end := start + e.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}

		vectors, err := e.embedder.EmbedDocuments(ctx, prepared[start:end])
		if err != nil {
			e.logger.Error("failed to generate embeddings", "count", end-start, "err", err)
			return nil, fmt.Errorf("%w: embed batch of %d: %v", core.ErrModelLoad, end-start, err)
		}
		for i, vec := range vectors {
			results = append(results, ai.Embedding{
				Vector:    core.NormalizeVector(vec),
				Truncated: truncated[start+i],
			})
		}
	}
	return results, nil
}

// prepare applies the task prefix and truncates the text to the token
// limit when one is configured.
func (e *Embedder) prepare(text string) (string, bool) {
	if e.codec == nil || e.maxTokens <= 0 {
		return e.taskPrefix + text, false
	}
	tokens := e.codec.Encode(text, nil, nil)
	if len(tokens) <= e.maxTokens {
		return e.taskPrefix + text, false
	}
	cut := e.codec.Decode(tokens[:e.maxTokens])
	e.logger.Debug("truncated over-long input", "tokens", len(tokens), "limit", e.maxTokens)
	return e.taskPrefix + cut, true
}
