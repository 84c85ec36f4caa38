package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
)

// Reranker implements ai.Reranker by prompting an OpenAI-compatible chat
// model to grade each (query, passage) pair on a 0-10 scale.
type Reranker struct {
	client llms.Model
	logger *slog.Logger
}

// newReranker is an internal constructor that returns the concrete type.
func newReranker(config *ai.Config) (*Reranker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RerankModel == "" {
		return nil, fmt.Errorf("%w: reranking requested but no RerankModel configured", core.ErrConfig)
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken("none"),
		openai.WithModel(config.RerankModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank model %q: %v", core.ErrModelLoad, config.RerankModel, err)
	}

	return &Reranker{
		client: client,
		logger: slog.Default().With("component", "openai-reranker"),
	}, nil
}

// NewReranker creates a new reranker using the provided configuration.
//
// Returns ai.Reranker interface to enforce abstraction.
func NewReranker(config *ai.Config) (ai.Reranker, error) {
	return newReranker(config)
}

// ScorePairs grades each passage against the query. Passages whose grade
// cannot be parsed receive 0 so a single malformed reply does not void the
// whole rerank pass.
func (r *Reranker) ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores := make([]float64, len(passages))
	for i, passage := range passages {
		score, err := r.scorePair(ctx, query, passage)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}
	return scores, nil
}

func (r *Reranker) scorePair(ctx context.Context, query, passage string) (float64, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(rerankSystemPrompt)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart("Query: " + query + "\n\nPassage: " + passage),
			},
		},
	}

	response, err := r.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		r.logger.Error("failed to score pair", "err", err)
		return 0, fmt.Errorf("%w: rerank scoring: %v", core.ErrModelLoad, err)
	}
	if len(response.Choices) < 1 {
		return 0, nil
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	score, err := parseGrade(text)
	if err != nil {
		r.logger.Warn("unparseable rerank grade", "response", text)
		return 0, nil
	}
	return score, nil
}

// parseGrade extracts the leading number of a model reply and scales a
// 0-10 grade into [0,1].
func parseGrade(text string) (float64, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if len(fields) == 0 {
		return 0, fmt.Errorf("no number in %q", text)
	}
	grade, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	if grade < 0 {
		grade = 0
	}
	if grade > 10 {
		grade = 10
	}
	return grade / 10, nil
}
