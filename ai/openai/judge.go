package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
)

// Judge implements ai.Judge using an OpenAI-compatible chat model. It is
// only invoked by the evaluation harness's optional generation path.
type Judge struct {
	client llms.Model
	logger *slog.Logger
}

// newJudge is an internal constructor that returns the concrete type.
func newJudge(config *ai.Config) (*Judge, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.JudgeModel == "" {
		return nil, fmt.Errorf("%w: generation metrics requested but no JudgeModel configured", core.ErrConfig)
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken("none"),
		openai.WithModel(config.JudgeModel),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: judge model %q: %v", core.ErrModelLoad, config.JudgeModel, err)
	}

	return &Judge{
		client: client,
		logger: slog.Default().With("component", "openai-judge"),
	}, nil
}

// NewJudge creates a new evaluation judge using the provided configuration.
//
// Returns ai.Judge interface to enforce abstraction.
func NewJudge(config *ai.Config) (ai.Judge, error) {
	return newJudge(config)
}

// Generate answers a question using only the retrieved contexts.
func (j *Judge) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	prompt := "Context:\n" + strings.Join(contexts, "\n---\n") + "\n\nQuestion: " + question
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(generateSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	response, err := j.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		return "", fmt.Errorf("%w: answer generation: %v", core.ErrModelLoad, err)
	}
	if len(response.Choices) < 1 {
		return "", nil
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}

// Faithfulness grades how well the answer is grounded in the contexts.
func (j *Judge) Faithfulness(ctx context.Context, question, answer string, contexts []string) (float64, error) {
	prompt := "Context:\n" + strings.Join(contexts, "\n---\n") +
		"\n\nQuestion: " + question + "\n\nAnswer: " + answer
	return j.grade(ctx, faithfulnessSystemPrompt, prompt)
}

// Relevance grades how well the answer addresses the question.
func (j *Judge) Relevance(ctx context.Context, question, answer string) (float64, error) {
	prompt := "Question: " + question + "\n\nAnswer: " + answer
	return j.grade(ctx, relevanceSystemPrompt, prompt)
}

func (j *Judge) grade(ctx context.Context, system, prompt string) (float64, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	response, err := j.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		return 0, fmt.Errorf("%w: judge grading: %v", core.ErrModelLoad, err)
	}
	if len(response.Choices) < 1 {
		return 0, nil
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	score, err := parseGrade(text)
	if err != nil {
		j.logger.Warn("unparseable judge grade", "response", text)
		return 0, nil
	}
	return score, nil
}
