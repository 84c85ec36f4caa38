package mock

import (
	"context"
	"strings"
	"sync"
)

// Judge is a test double for ai.Judge. The defaults answer with the first
// context and grade with fixed scores, so evaluation tests are stable.
type Judge struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, question string, contexts []string) (string, error)

	// FaithfulnessScore is returned by Faithfulness. Default 1.0.
	FaithfulnessScore float64

	// RelevanceScore is returned by Relevance. Default 1.0.
	RelevanceScore float64

	mu        sync.Mutex
	callCount int
}

// NewJudge creates a mock judge with perfect default grades.
func NewJudge() *Judge {
	return &Judge{FaithfulnessScore: 1.0, RelevanceScore: 1.0}
}

// Generate answers from the contexts.
func (m *Judge) Generate(ctx context.Context, question string, contexts []string) (string, error) {
	m.count()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, question, contexts)
	}
	if len(contexts) == 0 {
		return "no context available", nil
	}
	return strings.TrimSpace(contexts[0]), nil
}

// Faithfulness returns the configured faithfulness score.
func (m *Judge) Faithfulness(_ context.Context, _, _ string, _ []string) (float64, error) {
	m.count()
	return m.FaithfulnessScore, nil
}

// Relevance returns the configured relevance score.
func (m *Judge) Relevance(_ context.Context, _, _ string) (float64, error) {
	m.count()
	return m.RelevanceScore, nil
}

// CallCount returns the number of times any method was called.
func (m *Judge) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *Judge) count() {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
}
