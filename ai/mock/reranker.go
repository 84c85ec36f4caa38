package mock

import (
	"context"
	"strings"
	"sync"
)

// Reranker is a test double for ai.Reranker. The default behavior scores
// each passage by term overlap with the query, which is deterministic and
// rewards passages that actually mention the query's words.
type Reranker struct {
	// ScorePairsFunc is called by ScorePairs if set.
	ScorePairsFunc func(ctx context.Context, query string, passages []string) ([]float64, error)

	mu        sync.Mutex
	callCount int
}

// NewReranker creates a mock reranker with default overlap scoring.
func NewReranker() *Reranker {
	return &Reranker{}
}

// ScorePairs scores each passage against the query.
func (m *Reranker) ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ScorePairsFunc != nil {
		return m.ScorePairsFunc(ctx, query, passages)
	}

	queryTerms := termSet(query)
	scores := make([]float64, len(passages))
	for i, passage := range passages {
		scores[i] = overlap(queryTerms, termSet(passage))
	}
	return scores, nil
}

// CallCount returns the number of times ScorePairs was called.
func (m *Reranker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:'\"-()[]{}")
		if word != "" {
			set[word] = true
		}
	}
	return set
}

func overlap(query, passage map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for term := range query {
		if passage[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
