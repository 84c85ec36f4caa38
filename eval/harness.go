package eval

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/retrieval"
)

// Generation status values in reports. A missing judge marks the
// generation metrics skipped rather than scoring them zero, so absent
// infrastructure is never mistaken for a bad configuration.
const (
	GenerationJudged  = "judged"
	GenerationSkipped = "skipped"
)

// RunConfig is one retrieval configuration to benchmark.
type RunConfig struct {
	Name     string
	Strategy core.Strategy
	TopK     int
}

// Harness runs a benchmark dataset against one or more retrieval
// configurations and aggregates the metrics.
type Harness struct {
	orchestrator *retrieval.Orchestrator
	judge        ai.Judge
	logger       *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithJudge enables the generation benchmarking step: answers are
// generated from the retrieved contexts and graded for faithfulness and
// relevance.
func WithJudge(judge ai.Judge) Option {
	return func(h *Harness) {
		h.judge = judge
	}
}

// WithLogger sets the logger used by the harness.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a Harness over an orchestrator.
func New(orchestrator *retrieval.Orchestrator, opts ...Option) (*Harness, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("%w: harness requires an orchestrator", core.ErrConfig)
	}
	h := &Harness{
		orchestrator: orchestrator,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Run benchmarks every configuration against the dataset. Query failures
// abort the run; judge failures degrade that query's generation scores to
// skipped and continue.
func (h *Harness) Run(ctx context.Context, items []Item, configs []RunConfig) (*Report, error) {
	if err := ValidateDataset(items); err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no run configurations", core.ErrConfig)
	}

	report := &Report{GeneratedAt: time.Now().UTC()}
	for _, config := range configs {
		if config.TopK < 1 {
			return nil, fmt.Errorf("%w: run %q: topK must be positive", core.ErrConfig, config.Name)
		}
		configReport, err := h.runConfig(ctx, items, config)
		if err != nil {
			return nil, fmt.Errorf("run %q: %w", config.Name, err)
		}
		report.Configs = append(report.Configs, *configReport)
	}
	return report, nil
}

func (h *Harness) runConfig(ctx context.Context, items []Item, config RunConfig) (*ConfigReport, error) {
	start := time.Now()
	configReport := &ConfigReport{
		Name:       config.Name,
		Strategy:   config.Strategy.String(),
		TopK:       config.TopK,
		Generation: GenerationSkipped,
	}
	if h.judge != nil {
		configReport.Generation = GenerationJudged
	}

	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	// Queries run concurrently on the pool; results land in their item's
	// slot so report order matches dataset order.
	perQuery := make([]QueryMetrics, len(items))
	queryResults := make([]QueryResult, len(items))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i, item := i, item

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			results, err := h.orchestrator.Retrieve(ctx, retrieval.Request{
				Query:    item.Question,
				Strategy: config.Strategy,
				TopK:     config.TopK,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}

			passages := make([]string, len(results))
			for j, r := range results {
				passages[j] = r.Chunk.Text
			}
			metrics := scoreQuery(passages, item.GroundTruthContexts, config.TopK)
			perQuery[i] = metrics

			queryResult := QueryResult{Question: item.Question, Metrics: metrics}
			if h.judge != nil {
				queryResult.Generation = h.judgeQuery(ctx, item, passages)
			}
			queryResults[i] = queryResult
		})
		if submitErr != nil {
			wg.Done()
			return nil, submitErr
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	configReport.Queries = queryResults

	mean, hitRate := meanMetrics(perQuery)
	configReport.Mean = mean
	configReport.HitRate = hitRate
	configReport.aggregateGeneration()
	configReport.Duration = time.Since(start)

	h.logger.Info("benchmark configuration finished",
		"run", config.Name,
		"strategy", config.Strategy.String(),
		"topK", config.TopK,
		"precision", fmt.Sprintf("%.3f", mean.Precision),
		"recall", fmt.Sprintf("%.3f", mean.Recall),
		"mrr", fmt.Sprintf("%.3f", mean.MRR),
		"hit_rate", fmt.Sprintf("%.3f", hitRate),
		"duration", configReport.Duration)
	return configReport, nil
}

// judgeQuery runs the generation step for one query. Any judge failure
// downgrades this query to skipped; the harness never invents a zero.
func (h *Harness) judgeQuery(ctx context.Context, item Item, passages []string) *GenerationScores {
	answer, err := h.judge.Generate(ctx, item.Question, passages)
	if err != nil {
		h.logger.Warn("generation skipped", "question", item.Question, "err", err)
		return nil
	}
	faithfulness, err := h.judge.Faithfulness(ctx, item.Question, answer, passages)
	if err != nil {
		h.logger.Warn("faithfulness grading skipped", "question", item.Question, "err", err)
		return nil
	}
	relevance, err := h.judge.Relevance(ctx, item.Question, answer)
	if err != nil {
		h.logger.Warn("relevance grading skipped", "question", item.Question, "err", err)
		return nil
	}
	return &GenerationScores{
		Answer:       answer,
		Faithfulness: faithfulness,
		Relevance:    relevance,
	}
}
