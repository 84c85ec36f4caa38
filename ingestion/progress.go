package ingestion

import "sync"

// ProgressFunc receives ingestion progress: a stage label and a fraction
// in [0,1]. Callbacks are invoked synchronously from the ingesting
// goroutine, so they should return quickly.
type ProgressFunc func(stage string, fraction float64)

// Pipeline stage labels passed to the progress callback.
const (
	StageChunking  = "chunking"
	StageEmbedding = "embedding"
	StageStoring   = "storing"
)

// progressReporter wraps an optional ProgressFunc and enforces the
// callback contract: fractions are clamped to [0,1] and never decrease,
// even when batches finish out of order.
type progressReporter struct {
	fn   ProgressFunc
	mu   sync.Mutex
	last float64
}

func newProgressReporter(fn ProgressFunc) *progressReporter {
	return &progressReporter{fn: fn}
}

func (p *progressReporter) report(stage string, fraction float64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if fraction < p.last {
		fraction = p.last
	}
	if fraction > 1 {
		fraction = 1
	}
	p.last = fraction
	p.fn(stage, fraction)
}
