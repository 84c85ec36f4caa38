package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/chunking"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

const defaultBatchSize = 32

// Source is one document handed to the pipeline.
type Source struct {
	Name       string
	Text       string
	SourcePath string
	// Pages, when set, takes precedence over Text and feeds the page
	// chunking strategy.
	Pages []chunking.Page
}

// IngestSummary reports the outcome of ingesting one document.
type IngestSummary struct {
	Document      string
	DocumentId    core.ID
	ChunksCreated int
	ChunksSkipped int
	Failures      int
	Truncated     int
	Duration      time.Duration
	// Err is set when the document failed as a whole; the counters then
	// reflect whatever happened before the failure.
	Err error
}

// Pipeline ingests documents: chunk, embed in batches, store. Documents
// run concurrently on a worker pool; within one document the stages are
// sequential so a partially embedded document never reaches storage.
type Pipeline struct {
	chunks    storage.ChunkRepository
	embedder  ai.Embedder
	chunker   *chunking.Chunker
	docPool   *ants.Pool
	embedPool *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.docPool != nil {
			p.docPool.Release()
		}
		if p.embedPool != nil {
			p.embedPool.Release()
		}

		docPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		embedPool, err := ants.NewPool(size)
		if err != nil {
			docPool.Release()
			return err
		}

		p.docPool = docPool
		p.embedPool = embedPool
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per model call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size %d must be positive", core.ErrConfig, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	chunks storage.ChunkRepository,
	embedder ai.Embedder,
	chunker *chunking.Chunker,
	opts ...Option,
) (*Pipeline, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	docPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	embedPool, err := ants.NewPool(poolSize)
	if err != nil {
		docPool.Release()
		return nil, err
	}

	p := &Pipeline{
		chunks:    chunks,
		embedder:  embedder,
		chunker:   chunker,
		docPool:   docPool,
		embedPool: embedPool,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// IngestDocument runs one document through the pipeline. The optional
// progress callback receives a stage label and a monotonic fraction in
// [0,1]. Cancelling the context aborts between stages and batches.
func (p *Pipeline) IngestDocument(ctx context.Context, source Source, progress ProgressFunc) (*IngestSummary, error) {
	start := time.Now()
	summary := &IngestSummary{Document: source.Name}
	reporter := newProgressReporter(progress)

	if source.Name == "" {
		return nil, fmt.Errorf("%w: source document has no name", core.ErrValidation)
	}
	content := source.Text
	if len(source.Pages) > 0 {
		texts := make([]string, len(source.Pages))
		for i, page := range source.Pages {
			texts[i] = page.Text
		}
		content = strings.Join(texts, "\n")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptySource, source.Name)
	}

	doc := &core.Document{
		Name:        source.Name,
		ContentHash: core.IDFromContent(content),
		SourcePath:  source.SourcePath,
	}
	doc.Id = core.IDFromContent(fmt.Sprintf("%s\x1f%x", doc.Name, uint64(doc.ContentHash)))
	summary.DocumentId = doc.Id

	reporter.report(StageChunking, 0)
	var chunks []*core.Chunk
	var err error
	if len(source.Pages) > 0 {
		chunks, err = p.chunker.SplitPages(doc.Id, source.Pages)
	} else {
		chunks, err = p.chunker.Split(doc.Id, content)
	}
	if err != nil {
		return nil, err
	}
	reporter.report(StageChunking, 0.1)

	embeddings, truncated, err := p.embedChunks(ctx, chunks, reporter)
	if err != nil {
		return nil, err
	}
	summary.Truncated = truncated

	reporter.report(StageStoring, 0.9)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upsert, err := p.chunks.Upsert(ctx, doc, chunks, embeddings)
	if err != nil {
		return nil, err
	}
	summary.ChunksCreated = upsert.Created
	summary.ChunksSkipped = upsert.Skipped
	summary.Failures = upsert.Failures
	summary.Duration = time.Since(start)
	reporter.report(StageStoring, 1)

	p.logger.Info("document ingested",
		"document", source.Name,
		"created", summary.ChunksCreated,
		"skipped", summary.ChunksSkipped,
		"failures", summary.Failures,
		"duration", summary.Duration)
	return summary, nil
}

// IngestAll runs sources through the pipeline concurrently. Every source
// gets a summary; per-document failures land in the summary's Err field
// and do not stop the others.
func (p *Pipeline) IngestAll(ctx context.Context, sources []Source, progress ProgressFunc) []*IngestSummary {
	summaries := make([]*IngestSummary, len(sources))
	reporter := newProgressReporter(progress)

	var done int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, source := range sources {
		i, source := i, source
		wg.Add(1)
		err := p.docPool.Submit(func() {
			defer wg.Done()
			summary, err := p.IngestDocument(ctx, source, nil)
			if err != nil {
				summary = &IngestSummary{Document: source.Name, Err: err}
				p.logger.Error("document ingestion failed", "document", source.Name, "err", err)
			}
			summaries[i] = summary

			mu.Lock()
			done++
			fraction := float64(done) / float64(len(sources))
			mu.Unlock()
			reporter.report(StageStoring, fraction)
		})
		if err != nil {
			wg.Done()
			summaries[i] = &IngestSummary{Document: source.Name, Err: err}
		}
	}
	wg.Wait()
	return summaries
}

// embedChunks embeds chunk texts in batches on the worker pool, keeping
// result order aligned with the chunks.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk, reporter *progressReporter) ([]*core.EmbeddingRecord, int, error) {
	if len(chunks) == 0 {
		return nil, 0, nil
	}
	config := p.chunker.Config()
	model := p.embedder.Model()
	records := make([]*core.EmbeddingRecord, len(chunks))

	batches := (len(chunks) + p.batchSize - 1) / p.batchSize
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	var finished, truncated int

	for start := 0; start < len(chunks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		start := start
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		wg.Add(1)
		submitErr := p.embedPool.Submit(func() {
			defer wg.Done()

			texts := make([]string, end-start)
			for i, chunk := range chunks[start:end] {
				texts[i] = chunk.Text
			}
			results, err := p.embedder.EmbedTexts(ctx, texts)
			if err == nil && len(results) != len(texts) {
				err = fmt.Errorf("%w: embedder returned %d vectors for %d texts", core.ErrModelLoad, len(results), len(texts))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			for i, result := range results {
				chunk := chunks[start+i]
				records[start+i] = &core.EmbeddingRecord{
					ChunkId:   chunk.Id,
					Model:     model,
					Vector:    result.Vector,
					ChunkSize: config.ChunkSize,
					Overlap:   config.Overlap,
					Truncated: result.Truncated,
				}
				if result.Truncated {
					truncated++
				}
			}
			finished++
			fraction := 0.1 + 0.8*float64(finished)/float64(batches)
			reporter.report(StageEmbedding, fraction)
		})
		if submitErr != nil {
			wg.Done()
			return nil, 0, submitErr
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, 0, firstErr
	}
	out := make([]*core.EmbeddingRecord, 0, len(records))
	for _, record := range records {
		if record != nil {
			out = append(out, record)
		}
	}
	return out, truncated, nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.docPool != nil {
		p.docPool.Release()
	}
	if p.embedPool != nil {
		p.embedPool.Release()
	}
}
