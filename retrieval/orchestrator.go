package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/sparse"
	"github.com/poiesic/retrievit/storage"
)

// Request is one retrieval query.
type Request struct {
	Query    string
	Strategy core.Strategy
	// TopK overrides the configured default when positive.
	TopK int
}

// Orchestrator dispatches queries across the dense and sparse indexes and
// applies fusion, optional reranking, and optional diversity selection.
type Orchestrator struct {
	config   Config
	logger   *slog.Logger
	embedder ai.Embedder
	reranker ai.Reranker
	chunks   storage.ChunkRepository
	lexical  *sparse.Index

	// buildMu guards the lazy first build of the lexical index.
	buildMu sync.Mutex
	built   bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets the logger used by the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			return fmt.Errorf("%w: logger must not be nil", core.ErrConfig)
		}
		o.logger = logger
		return nil
	}
}

// WithReranker provides the pairwise relevance model used when the
// configuration enables reranking.
func WithReranker(reranker ai.Reranker) Option {
	return func(o *Orchestrator) error {
		o.reranker = reranker
		return nil
	}
}

// WithSparseIndex replaces the default BM25 index, mainly to tune its
// parameters.
func WithSparseIndex(ix *sparse.Index) Option {
	return func(o *Orchestrator) error {
		if ix == nil {
			return fmt.Errorf("%w: sparse index must not be nil", core.ErrConfig)
		}
		o.lexical = ix
		return nil
	}
}

// New creates an Orchestrator. An enabled feature whose model is missing
// is a configuration error here, not a silent skip at query time.
func New(embedder ai.Embedder, chunks storage.ChunkRepository, config Config, opts ...Option) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: orchestrator requires an embedder", core.ErrConfig)
	}
	if chunks == nil {
		return nil, fmt.Errorf("%w: orchestrator requires a chunk repository", core.ErrConfig)
	}

	o := &Orchestrator{
		config:   config,
		logger:   slog.Default(),
		embedder: embedder,
		chunks:   chunks,
		lexical:  sparse.New(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if config.Rerank && o.reranker == nil {
		return nil, fmt.Errorf("%w: reranking enabled but no reranker configured", core.ErrConfig)
	}
	return o, nil
}

// Retrieve runs one query and returns at most topK results, tagged with
// the originating strategy, ordered by non-increasing score with a stable
// chunk-ID tie-break.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) ([]*core.RetrievalResult, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("%w: empty query", core.ErrValidation)
	}
	topK := req.TopK
	if topK < 1 {
		topK = o.config.TopK
	}
	poolSize := o.poolSize(topK)

	var cands []candidate
	var err error
	switch req.Strategy {
	case core.StrategyDense:
		var matches []core.SimilarityMatch
		matches, err = o.denseSearch(ctx, req.Query, poolSize)
		cands = toCandidates(matches)
	case core.StrategySparse:
		var matches []core.SimilarityMatch
		matches, err = o.sparseSearch(ctx, req.Query, poolSize)
		cands = toCandidates(matches)
	case core.StrategyHybrid:
		cands, err = o.hybridSearch(ctx, req.Query, topK, poolSize)
	default:
		return nil, fmt.Errorf("%w: unknown retrieval strategy %d", core.ErrConfig, req.Strategy)
	}
	if err != nil {
		return nil, err
	}

	if o.config.Rerank && len(cands) > 0 {
		cands, err = o.rerank(ctx, req.Query, cands)
		if err != nil {
			return nil, err
		}
	}

	if o.config.Diversify && len(cands) > 1 {
		cands, err = o.diversify(ctx, cands, topK)
		if err != nil {
			return nil, err
		}
	}

	if len(cands) > topK {
		cands = cands[:topK]
	}
	return o.hydrate(ctx, cands, req.Strategy)
}

// RefreshSparse rebuilds the lexical index from the stored chunk set.
// Callers may invoke it after ingestion or on a schedule; queries seen
// during the rebuild use the prior snapshot.
func (o *Orchestrator) RefreshSparse(ctx context.Context) error {
	chunks, err := o.chunks.GetAllChunks(ctx, 0)
	if err != nil {
		return err
	}
	o.lexical.BuildOrUpdate(chunks)
	o.buildMu.Lock()
	o.built = true
	o.buildMu.Unlock()
	o.logger.Debug("lexical index rebuilt", "chunks", len(chunks))
	return nil
}

// poolSize is how many candidates to gather before truncation, wide
// enough for fusion and for the reranker's pool.
func (o *Orchestrator) poolSize(topK int) int {
	n := o.config.FetchK
	if n == 0 {
		n = 2 * topK
	}
	if n < topK {
		n = topK
	}
	if o.config.Rerank && n < o.config.RerankPool {
		n = o.config.RerankPool
	}
	return n
}

func (o *Orchestrator) denseSearch(ctx context.Context, query string, n int) ([]core.SimilarityMatch, error) {
	embedded, err := o.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return o.chunks.Query(ctx, embedded.Vector, n)
}

func (o *Orchestrator) sparseSearch(ctx context.Context, query string, n int) ([]core.SimilarityMatch, error) {
	if err := o.ensureSparse(ctx); err != nil {
		return nil, err
	}
	return o.lexical.Query(query, n), nil
}

func (o *Orchestrator) hybridSearch(ctx context.Context, query string, topK, poolSize int) ([]candidate, error) {
	dense, err := o.denseSearch(ctx, query, poolSize)
	if err != nil {
		return nil, err
	}
	lexical, err := o.sparseSearch(ctx, query, poolSize)
	if err != nil {
		return nil, err
	}
	fused := fuseRRF(o.config.RRFConstant, dense, lexical)
	if len(fused) > poolSize {
		fused = fused[:poolSize]
	}
	return fused, nil
}

// ensureSparse builds the lexical index on first use.
func (o *Orchestrator) ensureSparse(ctx context.Context) error {
	o.buildMu.Lock()
	built := o.built
	o.buildMu.Unlock()
	if built {
		return nil
	}
	return o.RefreshSparse(ctx)
}

// rerank re-scores the head of the candidate list with the pairwise
// relevance model and re-sorts it; candidates past the pool keep their
// order below the reranked head.
func (o *Orchestrator) rerank(ctx context.Context, query string, cands []candidate) ([]candidate, error) {
	pool := o.config.RerankPool
	if pool > len(cands) {
		pool = len(cands)
	}
	head, tail := cands[:pool], cands[pool:]

	ids := make([]core.ID, len(head))
	for i, c := range head {
		ids[i] = c.id
	}
	chunks, err := o.chunks.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}
	texts := make(map[core.ID]string, len(chunks))
	for _, chunk := range chunks {
		texts[chunk.Id] = chunk.Text
	}

	passages := make([]string, len(head))
	for i, c := range head {
		passages[i] = texts[c.id]
	}
	scores, err := o.reranker.ScorePairs(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(head) {
		return nil, fmt.Errorf("%w: reranker returned %d scores for %d passages", core.ErrModelLoad, len(scores), len(head))
	}

	reranked := make([]candidate, len(head))
	for i, c := range head {
		reranked[i] = candidate{id: c.id, score: scores[i]}
	}
	sortCandidates(reranked)
	return append(reranked, tail...), nil
}

// diversify applies MMR over the candidates' stored embeddings. Incoming
// scores are min-max normalized so fusion scores and cosine similarities
// share a scale.
func (o *Orchestrator) diversify(ctx context.Context, cands []candidate, topK int) ([]candidate, error) {
	vectors := make(map[core.ID][]float32, len(cands))
	model := o.embedder.Model()
	for _, c := range cands {
		record, err := o.chunks.GetEmbedding(ctx, c.id, model)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		vectors[c.id] = record.Vector
	}
	return selectMMR(normalizeScores(cands), vectors, o.config.MMRLambda, topK), nil
}

// hydrate loads chunk records and assembles the final ranked results.
func (o *Orchestrator) hydrate(ctx context.Context, cands []candidate, strategy core.Strategy) ([]*core.RetrievalResult, error) {
	ids := make([]core.ID, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	chunks, err := o.chunks.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}
	byID := make(map[core.ID]*core.Chunk, len(chunks))
	for _, chunk := range chunks {
		byID[chunk.Id] = chunk
	}

	results := make([]*core.RetrievalResult, 0, len(cands))
	for _, c := range cands {
		chunk, ok := byID[c.id]
		if !ok {
			o.logger.Warn("ranked chunk missing from storage", "chunk", c.id)
			continue
		}
		results = append(results, &core.RetrievalResult{
			Chunk:    chunk,
			Score:    float32(c.score),
			Strategy: strategy,
			Rank:     len(results) + 1,
		})
	}
	return results, nil
}

// normalizeScores min-max scales candidate scores into [0,1], keeping
// their order. Equal scores all map to 1.
func normalizeScores(cands []candidate) []candidate {
	if len(cands) == 0 {
		return cands
	}
	lo, hi := cands[0].score, cands[0].score
	for _, c := range cands {
		if c.score < lo {
			lo = c.score
		}
		if c.score > hi {
			hi = c.score
		}
	}
	out := make([]candidate, len(cands))
	for i, c := range cands {
		if hi == lo {
			out[i] = candidate{id: c.id, score: 1}
			continue
		}
		out[i] = candidate{id: c.id, score: (c.score - lo) / (hi - lo)}
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, core.ErrNotFound)
}
