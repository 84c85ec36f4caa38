package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/ai/mock"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
	"github.com/poiesic/retrievit/storage/badger"
)

// seedCorpus ingests one chunk per passage and returns the chunk IDs in
// passage order.
func seedCorpus(t *testing.T, repo storage.ChunkRepository, passages ...string) []core.ID {
	t.Helper()

	content := ""
	for _, p := range passages {
		content += p + "\n"
	}
	doc := &core.Document{
		Name:        "corpus",
		ContentHash: core.IDFromContent(content),
	}
	doc.Id = core.IDFromContent(fmt.Sprintf("%s\x1f%x", doc.Name, uint64(doc.ContentHash)))

	var chunks []*core.Chunk
	var embeddings []*core.EmbeddingRecord
	var ids []core.ID
	offset := 0
	for i, text := range passages {
		id := core.ChunkHash(text, i, doc.Id)
		ids = append(ids, id)
		chunks = append(chunks, &core.Chunk{
			Id:          id,
			DocumentId:  doc.Id,
			Index:       i,
			Text:        text,
			StartOffset: offset,
			EndOffset:   offset + len(text),
			ContentHash: id,
		})
		embeddings = append(embeddings, &core.EmbeddingRecord{
			ChunkId:   id,
			Model:     "mock-embedder",
			Vector:    mock.DeterministicVector(text, 384),
			ChunkSize: 1000,
			Overlap:   200,
		})
		offset += len(text) + 1
	}

	_, err := repo.Upsert(context.Background(), doc, chunks, embeddings)
	require.NoError(t, err)
	return ids
}

func newTestOrchestrator(t *testing.T, config Config, opts ...Option) (*Orchestrator, storage.ChunkRepository) {
	t.Helper()
	_, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	o, err := New(mock.NewEmbedder(), chunks, config, opts...)
	require.NoError(t, err)
	return o, chunks
}

func TestDenseRetrievalFindsIngestedPassage(t *testing.T) {
	o, repo := newTestOrchestrator(t, DefaultConfig())
	ids := seedCorpus(t, repo,
		"the scheduler assigns work to idle runners",
		"badger stores keys in a log-structured merge tree",
		"embeddings are normalized before they are indexed",
	)

	results, err := o.Retrieve(context.Background(), Request{
		Query:    "badger stores keys in a log-structured merge tree",
		Strategy: core.StrategyDense,
		TopK:     2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, ids[1], results[0].Chunk.Id)
	assert.Equal(t, core.StrategyDense, results[0].Strategy)
	assert.LessOrEqual(t, len(results), 2)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
}

func TestSparseRetrievalMatchesExactTerms(t *testing.T) {
	o, repo := newTestOrchestrator(t, DefaultConfig())
	ids := seedCorpus(t, repo,
		"configure the TLS handshake timeout",
		"error ERR4512 means the wal segment is corrupt",
		"compaction reclaims space from obsolete versions",
	)

	// Sparse builds lazily on the first query.
	results, err := o.Retrieve(context.Background(), Request{
		Query:    "ERR4512 wal segment",
		Strategy: core.StrategySparse,
		TopK:     1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ids[1], results[0].Chunk.Id)
	assert.Equal(t, core.StrategySparse, results[0].Strategy)
}

func TestHybridFusesBothRankings(t *testing.T) {
	o, repo := newTestOrchestrator(t, DefaultConfig())
	ids := seedCorpus(t, repo,
		"restarting the ingest worker clears the stuck queue",
		"the queue depth metric spikes when a worker is stuck",
		"grapefruit trees need full morning sun",
	)

	results, err := o.Retrieve(context.Background(), Request{
		Query:    "stuck worker queue",
		Strategy: core.StrategyHybrid,
		TopK:     2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.StrategyHybrid, results[0].Strategy)
	got := map[core.ID]bool{results[0].Chunk.Id: true, results[1].Chunk.Id: true}
	assert.True(t, got[ids[0]] || got[ids[1]])
	assert.False(t, got[ids[2]])
}

func TestRetrieveEmptyQueryIsValidationError(t *testing.T) {
	o, _ := newTestOrchestrator(t, DefaultConfig())
	_, err := o.Retrieve(context.Background(), Request{Strategy: core.StrategyDense})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRetrieveUnknownStrategyIsConfigError(t *testing.T) {
	o, _ := newTestOrchestrator(t, DefaultConfig())
	_, err := o.Retrieve(context.Background(), Request{Query: "q", Strategy: core.Strategy(99)})
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestRetrieveEmptyCorpusReturnsEmpty(t *testing.T) {
	o, _ := newTestOrchestrator(t, DefaultConfig())
	for _, strategy := range []core.Strategy{core.StrategyDense, core.StrategySparse, core.StrategyHybrid} {
		results, err := o.Retrieve(context.Background(), Request{Query: "anything", Strategy: strategy})
		require.NoError(t, err, strategy.String())
		assert.Empty(t, results, strategy.String())
	}
}

func TestRerankEnabledWithoutRerankerFailsConstruction(t *testing.T) {
	_, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	config := DefaultConfig()
	config.Rerank = true
	_, err = New(mock.NewEmbedder(), chunks, config)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestRerankReordersByPairwiseRelevance(t *testing.T) {
	config := DefaultConfig()
	config.Rerank = true
	reranker := mock.NewReranker()
	o, repo := newTestOrchestrator(t, config, WithReranker(reranker))
	ids := seedCorpus(t, repo,
		"the deploy pipeline runs integration tests first",
		"rollback restores the previous deploy within a minute",
		"rollback of a failed deploy needs the previous artifact and the previous config",
	)

	results, err := o.Retrieve(context.Background(), Request{
		Query:    "rollback previous artifact config",
		Strategy: core.StrategyHybrid,
		TopK:     3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Positive(t, reranker.CallCount())
	// The passage mentioning every query term wins under overlap scoring.
	assert.Equal(t, ids[2], results[0].Chunk.Id)
}

func TestDiversifyDropsNearDuplicate(t *testing.T) {
	config := DefaultConfig()
	config.Diversify = true
	config.MMRLambda = 0.2
	o, repo := newTestOrchestrator(t, config)
	ids := seedCorpus(t, repo,
		"the cache eviction policy is least recently used",
		"the cache eviction policy is least recently used here",
		"unrelated passage about sourdough starters",
	)

	results, err := o.Retrieve(context.Background(), Request{
		Query:    "cache eviction policy least recently used",
		Strategy: core.StrategyDense,
		TopK:     2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, []core.ID{ids[0], ids[1]}, results[0].Chunk.Id)
	assert.Equal(t, ids[2], results[1].Chunk.Id)
}

func TestRefreshSparsePicksUpNewChunks(t *testing.T) {
	o, repo := newTestOrchestrator(t, DefaultConfig())
	seedCorpus(t, repo, "first passage about indexing")

	results, err := o.Retrieve(context.Background(), Request{
		Query: "indexing", Strategy: core.StrategySparse, TopK: 5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// New content lands after the lazy build; a refresh makes it visible.
	doc := &core.Document{Name: "late", ContentHash: core.IDFromContent("late arrival about indexing")}
	chunkID := core.ChunkHash("late arrival about indexing", 0, 7)
	_, err = repo.Upsert(context.Background(), doc,
		[]*core.Chunk{{
			Id: chunkID, DocumentId: 7, Index: 0,
			Text: "late arrival about indexing", EndOffset: 27, ContentHash: chunkID,
		}},
		[]*core.EmbeddingRecord{{
			ChunkId: chunkID, Model: "mock-embedder",
			Vector:    mock.DeterministicVector("late arrival about indexing", 384),
			ChunkSize: 1000, Overlap: 200,
		}})
	require.NoError(t, err)

	require.NoError(t, o.RefreshSparse(context.Background()))
	results, err = o.Retrieve(context.Background(), Request{
		Query: "indexing", Strategy: core.StrategySparse, TopK: 5,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero topK", func(c *Config) { c.TopK = 0 }},
		{"negative fetchK", func(c *Config) { c.FetchK = -1 }},
		{"zero RRF constant", func(c *Config) { c.RRFConstant = 0 }},
		{"zero rerank pool", func(c *Config) { c.RerankPool = 0 }},
		{"lambda above one", func(c *Config) { c.MMRLambda = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			assert.ErrorIs(t, config.Validate(), core.ErrConfig)
		})
	}
}
