package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/ai/mock"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/retrieval"
	"github.com/poiesic/retrievit/storage"
	"github.com/poiesic/retrievit/storage/badger"
)

var benchmarkPassages = []string{
	"the scheduler assigns work to idle runners in round-robin order",
	"fencing tokens are monotonically increasing per runner",
	"compaction reclaims disk space from obsolete document versions",
	"grapefruit trees need full morning sun to fruit well",
	"the write-ahead log is truncated after every checkpoint",
}

func seedBenchmarkCorpus(t *testing.T, repo storage.ChunkRepository) {
	t.Helper()

	content := ""
	for _, p := range benchmarkPassages {
		content += p + "\n"
	}
	doc := &core.Document{Name: "corpus", ContentHash: core.IDFromContent(content)}
	doc.Id = core.IDFromContent(fmt.Sprintf("%s\x1f%x", doc.Name, uint64(doc.ContentHash)))

	var chunks []*core.Chunk
	var embeddings []*core.EmbeddingRecord
	for i, text := range benchmarkPassages {
		id := core.ChunkHash(text, i, doc.Id)
		chunks = append(chunks, &core.Chunk{
			Id: id, DocumentId: doc.Id, Index: i,
			Text: text, EndOffset: len(text), ContentHash: id,
		})
		embeddings = append(embeddings, &core.EmbeddingRecord{
			ChunkId: id, Model: "mock-embedder",
			Vector:    mock.DeterministicVector(text, 384),
			ChunkSize: 1000, Overlap: 200,
		})
	}
	_, err := repo.Upsert(context.Background(), doc, chunks, embeddings)
	require.NoError(t, err)
}

func newTestHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	_, chunks, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	seedBenchmarkCorpus(t, chunks)

	orchestrator, err := retrieval.New(mock.NewEmbedder(), chunks, retrieval.DefaultConfig())
	require.NoError(t, err)
	harness, err := New(orchestrator, opts...)
	require.NoError(t, err)
	return harness
}

func benchmarkItems() []Item {
	return []Item{
		{
			Question:            "the scheduler assigns work to idle runners in round-robin order",
			GroundTruthContexts: []string{"the scheduler assigns work to idle runners in round-robin order"},
			ExpectedAnswer:      "round robin over idle runners",
		},
		{
			Question:            "fencing tokens are monotonically increasing per runner",
			GroundTruthContexts: []string{"fencing tokens are monotonically increasing per runner"},
		},
	}
}

func TestHarnessRetrievalMetricsWithoutJudge(t *testing.T) {
	harness := newTestHarness(t)

	report, err := harness.Run(context.Background(), benchmarkItems(), []RunConfig{
		{Name: "dense-4", Strategy: core.StrategyDense, TopK: 4},
	})
	require.NoError(t, err)
	require.Len(t, report.Configs, 1)

	config := report.Configs[0]
	// Every question reuses an ingested sentence verbatim, so each one
	// must hit at the top rank.
	assert.InDelta(t, 1.0, config.HitRate, 1e-9)
	assert.InDelta(t, 1.0, config.Mean.Recall, 1e-9)
	assert.InDelta(t, 1.0, config.Mean.MRR, 1e-9)
	assert.Equal(t, GenerationSkipped, config.Generation)
	assert.Nil(t, config.MeanFaithfulness)
	for _, q := range config.Queries {
		assert.Nil(t, q.Generation)
	}
}

func TestHarnessRecallMonotoneInTopK(t *testing.T) {
	harness := newTestHarness(t)
	items := benchmarkItems()

	report, err := harness.Run(context.Background(), items, []RunConfig{
		{Name: "k1", Strategy: core.StrategyHybrid, TopK: 1},
		{Name: "k3", Strategy: core.StrategyHybrid, TopK: 3},
		{Name: "k5", Strategy: core.StrategyHybrid, TopK: 5},
	})
	require.NoError(t, err)
	require.Len(t, report.Configs, 3)

	for i := 1; i < len(report.Configs); i++ {
		assert.GreaterOrEqual(t,
			report.Configs[i].Mean.Recall,
			report.Configs[i-1].Mean.Recall,
			"recall must not drop as topK grows")
	}
}

func TestHarnessReportOrderMatchesDataset(t *testing.T) {
	harness := newTestHarness(t)

	// Queries run concurrently on a worker pool; the report must still
	// list them in dataset order.
	var items []Item
	for _, passage := range benchmarkPassages {
		items = append(items, Item{
			Question:            passage,
			GroundTruthContexts: []string{passage},
		})
	}

	report, err := harness.Run(context.Background(), items, []RunConfig{
		{Name: "dense-3", Strategy: core.StrategyDense, TopK: 3},
	})
	require.NoError(t, err)
	require.Len(t, report.Configs, 1)
	require.Len(t, report.Configs[0].Queries, len(items))
	for i, q := range report.Configs[0].Queries {
		assert.Equal(t, items[i].Question, q.Question)
	}
}

func TestHarnessJudgedGeneration(t *testing.T) {
	judge := mock.NewJudge()
	harness := newTestHarness(t, WithJudge(judge))

	report, err := harness.Run(context.Background(), benchmarkItems(), []RunConfig{
		{Name: "judged", Strategy: core.StrategyDense, TopK: 3},
	})
	require.NoError(t, err)

	config := report.Configs[0]
	assert.Equal(t, GenerationJudged, config.Generation)
	require.NotNil(t, config.MeanFaithfulness)
	require.NotNil(t, config.MeanRelevance)
	assert.Positive(t, judge.CallCount())
	for _, q := range config.Queries {
		require.NotNil(t, q.Generation)
		assert.NotEmpty(t, q.Generation.Answer)
	}
}

func TestHarnessRejectsBadInput(t *testing.T) {
	harness := newTestHarness(t)

	_, err := harness.Run(context.Background(), nil, []RunConfig{{Name: "x", Strategy: core.StrategyDense, TopK: 1}})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = harness.Run(context.Background(), benchmarkItems(), nil)
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = harness.Run(context.Background(), benchmarkItems(), []RunConfig{{Name: "x", Strategy: core.StrategyDense}})
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestReportOutputs(t *testing.T) {
	harness := newTestHarness(t)
	report, err := harness.Run(context.Background(), benchmarkItems(), []RunConfig{
		{Name: "dense-4", Strategy: core.StrategyDense, TopK: 4},
	})
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	require.NoError(t, report.WriteJSON(&jsonBuf))
	var decoded Report
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	require.Len(t, decoded.Configs, 1)
	assert.Equal(t, "dense-4", decoded.Configs[0].Name)
	assert.Equal(t, GenerationSkipped, decoded.Configs[0].Generation)

	var tableBuf bytes.Buffer
	require.NoError(t, report.WriteTable(&tableBuf))
	table := tableBuf.String()
	assert.Contains(t, table, "RUN")
	assert.Contains(t, table, "dense-4")
	assert.Contains(t, table, "skipped")
}
