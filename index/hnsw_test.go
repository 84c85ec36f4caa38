package index

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

func randomUnitVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	core.NormalizeVector(v)
	return v
}

func bruteForce(vectors map[core.ID][]float32, query []float32, k int) []core.SimilarityMatch {
	matches := make([]core.SimilarityMatch, 0, len(vectors))
	for id, v := range vectors {
		matches = append(matches, core.SimilarityMatch{ChunkId: id, Score: core.DotProduct(query, v)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkId < matches[j].ChunkId
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func TestSearchEmptyGraph(t *testing.T) {
	h, err := New(8)
	require.NoError(t, err)

	results := h.Search(make([]float32, 8), 5, 0)
	assert.Empty(t, results)
}

func TestInsertDimensionMismatch(t *testing.T) {
	h, err := New(8)
	require.NoError(t, err)

	err = h.Insert(1, make([]float32, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestNewRejectsZeroDimension(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestSearchRecallAgainstBruteForce(t *testing.T) {
	const (
		dim   = 32
		count = 500
		k     = 10
	)
	rng := rand.New(rand.NewSource(42))

	h, err := New(dim)
	require.NoError(t, err)

	vectors := make(map[core.ID][]float32, count)
	for i := 1; i <= count; i++ {
		v := randomUnitVector(rng, dim)
		vectors[core.ID(i)] = v
		require.NoError(t, h.Insert(core.ID(i), v))
	}

	hits, total := 0, 0
	for q := 0; q < 20; q++ {
		query := randomUnitVector(rng, dim)
		exact := bruteForce(vectors, query, k)
		approx := h.Search(query, k, 200)
		require.Len(t, approx, k)

		got := make(map[core.ID]bool, k)
		for _, m := range approx {
			got[m.ChunkId] = true
		}
		for _, m := range exact {
			total++
			if got[m.ChunkId] {
				hits++
			}
		}
	}
	recall := float64(hits) / float64(total)
	assert.Greater(t, recall, 0.9, "recall@%d was %.3f", k, recall)
}

func TestSearchOrderedByScoreThenId(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h, err := New(16)
	require.NoError(t, err)

	shared := randomUnitVector(rng, 16)
	// Two chunks with identical vectors tie on score.
	require.NoError(t, h.Insert(30, shared))
	require.NoError(t, h.Insert(10, shared))
	for i := 100; i < 140; i++ {
		require.NoError(t, h.Insert(core.ID(i), randomUnitVector(rng, 16)))
	}

	results := h.Search(shared, 5, 64)
	require.GreaterOrEqual(t, len(results), 2)
	assert.Equal(t, core.ID(10), results[0].ChunkId)
	assert.Equal(t, core.ID(30), results[1].ChunkId)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestRebuildOrderIndependent(t *testing.T) {
	const dim = 16
	rng := rand.New(rand.NewSource(11))

	vectors := make(map[core.ID][]float32, 200)
	ids := make([]core.ID, 0, 200)
	for i := 1; i <= 200; i++ {
		id := core.ID(i)
		vectors[id] = randomUnitVector(rng, dim)
		ids = append(ids, id)
	}

	forward, err := New(dim)
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, forward.Insert(id, vectors[id]))
	}

	reversed, err := New(dim)
	require.NoError(t, err)
	for i := len(ids) - 1; i >= 0; i-- {
		require.NoError(t, reversed.Insert(ids[i], vectors[ids[i]]))
	}

	query := randomUnitVector(rng, dim)
	a := forward.Search(query, 10, 200)
	b := reversed.Search(query, 10, 200)
	assert.Equal(t, a, b)
}

func TestDeleteRemovesFromResults(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	h, err := New(16)
	require.NoError(t, err)

	vectors := make(map[core.ID][]float32)
	for i := 1; i <= 50; i++ {
		v := randomUnitVector(rng, 16)
		vectors[core.ID(i)] = v
		require.NoError(t, h.Insert(core.ID(i), v))
	}

	query := vectors[core.ID(25)]
	results := h.Search(query, 1, 64)
	require.Len(t, results, 1)
	require.Equal(t, core.ID(25), results[0].ChunkId)

	h.Delete(25)
	assert.False(t, h.Contains(25))
	assert.Equal(t, 49, h.Len())

	for _, m := range h.Search(query, 10, 64) {
		assert.NotEqual(t, core.ID(25), m.ChunkId)
	}
}

func TestDeleteUnknownIdIsNoOp(t *testing.T) {
	h, err := New(8)
	require.NoError(t, err)
	require.NoError(t, h.Insert(1, randomUnitVector(rand.New(rand.NewSource(1)), 8)))

	h.Delete(99)
	assert.Equal(t, 1, h.Len())
}

func TestInsertReplacesExistingVector(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	h, err := New(16)
	require.NoError(t, err)

	for i := 1; i <= 20; i++ {
		require.NoError(t, h.Insert(core.ID(i), randomUnitVector(rng, 16)))
	}
	replacement := randomUnitVector(rng, 16)
	require.NoError(t, h.Insert(5, replacement))
	assert.Equal(t, 20, h.Len())

	results := h.Search(replacement, 1, 64)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(5), results[0].ChunkId)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}
