package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

func matches(ids ...core.ID) []core.SimilarityMatch {
	out := make([]core.SimilarityMatch, len(ids))
	for i, id := range ids {
		out[i] = core.SimilarityMatch{ChunkId: id, Score: float32(len(ids) - i)}
	}
	return out
}

func fusedIDs(cands []candidate) []core.ID {
	ids := make([]core.ID, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

func TestFuseRRFPreservesAgreeingOrder(t *testing.T) {
	// When both rankings agree, fusion must not reorder anything.
	fused := fuseRRF(DefaultRRFConstant,
		matches(1, 2, 3, 4),
		matches(1, 2, 3, 4),
	)
	assert.Equal(t, []core.ID{1, 2, 3, 4}, fusedIDs(fused))
}

func TestFuseRRFRewardsConsensus(t *testing.T) {
	// Chunk 5 is mid-list in both rankings; chunks 1 and 9 top one list
	// each but miss the other entirely.
	fused := fuseRRF(DefaultRRFConstant,
		matches(1, 5, 2),
		matches(9, 5, 8),
	)
	require.NotEmpty(t, fused)
	assert.Equal(t, core.ID(5), fused[0].id)
}

func TestFuseRRFTieBreaksByChunkId(t *testing.T) {
	// Mirror-image rankings give every chunk the same fused mass.
	fused := fuseRRF(DefaultRRFConstant,
		matches(3, 1),
		matches(1, 3),
	)
	require.Len(t, fused, 2)
	assert.Equal(t, core.ID(1), fused[0].id)
	assert.Equal(t, core.ID(3), fused[1].id)
}

func TestFuseRRFConstantFlattensRankGap(t *testing.T) {
	steep := fuseRRF(1, matches(1, 2))
	flat := fuseRRF(1000, matches(1, 2))

	steepGap := steep[0].score - steep[1].score
	flatGap := flat[0].score - flat[1].score
	assert.Greater(t, steepGap, flatGap)
}

func TestNormalizeScores(t *testing.T) {
	out := normalizeScores([]candidate{{id: 1, score: 4}, {id: 2, score: 2}, {id: 3, score: 0}})
	assert.Equal(t, 1.0, out[0].score)
	assert.Equal(t, 0.5, out[1].score)
	assert.Equal(t, 0.0, out[2].score)

	same := normalizeScores([]candidate{{id: 1, score: 7}, {id: 2, score: 7}})
	assert.Equal(t, 1.0, same[0].score)
	assert.Equal(t, 1.0, same[1].score)
}
