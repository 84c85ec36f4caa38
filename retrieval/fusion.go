package retrieval

import (
	"sort"

	"github.com/poiesic/retrievit/core"
)

// candidate is an intermediate scored chunk flowing through fusion,
// reranking, and diversity selection.
type candidate struct {
	id    core.ID
	score float64
}

// fuseRRF merges ranked lists with reciprocal rank fusion: each list
// contributes 1/(k+rank) per chunk, rank being the 1-based position.
// Chunks high in several lists accumulate the most mass; the constant k
// keeps single-list outliers from dominating.
func fuseRRF(k float64, lists ...[]core.SimilarityMatch) []candidate {
	scores := make(map[core.ID]float64)
	for _, list := range lists {
		for i, match := range list {
			scores[match.ChunkId] += 1 / (k + float64(i+1))
		}
	}

	fused := make([]candidate, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, candidate{id: id, score: score})
	}
	sortCandidates(fused)
	return fused
}

// toCandidates converts a single ranked list, keeping its native scores.
func toCandidates(matches []core.SimilarityMatch) []candidate {
	out := make([]candidate, len(matches))
	for i, m := range matches {
		out[i] = candidate{id: m.ChunkId, score: float64(m.Score)}
	}
	return out
}

// sortCandidates orders by descending score with the chunk-ID tie-break.
func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].id < cands[j].id
	})
}
