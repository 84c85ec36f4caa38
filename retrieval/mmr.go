package retrieval

import "github.com/poiesic/retrievit/core"

// selectMMR picks k candidates by maximal marginal relevance: at each
// step the candidate maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// wins. Relevance is the candidate's incoming score; similarity between
// chunks is the cosine of their stored embeddings. lambda=1 reduces to
// the incoming ranking, lambda=0 maximizes diversity. Candidates without
// a vector count as dissimilar to everything.
func selectMMR(cands []candidate, vectors map[core.ID][]float32, lambda float64, k int) []candidate {
	if len(cands) <= 1 || k < 1 {
		if len(cands) > k {
			return cands[:k]
		}
		return cands
	}

	remaining := make([]candidate, len(cands))
	copy(remaining, cands)
	selected := make([]candidate, 0, k)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, vectors, lambda)
		for i := 1; i < len(remaining); i++ {
			score := mmrScore(remaining[i], selected, vectors, lambda)
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func mmrScore(c candidate, selected []candidate, vectors map[core.ID][]float32, lambda float64) float64 {
	var maxSim float64
	vec := vectors[c.id]
	if vec != nil {
		for _, s := range selected {
			other := vectors[s.id]
			if other == nil {
				continue
			}
			if sim := float64(core.CosineSimilarity(vec, other)); sim > maxSim {
				maxSim = sim
			}
		}
	}
	return lambda*c.score - (1-lambda)*maxSim
}
