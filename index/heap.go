package index

import (
	"sort"

	"github.com/poiesic/retrievit/core"
)

// matchHeap orders matches by score. With best set it is a max-heap used
// for the expansion frontier; without it is a min-heap whose root is the
// weakest retained result.
type matchHeap struct {
	items []core.SimilarityMatch
	best  bool
}

func (h *matchHeap) Len() int { return len(h.items) }

func (h *matchHeap) Less(i, j int) bool {
	if h.best {
		return h.items[i].Score > h.items[j].Score
	}
	return h.items[i].Score < h.items[j].Score
}

func (h *matchHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *matchHeap) Push(x any) { h.items = append(h.items, x.(core.SimilarityMatch)) }

func (h *matchHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// sortMatches orders by descending score, ties broken by ascending chunk
// ID so equal-score results have a stable order.
func sortMatches(matches []core.SimilarityMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ChunkId < matches[j].ChunkId
	})
}
