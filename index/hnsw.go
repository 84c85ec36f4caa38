package index

import (
	"container/heap"
	"fmt"
	"math"
	"sync"

	"github.com/poiesic/retrievit/core"
)

// Default construction parameters. M is the per-node neighbor budget,
// efConstruction the candidate pool width while building.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 64
)

// HNSW is an in-process approximate nearest-neighbor graph over
// L2-normalized vectors, compared by cosine similarity. It is safe for
// concurrent use.
//
// Node levels are derived from the node ID, so rebuilding the graph from
// the same records yields the same layer structure regardless of insert
// order.
type HNSW struct {
	mu             sync.RWMutex
	dim            int
	m              int
	efConstruction int
	levelMult      float64

	entry    core.ID
	maxLevel int
	nodes    map[core.ID]*hnswNode
}

type hnswNode struct {
	id     core.ID
	vector []float32
	level  int
	// neighbors[l] holds the node's links at layer l, l <= level.
	neighbors [][]core.ID
}

// Option configures an HNSW graph.
type Option func(*HNSW)

// WithM sets the per-node neighbor budget.
func WithM(m int) Option {
	return func(h *HNSW) {
		if m > 1 {
			h.m = m
		}
	}
}

// WithEfConstruction sets the candidate pool width used while inserting.
func WithEfConstruction(ef int) Option {
	return func(h *HNSW) {
		if ef > 0 {
			h.efConstruction = ef
		}
	}
}

// New creates an empty graph for vectors of the given dimensionality.
func New(dim int, opts ...Option) (*HNSW, error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: index dimension %d must be positive", core.ErrConfig, dim)
	}
	h := &HNSW{
		dim:            dim,
		m:              DefaultM,
		efConstruction: DefaultEfConstruction,
		nodes:          make(map[core.ID]*hnswNode),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.levelMult = 1 / math.Log(float64(h.m))
	return h, nil
}

// Dim returns the vector dimensionality the graph was created for.
func (h *HNSW) Dim() int { return h.dim }

// Len returns the number of vectors in the graph.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Contains reports whether the graph holds a vector for the given ID.
func (h *HNSW) Contains(id core.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.nodes[id]
	return ok
}

// Insert adds a vector under the given ID. Re-inserting an existing ID
// replaces its vector. All vectors in one graph share one dimensionality.
func (h *HNSW) Insert(id core.ID, vector []float32) error {
	if len(vector) != h.dim {
		return fmt.Errorf("%w: vector dimension %d, index dimension %d", core.ErrConfig, len(vector), h.dim)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.nodes[id]; ok {
		old.vector = vector
		return nil
	}

	level := h.levelFor(id)
	node := &hnswNode{
		id:        id,
		vector:    vector,
		level:     level,
		neighbors: make([][]core.ID, level+1),
	}

	if len(h.nodes) == 0 {
		h.nodes[id] = node
		h.entry = id
		h.maxLevel = level
		return nil
	}

	curr := h.entry
	// Greedy descent through layers above the node's level.
	for l := h.maxLevel; l > level; l-- {
		curr = h.greedyClosest(vector, curr, l)
	}

	// From the node's level down, link into each layer.
	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(vector, curr, h.efConstruction, l)
		neighbors := h.selectClosest(candidates, h.m)
		node.neighbors[l] = neighbors
		for _, n := range neighbors {
			h.link(n, id, l)
		}
		if len(candidates) > 0 {
			curr = candidates[0].ChunkId
		}
	}

	h.nodes[id] = node
	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = id
	}
	return nil
}

// Delete removes a vector from the graph. Removing an unknown ID is a
// no-op. Dangling links to the removed node are cleaned up.
func (h *HNSW) Delete(id core.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	node, ok := h.nodes[id]
	if !ok {
		return
	}
	delete(h.nodes, id)

	for l := 0; l <= node.level; l++ {
		for _, n := range node.neighbors[l] {
			if peer, ok := h.nodes[n]; ok && l <= peer.level {
				peer.neighbors[l] = removeID(peer.neighbors[l], id)
			}
		}
	}

	if h.entry == id {
		found := false
		for nid, n := range h.nodes {
			if !found || n.level > h.maxLevel {
				h.entry = nid
				h.maxLevel = n.level
				found = true
			}
		}
		if !found {
			h.entry = 0
			h.maxLevel = 0
		}
	}
}

// Search returns up to k matches ordered by descending cosine similarity,
// ties broken by ascending chunk ID. An empty graph returns an empty
// slice, not an error.
func (h *HNSW) Search(vector []float32, k, ef int) []core.SimilarityMatch {
	if k < 1 {
		return nil
	}
	if ef < k {
		ef = max(k, DefaultEfSearch)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 || len(vector) != h.dim {
		return []core.SimilarityMatch{}
	}

	curr := h.entry
	for l := h.maxLevel; l > 0; l-- {
		curr = h.greedyClosest(vector, curr, l)
	}

	candidates := h.searchLayer(vector, curr, ef, 0)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// levelFor derives a node's level from its ID so the layer structure is
// reproducible across rebuilds. SplitMix64 whitens the ID into a uniform
// value in (0,1).
func (h *HNSW) levelFor(id core.ID) int {
	z := uint64(id) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	u := (float64(z>>11) + 1) / float64(1<<53)
	return int(math.Floor(-math.Log(u) * h.levelMult))
}

// greedyClosest walks layer l from start towards the query until no
// neighbor improves on the current similarity.
func (h *HNSW) greedyClosest(vector []float32, start core.ID, l int) core.ID {
	curr := start
	currNode, ok := h.nodes[curr]
	if !ok {
		return curr
	}
	currSim := core.DotProduct(vector, currNode.vector)

	for {
		improved := false
		if l <= currNode.level {
			for _, n := range currNode.neighbors[l] {
				peer, ok := h.nodes[n]
				if !ok {
					continue
				}
				if sim := core.DotProduct(vector, peer.vector); sim > currSim {
					curr, currNode, currSim = n, peer, sim
					improved = true
				}
			}
		}
		if !improved {
			return curr
		}
	}
}

// searchLayer runs a best-first beam search over layer l and returns the
// ef best matches, ordered best first with the chunk-ID tie-break.
func (h *HNSW) searchLayer(vector []float32, start core.ID, ef, l int) []core.SimilarityMatch {
	startNode, ok := h.nodes[start]
	if !ok {
		return nil
	}

	visited := map[core.ID]bool{start: true}
	startMatch := core.SimilarityMatch{ChunkId: start, Score: core.DotProduct(vector, startNode.vector)}

	candidates := &matchHeap{items: []core.SimilarityMatch{startMatch}, best: true}
	results := &matchHeap{items: []core.SimilarityMatch{startMatch}, best: false}
	heap.Init(candidates)
	heap.Init(results)

	for candidates.Len() > 0 {
		curr := heap.Pop(candidates).(core.SimilarityMatch)
		if results.Len() >= ef && curr.Score < results.items[0].Score {
			break
		}
		node, ok := h.nodes[curr.ChunkId]
		if !ok || l > node.level {
			continue
		}
		for _, n := range node.neighbors[l] {
			if visited[n] {
				continue
			}
			visited[n] = true
			peer, ok := h.nodes[n]
			if !ok {
				continue
			}
			match := core.SimilarityMatch{ChunkId: n, Score: core.DotProduct(vector, peer.vector)}
			if results.Len() < ef || match.Score > results.items[0].Score {
				heap.Push(candidates, match)
				heap.Push(results, match)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]core.SimilarityMatch, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(core.SimilarityMatch)
	}
	sortMatches(out)
	return out
}

// selectClosest keeps the m best candidates as links.
func (h *HNSW) selectClosest(candidates []core.SimilarityMatch, m int) []core.ID {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	ids := make([]core.ID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkId
	}
	return ids
}

// link adds target to node's layer-l links, pruning to the layer budget
// by similarity to the node's own vector.
func (h *HNSW) link(nodeID, target core.ID, l int) {
	node, ok := h.nodes[nodeID]
	if !ok || l > node.level {
		return
	}
	node.neighbors[l] = append(node.neighbors[l], target)

	budget := h.m
	if l == 0 {
		budget = h.m * 2
	}
	if len(node.neighbors[l]) <= budget {
		return
	}

	scored := make([]core.SimilarityMatch, 0, len(node.neighbors[l]))
	for _, n := range node.neighbors[l] {
		peer, ok := h.nodes[n]
		if !ok {
			if n == target {
				// The node being inserted is linked before it is registered.
				scored = append(scored, core.SimilarityMatch{ChunkId: n, Score: 1})
			}
			continue
		}
		scored = append(scored, core.SimilarityMatch{
			ChunkId: n,
			Score:   core.DotProduct(node.vector, peer.vector),
		})
	}
	sortMatches(scored)
	if len(scored) > budget {
		scored = scored[:budget]
	}
	node.neighbors[l] = make([]core.ID, len(scored))
	for i, s := range scored {
		node.neighbors[l][i] = s.ChunkId
	}
}

func removeID(ids []core.ID, id core.ID) []core.ID {
	out := ids[:0]
	for _, n := range ids {
		if n != id {
			out = append(out, n)
		}
	}
	return out
}
