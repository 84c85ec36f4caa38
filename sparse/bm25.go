package sparse

import (
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/poiesic/retrievit/core"
)

// BM25 parameters. K1 controls term-frequency saturation, B the strength
// of document-length normalization.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Index is a BM25 lexical index over the chunk corpus. Readers always see
// a complete snapshot: BuildOrUpdate assembles a new one off to the side
// and swaps it in atomically, so a query observes either the prior corpus
// or the new one, never a mix.
type Index struct {
	k1 float64
	b  float64

	snapshot atomic.Pointer[snapshot]
}

type snapshot struct {
	docCount int
	avgLen   float64
	lengths  map[core.ID]int
	postings map[string][]posting
}

type posting struct {
	chunk core.ID
	tf    int
}

// Option configures an Index.
type Option func(*Index)

// WithK1 overrides the term-frequency saturation parameter.
func WithK1(k1 float64) Option {
	return func(ix *Index) {
		if k1 > 0 {
			ix.k1 = k1
		}
	}
}

// WithB overrides the length-normalization parameter.
func WithB(b float64) Option {
	return func(ix *Index) {
		if b >= 0 && b <= 1 {
			ix.b = b
		}
	}
}

// New creates an empty index. It holds no snapshot until the first
// BuildOrUpdate; queries before that return empty results.
func New(opts ...Option) *Index {
	ix := &Index{k1: DefaultK1, b: DefaultB}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Ready reports whether a corpus snapshot has been built.
func (ix *Index) Ready() bool {
	return ix.snapshot.Load() != nil
}

// Len returns the number of chunks in the current snapshot.
func (ix *Index) Len() int {
	snap := ix.snapshot.Load()
	if snap == nil {
		return 0
	}
	return snap.docCount
}

// BuildOrUpdate replaces the indexed corpus with the given chunks.
func (ix *Index) BuildOrUpdate(chunks []*core.Chunk) {
	snap := &snapshot{
		lengths:  make(map[core.ID]int, len(chunks)),
		postings: make(map[string][]posting),
	}

	var totalLen int
	for _, chunk := range chunks {
		terms := Tokenize(chunk.Text)
		if len(terms) == 0 {
			continue
		}
		snap.docCount++
		snap.lengths[chunk.Id] = len(terms)
		totalLen += len(terms)

		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		for t, tf := range freq {
			snap.postings[t] = append(snap.postings[t], posting{chunk: chunk.Id, tf: tf})
		}
	}
	if snap.docCount > 0 {
		snap.avgLen = float64(totalLen) / float64(snap.docCount)
	}

	ix.snapshot.Store(snap)
}

// Query scores the corpus against the query text and returns up to topK
// matches, best first, ties broken by ascending chunk ID.
func (ix *Index) Query(text string, topK int) []core.SimilarityMatch {
	snap := ix.snapshot.Load()
	if snap == nil || snap.docCount == 0 || topK < 1 {
		return []core.SimilarityMatch{}
	}

	scores := make(map[core.ID]float64)
	for _, term := range Tokenize(text) {
		plist, ok := snap.postings[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (float64(snap.docCount)-float64(len(plist))+0.5)/(float64(len(plist))+0.5))
		for _, p := range plist {
			tf := float64(p.tf)
			norm := 1 - ix.b + ix.b*float64(snap.lengths[p.chunk])/snap.avgLen
			scores[p.chunk] += idf * tf * (ix.k1 + 1) / (tf + ix.k1*norm)
		}
	}

	results := make([]core.SimilarityMatch, 0, len(scores))
	for id, score := range scores {
		results = append(results, core.SimilarityMatch{ChunkId: id, Score: float32(score)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkId < results[j].ChunkId
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Tokenize lowercases the text and splits it on anything that is not a
// letter or digit. No stemming, no stop words.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
