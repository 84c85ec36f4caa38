// Package sparse provides BM25 lexical scoring over the chunk corpus.
//
// The index complements vector similarity with exact-term matching, which
// carries queries full of identifiers, error codes, and other tokens an
// embedding model treats as noise. It is rebuilt from the stored chunk set
// on demand; rebuilds swap a complete snapshot atomically so concurrent
// queries never see a partial corpus.
package sparse
