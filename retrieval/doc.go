// Package retrieval runs queries against the stored corpus.
//
// The orchestrator dispatches on the requested strategy: dense goes to
// the vector index, sparse to the BM25 index, hybrid runs both and fuses
// the rankings with reciprocal rank fusion. Two optional refinement
// stages follow: pairwise LLM reranking of the candidate pool, and
// maximal marginal relevance selection for diversity. A stage that was
// requested but cannot run is a configuration error, never a silent skip.
//
// The lexical index builds lazily on the first sparse or hybrid query and
// can be refreshed after ingestion with RefreshSparse.
package retrieval
