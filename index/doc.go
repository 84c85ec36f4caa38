// Package index provides an in-process hierarchical navigable small world
// (HNSW) graph for approximate nearest-neighbor search over L2-normalized
// embedding vectors.
//
// The graph lives entirely in memory and is rebuilt from stored embedding
// records when a store is opened. Node levels are derived from chunk IDs
// rather than drawn from a shared random source, so a rebuild from the
// same records produces the same layer structure no matter the order the
// records arrive in.
package index
