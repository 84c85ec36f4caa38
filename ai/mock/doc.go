// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Reranker,
// ai.Judge, and ai.Provider for use in unit tests. The mocks allow tests
// to run without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Default Behavior
//
//   - Embedder: normalized bag-of-words hash vectors, so texts sharing
//     tokens score similar under cosine similarity
//   - Reranker: term-overlap scoring between query and passage
//   - Judge: answers with the first context and grades 1.0
package mock
