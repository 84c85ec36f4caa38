// Package eval is the offline benchmarking harness.
//
// A benchmark dataset pairs questions with the ground-truth passages a
// good retrieval should surface. The harness replays the dataset against
// one or more retrieval configurations and reports Precision, Recall,
// MRR, and hit rate per configuration, matching retrieved passages to
// contexts by normalized containment. When a judge model is configured,
// an optional generation step produces answers from the retrieved
// passages and grades their faithfulness and relevance; without one the
// generation metrics are reported as skipped, never as zero.
package eval
