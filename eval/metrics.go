package eval

import "strings"

// minMatchLength is the floor on normalized text length for a containment
// match. Below it, fragments like "the" would match everything.
const minMatchLength = 20

// QueryMetrics are the retrieval scores for one benchmark query.
type QueryMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
	Hit       bool    `json:"hit"`
}

// normalizeText lowercases and collapses all whitespace runs to single
// spaces, so formatting differences between a stored chunk and a
// ground-truth context do not break matching.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// contextMatch reports whether a retrieved passage and a ground-truth
// context refer to the same text: after normalization the shorter one
// must be contained in the longer one and be at least minMatchLength
// characters, guarding against trivial containment.
func contextMatch(passage, context string) bool {
	a, b := normalizeText(passage), normalizeText(context)
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < minMatchLength {
		return false
	}
	return strings.Contains(longer, shorter)
}

// scoreQuery computes retrieval metrics for one query's ranked passages
// against its ground-truth contexts. The precision denominator is the
// run's fixed topK, not the retrieved count, so a short result list
// (corpus smaller than k) scores lower, not higher.
//
//   - Precision: passages matching some context, over topK
//   - Recall: distinct contexts matched over total contexts
//   - MRR: reciprocal rank of the first matching passage
//   - Hit: whether anything matched
func scoreQuery(passages []string, contexts []string, topK int) QueryMetrics {
	var metrics QueryMetrics
	if len(passages) == 0 || len(contexts) == 0 {
		return metrics
	}
	if topK < len(passages) {
		topK = len(passages)
	}

	matchedContexts := make([]bool, len(contexts))
	matchedPassages := 0
	for rank, passage := range passages {
		anyMatch := false
		for i, context := range contexts {
			if contextMatch(passage, context) {
				matchedContexts[i] = true
				anyMatch = true
			}
		}
		if anyMatch {
			matchedPassages++
			if metrics.MRR == 0 {
				metrics.MRR = 1 / float64(rank+1)
			}
		}
	}

	distinct := 0
	for _, m := range matchedContexts {
		if m {
			distinct++
		}
	}
	metrics.Precision = float64(matchedPassages) / float64(topK)
	metrics.Recall = float64(distinct) / float64(len(contexts))
	metrics.Hit = matchedPassages > 0
	return metrics
}

// meanMetrics averages per-query metrics; Hit becomes a hit rate carried
// separately in the report.
func meanMetrics(all []QueryMetrics) (QueryMetrics, float64) {
	if len(all) == 0 {
		return QueryMetrics{}, 0
	}
	var mean QueryMetrics
	hits := 0
	for _, m := range all {
		mean.Precision += m.Precision
		mean.Recall += m.Recall
		mean.MRR += m.MRR
		if m.Hit {
			hits++
		}
	}
	n := float64(len(all))
	mean.Precision /= n
	mean.Recall /= n
	mean.MRR /= n
	mean.Hit = hits > 0
	return mean, float64(hits) / n
}
