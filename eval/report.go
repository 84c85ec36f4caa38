package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// GenerationScores are the judged metrics for one query's generated answer.
type GenerationScores struct {
	Answer       string  `json:"answer"`
	Faithfulness float64 `json:"faithfulness"`
	Relevance    float64 `json:"relevance"`
}

// QueryResult is the outcome of one query under one configuration.
type QueryResult struct {
	Question   string            `json:"question"`
	Metrics    QueryMetrics      `json:"metrics"`
	Generation *GenerationScores `json:"generation,omitempty"`
}

// ConfigReport aggregates one configuration's run over the dataset.
type ConfigReport struct {
	Name     string        `json:"name"`
	Strategy string        `json:"strategy"`
	TopK     int           `json:"top_k"`
	Queries  []QueryResult `json:"queries"`
	Mean     QueryMetrics  `json:"mean"`
	HitRate  float64       `json:"hit_rate"`
	Duration time.Duration `json:"duration_ns"`

	// Generation is "judged" or "skipped". The mean scores are present
	// only when at least one query was judged.
	Generation       string   `json:"generation"`
	MeanFaithfulness *float64 `json:"mean_faithfulness,omitempty"`
	MeanRelevance    *float64 `json:"mean_relevance,omitempty"`
}

// Report is the full benchmark output.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Configs     []ConfigReport `json:"configs"`
}

// aggregateGeneration computes mean generation scores over the judged
// queries. When every query was skipped the config degrades to skipped.
func (c *ConfigReport) aggregateGeneration() {
	if c.Generation != GenerationJudged {
		return
	}
	var faithfulness, relevance float64
	judged := 0
	for _, q := range c.Queries {
		if q.Generation == nil {
			continue
		}
		faithfulness += q.Generation.Faithfulness
		relevance += q.Generation.Relevance
		judged++
	}
	if judged == 0 {
		c.Generation = GenerationSkipped
		return
	}
	f := faithfulness / float64(judged)
	r := relevance / float64(judged)
	c.MeanFaithfulness = &f
	c.MeanRelevance = &r
}

// WriteJSON writes the structured report.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteTable writes a compact per-configuration summary table.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTRATEGY\tTOPK\tPRECISION\tRECALL\tMRR\tHIT RATE\tGENERATION")
	for _, c := range r.Configs {
		generation := c.Generation
		if c.MeanFaithfulness != nil && c.MeanRelevance != nil {
			generation = fmt.Sprintf("faith %.2f / rel %.2f", *c.MeanFaithfulness, *c.MeanRelevance)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%s\n",
			c.Name, c.Strategy, c.TopK,
			c.Mean.Precision, c.Mean.Recall, c.Mean.MRR, c.HitRate, generation)
	}
	return tw.Flush()
}
