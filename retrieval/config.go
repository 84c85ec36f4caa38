package retrieval

import (
	"fmt"

	"github.com/poiesic/retrievit/core"
)

// Defaults for retrieval tuning knobs.
const (
	DefaultTopK        = 8
	DefaultRRFConstant = 60.0
	DefaultRerankPool  = 50
	DefaultMMRLambda   = 0.5
)

// Config holds retrieval tuning parameters.
type Config struct {
	// TopK is the default number of results when a request does not set one.
	TopK int

	// FetchK is how many candidates each leg of a hybrid query fetches
	// before fusion. Zero means twice the effective topK.
	FetchK int

	// RRFConstant is the K in reciprocal rank fusion, 1/(K+rank).
	// Larger values flatten the difference between ranks.
	RRFConstant float64

	// Rerank enables LLM pairwise reranking of the candidate pool.
	Rerank bool

	// RerankPool is how many fused candidates the reranker re-sorts
	// before truncation to topK.
	RerankPool int

	// Diversify enables maximal marginal relevance selection.
	Diversify bool

	// MMRLambda trades relevance (1) against diversity (0).
	MMRLambda float64
}

// DefaultConfig returns a Config with standard settings.
func DefaultConfig() Config {
	return Config{
		TopK:        DefaultTopK,
		RRFConstant: DefaultRRFConstant,
		RerankPool:  DefaultRerankPool,
		MMRLambda:   DefaultMMRLambda,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("%w: topK %d must be positive", core.ErrConfig, c.TopK)
	}
	if c.FetchK < 0 {
		return fmt.Errorf("%w: fetchK %d must not be negative", core.ErrConfig, c.FetchK)
	}
	if c.RRFConstant <= 0 {
		return fmt.Errorf("%w: RRF constant %g must be positive", core.ErrConfig, c.RRFConstant)
	}
	if c.RerankPool < 1 {
		return fmt.Errorf("%w: rerank pool %d must be positive", core.ErrConfig, c.RerankPool)
	}
	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		return fmt.Errorf("%w: MMR lambda %g must be in [0,1]", core.ErrConfig, c.MMRLambda)
	}
	return nil
}
