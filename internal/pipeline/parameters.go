package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parameters is one full query against the analysis pipeline.
type Parameters struct {
	User                  string
	FeatureWeights        []float64
	FeatureOrderedWeights []float64
	PruneThresholdTemp    float64
	MaxClusterSizeTemp    float64
	PruneZBool            bool
	ClusterZBool          bool
	WhitelistBool         bool
	WhiteOngo             string
	NumberRequests        float64
	RankingWeights        [3]float64
	AptSearch             bool
}

// Validate enforces the weight-normalization guard: all
// weight components non-negative (ranking weight position 2 excepted,
// since it is allowed to penalize), each weight vector summing to 1
// within 1e-10, and non-negative prune/cluster-size/min-requests
// inputs when they are not expressed as z-scores.
func (p Parameters) Validate() error {
	if err := validateWeights(p.FeatureWeights, -1); err != nil {
		return fmt.Errorf("feature weights: %w", err)
	}
	if err := validateWeights(p.FeatureOrderedWeights, -1); err != nil {
		return fmt.Errorf("feature ordered weights: %w", err)
	}
	if err := validateWeights(p.RankingWeights[:], 2); err != nil {
		return fmt.Errorf("ranking weights: %w", err)
	}
	if !p.PruneZBool && p.PruneThresholdTemp < 0 {
		return fmt.Errorf("prune threshold must be non-negative when not a z-score")
	}
	if !p.ClusterZBool && p.MaxClusterSizeTemp < 0 {
		return fmt.Errorf("max cluster size must be non-negative when not a z-score")
	}
	if p.NumberRequests < 0 {
		return fmt.Errorf("number_requests must be non-negative")
	}
	return nil
}

// validateWeights checks non-negativity (except at allowNegativeAt,
// if >= 0) and that the vector sums to 1 within 1e-10.
func validateWeights(weights []float64, allowNegativeAt int) error {
	var sum float64
	for i, w := range weights {
		if w < 0 && i != allowNegativeAt {
			return fmt.Errorf("component %d is negative", i)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-10 {
		return fmt.Errorf("components sum to %v, want 1", sum)
	}
	return nil
}

// Fingerprint returns a canonicalized, comparable snapshot of p,
// suitable for the stage-by-stage cache-invalidation comparison in
// Controller.Analyze. Floating-point fields are canonicalized so -0
// and 0 compare equal, matching "callers pass canonical values."
type Fingerprint struct {
	User                  string
	FeatureWeights        string
	FeatureOrderedWeights string
	PruneZBool            bool
	PruneThresholdTemp    float64
	ClusterZBool          bool
	MaxClusterSizeTemp    float64
	WhitelistBool         bool
	WhiteOngo             string
	NumberRequests        float64
	RankingWeights        string
	AptSearch             bool
}

// Fingerprint computes p's Fingerprint.
func (p Parameters) Fingerprint() Fingerprint {
	return Fingerprint{
		User:                  p.User,
		FeatureWeights:        encodeFloats(p.FeatureWeights),
		FeatureOrderedWeights: encodeFloats(p.FeatureOrderedWeights),
		PruneZBool:            p.PruneZBool,
		PruneThresholdTemp:    canonicalFloat(p.PruneThresholdTemp),
		ClusterZBool:          p.ClusterZBool,
		MaxClusterSizeTemp:    canonicalFloat(p.MaxClusterSizeTemp),
		WhitelistBool:         p.WhitelistBool,
		WhiteOngo:             p.WhiteOngo,
		NumberRequests:        canonicalFloat(p.NumberRequests),
		RankingWeights:        encodeFloats(p.RankingWeights[:]),
		AptSearch:             p.AptSearch,
	}
}

func canonicalFloat(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

func encodeFloats(xs []float64) string {
	var b strings.Builder
	for i, x := range xs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(canonicalFloat(x), 'g', -1, 64))
	}
	return b.String()
}
