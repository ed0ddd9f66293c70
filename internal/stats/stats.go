// Package stats implements the small set of statistical utilities the
// pipeline uses to resolve z-score parameters and build histograms.
package stats

import (
	"math"
	"sort"
)

// MeanVariance returns the population mean and variance (variance =
// sum((x-mean)^2) / n) of xs. Returns (0, 0) for an empty slice.
func MeanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	variance = sq / float64(len(xs))
	return mean, variance
}

// Z converts a raw value to a z-score given mean/variance. Guarded
// against a degenerate distribution: returns 0 when variance is 0.
func Z(mean, variance, x float64) float64 {
	if variance == 0 {
		return 0
	}
	return (x - mean) / math.Sqrt(variance)
}

// FromZ converts a z-score back to a raw value.
func FromZ(mean, variance, z float64) float64 {
	return mean + z*math.Sqrt(variance)
}

// Bin is one bucket of a histogram: [Min, Min+Step) except for the
// final overflow bin which covers everything above the configured max.
type Bin struct {
	Min      float64
	Count    int
	Overflow bool
}

// Histogram produces bins [min, min+step, min+2*step, ...] plus a
// final overflow bin covering values > max.
func Histogram(xs []float64, min, max, step float64) []Bin {
	if step <= 0 {
		return nil
	}
	n := int(math.Ceil((max-min)/step)) + 1
	if n < 1 {
		n = 1
	}
	bins := make([]Bin, n+1)
	for i := 0; i < n; i++ {
		bins[i].Min = min + float64(i)*step
	}
	bins[n].Overflow = true
	bins[n].Min = max

	for _, x := range xs {
		if x > max {
			bins[n].Count++
			continue
		}
		idx := int((x - min) / step)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
	}
	return bins
}

// CleanHistogram trims leading and trailing zero-count bins when more
// than three bins exist, always preserving at least one bin.
func CleanHistogram(bins []Bin) []Bin {
	if len(bins) <= 3 {
		return bins
	}

	start := 0
	for start < len(bins)-1 && bins[start].Count == 0 {
		start++
	}
	end := len(bins) - 1
	for end > start && bins[end].Count == 0 {
		end--
	}
	return bins[start : end+1]
}

// SortByIndex sorts items descending by idx[item], keeping input order
// among ties (stable).
func SortByIndex[T comparable](items []T, idx map[T]float64) []T {
	out := make([]T, len(items))
	copy(out, items)

	sort.SliceStable(out, func(i, j int) bool {
		return idx[out[i]] > idx[out[j]]
	})
	return out
}
