package stats

import (
	"math"
	"testing"
)

func TestMeanVariance(t *testing.T) {
	mean, variance := MeanVariance([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(mean-5) > 1e-9 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if math.Abs(variance-4) > 1e-9 {
		t.Errorf("variance = %v, want 4", variance)
	}
}

func TestMeanVarianceEmpty(t *testing.T) {
	mean, variance := MeanVariance(nil)
	if mean != 0 || variance != 0 {
		t.Errorf("MeanVariance(nil) = (%v, %v), want (0, 0)", mean, variance)
	}
}

func TestZGuardsZeroVariance(t *testing.T) {
	if z := Z(1, 0, 5); z != 0 {
		t.Errorf("Z with zero variance = %v, want 0", z)
	}
}

func TestZFromZRoundTrip(t *testing.T) {
	mean, variance := 10.0, 4.0
	z := Z(mean, variance, 14.0)
	if math.Abs(z-2) > 1e-9 {
		t.Errorf("z = %v, want 2", z)
	}
	if got := FromZ(mean, variance, z); math.Abs(got-14.0) > 1e-9 {
		t.Errorf("FromZ(Z(x)) = %v, want 14", got)
	}
}

func TestHistogramOverflowBin(t *testing.T) {
	bins := Histogram([]float64{0.1, 0.25, 0.25, 5.0}, 0, 1, 0.5)
	if len(bins) == 0 {
		t.Fatal("expected non-empty histogram")
	}
	last := bins[len(bins)-1]
	if !last.Overflow || last.Count != 1 {
		t.Errorf("overflow bin = %+v, want Count=1", last)
	}
}

func TestCleanHistogramTrimsZeroEdges(t *testing.T) {
	bins := []Bin{{Count: 0}, {Count: 0}, {Count: 3}, {Count: 2}, {Count: 0}}
	cleaned := CleanHistogram(bins)
	if cleaned[0].Count != 3 || cleaned[len(cleaned)-1].Count != 2 {
		t.Errorf("cleaned = %+v, expected zero edges trimmed", cleaned)
	}
}

func TestCleanHistogramPreservesAtLeastOneBin(t *testing.T) {
	bins := []Bin{{Count: 0}, {Count: 0}, {Count: 0}, {Count: 0}}
	cleaned := CleanHistogram(bins)
	if len(cleaned) < 1 {
		t.Error("expected at least one bin preserved")
	}
}

func TestCleanHistogramNoopUnderThreeBins(t *testing.T) {
	bins := []Bin{{Count: 0}, {Count: 0}}
	cleaned := CleanHistogram(bins)
	if len(cleaned) != 2 {
		t.Errorf("len(cleaned) = %d, want 2 (no trimming with <=3 bins)", len(cleaned))
	}
}

func TestSortByIndexStableOnTies(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	idx := map[string]float64{"a": 1, "b": 2, "c": 2, "d": 0}

	sorted := SortByIndex(items, idx)
	want := []string{"b", "c", "a", "d"}
	for i := range want {
		if sorted[i] != want[i] {
			t.Fatalf("SortByIndex = %v, want %v (b before c: input order tie-break)", sorted, want)
		}
	}
}
