package roc

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aptgraph/aptgraph/internal/rank"
)

func TestPointsStartsAtOrigin(t *testing.T) {
	ranking := []rank.IndexBucket{
		{Index: 5, Names: []string{"a.example"}},
		{Index: 1, Names: []string{"evil.apt"}},
	}
	points, err := Points(ranking, 2, 1)
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if points[0].X != 0 || points[0].Y != 0 {
		t.Errorf("first point = %+v, want (0,0)", points[0])
	}
}

func TestPointsReachesOneWhenRankingCoversAllDomains(t *testing.T) {
	ranking := []rank.IndexBucket{
		{Index: 5, Names: []string{"a.example"}},
		{Index: 1, Names: []string{"evil.apt"}},
	}
	points, err := Points(ranking, 2, 1)
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	last := points[len(points)-1]
	if math.Abs(last.X-1) > 1e-9 || math.Abs(last.Y-1) > 1e-9 {
		t.Errorf("last point = %+v, want (1,1)", last)
	}
}

func TestPointsSingleBucketWithNonAptThenApt(t *testing.T) {
	// a single bucket contains one non-apt and one apt domain.
	ranking := []rank.IndexBucket{
		{Index: 5, Names: []string{"a.example", "evil.apt"}},
	}
	points, err := Points(ranking, 10, 2)
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2 (origin + one bucket)", len(points))
	}
	want := Point{X: 1.0 / 8.0, Y: 1.0 / 2.0}
	got := points[1]
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 {
		t.Errorf("intermediate point = %+v, want %+v", got, want)
	}
}

func TestPointsRejectsDegenerateTotals(t *testing.T) {
	if _, err := Points(nil, 10, 0); err == nil {
		t.Error("expected error when there are no positives")
	}
	if _, err := Points(nil, 2, 2); err == nil {
		t.Error("expected error when there are no negatives")
	}
}

func TestWriteCSVFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roc.csv")
	points := []Point{{X: 0, Y: 0}, {X: 0.5, Y: 1}}
	if err := WriteCSV(context.Background(), path, points); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "0,0\n0.5,1\n"
	if string(got) != want {
		t.Errorf("csv = %q, want %q", got, want)
	}
}
