// Package roc turns a ranking into ROC curve points against
// ground-truth ".apt" labels: a pure reducer with no pipeline
// dependencies of its own.
package roc

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aptgraph/aptgraph/internal/rank"
	"github.com/aptgraph/aptgraph/internal/safefile"
)

// Point is one (x, y) coordinate of the curve.
type Point struct {
	X float64
	Y float64
}

// Points computes ROC points from ranking buckets in descending-index
// order, a total domain count nTotal, and a total positive (".apt")
// count nApt. x advances by cumulative non-apt / (nTotal - nApt), y by
// cumulative apt / nApt, one point per bucket, starting at (0,0).
func Points(ranking []rank.IndexBucket, nTotal, nApt int) ([]Point, error) {
	nNonApt := nTotal - nApt
	if nApt <= 0 || nNonApt <= 0 {
		return nil, fmt.Errorf("roc: need at least one positive and one negative (nApt=%d, nNonApt=%d)", nApt, nNonApt)
	}

	points := []Point{{X: 0, Y: 0}}
	var cumApt, cumNonApt int
	for _, bucket := range ranking {
		for _, name := range bucket.Names {
			if isAptName(name) {
				cumApt++
			} else {
				cumNonApt++
			}
		}
		points = append(points, Point{
			X: float64(cumNonApt) / float64(nNonApt),
			Y: float64(cumApt) / float64(nApt),
		})
	}
	return points, nil
}

func isAptName(name string) bool {
	const suffix = ".apt"
	return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
}

// WriteCSV serializes points as "x,y\n" rows (UTF-8, no header) and
// writes them atomically to path.
func WriteCSV(ctx context.Context, path string, points []Point) error {
	var b strings.Builder
	for _, p := range points {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return safefile.WriteFileAtomic(path, []byte(b.String()), 0o644)
}
