package filter

import (
	"context"
	"testing"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
)

func TestSizeFilterBoundaryInclusive(t *testing.T) {
	small := graph.New[*domainmodel.Domain](graph.KMax)
	small.Put(domainmodel.NewDomain("a", ""), nil)
	small.Put(domainmodel.NewDomain("b", ""), nil)

	big := graph.New[*domainmodel.Domain](graph.KMax)
	big.Put(domainmodel.NewDomain("c", ""), nil)
	big.Put(domainmodel.NewDomain("d", ""), nil)
	big.Put(domainmodel.NewDomain("e", ""), nil)

	out := SizeFilter([]*graph.Graph[*domainmodel.Domain]{small, big}, 2)
	if len(out) != 1 || out[0] != small {
		t.Errorf("expected only the size-2 cluster to survive a max of 2")
	}
}

func requestCounts(counts map[string]map[string]int) RequestCount {
	return func(user, name string) (int, bool) {
		byName, ok := counts[user]
		if !ok {
			return 0, false
		}
		n, ok := byName[name]
		return n, ok
	}
}

func TestWhitelistAnyUserBelowThresholdSuppresses(t *testing.T) {
	x := domainmodel.NewDomain("X", "")
	g := graph.New[*domainmodel.Domain](graph.KMax)
	g.Put(x, nil)

	counts := requestCounts(map[string]map[string]int{
		"u1": {"X": 5},
		"u2": {"X": 2},
	})

	_, whitelisted, err := Whitelist(context.Background(), []*graph.Graph[*domainmodel.Domain]{g},
		map[string]bool{}, "", 3, []string{"u1", "u2"}, counts)
	if err != nil {
		t.Fatalf("Whitelist: %v", err)
	}
	if len(whitelisted) != 1 || whitelisted[0].Name != "X" {
		t.Errorf("expected X whitelisted when u2 (2 requests) is below min_requests=3, got %v", whitelisted)
	}
}

func TestWhitelistSurvivesWhenAllUsersMeetThreshold(t *testing.T) {
	x := domainmodel.NewDomain("X", "")
	g := graph.New[*domainmodel.Domain](graph.KMax)
	g.Put(x, nil)

	counts := requestCounts(map[string]map[string]int{
		"u1": {"X": 5},
		"u2": {"X": 2},
	})

	for _, min := range []float64{2, 1} {
		filtered, whitelisted, err := Whitelist(context.Background(), []*graph.Graph[*domainmodel.Domain]{g},
			map[string]bool{}, "", min, []string{"u1", "u2"}, counts)
		if err != nil {
			t.Fatalf("Whitelist: %v", err)
		}
		if len(whitelisted) != 0 {
			t.Errorf("min_requests=%v: expected X to survive, got whitelisted=%v", min, whitelisted)
		}
		if len(filtered) != 1 || filtered[0].Size() != 1 {
			t.Errorf("min_requests=%v: expected X present in filtered output", min)
		}
	}
}

func TestWhitelistPersistentAndAdhocUnion(t *testing.T) {
	a := domainmodel.NewDomain("a.example", "")
	b := domainmodel.NewDomain("b.example", "")
	g := graph.New[*domainmodel.Domain](graph.KMax)
	g.Put(a, graph.NeighborList[*domainmodel.Domain]{{Node: b, Similarity: 0.5}})
	g.Put(b, nil)

	counts := requestCounts(map[string]map[string]int{})
	filtered, whitelisted, err := Whitelist(context.Background(), []*graph.Graph[*domainmodel.Domain]{g},
		map[string]bool{"a.example": true}, "b.example", 0, nil, counts)
	if err != nil {
		t.Fatalf("Whitelist: %v", err)
	}
	if len(whitelisted) != 2 {
		t.Fatalf("expected both persistent and ad-hoc whitelisted domains, got %v", whitelisted)
	}
	if filtered[0].Size() != 0 {
		t.Errorf("expected both nodes and the incident edge removed, got size %d", filtered[0].Size())
	}
}
