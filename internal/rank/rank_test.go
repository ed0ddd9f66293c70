package rank

import (
	"fmt"
	"testing"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
)

func TestRankChildrenWeightedTopIsParent(t *testing.T) {
	// components [{A,B},{C}] with surviving edge A->B(0.4).
	a := domainmodel.NewDomain("A", "")
	b := domainmodel.NewDomain("B", "")
	c := domainmodel.NewDomain("C", "")

	cluster1 := graph.New[*domainmodel.Domain](graph.KMax)
	cluster1.Put(a, graph.NeighborList[*domainmodel.Domain]{{Node: b, Similarity: 0.4}})
	cluster1.Put(b, nil)
	cluster2 := graph.New[*domainmodel.Domain](graph.KMax)
	cluster2.Put(c, nil)

	result, err := Rank([]*graph.Graph[*domainmodel.Domain]{cluster1, cluster2}, [3]float64{0, 1, 0}, false)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if result.Sorted[0].Name != "A" {
		t.Fatalf("top domain = %v, want A", result.Sorted[0].Name)
	}
	if result.Sorted[1].Name != "B" || result.Sorted[2].Name != "C" {
		t.Errorf("tie-break order = %v, want [B C] for the zero-index tie (input order)", result.Sorted[1:])
	}
}

func TestRankAptTopPercentile(t *testing.T) {
	// evil.apt at position 7 of 100.
	var clusters []*graph.Graph[*domainmodel.Domain]
	g := graph.New[*domainmodel.Domain](graph.KMax)
	for i := 0; i < 100; i++ {
		name := fmt.Sprintf("domain-%03d", i)
		if i == 6 {
			name = "evil.apt"
		}
		g.Put(domainmodel.NewDomain(name, ""), nil)
	}
	clusters = append(clusters, g)

	// Force a strictly descending requests-based index so the sort
	// order exactly matches insertion order (domain-000..099, with
	// evil.apt substituted at position 6).
	weights := [3]float64{0, 0, 1}
	for i, node := range g.Nodes() {
		for j := 0; j < 100-i; j++ {
			node.Add(domainmodel.Request{Timestamp: int64(j)})
		}
	}

	result, err := Rank(clusters, weights, true)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if result.Apt == nil || !result.Apt.Found {
		t.Fatal("expected an apt report to be found")
	}
	if len(result.Apt.AptDomains) != 1 || result.Apt.AptDomains[0] != "evil.apt" {
		t.Fatalf("apt domains = %v, want [evil.apt]", result.Apt.AptDomains)
	}
	if result.Apt.TopPercent != 7.0 {
		t.Errorf("TopPercent = %v, want 7.00", result.Apt.TopPercent)
	}
}

func TestRankDuplicateNeighborsSummed(t *testing.T) {
	a := domainmodel.NewDomain("A", "")
	b := domainmodel.NewDomain("B", "")
	cluster1 := graph.New[*domainmodel.Domain](graph.KMax)
	cluster1.Put(a, graph.NeighborList[*domainmodel.Domain]{{Node: b, Similarity: 0.3}})
	cluster1.Put(b, nil)
	cluster2 := graph.New[*domainmodel.Domain](graph.KMax)
	cluster2.Put(a, graph.NeighborList[*domainmodel.Domain]{{Node: b, Similarity: 0.2}})
	cluster2.Put(b, nil)

	result, err := Rank([]*graph.Graph[*domainmodel.Domain]{cluster1, cluster2}, [3]float64{0, 1, 0}, false)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if result.Index[a] != 0.5 {
		t.Errorf("children(A) = %v, want 0.5 (0.3+0.2, summed not deduped)", result.Index[a])
	}
}
