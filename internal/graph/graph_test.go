package graph

import "testing"

func TestPutContainsNodes(t *testing.T) {
	g := New[string](10)
	g.Put("a", NeighborList[string]{{Node: "b", Similarity: 0.5}})
	g.Put("b", nil)

	if !g.Contains("a") || !g.Contains("b") {
		t.Fatal("expected both nodes present")
	}
	if g.Contains("c") {
		t.Fatal("did not expect c present")
	}
	if got := g.Nodes(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Nodes() = %v, want stable insertion order [a b]", got)
	}
}

func TestPruneKeepsIsolatedNodes(t *testing.T) {
	g := New[string](10)
	g.Put("a", NeighborList[string]{{Node: "b", Similarity: 0.2}})
	g.Put("b", nil)

	g.Prune(0.5)

	if !g.Contains("a") {
		t.Fatal("pruning must not remove nodes, only edges")
	}
	if len(g.Neighbors("a")) != 0 {
		t.Errorf("expected a's neighbor list empty after pruning below threshold")
	}
}

func TestPruneMonotonicity(t *testing.T) {
	// A higher prune threshold can only keep a subset of the edges a lower one keeps.
	build := func() *Graph[string] {
		g := New[string](10)
		g.Put("a", NeighborList[string]{{Node: "b", Similarity: 0.3}, {Node: "c", Similarity: 0.6}})
		g.Put("b", nil)
		g.Put("c", nil)
		return g
	}

	g1 := build()
	g1.Prune(0.4)
	g2 := build()
	g2.Prune(0.7)

	set1 := make(map[string]bool)
	for _, n := range g1.Neighbors("a") {
		set1[n.Node] = true
	}
	for _, n := range g2.Neighbors("a") {
		if !set1[n.Node] {
			t.Errorf("edge to %v survived stricter threshold but not looser one", n.Node)
		}
	}
}

func TestConnectedComponentsPartition(t *testing.T) {
	g := New[string](10)
	g.Put("a", NeighborList[string]{{Node: "b", Similarity: 0.4}})
	g.Put("b", nil)
	g.Put("c", nil)

	comps := g.ConnectedComponents()
	if len(comps) != 2 {
		t.Fatalf("got %d components, want 2", len(comps))
	}

	total := 0
	seen := make(map[string]bool)
	for _, c := range comps {
		for _, n := range c.Nodes() {
			if seen[n] {
				t.Errorf("node %v appeared in more than one component", n)
			}
			seen[n] = true
			total++
		}
	}
	if total != g.Size() {
		t.Errorf("sum of component sizes = %d, want %d", total, g.Size())
	}
}

func TestConnectedComponentsUndirected(t *testing.T) {
	// B->A edge still connects A and B under undirected reachability.
	g := New[string](10)
	g.Put("a", nil)
	g.Put("b", NeighborList[string]{{Node: "a", Similarity: 0.9}})

	comps := g.ConnectedComponents()
	if len(comps) != 1 {
		t.Fatalf("got %d components, want 1 (undirected reachability)", len(comps))
	}
}

func TestCopyIsIndependent(t *testing.T) {
	g := New[string](10)
	g.Put("a", NeighborList[string]{{Node: "b", Similarity: 0.5}})
	g.Put("b", nil)

	c := g.Copy()
	c.Prune(1.0)

	if len(g.Neighbors("a")) != 1 {
		t.Error("pruning the copy must not affect the original")
	}
}
