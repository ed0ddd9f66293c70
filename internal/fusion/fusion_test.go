package fusion

import (
	"context"
	"testing"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
)

func domain(name string) *domainmodel.Domain {
	return domainmodel.NewDomain(name, "u1")
}

func buildFeatureGraph(t *testing.T, edges map[string][]struct {
	to  string
	sim float64
}, nodeNames ...string) *graph.Graph[*domainmodel.Domain] {
	t.Helper()
	nodes := make(map[string]*domainmodel.Domain, len(nodeNames))
	for _, n := range nodeNames {
		nodes[n] = domain(n)
	}
	g := graph.New[*domainmodel.Domain](3)
	for _, n := range nodeNames {
		var nl graph.NeighborList[*domainmodel.Domain]
		for _, e := range edges[n] {
			nl.Add(graph.Neighbor[*domainmodel.Domain]{Node: nodes[e.to], Similarity: e.sim})
		}
		g.Put(nodes[n], nl)
	}
	return g
}

func TestFuseByUsersWeightedSum(t *testing.T) {
	// F0: A->B(0.8); F1: A->C(0.6). weights=(0.5,0.5).
	f0 := buildFeatureGraph(t, map[string][]struct {
		to  string
		sim float64
	}{
		"A": {{"B", 0.8}},
	}, "A", "B", "C")
	f1 := buildFeatureGraph(t, map[string][]struct {
		to  string
		sim float64
	}{
		"A": {{"C", 0.6}},
	}, "A", "B", "C")

	out, err := Fuse(context.Background(), []*graph.Graph[*domainmodel.Domain]{f0, f1}, "u1",
		[]float64{0.5, 0.5}, []float64{0.5, 0.5}, ByUsers)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}

	var a *domainmodel.Domain
	for _, n := range out.Nodes() {
		if n.Name == "A" {
			a = n
		}
	}
	if a == nil {
		t.Fatal("expected node A in fused graph")
	}
	got := map[string]float64{}
	for _, nb := range out.Neighbors(a) {
		got[nb.Node.Name] = nb.Similarity
	}
	if got["B"] != 0.4 {
		t.Errorf("A->B = %v, want 0.4", got["B"])
	}
	if got["C"] != 0.3 {
		t.Errorf("A->C = %v, want 0.3", got["C"])
	}
}

func TestFuseLinearityBasisVector(t *testing.T) {
	f0 := buildFeatureGraph(t, map[string][]struct {
		to  string
		sim float64
	}{
		"A": {{"B", 0.8}},
	}, "A", "B")
	f1 := buildFeatureGraph(t, map[string][]struct {
		to  string
		sim float64
	}{
		"A": {{"B", 0.2}},
	}, "A", "B")

	out, err := Fuse(context.Background(), []*graph.Graph[*domainmodel.Domain]{f0, f1}, "u1",
		[]float64{1, 0}, []float64{1, 0}, ByUsers)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	var a *domainmodel.Domain
	for _, n := range out.Nodes() {
		if n.Name == "A" {
			a = n
		}
	}
	nl := out.Neighbors(a)
	if len(nl) != 1 || nl[0].Node.Name != "B" || nl[0].Similarity != 0.8 {
		t.Errorf("basis-vector fusion = %+v, want edge-for-edge match with feature-0 graph", nl)
	}
}

func TestFuseZeroAfterAccumulationDiscarded(t *testing.T) {
	f0 := buildFeatureGraph(t, map[string][]struct {
		to  string
		sim float64
	}{
		"A": {{"B", 1.0}},
	}, "A", "B")
	f1 := buildFeatureGraph(t, map[string][]struct {
		to  string
		sim float64
	}{
		"A": {{"B", -1.0}},
	}, "A", "B")

	out, err := Fuse(context.Background(), []*graph.Graph[*domainmodel.Domain]{f0, f1}, "u1",
		[]float64{1, 1}, []float64{0.5, 0.5}, ByUsers)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	var a *domainmodel.Domain
	for _, n := range out.Nodes() {
		if n.Name == "A" {
			a = n
		}
	}
	if len(out.Neighbors(a)) != 0 {
		t.Errorf("expected zero-sum accumulation to be discarded, got %+v", out.Neighbors(a))
	}
}

func TestFuseAllModeMergesRequestsAcrossUsers(t *testing.T) {
	// D under u1 with [r1,r2], under u2 with [r2,r3] -> [r1,r2,r3].
	r1 := domainmodel.Request{Timestamp: 1, Target: "/r1"}
	r2 := domainmodel.Request{Timestamp: 2, Target: "/r2"}
	r3 := domainmodel.Request{Timestamp: 3, Target: "/r3"}

	d1 := domainmodel.NewDomain("D", "u1")
	d1.Add(r1)
	d1.Add(r2)
	d2 := domainmodel.NewDomain("D", "u2")
	d2.Add(r2)
	d2.Add(r3)

	g1 := graph.New[*domainmodel.Domain](graph.KMax)
	g1.Put(d1, nil)
	g2 := graph.New[*domainmodel.Domain](graph.KMax)
	g2.Put(d2, nil)

	out, err := Fuse(context.Background(), []*graph.Graph[*domainmodel.Domain]{g1, g2}, "",
		[]float64{1, 1}, []float64{0.5, 0.5}, All)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	var d *domainmodel.Domain
	for _, n := range out.Nodes() {
		if n.Name == "D" {
			d = n
		}
	}
	if d == nil {
		t.Fatal("expected aggregate node D")
	}
	want := []domainmodel.Request{r1, r2, r3}
	got := d.Requests()
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("requests[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFuseCancellation(t *testing.T) {
	f0 := buildFeatureGraph(t, map[string][]struct {
		to  string
		sim float64
	}{}, "A")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fuse(ctx, []*graph.Graph[*domainmodel.Domain]{f0}, "u1", []float64{1}, []float64{1}, ByUsers)
	if err == nil {
		t.Error("expected cancellation error")
	}
}
