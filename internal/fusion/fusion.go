// Package fusion combines per-feature and per-user k-NN graphs into a
// single weighted graph. It is the one place the pipeline does real
// graph algebra: everything upstream (store) and downstream (prune,
// cluster, filter, rank) treats Fuse's output as an ordinary Graph.
package fusion

import (
	"context"
	"fmt"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
)

// Mode selects which domain universe Fuse combines over.
type Mode int

const (
	// ByUsers fuses a single user's F per-feature graphs into that
	// user's combined graph. The domain universe is the user's own
	// name space.
	ByUsers Mode = iota
	// All fuses one combined graph per user into a single aggregate
	// graph. The domain universe is the cross-user, unique-by-name
	// domain set.
	All
)

// Fuse combines graphs into a single weighted graph using weights,
// one per input graph. target names the fusion's owning user in
// ByUsers mode (recorded on output nodes); it is ignored in All mode,
// where output nodes have no single owner.
//
// orderedWeights is accepted but does not influence the computed
// similarities — it is a validated, recorded parameter at the
// pipeline level, not a fusion input (see SPEC_FULL.md §9).
//
// Cancellation is polled once per outer domain (one poll per node of
// the output universe), matching the complexity target of
// O(len(graphs) * average neighbor-list size).
func Fuse(ctx context.Context, graphs []*graph.Graph[*domainmodel.Domain], target string, weights, orderedWeights []float64, mode Mode) (*graph.Graph[*domainmodel.Domain], error) {
	_ = orderedWeights
	if len(weights) != len(graphs) {
		return nil, fmt.Errorf("fusion: %d weights for %d graphs", len(weights), len(graphs))
	}

	indices := make([]map[string]*domainmodel.Domain, len(graphs))
	for i, g := range graphs {
		idx := make(map[string]*domainmodel.Domain, g.Size())
		for _, n := range g.Nodes() {
			idx[n.Name] = n
		}
		indices[i] = idx
	}

	var universeOrder []string
	universeSeen := make(map[string]bool)
	for _, g := range graphs {
		for _, n := range g.Nodes() {
			if !universeSeen[n.Name] {
				universeSeen[n.Name] = true
				universeOrder = append(universeOrder, n.Name)
			}
		}
	}

	outputClient := target
	if mode == All {
		outputClient = ""
	}
	outputNodes := make(map[string]*domainmodel.Domain, len(universeOrder))
	getOutputNode := func(name string) *domainmodel.Domain {
		if d, ok := outputNodes[name]; ok {
			return d
		}
		d := domainmodel.NewDomain(name, outputClient)
		for _, idx := range indices {
			if src, ok := idx[name]; ok {
				for _, req := range src.Requests() {
					d.Add(req)
				}
			}
		}
		outputNodes[name] = d
		return d
	}

	out := graph.New[*domainmodel.Domain](graph.KMax)
	for _, name := range universeOrder {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		accum := make(map[string]float64)
		var neighborOrder []string
		neighborSeen := make(map[string]bool)

		for i, idx := range indices {
			domNode, ok := idx[name]
			if !ok {
				continue
			}
			for _, nb := range graphs[i].Neighbors(domNode) {
				if !neighborSeen[nb.Node.Name] {
					neighborSeen[nb.Node.Name] = true
					neighborOrder = append(neighborOrder, nb.Node.Name)
				}
				accum[nb.Node.Name] += weights[i] * nb.Similarity
			}
		}

		var nl graph.NeighborList[*domainmodel.Domain]
		for _, nm := range neighborOrder {
			v := accum[nm]
			if v == 0 {
				continue
			}
			nl.Add(graph.Neighbor[*domainmodel.Domain]{Node: getOutputNode(nm), Similarity: v})
		}
		out.Put(getOutputNode(name), nl)
	}
	return out, nil
}
