// Package filter implements cluster-size filtering and whitelist/
// minimum-requests suppression: the step between clustering and
// ranking that drops components too large to be interesting and
// domains explicitly excluded or too sparsely contacted to trust.
package filter

import (
	"context"
	"strings"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
)

// SizeFilter keeps every cluster whose node count does not exceed
// maxSize. The boundary is inclusive: a cluster of exactly maxSize
// survives.
func SizeFilter(clusters []*graph.Graph[*domainmodel.Domain], maxSize float64) []*graph.Graph[*domainmodel.Domain] {
	out := make([]*graph.Graph[*domainmodel.Domain], 0, len(clusters))
	for _, c := range clusters {
		if float64(c.Size()) <= maxSize {
			out = append(out, c)
		}
	}
	return out
}

// RequestCount looks up how many requests user sent to the domain
// named name. ok is false if user never contacted that domain at all
// (as opposed to contacting it zero times, which cannot occur).
type RequestCount func(user, name string) (count int, ok bool)

// Whitelist removes, from each cluster, every domain that is either
// explicitly whitelisted (persistent file ∪ ad-hoc text, newline
// split) or under-contacted: any single user in users whose request
// count for that domain is below minRequests causes it to be
// whitelisted, even if every other user exceeds the threshold. This
// matches the observed behavior of the system this was distilled
// from; see SPEC_FULL.md §4.6 and §9.
//
// Cancellation is polled once per cluster.
func Whitelist(
	ctx context.Context,
	clusters []*graph.Graph[*domainmodel.Domain],
	persistent map[string]bool,
	adhocText string,
	minRequests float64,
	users []string,
	requests RequestCount,
) ([]*graph.Graph[*domainmodel.Domain], []*domainmodel.Domain, error) {
	adhoc := make(map[string]bool)
	for _, line := range strings.Split(adhocText, "\n") {
		if line == "" {
			continue
		}
		adhoc[line] = true
	}

	whitelistedSet := make(map[*domainmodel.Domain]bool)
	var whitelisted []*domainmodel.Domain
	mark := func(d *domainmodel.Domain) {
		if !whitelistedSet[d] {
			whitelistedSet[d] = true
			whitelisted = append(whitelisted, d)
		}
	}

	out := make([]*graph.Graph[*domainmodel.Domain], 0, len(clusters))
	for _, cluster := range clusters {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		for _, node := range cluster.Nodes() {
			if whitelistedSet[node] {
				continue
			}
			if persistent[node.Name] || adhoc[node.Name] {
				mark(node)
				continue
			}
			for _, u := range users {
				n, ok := requests(u, node.Name)
				if ok && float64(n) < minRequests {
					mark(node)
					break
				}
			}
		}
		out = append(out, removeNodes(cluster, whitelistedSet))
	}
	return out, whitelisted, nil
}

func removeNodes(g *graph.Graph[*domainmodel.Domain], drop map[*domainmodel.Domain]bool) *graph.Graph[*domainmodel.Domain] {
	out := graph.New[*domainmodel.Domain](g.KMax())
	for _, node := range g.Nodes() {
		if drop[node] {
			continue
		}
		var nl graph.NeighborList[*domainmodel.Domain]
		for _, nb := range g.Neighbors(node) {
			if drop[nb.Node] {
				continue
			}
			nl.Add(nb)
		}
		out.Put(node, nl)
	}
	return out
}
