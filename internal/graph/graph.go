// Package graph implements the directed, weighted graph primitive the
// analysis pipeline fuses, prunes, and clusters. It is generic over the
// node type so it can be unit tested without the domainmodel package;
// every production instantiation uses Graph[*domainmodel.Domain].
package graph

import "math"

// KMax is the neighbor-list bound used for fusion and aggregate graphs,
// which are conceptually unbounded.
const KMax = math.MaxInt

// Neighbor is a (node, similarity) pair. Similarities are symmetric in
// intent but stored directed: an A->B entry is independent of B->A.
type Neighbor[T any] struct {
	Node       T
	Similarity float64
}

// NeighborList is an ordered sequence of neighbors for one node.
type NeighborList[T any] []Neighbor[T]

// Add appends a neighbor, preserving insertion order.
func (nl *NeighborList[T]) Add(n Neighbor[T]) {
	*nl = append(*nl, n)
}

// Graph is a mapping node -> NeighborList with a bound KMax and a
// stable, insertion-defined node iteration order (tie-breaks in
// clustering and ranking depend on it).
type Graph[T comparable] struct {
	kMax      int
	order     []T
	index     map[T]int
	neighbors map[T]NeighborList[T]
}

// New creates an empty graph bounded to kMax neighbors per node.
func New[T comparable](kMax int) *Graph[T] {
	return &Graph[T]{
		kMax:      kMax,
		index:     make(map[T]int),
		neighbors: make(map[T]NeighborList[T]),
	}
}

// KMax returns the graph's configured neighbor-list bound.
func (g *Graph[T]) KMax() int {
	return g.kMax
}

// Put sets node's neighbor list, adding node to the key set if new.
// Every node referenced by a neighbor entry must also be Put as a key
// by the caller — the graph does not implicitly create nodes for
// dangling neighbor references.
func (g *Graph[T]) Put(node T, nl NeighborList[T]) {
	if _, ok := g.index[node]; !ok {
		g.index[node] = len(g.order)
		g.order = append(g.order, node)
	}
	g.neighbors[node] = nl
}

// Neighbors returns node's neighbor list, or nil if node is not a key.
func (g *Graph[T]) Neighbors(node T) NeighborList[T] {
	return g.neighbors[node]
}

// Contains reports whether node is a key of the graph.
func (g *Graph[T]) Contains(node T) bool {
	_, ok := g.index[node]
	return ok
}

// Nodes returns the graph's nodes in stable insertion order.
func (g *Graph[T]) Nodes() []T {
	return g.order
}

// Size returns the number of nodes (keys) in the graph.
func (g *Graph[T]) Size() int {
	return len(g.order)
}

// Copy deep-clones the node->NeighborList mapping. Nodes themselves are
// cloned by reference (a Domain pointer is shared, not duplicated);
// only the graph's own structure is an independent copy.
func (g *Graph[T]) Copy() *Graph[T] {
	out := New[T](g.kMax)
	for _, node := range g.order {
		nl := g.neighbors[node]
		cloned := make(NeighborList[T], len(nl))
		copy(cloned, nl)
		out.Put(node, cloned)
	}
	return out
}

// Prune removes every neighbor entry with similarity strictly below
// threshold. Nodes left with an empty neighbor list remain keys of the
// graph (clustering treats isolated nodes as singleton components).
func (g *Graph[T]) Prune(threshold float64) {
	for _, node := range g.order {
		nl := g.neighbors[node]
		kept := nl[:0:0]
		for _, n := range nl {
			if n.Similarity >= threshold {
				kept = append(kept, n)
			}
		}
		g.neighbors[node] = kept
	}
}

// ConnectedComponents partitions the graph's nodes into maximal
// undirected-reachability subgraphs (an A->B or B->A edge suffices to
// connect A and B). Components are emitted in the order their
// first-discovered node appears in the parent graph's node iteration
// order; within a component, nodes retain traversal (BFS) order.
func (g *Graph[T]) ConnectedComponents() []*Graph[T] {
	adjacency := g.undirectedAdjacency()
	visited := make(map[T]bool, len(g.order))

	var components []*Graph[T]
	for _, start := range g.order {
		if visited[start] {
			continue
		}
		var members []T
		queue := []T{start}
		visited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			members = append(members, node)
			for _, nb := range adjacency[node] {
				if !visited[nb] {
					visited[nb] = true
					queue = append(queue, nb)
				}
			}
		}

		sub := New[T](g.kMax)
		for _, m := range members {
			sub.Put(m, g.neighbors[m])
		}
		components = append(components, sub)
	}
	return components
}

func (g *Graph[T]) undirectedAdjacency() map[T][]T {
	adj := make(map[T][]T, len(g.order))
	for _, node := range g.order {
		for _, n := range g.neighbors[node] {
			adj[node] = append(adj[node], n.Node)
			adj[n.Node] = append(adj[n.Node], node)
		}
	}
	return adj
}
