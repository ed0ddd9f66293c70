// Package rank implements the multi-criterion ranker: it
// flattens the filtered and whitelisted clusters into one graph and
// scores every surviving domain by a weighted combination of parent
// weight, child weight, and request count.
package rank

import (
	"fmt"
	"math"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
	"github.com/aptgraph/aptgraph/internal/stats"
)

// AptReport summarizes the position of ground-truth ".apt" domains
// within the ranking, when apt search is enabled.
type AptReport struct {
	Found            bool
	TopPercent       float64
	AptDomains       []string
	AptDomainIndices []float64
}

// Result is the ranker's output.
type Result struct {
	// Graph is the flattened union graph the indices were computed
	// over.
	Graph *graph.Graph[*domainmodel.Domain]
	// Sorted is every surviving domain, descending by Index, stable
	// on ties.
	Sorted []*domainmodel.Domain
	// Index maps a domain to its combined ranking index.
	Index map[*domainmodel.Domain]float64
	// Ranking buckets domain names by their index value, in
	// descending index order; names sharing an index keep their
	// insertion (i.e. Sorted) order within the bucket.
	Ranking []IndexBucket
	// Apt is populated only when apt search was requested.
	Apt *AptReport
}

// IndexBucket is one ranking value and the domain names that share it.
type IndexBucket struct {
	Index float64
	Names []string
}

// Rank flattens clusters into one aggregate graph by neighbor-list
// union (duplicate neighbor entries are summed into the
// parent/child totals, not deduplicated), scores every node, and
// sorts the result descending by the combined index
// weights[0]*parents + weights[1]*children + weights[2]*requests.
func Rank(clusters []*graph.Graph[*domainmodel.Domain], weights [3]float64, aptSearch bool) (*Result, error) {
	if len(weights) != 3 {
		return nil, fmt.Errorf("rank: need exactly 3 ranking weights")
	}

	combined := graph.New[*domainmodel.Domain](graph.KMax)
	for _, cluster := range clusters {
		for _, node := range cluster.Nodes() {
			existing := combined.Neighbors(node)
			if !combined.Contains(node) {
				nl := make(graph.NeighborList[*domainmodel.Domain], len(cluster.Neighbors(node)))
				copy(nl, cluster.Neighbors(node))
				combined.Put(node, nl)
				continue
			}
			merged := append(existing, cluster.Neighbors(node)...)
			combined.Put(node, merged)
		}
	}

	parents := make(map[*domainmodel.Domain]float64)
	children := make(map[*domainmodel.Domain]float64)
	requests := make(map[*domainmodel.Domain]float64)
	for _, node := range combined.Nodes() {
		requests[node] = float64(len(node.Requests()))
	}
	for _, node := range combined.Nodes() {
		for _, nb := range combined.Neighbors(node) {
			children[node] += nb.Similarity
			parents[nb.Node] += nb.Similarity
		}
	}

	index := make(map[*domainmodel.Domain]float64, combined.Size())
	for _, node := range combined.Nodes() {
		index[node] = weights[0]*parents[node] + weights[1]*children[node] + weights[2]*requests[node]
	}

	sorted := stats.SortByIndex(combined.Nodes(), index)

	result := &Result{
		Graph:  combined,
		Sorted: sorted,
		Index:  index,
	}
	result.Ranking = bucketRanking(sorted, index)
	if aptSearch {
		result.Apt = buildAptReport(sorted, index)
	}
	return result, nil
}

func bucketRanking(sorted []*domainmodel.Domain, index map[*domainmodel.Domain]float64) []IndexBucket {
	var buckets []IndexBucket
	position := make(map[float64]int)
	for _, dom := range sorted {
		idx := index[dom]
		if pos, ok := position[idx]; ok {
			buckets[pos].Names = append(buckets[pos].Names, dom.Name)
			continue
		}
		position[idx] = len(buckets)
		buckets = append(buckets, IndexBucket{Index: idx, Names: []string{dom.Name}})
	}
	return buckets
}

// buildAptReport finds every ".apt" domain in the sorted ranking.
// "TOP" is the percentile position of the worst-ranked (last,
// lowest-index) such domain: all entries from position 1 through its
// position are "at or above" it in the ranking.
func buildAptReport(sorted []*domainmodel.Domain, index map[*domainmodel.Domain]float64) *AptReport {
	report := &AptReport{}
	var worstPosition int
	for i, dom := range sorted {
		if !isAptDomain(dom.Name) {
			continue
		}
		worstPosition = i + 1
		report.Found = true
		report.AptDomains = append(report.AptDomains, dom.Name)
		report.AptDomainIndices = append(report.AptDomainIndices, roundTo(index[dom], 2))
	}
	if report.Found && len(sorted) > 0 {
		report.TopPercent = roundTo(float64(worstPosition)/float64(len(sorted))*100, 2)
	}
	return report
}

func isAptDomain(name string) bool {
	const suffix = ".apt"
	if len(name) < len(suffix) {
		return false
	}
	return name[len(name)-len(suffix):] == suffix
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
