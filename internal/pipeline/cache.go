package pipeline

import (
	"context"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/graph"
	"github.com/aptgraph/aptgraph/internal/rank"
	"github.com/aptgraph/aptgraph/internal/stats"
	"github.com/aptgraph/aptgraph/internal/store"
)

type domainGraph = graph.Graph[*domainmodel.Domain]

// Stage0Output holds the resolved user set, the loaded per-user
// feature bundles, and the by-user / aggregate domain indexes as
// explicit maps, not delimited-string keys.
type Stage0Output struct {
	Users           []string
	Bundles         map[string]store.FeatureGraphBundle
	ByUserDomains   map[string]map[string]*domainmodel.Domain
	AggregateByName map[string]*domainmodel.Domain
}

// Stage1Output holds the per-user fused graphs and the aggregate
// fusion of those graphs.
type Stage1Output struct {
	UserGraphs  []*domainGraph
	MergedGraph *domainGraph
}

// Stage2Output holds the similarity list and its statistics.
type Stage2Output struct {
	Similarities []float64
	Mean         float64
	Variance     float64
	Histogram    []stats.Bin
}

// Stage3Output holds the resolved prune threshold, the pruned graph,
// and its connected components.
type Stage3Output struct {
	PruneThreshold float64
	PrunedGraph    *domainGraph
	Clusters       []*domainGraph
}

// Stage4Output holds the cluster-size list and its statistics.
type Stage4Output struct {
	ClusterSizes []float64
	Mean         float64
	Variance     float64
	Histogram    []stats.Bin
}

// Stage5Output holds the resolved max cluster size and the
// size-filtered cluster list.
type Stage5Output struct {
	MaxClusterSize float64
	Filtered       []*domainGraph
}

// Stage6Output holds the whitelisted-domain list and the
// filtered+whitelisted cluster list.
type Stage6Output struct {
	Whitelisted         []*domainmodel.Domain
	FilteredWhitelisted []*domainGraph
}

// Stage7Output holds the final ranking.
type Stage7Output struct {
	Ranking *rank.Result
}

type stageSlot[T any] struct {
	valid bool
	fp    Fingerprint
	value T
}

// StageCache is the per-session memo of the eight pipeline stages.
// A fresh, zero-value StageCache has every slot invalid, so the
// first query for a session always computes everything.
type StageCache struct {
	stage0 stageSlot[Stage0Output]
	stage1 stageSlot[Stage1Output]
	stage2 stageSlot[Stage2Output]
	stage3 stageSlot[Stage3Output]
	stage4 stageSlot[Stage4Output]
	stage5 stageSlot[Stage5Output]
	stage6 stageSlot[Stage6Output]
	stage7 stageSlot[Stage7Output]
}

// Invalidate clears every stage slot, forcing full recomputation on
// the next Analyze call.
func (c *StageCache) Invalidate() {
	*c = StageCache{}
}

// Event is a progress notification emitted between pipeline stages.
type Event struct {
	Stage   int
	Elapsed float64 // milliseconds
	Message string
}

// StageHook observes every one of the eight stages Analyze walks,
// whether recomputed or served from cache. Start returns a (possibly
// derived, e.g. span-carrying) context to use for the stage's actual
// work and a function to call when the stage finishes; end is always
// called exactly once per Start, even when the stage errors.
type StageHook interface {
	Start(ctx context.Context, stage int, cached bool) (stageCtx context.Context, end func())
}

// MultiHook fans Start out to every hook in order, chaining the
// returned context (each hook sees the previous hook's context) and
// ending all of them, in reverse order, from a single returned func.
type MultiHook []StageHook

// Start implements StageHook.
func (m MultiHook) Start(ctx context.Context, stage int, cached bool) (context.Context, func()) {
	ends := make([]func(), 0, len(m))
	for _, h := range m {
		var end func()
		ctx, end = h.Start(ctx, stage, cached)
		ends = append(ends, end)
	}
	return ctx, func() {
		for i := len(ends) - 1; i >= 0; i-- {
			ends[i]()
		}
	}
}
