// Package pipeline implements the analysis controller: the
// eight-stage, dependency-ordered, incrementally-cacheable query that
// turns a stored set of per-user feature graphs into a ranked
// shortlist of suspicious domains.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aptgraph/aptgraph/internal/domainmodel"
	"github.com/aptgraph/aptgraph/internal/filter"
	"github.com/aptgraph/aptgraph/internal/fusion"
	"github.com/aptgraph/aptgraph/internal/rank"
	"github.com/aptgraph/aptgraph/internal/safefile"
	"github.com/aptgraph/aptgraph/internal/stats"
	"github.com/aptgraph/aptgraph/internal/store"
)

// ErrValidation wraps a Parameters.Validate or unknown-user failure.
var ErrValidation = errors.New("pipeline: validation failed")

// ErrInternal wraps a failure the controller cannot attribute to bad
// input (store corruption, unexpected nil graphs).
var ErrInternal = errors.New("pipeline: internal error")

// Output is the result of one Analyze call. StudyMode true means
// Ranking is populated and the UI-only fields (FilteredClusters,
// HistSimilarities, HistClusters) are left nil, matching the
// original two flavors of response.
type Output struct {
	Stdout           string
	StudyMode        bool
	FilteredClusters []*domainGraph
	HistSimilarities []stats.Bin
	HistClusters     []stats.Bin
	Ranking          []rank.IndexBucket
	Apt              *rank.AptReport
}

// Controller runs Analyze queries against a GraphStore, optionally
// reading a persistent whitelist file from disk.
type Controller struct {
	Store         store.GraphStore
	WhitelistPath string
	Logger        *slog.Logger

	// Hook, if set, observes every stage boundary Analyze walks (see
	// internal/metrics and internal/telemetry for implementations).
	Hook StageHook
}

func (c *Controller) startStage(ctx context.Context, stage int, cached bool) (context.Context, func()) {
	if c.Hook == nil {
		return ctx, func() {}
	}
	return c.Hook.Start(ctx, stage, cached)
}

// Analyze resolves params against the cached stage outputs in cache,
// recomputing only the stages a dependency-ordered comparison marks
// dirty, and returns the query result in either UI or study mode.
// events, if non-nil, receives one Event per stage actually
// (re)computed; Analyze never blocks writing to it (sends are
// buffered by the caller's choice of channel, or dropped if full).
func (c *Controller) Analyze(ctx context.Context, cache *StageCache, params Parameters, studyMode bool, events chan<- Event) (*Output, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fp := params.Fingerprint()
	dirty := dirtyStages(cache, fp)
	start := time.Now()

	emit := func(stage int, message string) {
		if events == nil {
			return
		}
		select {
		case events <- Event{Stage: stage, Elapsed: time.Since(start).Seconds() * 1000, Message: message}:
		default:
		}
	}

	stageCtx, end := c.startStage(ctx, 0, !dirty[0])
	if dirty[0] {
		out, err := c.runStage0(stageCtx, params)
		end()
		if err != nil {
			return nil, err
		}
		cache.stage0 = stageSlot[Stage0Output]{valid: true, fp: fp, value: *out}
		emit(0, "user/subnet resolution done")
	} else {
		end()
	}
	s0 := cache.stage0.value

	stageCtx, end = c.startStage(ctx, 1, !dirty[1])
	if dirty[1] {
		out, err := c.runStage1(stageCtx, s0, params)
		end()
		if err != nil {
			return nil, err
		}
		cache.stage1 = stageSlot[Stage1Output]{valid: true, fp: fp, value: *out}
		emit(1, "fusion done")
	} else {
		end()
	}
	s1 := cache.stage1.value

	_, end = c.startStage(ctx, 2, !dirty[2])
	if dirty[2] {
		out := runStage2(s1, params)
		cache.stage2 = stageSlot[Stage2Output]{valid: true, fp: fp, value: *out}
		emit(2, "similarity statistics done")
	}
	end()
	s2 := cache.stage2.value

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	_, end = c.startStage(ctx, 3, !dirty[3])
	if dirty[3] {
		out, err := runStage3(s1, s2, params)
		end()
		if err != nil {
			return nil, err
		}
		cache.stage3 = stageSlot[Stage3Output]{valid: true, fp: fp, value: *out}
		emit(3, "pruning and clustering done")
	} else {
		end()
	}
	s3 := cache.stage3.value

	_, end = c.startStage(ctx, 4, !dirty[4])
	if dirty[4] {
		out := runStage4(s3, params)
		cache.stage4 = stageSlot[Stage4Output]{valid: true, fp: fp, value: *out}
		emit(4, "cluster-size statistics done")
	}
	end()
	s4 := cache.stage4.value

	_, end = c.startStage(ctx, 5, !dirty[5])
	if dirty[5] {
		out := runStage5(s3, s4, params)
		cache.stage5 = stageSlot[Stage5Output]{valid: true, fp: fp, value: *out}
		emit(5, "size filtering done")
	}
	end()
	s5 := cache.stage5.value

	stageCtx, end = c.startStage(ctx, 6, !dirty[6])
	if dirty[6] {
		out, err := c.runStage6(stageCtx, s0, s5, params)
		end()
		if err != nil {
			return nil, err
		}
		cache.stage6 = stageSlot[Stage6Output]{valid: true, fp: fp, value: *out}
		emit(6, "whitelisting done")
	} else {
		end()
	}
	s6 := cache.stage6.value

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	_, end = c.startStage(ctx, 7, !dirty[7])
	if dirty[7] {
		out, err := runStage7(s6, params)
		end()
		if err != nil {
			return nil, err
		}
		cache.stage7 = stageSlot[Stage7Output]{valid: true, fp: fp, value: *out}
		emit(7, "ranking done")
	} else {
		end()
	}
	s7 := cache.stage7.value

	return c.buildOutput(s0, s5, s2, s4, s7, params, studyMode), nil
}

// dirtyStages implements the same dependency-ordered comparison as
// the system this was distilled from: the first field mismatch found
// walking the chain marks every later stage dirty too, even if a
// later field happens to still match.
func dirtyStages(cache *StageCache, fp Fingerprint) [8]bool {
	var dirty [8]bool
	for i := range dirty {
		dirty[i] = true
	}

	if !cache.stage0.valid || cache.stage0.fp.User != fp.User {
		return dirty
	}
	dirty[0] = false

	if cache.stage1.fp.FeatureWeights != fp.FeatureWeights ||
		cache.stage1.fp.FeatureOrderedWeights != fp.FeatureOrderedWeights ||
		!cache.stage1.valid {
		return dirty
	}
	dirty[1] = false

	if cache.stage2.fp.PruneZBool != fp.PruneZBool || !cache.stage2.valid {
		return dirty
	}
	dirty[2] = false

	if cache.stage3.fp.PruneThresholdTemp != fp.PruneThresholdTemp || !cache.stage3.valid {
		return dirty
	}
	dirty[3] = false

	if cache.stage4.fp.ClusterZBool != fp.ClusterZBool || !cache.stage4.valid {
		return dirty
	}
	dirty[4] = false

	if cache.stage5.fp.MaxClusterSizeTemp != fp.MaxClusterSizeTemp || !cache.stage5.valid {
		return dirty
	}
	dirty[5] = false

	if cache.stage6.fp.WhitelistBool != fp.WhitelistBool ||
		cache.stage6.fp.WhiteOngo != fp.WhiteOngo ||
		cache.stage6.fp.NumberRequests != fp.NumberRequests ||
		!cache.stage6.valid {
		return dirty
	}
	dirty[6] = false

	if cache.stage7.fp.RankingWeights != fp.RankingWeights ||
		cache.stage7.fp.AptSearch != fp.AptSearch ||
		!cache.stage7.valid {
		return dirty
	}
	dirty[7] = false

	return dirty
}

func (c *Controller) runStage0(ctx context.Context, params Parameters) (*Stage0Output, error) {
	allUsers, err := c.Store.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	allSubnets, err := c.Store.GetAllSubnets(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	known := false
	for _, u := range allUsers {
		if u == params.User {
			known = true
			break
		}
	}
	for _, s := range allSubnets {
		if s == params.User {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: unknown user or subnet %q", ErrValidation, params.User)
	}

	var resolvedUsers []string
	if isSubnet(params.User) {
		resolvedUsers = expandSubnet(params.User, allUsers)
	} else {
		resolvedUsers = []string{params.User}
	}

	bundles := make(map[string]store.FeatureGraphBundle, len(resolvedUsers))
	byUserDomains := make(map[string]map[string]*domainmodel.Domain, len(resolvedUsers))
	aggregate := make(map[string]*domainmodel.Domain)

	for _, user := range resolvedUsers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bundle, err := c.Store.GetUserGraphs(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("%w: loading %q: %v", ErrInternal, user, err)
		}
		bundles[user] = bundle

		domains := make(map[string]*domainmodel.Domain)
		if len(bundle) > 0 {
			for _, node := range bundle[0].Nodes() {
				domains[node.Name] = node
				if existing, ok := aggregate[node.Name]; !ok {
					aggregate[node.Name] = node
				} else if !existing.DeepEquals(node) {
					aggregate[node.Name] = existing.Merge(node)
				}
			}
		}
		byUserDomains[user] = domains
	}

	return &Stage0Output{
		Users:           resolvedUsers,
		Bundles:         bundles,
		ByUserDomains:   byUserDomains,
		AggregateByName: aggregate,
	}, nil
}

func (c *Controller) runStage1(ctx context.Context, s0 Stage0Output, params Parameters) (*Stage1Output, error) {
	userGraphs := make([]*domainGraph, 0, len(s0.Users))
	for _, user := range s0.Users {
		bundle := s0.Bundles[user]
		graphs := make([]*domainGraph, len(bundle))
		for i, g := range bundle {
			graphs[i] = g
		}
		weights := params.FeatureWeights
		if len(weights) != len(graphs) {
			return nil, fmt.Errorf("%w: %d feature weights for %d feature graphs", ErrValidation, len(weights), len(graphs))
		}
		merged, err := fusion.Fuse(ctx, graphs, user, weights, params.FeatureOrderedWeights, fusion.ByUsers)
		if err != nil {
			return nil, err
		}
		userGraphs = append(userGraphs, merged)
	}

	usersWeights := make([]float64, len(userGraphs))
	for i := range usersWeights {
		usersWeights[i] = 1.0
	}
	mergedAll, err := fusion.Fuse(ctx, userGraphs, "", usersWeights, []float64{0.0}, fusion.All)
	if err != nil {
		return nil, err
	}

	return &Stage1Output{UserGraphs: userGraphs, MergedGraph: mergedAll}, nil
}

func runStage2(s1 Stage1Output, params Parameters) *Stage2Output {
	var similarities []float64
	if s1.MergedGraph != nil {
		for _, node := range s1.MergedGraph.Nodes() {
			for _, nb := range s1.MergedGraph.Neighbors(node) {
				similarities = append(similarities, nb.Similarity)
			}
		}
	}
	mean, variance := stats.MeanVariance(similarities)
	hist := histogramFor(similarities, mean, variance, params.PruneZBool, "prune")
	return &Stage2Output{Similarities: similarities, Mean: mean, Variance: variance, Histogram: hist}
}

func runStage3(s1 Stage1Output, s2 Stage2Output, params Parameters) (*Stage3Output, error) {
	if s1.MergedGraph == nil {
		return nil, fmt.Errorf("%w: no merged graph to prune", ErrInternal)
	}
	threshold := params.PruneThresholdTemp
	if params.PruneZBool {
		threshold = stats.FromZ(s2.Mean, s2.Variance, params.PruneThresholdTemp)
	}

	pruned := s1.MergedGraph.Copy()
	pruned.Prune(threshold)
	clusters := pruned.ConnectedComponents()

	return &Stage3Output{PruneThreshold: threshold, PrunedGraph: pruned, Clusters: clusters}, nil
}

func runStage4(s3 Stage3Output, params Parameters) *Stage4Output {
	sizes := make([]float64, len(s3.Clusters))
	for i, cl := range s3.Clusters {
		sizes[i] = float64(cl.Size())
	}
	mean, variance := stats.MeanVariance(sizes)
	hist := histogramFor(sizes, mean, variance, params.ClusterZBool, "cluster")
	return &Stage4Output{ClusterSizes: sizes, Mean: mean, Variance: variance, Histogram: hist}
}

func runStage5(s3 Stage3Output, s4 Stage4Output, params Parameters) *Stage5Output {
	maxSize := params.MaxClusterSizeTemp
	if params.ClusterZBool {
		// This mirrors an observed quirk: the mean is supplied as
		// both the mean and the variance argument here, so the
		// z-score conversion never actually scales by the spread of
		// cluster sizes. TODO: confirm with upstream whether this is
		// intentional before "fixing" it.
		maxSize = roundHalfAwayFromZero(stats.FromZ(s4.Mean, s4.Mean, params.MaxClusterSizeTemp))
	}
	filtered := filter.SizeFilter(s3.Clusters, maxSize)
	return &Stage5Output{MaxClusterSize: maxSize, Filtered: filtered}
}

func (c *Controller) runStage6(ctx context.Context, s0 Stage0Output, s5 Stage5Output, params Parameters) (*Stage6Output, error) {
	if !params.WhitelistBool {
		return &Stage6Output{FilteredWhitelisted: s5.Filtered}, nil
	}

	persistent := c.loadPersistentWhitelist()
	requestCount := func(user, name string) (int, bool) {
		domains, ok := s0.ByUserDomains[user]
		if !ok {
			return 0, false
		}
		dom, ok := domains[name]
		if !ok {
			return 0, false
		}
		return dom.Size(), true
	}

	filteredWhitelisted, whitelisted, err := filter.Whitelist(ctx, s5.Filtered, persistent, params.WhiteOngo, params.NumberRequests, s0.Users, requestCount)
	if err != nil {
		return nil, err
	}
	return &Stage6Output{Whitelisted: whitelisted, FilteredWhitelisted: filteredWhitelisted}, nil
}

func (c *Controller) loadPersistentWhitelist() map[string]bool {
	persistent := make(map[string]bool)
	if c.WhitelistPath == "" {
		return persistent
	}
	data, err := safefile.ReadFile(c.WhitelistPath)
	if err != nil {
		if !os.IsNotExist(err) && c.Logger != nil {
			c.Logger.Warn("reading persistent whitelist", "path", c.WhitelistPath, "error", err)
		}
		return persistent
	}
	for _, line := range splitLines(string(data)) {
		if line != "" {
			persistent[line] = true
		}
	}
	return persistent
}

func runStage7(s6 Stage6Output, params Parameters) (*Stage7Output, error) {
	result, err := rank.Rank(s6.FilteredWhitelisted, params.RankingWeights, params.AptSearch)
	if err != nil {
		return nil, err
	}
	return &Stage7Output{Ranking: result}, nil
}

func (c *Controller) buildOutput(s0 Stage0Output, s5 Stage5Output, s2 Stage2Output, s4 Stage4Output, s7 Stage7Output, params Parameters, studyMode bool) *Output {
	totalDomains := len(s0.AggregateByName)
	stdout := fmt.Sprintf("Number of users selected: %d\nTotal number of domains: %d", len(s0.Users), totalDomains)

	out := &Output{Stdout: stdout, StudyMode: studyMode}
	if s7.Ranking != nil {
		out.Apt = s7.Ranking.Apt
		if studyMode {
			out.Ranking = s7.Ranking.Ranking
		}
	}
	if !studyMode {
		out.FilteredClusters = s5.Filtered
		out.HistSimilarities = s2.Histogram
		out.HistClusters = s4.Histogram
	}
	return out
}

func histogramFor(values []float64, mean, variance float64, zBool bool, mode string) []stats.Bin {
	transformed := values
	if zBool {
		transformed = make([]float64, len(values))
		for i, v := range values {
			transformed[i] = stats.Z(mean, variance, v)
		}
	}

	min, max := minMax(transformed)
	var step float64
	switch {
	case mode == "cluster":
		min = roundHalfAwayFromZero(min)
		max = roundHalfAwayFromZero(max)
		step = 1.0
	case !zBool:
		max = minFloat(max, stats.FromZ(mean, variance, 1.0))
		max = maxFloat(1.0, max)
		step = 0.1
	default:
		max = minFloat(max, 1.0)
		max = maxFloat(0.5, max)
		step = 0.01
	}

	hist := stats.Histogram(transformed, min, max, step)
	if len(hist) > 3 {
		hist = stats.CleanHistogram(hist)
	}
	return hist
}

func minMax(xs []float64) (min, max float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func roundHalfAwayFromZero(v float64) float64 {
	if v < 0 {
		return -roundHalfAwayFromZero(-v)
	}
	return float64(int64(v + 0.5))
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
