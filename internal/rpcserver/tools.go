package rpcserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aptgraph/aptgraph/internal/pipeline"
	"github.com/aptgraph/aptgraph/internal/rank"
	"github.com/aptgraph/aptgraph/internal/roc"
	"github.com/aptgraph/aptgraph/internal/session"
	"github.com/aptgraph/aptgraph/internal/stats"
)

// handlers adapts Server's controller and session store to the
// typed request/response shapes mcp.AddTool expects.
type handlers struct {
	server *Server
}

// textResult wraps a short human-readable summary for transports that
// render CallToolResult.Content directly; the typed Out value returned
// alongside it is what API clients actually consume.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// analyzeInput mirrors pipeline.Parameters plus the session it runs
// against. SessionID is required: the incremental stage cache and the
// last ranking produced are both addressed by it.
type analyzeInput struct {
	SessionID             string     `json:"session_id"`
	User                  string     `json:"user"`
	FeatureWeights        []float64  `json:"feature_weights"`
	FeatureOrderedWeights []float64  `json:"feature_ordered_weights"`
	PruneThresholdTemp    float64    `json:"prune_threshold_temp"`
	MaxClusterSizeTemp    float64    `json:"max_cluster_size_temp"`
	PruneZBool            bool       `json:"prune_z_bool"`
	ClusterZBool          bool       `json:"cluster_z_bool"`
	WhitelistBool         bool       `json:"whitelist_bool"`
	WhiteOngo             string     `json:"white_ongo"`
	NumberRequests        float64    `json:"number_requests"`
	RankingWeights        [3]float64 `json:"ranking_weights"`
	AptSearch             bool       `json:"apt_search"`
	StudyMode             bool       `json:"study_mode"`
}

// analyzeOutput mirrors the JSON-safe part of pipeline.Output: the
// FilteredClusters graphs never leave the process, since graph.Graph
// has no exported fields for encoding/json to walk.
type analyzeOutput struct {
	Stdout           string             `json:"stdout"`
	StudyMode        bool               `json:"study_mode"`
	HistSimilarities []stats.Bin        `json:"hist_similarities,omitempty"`
	HistClusters     []stats.Bin        `json:"hist_clusters,omitempty"`
	Ranking          []rank.IndexBucket `json:"ranking,omitempty"`
	Apt              *rank.AptReport    `json:"apt,omitempty"`
}

func (p analyzeInput) toParameters() pipeline.Parameters {
	return pipeline.Parameters{
		User:                  p.User,
		FeatureWeights:        p.FeatureWeights,
		FeatureOrderedWeights: p.FeatureOrderedWeights,
		PruneThresholdTemp:    p.PruneThresholdTemp,
		MaxClusterSizeTemp:    p.MaxClusterSizeTemp,
		PruneZBool:            p.PruneZBool,
		ClusterZBool:          p.ClusterZBool,
		WhitelistBool:         p.WhitelistBool,
		WhiteOngo:             p.WhiteOngo,
		NumberRequests:        p.NumberRequests,
		RankingWeights:        p.RankingWeights,
		AptSearch:             p.AptSearch,
	}
}

const sessionTTL = 30 * time.Minute

func (h *handlers) analyze(ctx context.Context, req *mcp.CallToolRequest, in analyzeInput) (*mcp.CallToolResult, analyzeOutput, error) {
	if in.SessionID == "" {
		return nil, analyzeOutput{}, fmt.Errorf("session_id is required")
	}

	sess, err := h.server.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, analyzeOutput{}, fmt.Errorf("loading session: %w", err)
	}

	params := in.toParameters()
	out, err := h.server.controller.Analyze(ctx, sess.Cache, params, in.StudyMode, nil)
	if err != nil {
		return nil, analyzeOutput{}, err
	}

	sess.Last = &session.Record{Params: params, Output: out}
	if err := h.server.sessions.Save(ctx, in.SessionID, sess, sessionTTL); err != nil {
		return nil, analyzeOutput{}, fmt.Errorf("saving session: %w", err)
	}

	result := analyzeOutput{
		Stdout:           out.Stdout,
		StudyMode:        out.StudyMode,
		HistSimilarities: out.HistSimilarities,
		HistClusters:     out.HistClusters,
		Ranking:          out.Ranking,
		Apt:              out.Apt,
	}
	return textResult(result.Stdout), result, nil
}

// getUsersInput takes nothing but carries a session ID so later tool
// additions (e.g. per-session filtering) don't need a breaking change.
type getUsersInput struct {
	SessionID string `json:"session_id,omitempty"`
}

type getUsersOutput struct {
	Users   []string `json:"users"`
	Subnets []string `json:"subnets"`
}

func (h *handlers) getUsers(ctx context.Context, req *mcp.CallToolRequest, in getUsersInput) (*mcp.CallToolResult, getUsersOutput, error) {
	users, err := h.server.controller.Store.GetAllUsers(ctx)
	if err != nil {
		return nil, getUsersOutput{}, err
	}
	subnets, err := h.server.controller.Store.GetAllSubnets(ctx)
	if err != nil {
		return nil, getUsersOutput{}, err
	}
	out := getUsersOutput{Users: users, Subnets: subnets}
	return textResult(fmt.Sprintf("%d users, %d subnets", len(users), len(subnets))), out, nil
}

// getRequestsInput addresses one aggregated domain as last seen by a
// prior analyze call in the same session.
type getRequestsInput struct {
	SessionID string `json:"session_id"`
	Domain    string `json:"domain"`
}

type requestView struct {
	Timestamp int64  `json:"timestamp"`
	Method    string `json:"method"`
	Target    string `json:"target"`
	Status    int    `json:"status"`
	BytesIn   int64  `json:"bytes_in"`
	BytesOut  int64  `json:"bytes_out"`
	Client    string `json:"client"`
}

type getRequestsOutput struct {
	Domain   string        `json:"domain"`
	Requests []requestView `json:"requests"`
}

func (h *handlers) getRequests(ctx context.Context, req *mcp.CallToolRequest, in getRequestsInput) (*mcp.CallToolResult, getRequestsOutput, error) {
	if in.SessionID == "" {
		return nil, getRequestsOutput{}, fmt.Errorf("session_id is required")
	}
	sess, err := h.server.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, getRequestsOutput{}, fmt.Errorf("loading session: %w", err)
	}
	if sess.Last == nil {
		return nil, getRequestsOutput{}, fmt.Errorf("no analysis has run yet for this session")
	}

	var found []requestView
	for _, cluster := range sess.Last.Output.FilteredClusters {
		for _, node := range cluster.Nodes() {
			if node.Name != in.Domain {
				continue
			}
			for _, r := range node.Requests() {
				found = append(found, requestView{
					Timestamp: r.Timestamp,
					Method:    r.Method,
					Target:    r.Target,
					Status:    r.Status,
					BytesIn:   r.BytesIn,
					BytesOut:  r.BytesOut,
					Client:    r.Client,
				})
			}
		}
	}
	if found == nil {
		return nil, getRequestsOutput{}, fmt.Errorf("domain %q not found in the last analysis result", in.Domain)
	}

	out := getRequestsOutput{Domain: in.Domain, Requests: found}
	return textResult(fmt.Sprintf("%d requests for %s", len(found), in.Domain)), out, nil
}

// exportROCInput computes ROC points for the last ranking a session
// produced with apt_search enabled, and writes them as CSV to Path.
type exportROCInput struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

type exportROCOutput struct {
	Path   string      `json:"path"`
	Points []roc.Point `json:"points"`
}

func (h *handlers) exportROC(ctx context.Context, req *mcp.CallToolRequest, in exportROCInput) (*mcp.CallToolResult, exportROCOutput, error) {
	if in.SessionID == "" {
		return nil, exportROCOutput{}, fmt.Errorf("session_id is required")
	}
	if in.Path == "" {
		return nil, exportROCOutput{}, fmt.Errorf("path is required")
	}
	sess, err := h.server.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, exportROCOutput{}, fmt.Errorf("loading session: %w", err)
	}
	if sess.Last == nil || sess.Last.Output.Apt == nil {
		return nil, exportROCOutput{}, fmt.Errorf("no apt-search ranking available for this session")
	}

	ranking := sess.Last.Output.Ranking
	nTotal := 0
	for _, bucket := range ranking {
		nTotal += len(bucket.Names)
	}
	nApt := len(sess.Last.Output.Apt.AptDomains)

	points, err := roc.Points(ranking, nTotal, nApt)
	if err != nil {
		return nil, exportROCOutput{}, err
	}
	if err := roc.WriteCSV(ctx, in.Path, points); err != nil {
		return nil, exportROCOutput{}, err
	}

	out := exportROCOutput{Path: in.Path, Points: points}
	return textResult(fmt.Sprintf("wrote %d ROC points to %s", len(points), in.Path)), out, nil
}
