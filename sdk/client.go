// Package sdk provides a Go client for an aptgraph analysis server.
//
// Basic usage:
//
//	c, err := sdk.Dial(ctx, "stdio", "aptgraph-server", []string{"serve"})
//	out, err := c.Analyze(ctx, sdk.AnalyzeRequest{SessionID: "s1", User: "10.0.0.5", ...})
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPSession is the subset of mcp.ClientSession used by Client.
// Extracted as an interface for testing.
type MCPSession interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
	Close() error
}

// Client calls the analyze/get_users/get_requests/export_roc tools of
// an aptgraph MCP server over a single connected session.
type Client struct {
	session MCPSession
}

// NewClient wraps an already-connected MCP session.
func NewClient(session MCPSession) *Client {
	return &Client{session: session}
}

// Dial connects to an aptgraph server and returns a ready Client.
// transport is "stdio" (spawn command with args) or "http" (args[0]
// is the Streamable HTTP endpoint URL).
func Dial(ctx context.Context, transport, command string, args []string) (*Client, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "aptgraph-client", Version: "0.1.0"}, nil)

	var t mcp.Transport
	switch transport {
	case "stdio":
		cmd := exec.CommandContext(ctx, command, args...)
		t = &mcp.CommandTransport{Command: cmd}
	case "http":
		if len(args) == 0 {
			return nil, fmt.Errorf("sdk: http transport needs an endpoint URL")
		}
		t = &mcp.StreamableClientTransport{Endpoint: args[0]}
	default:
		return nil, fmt.Errorf("sdk: unsupported transport %q", transport)
	}

	session, err := client.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("sdk: connecting: %w", err)
	}
	return &Client{session: session}, nil
}

// Close releases the underlying session.
func (c *Client) Close() error {
	return c.session.Close()
}

// AnalyzeRequest is the wire shape of the analyze tool's arguments.
type AnalyzeRequest struct {
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

// Bin is one histogram bucket as the server encodes it: its lower
// bound, its count, and whether it is the final overflow bucket.
type Bin struct {
	Min      float64 `json:"Min"`
	Count    int     `json:"Count"`
	Overflow bool    `json:"Overflow"`
}

// IndexBucket is one ranking value and the domain names sharing it.
type IndexBucket struct {
	Index float64  `json:"index"`
	Names []string `json:"names"`
}

// AptReport summarizes where ground-truth ".apt" domains land in a ranking.
type AptReport struct {
	Found            bool      `json:"found"`
	TopPercent       float64   `json:"top_percent"`
	AptDomains       []string  `json:"apt_domains"`
	AptDomainIndices []float64 `json:"apt_domain_indices"`
}

// AnalyzeResult is the wire shape of the analyze tool's output.
type AnalyzeResult struct {
	Stdout           string        `json:"stdout"`
	StudyMode        bool          `json:"study_mode"`
	HistSimilarities []Bin         `json:"hist_similarities,omitempty"`
	HistClusters     []Bin         `json:"hist_clusters,omitempty"`
	Ranking          []IndexBucket `json:"ranking,omitempty"`
	Apt              *AptReport    `json:"apt,omitempty"`
}

// Analyze runs one query and returns its result.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	var out AnalyzeResult
	if err := c.call(ctx, "analyze", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UsersResult is the wire shape of the get_users tool's output.
type UsersResult struct {
	Users   []string `json:"users"`
	Subnets []string `json:"subnets"`
}

// GetUsers lists every known user and subnet identifier.
func (c *Client) GetUsers(ctx context.Context) (*UsersResult, error) {
	var out UsersResult
	if err := c.call(ctx, "get_users", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Request mirrors one recorded HTTP transaction for a domain.
type Request struct {
	Timestamp int64  `json:"timestamp"`
	Method    string `json:"method"`
	Target    string `json:"target"`
	Status    int    `json:"status"`
	BytesIn   int64  `json:"bytes_in"`
	BytesOut  int64  `json:"bytes_out"`
	Client    string `json:"client"`
}

// RequestsResult is the wire shape of the get_requests tool's output.
type RequestsResult struct {
	Domain   string    `json:"domain"`
	Requests []Request `json:"requests"`
}

// GetRequests returns every request recorded for domain in session's
// last analyze result.
func (c *Client) GetRequests(ctx context.Context, sessionID, domain string) (*RequestsResult, error) {
	var out RequestsResult
	in := struct {
		SessionID string `json:"session_id"`
		Domain    string `json:"domain"`
	}{sessionID, domain}
	if err := c.call(ctx, "get_requests", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Point is one (x, y) coordinate of an ROC curve.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ROCResult is the wire shape of the export_roc tool's output.
type ROCResult struct {
	Path   string  `json:"path"`
	Points []Point `json:"points"`
}

// ExportROC computes ROC points for session's last apt-search ranking
// and has the server write them as CSV to path.
func (c *Client) ExportROC(ctx context.Context, sessionID, path string) (*ROCResult, error) {
	var out ROCResult
	in := struct {
		SessionID string `json:"session_id"`
		Path      string `json:"path"`
	}{sessionID, path}
	if err := c.call(ctx, "export_roc", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call invokes a named tool with in as its arguments and decodes the
// structured result into out.
func (c *Client) call(ctx context.Context, name string, in, out any) error {
	args, err := structToMap(in)
	if err != nil {
		return fmt.Errorf("sdk: encoding %s arguments: %w", name, err)
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return fmt.Errorf("sdk: calling %s: %w", name, err)
	}
	if result.IsError {
		return fmt.Errorf("sdk: %s reported an error: %v", name, textOf(result))
	}

	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		return fmt.Errorf("sdk: re-encoding %s result: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("sdk: decoding %s result: %w", name, err)
	}
	return nil
}

func structToMap(in any) (map[string]any, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func textOf(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if t, ok := c.(*mcp.TextContent); ok {
			return t.Text
		}
	}
	return "unknown error"
}
