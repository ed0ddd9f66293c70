// Package rpcserver exposes the analysis controller over MCP
// (Model Context Protocol): a concrete, typed, JSON-RPC 2.0-based
// transport for the query interface.
package rpcserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aptgraph/aptgraph/internal/pipeline"
	"github.com/aptgraph/aptgraph/internal/session"
)

// Server wires the pipeline controller and session store to an MCP
// server exposing four tools: analyze, get_users, get_requests, and
// export_roc.
type Server struct {
	mcp        *mcp.Server
	controller *pipeline.Controller
	sessions   session.Store
	logger     *slog.Logger
}

// New builds a Server. Name and version identify this server to MCP
// clients during initialization.
func New(name, version string, controller *pipeline.Controller, sessions session.Store, logger *slog.Logger) *Server {
	s := &Server{
		controller: controller,
		sessions:   sessions,
		logger:     logger,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	h := &handlers{server: s}
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze",
		Description: "Run the APT-candidate analysis pipeline for a user or subnet with the given query parameters.",
	}, h.analyze)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_users",
		Description: "List every known user and subnet identifier, subnets first.",
	}, h.getUsers)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_requests",
		Description: "Return the recorded requests for a single aggregated domain.",
	}, h.getRequests)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export_roc",
		Description: "Compute ROC curve points for the last ranking produced in a session and write them as CSV.",
	}, h.exportROC)

	return s
}

// Serve runs the MCP server over transport until ctx is canceled or
// the transport closes.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

// Connect accepts a single transport connection without blocking for
// the session's lifetime, for callers (tests, in-process gateways)
// that want the resulting session handle.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}
