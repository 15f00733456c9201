package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	GraphStatsURI   = "pathmap://graph_stats"
	SolveMetricsURI = "pathmap://solve_metrics"
)

// registerGraphResource registers the graph_stats resource.
func (s *Server) registerGraphResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "graph_stats",
			URI:         GraphStatsURI,
			Description: "Size of the cached artist graph and server settings",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource(GraphStatsURI, s.graphStats())
		},
	)
}

// registerSolveMetricsResource registers the solve_metrics resource.
func (s *Server) registerSolveMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "solve_metrics",
			URI:         SolveMetricsURI,
			Description: "Solve history: outcomes, popular artists and unreachable pairs",
			MIMEType:    "application/json",
		},
		s.makeSolveMetricsHandler(),
	)
}

// makeSolveMetricsHandler creates a handler for the solve_metrics resource.
func (s *Server) makeSolveMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		s.mu.RLock()
		metrics := s.metrics
		s.mu.RUnlock()

		if metrics == nil {
			return nil, NewInvalidParamsError("solve metrics not available")
		}
		return jsonResource(SolveMetricsURI, ToTelemetryInfo(metrics.Snapshot(), 100))
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
