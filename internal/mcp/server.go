package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/pathmap/internal/async"
	"github.com/Aman-CERP/pathmap/internal/config"
	"github.com/Aman-CERP/pathmap/internal/logging"
	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/solver"
	"github.com/Aman-CERP/pathmap/internal/store"
	"github.com/Aman-CERP/pathmap/internal/telemetry"
	"github.com/Aman-CERP/pathmap/pkg/version"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "pathmap"

// DefaultMaxPaths is how many paths per length find_paths lists by default.
const DefaultMaxPaths = 20

// Server is the MCP server for pathmap.
// It lets AI clients query artist paths against the persistent graph.
type Server struct {
	mcp    *mcp.Server
	solver *solver.Solver
	config *config.Config
	logger *slog.Logger

	// Optional, set after construction
	autosaver *async.Autosaver
	metrics   *telemetry.SolveMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "find_paths",
		Description: "Find every path between two artists on the music similarity graph, grouped by length. The shortest paths come first, followed by paths up to 'tolerance' hops longer.",
	},
	{
		Name:        "neighbors",
		Description: "List the artists directly similar to one artist. Fetches and caches them in the graph if they are not known yet.",
	},
	{
		Name:        "graph_stats",
		Description: "Report the size of the cached graph, the engine and provider settings, and solve history.",
	},
}

// NewServer creates a new MCP server over s.
func NewServer(s *solver.Solver, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if s == nil {
		return nil, errors.New("solver is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = logging.Discard()
	}

	srv := &Server{
		solver: s,
		config: cfg,
		logger: logger,
	}

	srv.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	srv.registerTools()
	srv.registerGraphResource()

	return srv, nil
}

// SetAutosaver enables background saves of the graph after tool calls that
// grow it.
func (s *Server) SetAutosaver(a *async.Autosaver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autosaver = a
}

// SetMetrics sets the solve metrics collector.
// When set, a solve_metrics resource is registered.
func (s *Server) SetMetrics(m *telemetry.SolveMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m

	if m != nil {
		s.registerSolveMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-style arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "find_paths":
		var in FindPathsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.findPaths(ctx, in)
	case "neighbors":
		var in NeighborsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.neighbors(ctx, in)
	case "graph_stats":
		return s.graphStats(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// decodeArgs converts loosely typed arguments into a tool input.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// findPaths runs one search.
func (s *Server) findPaths(ctx context.Context, in FindPathsInput) (*FindPathsOutput, error) {
	if strings.TrimSpace(in.Start) == "" || strings.TrimSpace(in.Goal) == "" {
		return nil, NewInvalidParamsError("start and goal are required")
	}

	tolerance := s.config.Search.Tolerance
	if in.Tolerance != nil {
		tolerance = *in.Tolerance
	}
	maxPaths := clampLimit(in.MaxPaths, DefaultMaxPaths, 1, 1000)

	began := time.Now()
	requestID := generateRequestID()
	s.logger.Info("find_paths started",
		slog.String("request_id", requestID),
		slog.String("start", in.Start),
		slog.String("goal", in.Goal),
		slog.Int("tolerance", tolerance))

	res, err := s.solver.Solve(ctx, in.Start, in.Goal, tolerance)
	if res != nil && res.Stats.Expanded > 0 {
		s.markDirty()
	}
	if err != nil {
		s.logger.Error("find_paths failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(began)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	s.logger.Info("find_paths completed",
		slog.String("request_id", requestID),
		slog.String("run_id", res.RunID),
		slog.String("status", res.Status.String()),
		slog.Int("paths", res.Buckets.Count()),
		slog.Duration("duration", time.Since(began)))

	out := ToFindPathsOutput(res, maxPaths)
	return &out, nil
}

// neighbors lists the children of one node.
func (s *Server) neighbors(ctx context.Context, in NeighborsInput) (*NeighborsOutput, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, NewInvalidParamsError("id is required")
	}

	before := s.solver.Stats().Expanded
	ids, err := s.solver.Neighbors(ctx, in.ID)
	if err != nil {
		return nil, MapError(err)
	}
	if s.solver.Stats().Expanded != before {
		s.markDirty()
	}

	if ids == nil {
		ids = []string{}
	}
	id, _ := s.solver.NormalizeID(in.ID)
	return &NeighborsOutput{
		ID:        id,
		Neighbors: ids,
		Count:     len(ids),
	}, nil
}

// graphStats describes the graph and server settings.
func (s *Server) graphStats() *GraphStatsOutput {
	s.mu.RLock()
	autosaver := s.autosaver
	metrics := s.metrics
	s.mu.RUnlock()

	eng := s.solver.Engine().Config()
	storePath := s.config.Store.Path
	if storePath == "" {
		storePath = store.DefaultPath(store.Backend(s.config.Store.Backend))
	}

	out := &GraphStatsOutput{
		Graph: s.solver.Stats(),
		Engine: EngineInfo{
			Workers:          eng.Workers,
			FrontierCapacity: eng.FrontierCapacity,
			CapacityPolicy:   string(eng.Policy),
		},
		Provider: ProviderInfo{Kind: s.config.Provider.Kind},
		Store: StoreInfo{
			Backend: s.config.Store.Backend,
			Path:    storePath,
		},
	}
	if s.config.Provider.Kind == string(provider.KindMusicMap) {
		out.Provider.BaseURL = s.config.Provider.BaseURL
	}
	if autosaver != nil {
		out.Autosave = ToAutosaveInfo(autosaver.Status().Snapshot())
	}
	if metrics != nil {
		out.Telemetry = ToTelemetryInfo(metrics.Snapshot(), 10)
	}
	return out
}

func (s *Server) markDirty() {
	s.mu.RLock()
	a := s.autosaver
	s.mu.RUnlock()
	if a != nil {
		a.MarkDirty()
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[0].Name,
		Description: tools[0].Description,
	}, s.mcpFindPathsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[1].Name,
		Description: tools[1].Description,
	}, s.mcpNeighborsHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        tools[2].Name,
		Description: tools[2].Description,
	}, s.mcpGraphStatsHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", len(tools)))
}

// mcpFindPathsHandler is the MCP SDK handler for the find_paths tool.
func (s *Server) mcpFindPathsHandler(ctx context.Context, _ *mcp.CallToolRequest, input FindPathsInput) (
	*mcp.CallToolResult,
	FindPathsOutput,
	error,
) {
	out, err := s.findPaths(ctx, input)
	if err != nil {
		return nil, FindPathsOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatFindPaths(out)}},
	}, *out, nil
}

// mcpNeighborsHandler is the MCP SDK handler for the neighbors tool.
func (s *Server) mcpNeighborsHandler(ctx context.Context, _ *mcp.CallToolRequest, input NeighborsInput) (
	*mcp.CallToolResult,
	NeighborsOutput,
	error,
) {
	out, err := s.neighbors(ctx, input)
	if err != nil {
		return nil, NeighborsOutput{}, err
	}
	return nil, *out, nil
}

// mcpGraphStatsHandler is the MCP SDK handler for the graph_stats tool.
func (s *Server) mcpGraphStatsHandler(_ context.Context, _ *mcp.CallToolRequest, _ GraphStatsInput) (
	*mcp.CallToolResult,
	GraphStatsOutput,
	error,
) {
	return nil, *s.graphStats(), nil
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error",
			slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

// Close flushes pending graph changes.
func (s *Server) Close(ctx context.Context) error {
	s.mu.RLock()
	a := s.autosaver
	s.mu.RUnlock()
	if a == nil {
		return nil
	}
	return a.Stop(ctx)
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
