package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/async"
	"github.com/Aman-CERP/pathmap/internal/config"
	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/solver"
	"github.com/Aman-CERP/pathmap/internal/telemetry"
)

func diamondEdges() map[string][]string {
	return map[string][]string{
		"a": {"b", "c", "e"},
		"b": {"d"},
		"c": {"d"},
		"e": {"f"},
		"f": {"d"},
		"d": {},
	}
}

func newTestServer(t *testing.T) (*Server, *provider.StaticProvider) {
	t.Helper()
	p := provider.NewStaticProvider(diamondEdges())
	s, err := solver.New(p)
	require.NoError(t, err)

	srv, err := NewServer(s, config.NewConfig(), nil)
	require.NoError(t, err)
	return srv, p
}

func TestNewServer_RequiresSolver(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestServer_Info(t *testing.T) {
	srv, _ := newTestServer(t)

	name, ver := srv.Info()

	assert.Equal(t, "pathmap", name)
	assert.NotEmpty(t, ver)
	assert.NotNil(t, srv.MCPServer())
}

func TestServer_ListTools(t *testing.T) {
	srv, _ := newTestServer(t)

	list := srv.ListTools()

	names := make([]string, 0, len(list))
	for _, ti := range list {
		names = append(names, ti.Name)
		assert.NotEmpty(t, ti.Description)
	}
	assert.Equal(t, []string{"find_paths", "neighbors", "graph_stats"}, names)
}

func TestServer_CallTool_FindPaths(t *testing.T) {
	// Given
	srv, _ := newTestServer(t)

	// When: arguments arrive as decoded JSON
	got, err := srv.CallTool(context.Background(), "find_paths", map[string]any{
		"start":     " a ",
		"goal":      "d",
		"tolerance": float64(1),
	})

	// Then
	require.NoError(t, err)
	out, ok := got.(*FindPathsOutput)
	require.True(t, ok)
	assert.Equal(t, "a", out.Start)
	assert.Equal(t, "done", out.Status)
	assert.Equal(t, 2, out.Distance)
	assert.Equal(t, 1, out.Tolerance)
	require.Len(t, out.Groups, 2)
	assert.Equal(t, 2, out.Groups[0].Count)
	assert.Equal(t, [][]string{{"a", "e", "f", "d"}}, out.Groups[1].Paths)
	assert.NotEmpty(t, out.RunID)
}

func TestServer_CallTool_FindPathsUsesConfigTolerance(t *testing.T) {
	// Given: a config tolerance of 1 and no tolerance argument
	p := provider.NewStaticProvider(diamondEdges())
	s, err := solver.New(p)
	require.NoError(t, err)
	cfg := config.NewConfig()
	cfg.Search.Tolerance = 1
	srv, err := NewServer(s, cfg, nil)
	require.NoError(t, err)

	// When
	got, err := srv.CallTool(context.Background(), "find_paths", map[string]any{"start": "a", "goal": "d"})

	// Then
	require.NoError(t, err)
	assert.Equal(t, 1, got.(*FindPathsOutput).Tolerance)
	assert.Len(t, got.(*FindPathsOutput).Groups, 2)
}

func TestServer_CallTool_FindPathsNotReachable(t *testing.T) {
	srv, _ := newTestServer(t)

	got, err := srv.CallTool(context.Background(), "find_paths", map[string]any{"start": "b", "goal": "a"})

	require.NoError(t, err)
	out := got.(*FindPathsOutput)
	assert.Equal(t, "not_reachable", out.Status)
	assert.Equal(t, -1, out.Distance)
	assert.Empty(t, out.Groups)
}

func TestServer_CallTool_FindPathsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing start", map[string]any{"goal": "d"}},
		{"blank goal", map[string]any{"start": "a", "goal": "  "}},
		{"negative tolerance", map[string]any{"start": "a", "goal": "d", "tolerance": -1}},
		{"tolerance too large", map[string]any{"start": "a", "goal": "d", "tolerance": 99}},
		{"wrong type", map[string]any{"start": 42, "goal": "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CallTool(context.Background(), "find_paths", tt.args)

			var me *MCPError
			require.True(t, errors.As(err, &me))
			assert.Equal(t, ErrCodeInvalidParams, me.Code)
		})
	}
}

func TestServer_CallTool_Neighbors(t *testing.T) {
	// Given
	srv, p := newTestServer(t)
	saver := async.NewAutosaver(async.AutosaverConfig{}, func(context.Context) error { return nil })
	srv.SetAutosaver(saver)

	// When
	got, err := srv.CallTool(context.Background(), "neighbors", map[string]any{"id": " A "})

	// Then
	require.NoError(t, err)
	out := got.(*NeighborsOutput)
	assert.Equal(t, "a", out.ID)
	assert.ElementsMatch(t, []string{"b", "c", "e"}, out.Neighbors)
	assert.Equal(t, 3, out.Count)
	assert.True(t, saver.Status().Snapshot().Pending, "a new expansion needs saving")

	// When: asked again the graph answers without fetching
	_, err = srv.CallTool(context.Background(), "neighbors", map[string]any{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls("a"))
}

func TestServer_CallTool_NeighborsLeaf(t *testing.T) {
	srv, _ := newTestServer(t)

	got, err := srv.CallTool(context.Background(), "neighbors", map[string]any{"id": "d"})

	require.NoError(t, err)
	out := got.(*NeighborsOutput)
	assert.NotNil(t, out.Neighbors)
	assert.Equal(t, 0, out.Count)
}

func TestServer_CallTool_NeighborsUpstreamFailure(t *testing.T) {
	srv, p := newTestServer(t)
	p.Fail("a", errors.New("503 service unavailable"))

	_, err := srv.CallTool(context.Background(), "neighbors", map[string]any{"id": "a"})

	var me *MCPError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, ErrCodeUpstreamFailed, me.Code)
}

func TestServer_CallTool_GraphStats(t *testing.T) {
	// Given: a solved query and telemetry
	srv, _ := newTestServer(t)
	metrics := telemetry.NewSolveMetrics(nil)
	defer func() { _ = metrics.Close() }()
	srv.SetMetrics(metrics)
	metrics.Record(telemetry.SolveEvent{Start: "b", Goal: "a", Status: "not_reachable"})
	_, err := srv.CallTool(context.Background(), "find_paths", map[string]any{"start": "a", "goal": "d"})
	require.NoError(t, err)

	// When
	got, err := srv.CallTool(context.Background(), "graph_stats", nil)

	// Then
	require.NoError(t, err)
	out := got.(*GraphStatsOutput)
	assert.Greater(t, out.Graph.Nodes, 0)
	assert.Greater(t, out.Graph.Expanded, 0)
	assert.Equal(t, 20, out.Engine.Workers)
	assert.Equal(t, 4096, out.Engine.FrontierCapacity)
	assert.Equal(t, "requeue", out.Engine.CapacityPolicy)
	assert.Equal(t, "musicmap", out.Provider.Kind)
	assert.Equal(t, provider.DefaultBaseURL, out.Provider.BaseURL)
	assert.Equal(t, "sqlite", out.Store.Backend)
	assert.NotEmpty(t, out.Store.Path)
	assert.Nil(t, out.Autosave)
	require.NotNil(t, out.Telemetry)
	assert.Equal(t, int64(1), out.Telemetry.TotalSolves)
	require.Len(t, out.Telemetry.Unreachable, 1)
	assert.Equal(t, "b", out.Telemetry.Unreachable[0].Start)
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	srv, _ := newTestServer(t)

	_, err := srv.CallTool(context.Background(), "shortest_path", nil)

	var me *MCPError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, ErrCodeMethodNotFound, me.Code)
}

func TestServer_FindPathsHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	res, out, err := srv.mcpFindPathsHandler(context.Background(), nil, FindPathsInput{Start: "a", Goal: "d"})

	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "done", out.Status)
}

func TestServer_SolveMetricsResource(t *testing.T) {
	// Given
	srv, _ := newTestServer(t)
	metrics := telemetry.NewSolveMetrics(nil)
	defer func() { _ = metrics.Close() }()
	metrics.Record(telemetry.SolveEvent{Start: "a", Goal: "d", Status: "done", Paths: 2})

	// When: metrics are not set
	_, err := srv.makeSolveMetricsHandler()(context.Background(), nil)

	// Then
	require.Error(t, err)

	// When
	srv.SetMetrics(metrics)
	res, err := srv.makeSolveMetricsHandler()(context.Background(), nil)

	// Then
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, SolveMetricsURI, res.Contents[0].URI)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var info TelemetryInfo
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &info))
	assert.Equal(t, int64(1), info.TotalSolves)
	assert.Equal(t, int64(1), info.StatusCounts["done"])
}

func TestServer_CloseFlushesAutosaver(t *testing.T) {
	// Given: an autosaver with pending changes
	srv, _ := newTestServer(t)
	saves := 0
	saver := async.NewAutosaver(async.AutosaverConfig{}, func(context.Context) error {
		saves++
		return nil
	})
	srv.SetAutosaver(saver)
	_, err := srv.CallTool(context.Background(), "find_paths", map[string]any{"start": "a", "goal": "d"})
	require.NoError(t, err)

	// When
	require.NoError(t, srv.Close(context.Background()))

	// Then
	assert.Equal(t, 1, saves)
}

func TestServer_CloseWithoutAutosaver(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NoError(t, srv.Close(context.Background()))
}
