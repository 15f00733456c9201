package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/search"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "the+beatles", want: "the+beatles"},
		{raw: "  A ", want: "A"},
		{raw: "The Beatles", want: "The Beatles"},
		{raw: "ac/dc", want: "ac/dc"},
		{raw: "", wantErr: true},
		{raw: " \t ", wantErr: true},
		{raw: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeID(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidNodeID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTolerance(t *testing.T) {
	assert.NoError(t, ValidateTolerance(0))
	assert.NoError(t, ValidateTolerance(MaxTolerance))

	for _, tol := range []int{-1, MaxTolerance + 1} {
		err := ValidateTolerance(tol)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidTolerance), "tolerance %d", tol)
	}
}

func TestLoadQueries(t *testing.T) {
	dir := t.TempDir()

	t.Run("trims entries", func(t *testing.T) {
		path := filepath.Join(dir, "queries.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`queries:
  - start: " The Beatles "
    goal: Miles Davis
  - start: mozart
    goal: jacob+collier
    tolerance: 1
`), 0o644))

		got, err := LoadQueries(path)

		require.NoError(t, err)
		assert.Equal(t, []Query{
			{Start: "The Beatles", Goal: "Miles Davis"},
			{Start: "mozart", Goal: "jacob+collier", Tolerance: 1},
		}, got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadQueries(filepath.Join(dir, "nope.yaml"))
		assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
	})

	t.Run("invalid entry", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("queries:\n  - start: a\n    goal: ''\n"), 0o644))

		_, err := LoadQueries(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query 1")
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidNodeID))
	})
}

type stubSolver map[string]*search.Result

func (s stubSolver) Solve(_ context.Context, start, goal string, _ int) (*search.Result, error) {
	res, ok := s[start+">"+goal]
	if !ok {
		return nil, errors.New(errors.ErrCodeSearchFailed, "no stub", nil)
	}
	return res, nil
}

func TestCheckAll(t *testing.T) {
	// Given: a solver with one reachable and one unreachable pair
	solver := stubSolver{
		"a>d": {Status: search.StateDone, Distance: 2, Buckets: search.Buckets{
			3: {{"a", "b", "d"}, {"a", "c", "d"}},
		}},
		"a>z": {Status: search.StateNotReachable, Distance: -1},
	}
	exps := []Expectation{
		{ID: "diamond", Query: Query{Start: "a", Goal: "d"}, Length: 3, MinPaths: 2},
		{ID: "wrong-length", Query: Query{Start: "a", Goal: "d"}, Length: 4},
		{ID: "unreachable", Query: Query{Start: "a", Goal: "z"}},
		{ID: "error", Query: Query{Start: "x", Goal: "y"}, Length: 2},
	}

	// When
	report := CheckAll(context.Background(), solver, exps)

	// Then
	require.Len(t, report.Results, 4)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Passed)

	assert.True(t, report.Results[0].Passed)
	assert.Equal(t, 3, report.Results[0].Length)
	assert.Equal(t, 2, report.Results[0].Paths)
	assert.False(t, report.Results[1].Passed)
	assert.True(t, report.Results[2].Passed)
	assert.Equal(t, "not_reachable", report.Results[2].Status)
	assert.False(t, report.Results[3].Passed)
	assert.NotEmpty(t, report.Results[3].Error)
}

func TestLoadExpectations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`expectations:
  - id: diamond
    start: A
    goal: D
    length: 3
    min_paths: 2
    notes: two routes
`), 0o644))

	got, err := LoadExpectations(path)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "diamond", got[0].ID)
	assert.Equal(t, Query{Start: "A", Goal: "D"}, got[0].Query)
	assert.Equal(t, 3, got[0].Length)
	assert.Equal(t, 2, got[0].MinPaths)
}
