// Package validation checks user-supplied node ids and query settings,
// and runs data-driven expectation checks against a solver.
//
// Expectations are loaded from YAML so that known-good pairs can be added
// without rebuilding.
package validation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/search"
)

// MaxTolerance bounds the extra-hop budget.
const MaxTolerance = 8

// NormalizeID checks a node id and trims surrounding whitespace. Ids are
// otherwise opaque; a provider may map them further (see provider.NormalizeID).
func NormalizeID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", errors.New(errors.ErrCodeInvalidNodeID, "node id is empty", nil)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return "", errors.New(errors.ErrCodeInvalidNodeID,
				fmt.Sprintf("node id %q contains a control character", raw), nil).
				WithDetail("id", raw)
		}
	}
	return id, nil
}

// ValidateTolerance checks an extra-hop budget.
func ValidateTolerance(tolerance int) error {
	if tolerance < 0 {
		return errors.New(errors.ErrCodeInvalidTolerance,
			fmt.Sprintf("tolerance must be non-negative, got %d", tolerance), nil)
	}
	if tolerance > MaxTolerance {
		return errors.New(errors.ErrCodeInvalidTolerance,
			fmt.Sprintf("tolerance %d exceeds the maximum of %d", tolerance, MaxTolerance), nil).
			WithSuggestion("Use a smaller tolerance; path counts grow quickly with each extra hop")
	}
	return nil
}

// Query is a start/goal pair with its tolerance.
type Query struct {
	Start     string `yaml:"start" json:"start"`
	Goal      string `yaml:"goal" json:"goal"`
	Tolerance int    `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}

// NormalizeQuery checks both ids and the tolerance.
func NormalizeQuery(q Query) (Query, error) {
	start, err := NormalizeID(q.Start)
	if err != nil {
		return Query{}, err
	}
	goal, err := NormalizeID(q.Goal)
	if err != nil {
		return Query{}, err
	}
	if err := ValidateTolerance(q.Tolerance); err != nil {
		return Query{}, err
	}
	return Query{Start: start, Goal: goal, Tolerance: q.Tolerance}, nil
}

// LoadQueries reads a YAML list of queries, checking each.
func LoadQueries(path string) ([]Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "queries file not found: "+path, err)
		}
		return nil, errors.IOError("failed to read queries file", err)
	}

	var doc struct {
		Queries []Query `yaml:"queries"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(errors.ErrCodeFileCorrupt,
			fmt.Sprintf("failed to parse queries file %s", path), err)
	}

	out := make([]Query, 0, len(doc.Queries))
	for i, q := range doc.Queries {
		nq, err := NormalizeQuery(q)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i+1, err)
		}
		out = append(out, nq)
	}
	return out, nil
}

// =============================================================================
// Expectation checks
// =============================================================================

// Expectation is a query with a known answer.
type Expectation struct {
	ID       string `yaml:"id"`
	Query    `yaml:",inline"`
	Length   int    `yaml:"length"` // node count of the shortest path; 0 means unreachable
	MinPaths int    `yaml:"min_paths,omitempty"`
	Notes    string `yaml:"notes,omitempty"`
}

// Solver is the part of the solver the checks need.
type Solver interface {
	Solve(ctx context.Context, start, goal string, tolerance int) (*search.Result, error)
}

// CheckResult is the outcome of one expectation.
type CheckResult struct {
	Expectation Expectation   `json:"expectation"`
	Passed      bool          `json:"passed"`
	Status      string        `json:"status"`
	Length      int           `json:"length"`
	Paths       int           `json:"paths"`
	Duration    time.Duration `json:"duration_ms"`
	Error       string        `json:"error,omitempty"`
}

// Report summarises a check run.
type Report struct {
	Timestamp time.Time     `json:"timestamp"`
	Results   []CheckResult `json:"results"`
	Passed    int           `json:"passed"`
	Total     int           `json:"total"`
}

// LoadExpectations reads a YAML list of expectations.
func LoadExpectations(path string) ([]Expectation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read expectations file %s: %w", path, err)
	}

	var doc struct {
		Expectations []Expectation `yaml:"expectations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse expectations YAML: %w", err)
	}
	for i := range doc.Expectations {
		q, err := NormalizeQuery(doc.Expectations[i].Query)
		if err != nil {
			return nil, fmt.Errorf("expectation %q: %w", doc.Expectations[i].ID, err)
		}
		doc.Expectations[i].Query = q
	}
	return doc.Expectations, nil
}

// Check runs one expectation.
func Check(ctx context.Context, s Solver, exp Expectation) CheckResult {
	start := time.Now()
	res, err := s.Solve(ctx, exp.Start, exp.Goal, exp.Tolerance)
	cr := CheckResult{Expectation: exp, Duration: time.Since(start)}
	if err != nil {
		cr.Error = err.Error()
		return cr
	}

	cr.Status = res.Status.String()
	cr.Paths = res.Buckets.Count()
	if res.Found() {
		cr.Length = res.Buckets.Shortest()
	}

	if exp.Length == 0 {
		cr.Passed = !res.Found()
		return cr
	}
	cr.Passed = res.Found() && cr.Length == exp.Length && cr.Paths >= exp.MinPaths
	return cr
}

// CheckAll runs every expectation in order.
func CheckAll(ctx context.Context, s Solver, exps []Expectation) *Report {
	r := &Report{Timestamp: time.Now()}
	for _, exp := range exps {
		cr := Check(ctx, s, exp)
		r.Results = append(r.Results, cr)
		r.Total++
		if cr.Passed {
			r.Passed++
		}
	}
	return r
}
