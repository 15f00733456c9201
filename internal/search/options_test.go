package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapacityPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    CapacityPolicy
		wantErr bool
	}{
		{input: "", want: PolicyRequeue},
		{input: "requeue", want: PolicyRequeue},
		{input: " Fatal ", want: PolicyFatal},
		{input: "drop", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCapacityPolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptions_IgnoreZeroValues(t *testing.T) {
	// Given: an engine with defaults
	e := &Engine{config: DefaultConfig()}

	// When: applying zero and negative values
	WithWorkers(0)(e)
	WithFrontierCapacity(-1)(e)
	WithCapacityPolicy("")(e)

	// Then: defaults survive
	assert.Equal(t, DefaultConfig(), e.config)
}

func TestWithConfig_AppliesNonZeroFields(t *testing.T) {
	e := &Engine{config: DefaultConfig()}

	WithConfig(Config{Workers: 3, Policy: PolicyFatal})(e)

	assert.Equal(t, 3, e.config.Workers)
	assert.Equal(t, DefaultFrontierCapacity, e.config.FrontierCapacity)
	assert.Equal(t, PolicyFatal, e.config.Policy)
}

func TestWithLogger_NilKeepsCurrent(t *testing.T) {
	l := defaultLogger()
	e := &Engine{logger: l}

	WithLogger(nil)(e)

	assert.Same(t, l, e.logger)
}
