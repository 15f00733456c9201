package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pathmap/internal/async"
)

func TestServeCmd_Flags(t *testing.T) {
	cmd := newServeCmd()

	f := cmd.Flags().Lookup("save-interval")
	require.NotNil(t, f)
	assert.Equal(t, async.DefaultSaveInterval.String(), f.DefValue)
}

func TestServeCmd_InvalidConfig(t *testing.T) {
	// Given: a config that cannot validate
	setupTestEnv(t)
	t.Setenv("PATHMAP_WORKERS", "0")

	// When
	err := runServe(t.Context(), time.Second)

	// Then: serve fails before touching stdio
	assert.Error(t, err)
}
