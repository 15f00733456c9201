package async

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveStatus_Lifecycle(t *testing.T) {
	s := NewSaveStatus()
	assert.Equal(t, SaveSnapshot{State: "idle"}, s.Snapshot())

	s.SetPending(true)
	s.Begin()
	assert.Equal(t, "saving", s.Snapshot().State)

	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Done(end, 250*time.Millisecond)
	s.SetPending(false)

	assert.Equal(t, SaveSnapshot{State: "idle", Saves: 1, LastSave: end, LastDurationMs: 250}, s.Snapshot())
}

func TestSaveStatus_FailKeepsLastSave(t *testing.T) {
	s := NewSaveStatus()
	end := time.Now()
	s.Done(end, time.Millisecond)

	s.Fail("locked")

	snap := s.Snapshot()
	assert.Equal(t, "error", snap.State)
	assert.Equal(t, "locked", snap.ErrorMessage)
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, end, snap.LastSave)
}

func TestSaveSnapshot_JSON(t *testing.T) {
	data, err := json.Marshal(NewSaveStatus().Snapshot())
	require.NoError(t, err)

	assert.JSONEq(t, `{"state":"idle","saves":0,"failures":0,"pending":false,"last_duration_ms":0}`, string(data))
}
