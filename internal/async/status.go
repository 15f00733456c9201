// Package async runs graph persistence in the background for long-lived
// processes.
package async

import (
	"sync"
	"time"
)

// SaveState is the state of the most recent save.
type SaveState string

const (
	// StateIdle means no save is running and the last one succeeded.
	StateIdle SaveState = "idle"
	// StateSaving means a save is in progress.
	StateSaving SaveState = "saving"
	// StateError means the last save failed.
	StateError SaveState = "error"
)

// SaveSnapshot is an immutable copy of the save status.
type SaveSnapshot struct {
	State          string    `json:"state"`
	Saves          int       `json:"saves"`
	Failures       int       `json:"failures"`
	Pending        bool      `json:"pending"`
	LastSave       time.Time `json:"last_save,omitzero"`
	LastDurationMs int64     `json:"last_duration_ms"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// SaveStatus tracks background saves. It is safe for concurrent use.
type SaveStatus struct {
	mu sync.RWMutex

	state        SaveState
	saves        int
	failures     int
	pending      bool
	lastSave     time.Time
	lastDuration time.Duration
	errorMessage string
}

// NewSaveStatus returns an idle status.
func NewSaveStatus() *SaveStatus {
	return &SaveStatus{state: StateIdle}
}

// SetPending records whether unsaved changes exist.
func (s *SaveStatus) SetPending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = pending
}

// Begin marks a save as started.
func (s *SaveStatus) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSaving
}

// Done records a successful save that finished at end.
func (s *SaveStatus) Done(end time.Time, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
	s.saves++
	s.lastSave = end
	s.lastDuration = d
	s.errorMessage = ""
}

// Fail records a failed save.
func (s *SaveStatus) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateError
	s.failures++
	s.errorMessage = message
}

// Snapshot returns the current status.
func (s *SaveStatus) Snapshot() SaveSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SaveSnapshot{
		State:          string(s.state),
		Saves:          s.saves,
		Failures:       s.failures,
		Pending:        s.pending,
		LastSave:       s.lastSave,
		LastDurationMs: s.lastDuration.Milliseconds(),
		ErrorMessage:   s.errorMessage,
	}
}
