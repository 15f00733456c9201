package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the floor on the open file limit.
const MinFileDescriptors = 256

// reservedDescriptors covers the store, logs, telemetry and stdio.
const reservedDescriptors = 64

// RequiredDescriptors returns the open file limit needed to run workers
// concurrent fetches. Each fetch may hold a connection and a DNS socket.
func RequiredDescriptors(workers int) uint64 {
	need := uint64(max(workers, 0))*2 + reservedDescriptors
	return max(need, MinFileDescriptors)
}

// CheckFileDescriptors checks the open file limit against workers.
func (c *Checker) CheckFileDescriptors(workers int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	need := RequiredDescriptors(workers)
	result.Message = fmt.Sprintf("%d (needed for %d workers: %d)", rLimit.Cur, workers, need)
	if rLimit.Cur < need {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' or lower search.workers", need*2)
		return result
	}
	result.Status = StatusPass
	return result
}
