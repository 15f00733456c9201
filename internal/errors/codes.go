// Package errors provides structured error handling for pathmap.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, graph store)
//   - 3XX: Network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//   - 6XX: Search errors (graph expansion, frontier)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk and graph store errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategorySearch indicates errors raised while expanding the graph.
	CategorySearch Category = "SEARCH"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// IO errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeCorruptGraph   = "ERR_205_CORRUPT_GRAPH"
	ErrCodeFileCorrupt    = "ERR_206_FILE_CORRUPT"
	ErrCodeStoreLocked    = "ERR_207_STORE_LOCKED"
	ErrCodeStoreClosed    = "ERR_208_STORE_CLOSED"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeCircuitOpen        = "ERR_303_CIRCUIT_OPEN"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidNodeID    = "ERR_402_INVALID_NODE_ID"
	ErrCodeInvalidTolerance = "ERR_403_INVALID_TOLERANCE"
	ErrCodeInvalidPath      = "ERR_406_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"

	// Search errors (600-699)
	ErrCodeNeighborsNotFound = "ERR_601_NEIGHBORS_NOT_FOUND"
	ErrCodeFetchFailed       = "ERR_602_FETCH_FAILED"
	ErrCodeFrontierExhausted = "ERR_603_FRONTIER_EXHAUSTED"
	ErrCodeDoubleExpansion   = "ERR_604_DOUBLE_EXPANSION"
	ErrCodeSearchCancelled   = "ERR_605_SEARCH_CANCELLED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '6':
		return CategorySearch
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptGraph, ErrCodeDiskFull,
		ErrCodeFrontierExhausted, ErrCodeDoubleExpansion:
		return SeverityFatal
	case ErrCodeNeighborsNotFound:
		// Absorbed by the engine, the node simply has no children.
		return SeverityInfo
	case ErrCodeSearchCancelled:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Retryable means a later attempt may succeed; pathmap never retries
// remote fetches inside a search.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable,
		ErrCodeFetchFailed, ErrCodeCircuitOpen, ErrCodeStoreLocked:
		return true
	default:
		return false
	}
}
