package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// asMapError returns the first MapError in err's chain, wrapping plain
// errors as internal ones.
func asMapError(err error) *MapError {
	var me *MapError
	if errors.As(err, &me) {
		return me
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForUser returns a user-friendly error message.
// If debug is true, includes details and the underlying cause.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	var me *MapError
	if !errors.As(err, &me) {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(me.Message)
	sb.WriteString("\n")

	if me.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(me.Suggestion)
		sb.WriteString("\n")
	}

	if debug {
		for _, k := range sortedKeys(me.Details) {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, me.Details[k]))
		}
		if me.Cause != nil {
			sb.WriteString(fmt.Sprintf("  cause: %v\n", me.Cause))
		}
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", me.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	me := asMapError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", me.Message))

	if me.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", me.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", me.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
// Used by `solve --json` and the MCP server.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	me := asMapError(err)

	je := jsonError{
		Code:       me.Code,
		Message:    me.Message,
		Category:   string(me.Category),
		Severity:   string(me.Severity),
		Details:    me.Details,
		Suggestion: me.Suggestion,
		Retryable:  me.Retryable,
	}

	if me.Cause != nil {
		je.Cause = me.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var me *MapError
	if !errors.As(err, &me) {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": me.Code,
		"message":    me.Message,
		"category":   string(me.Category),
		"severity":   string(me.Severity),
		"retryable":  me.Retryable,
	}

	if me.Cause != nil {
		result["cause"] = me.Cause.Error()
	}

	if me.Suggestion != "" {
		result["suggestion"] = me.Suggestion
	}

	for k, v := range me.Details {
		result["detail_"+k] = v
	}

	return result
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
