// Package logging provides file-based structured logging with rotation for
// pathmap. Logs are JSON lines written to ~/.pathmap/logs/pathmap.log and can
// be read back with `pathmap logs`.
//
// The serve command logs to file only: stdout carries the MCP protocol and
// must not be shared.
package logging
