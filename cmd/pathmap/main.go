// Package main provides the entry point for the pathmap CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/pathmap/cmd/pathmap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
