// Package main provides the entry point for the swiftsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/swiftsearch/cmd/swiftsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
