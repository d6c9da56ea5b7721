// Package main provides the entry point for the realtorbot CLI.
package main

import (
	"os"

	"github.com/kailas-cloud/realtorbot/cmd/realtorbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
