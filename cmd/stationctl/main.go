// Command stationctl sets up races, moves snapshots between stations and
// prints race summaries without the HTTP server.
//
// Usage:
//
//	stationctl --station 2 init race.json
//	stationctl --station 2 --race fell-2026 export --type checkpoint-results
//	stationctl --race fell-2026 import cp2.json cp3.json
//	stationctl merge base.json cp2.json -o merged.json
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
