// Command archive_player renders an archived run bundle as JSON for
// inspection, adapted from the teacher's tools/replay_player CLI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/archive"
)

func main() {
	path := flag.String("path", "", "path to an archived run directory or manifest.json")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	manifest, events, snapshots, err := archive.LoadBundle(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	payload := struct {
		Manifest  interface{}              `json:"manifest"`
		Events    []archive.EventRecord    `json:"events"`
		Snapshots []archive.SnapshotRecord `json:"snapshots"`
	}{
		Manifest:  manifest,
		Events:    events,
		Snapshots: snapshots,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(3)
	}
}
