// Command archive_catalog lists archived run bundles under a directory,
// adapted from the teacher's tools/replay_catalog CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	archivecatalog "github.com/georgehampton08-rgb/fincrime-thedesk-sub001/tools/archive_catalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing archived run headers")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := archivecatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := archivecatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (schema %d)\n", entry.FilePath, entry.Header.SchemaVersion)
		fmt.Printf("  run_id: %s\n", entry.Header.RunID)
		fmt.Printf("  seed:   %d\n", entry.Header.RunSeed)
		fmt.Printf("  engine: %s\n", entry.Header.EngineVersion)
		fmt.Printf("  header: %s\n", entry.HeaderPath)
	}
}
