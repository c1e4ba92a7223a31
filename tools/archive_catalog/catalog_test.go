package archivecatalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/archive"
)

func TestListCollectsHeaders(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "run-alpha")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	header := archive.Header{
		SchemaVersion: archive.HeaderSchemaVersion,
		RunID:         "run-alpha",
		RunSeed:       42,
		EngineVersion: "0.1.0",
		FilePointer:   "manifest.json",
	}
	headerPath := filepath.Join(dataDir, "header.json")
	if err := archive.WriteHeader(headerPath, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Header.RunSeed != 42 {
		t.Fatalf("unexpected run seed: %d", entry.Header.RunSeed)
	}
	if entry.FilePath != filepath.Join(dataDir, "manifest.json") {
		t.Fatalf("unexpected file path: %q", entry.FilePath)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}
}
