package archive

import (
	"testing"
	"time"
)

func TestLoadBundleRoundTrips(t *testing.T) {
	tmp := t.TempDir()
	base := time.Date(2026, 1, 10, 15, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	writer, manifest, err := NewWriter(tmp, "run-reader-test", 7, "0.1.0", clock)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := writer.AppendEvent(5, "macro", "MacroStateUpdated", []byte(`{"tick":5}`)); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := writer.AppendSnapshot(30, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("AppendSnapshot tick 30: %v", err)
	}
	now = now.Add(time.Second)
	if err := writer.AppendSnapshot(60, []byte{0x03}); err != nil {
		t.Fatalf("AppendSnapshot tick 60: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	loadedManifest, events, snapshots, err := LoadBundle(writer.Directory())
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}

	if loadedManifest.Version != manifest.Version {
		t.Fatalf("manifest mismatch: %v vs %v", loadedManifest.Version, manifest.Version)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Subsystem != "macro" || events[0].Tick != 5 {
		t.Fatalf("unexpected event record: %+v", events[0])
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots[0].Tick != 30 || snapshots[1].Tick != 60 {
		t.Fatalf("unexpected snapshot ticks: %+v", snapshots)
	}
}
