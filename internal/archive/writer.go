// Package archive persists a finished or in-progress run's event log and
// snapshot stream to disk in a compressed, catalogue-friendly bundle,
// adapted from the teacher's internal/replay package. Where the teacher
// streamed 5Hz binary physics frames and JSONL combat events keyed by
// wall-clock "simulated_ms", this package streams tick-keyed event log rows
// and snapshot blobs — the unit of time here is the deterministic tick, not
// the clock, so there is no frame-interval buffering: every snapshot is
// written as soon as the engine produces one.
package archive

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var writerMatchCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Manifest describes the archive bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version      int    `json:"version"`
	CreatedAt    string `json:"created_at"`
	EventsPath   string `json:"events_path"`
	SnapshotPath string `json:"snapshots_path"`
}

// Writer streams a run's event log and snapshots to a compressed bundle.
type Writer struct {
	mu              sync.Mutex
	dir             string
	now             func() time.Time
	eventFile       *os.File
	eventStream     *snappy.Writer
	snapshotFile    *os.File
	snapshotStream  *zstd.Encoder
	runID           string
	headerSeed      uint64
	headerVersion   string
}

// NewWriter prepares the archive directory and opens compressed sinks for
// the given run.
func NewWriter(root, runID string, seed uint64, engineVersion string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("archive root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := writerMatchCleaner.ReplaceAllString(runID, "")
	if cleaned == "" {
		cleaned = "run"
	}
	created := clock().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(root, folder)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventsPath := filepath.Join(path, "events.jsonl.sz")
	snapshotsPath := filepath.Join(path, "snapshots.bin.zst")
	manifestPath := filepath.Join(path, "manifest.json")

	eventFile, err := os.Create(eventsPath)
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	snapshotFile, err := os.Create(snapshotsPath)
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	snapshotStream, err := zstd.NewWriter(snapshotFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		snapshotFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:      1,
		CreatedAt:    created.Format(time.RFC3339Nano),
		EventsPath:   "events.jsonl.sz",
		SnapshotPath: "snapshots.bin.zst",
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		snapshotStream.Close()
		snapshotFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		snapshotStream.Close()
		snapshotFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	writer := &Writer{
		dir:            path,
		now:            clock,
		eventFile:      eventFile,
		eventStream:    eventStream,
		snapshotFile:   snapshotFile,
		snapshotStream: snapshotStream,
		runID:          runID,
		headerVersion:  engineVersion,
		headerSeed:     seed,
	}

	return writer, manifest, nil
}

// Directory exposes the directory backing the archive bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendEvent writes a single event-log row to the compressed event stream.
func (w *Writer) AppendEvent(tick uint64, subsystemName, eventType string, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	archived := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()

	//1.- Encode the event payload with metadata so downstream JSONL parsers can stream it safely.
	record := struct {
		Tick       uint64 `json:"tick"`
		Subsystem  string `json:"subsystem"`
		Type       string `json:"type"`
		ArchivedAt string `json:"archived_at"`
		PayloadB64 string `json:"payload_b64"`
	}{
		Tick:       tick,
		Subsystem:  subsystemName,
		Type:       eventType,
		ArchivedAt: archived.Format(time.RFC3339Nano),
		PayloadB64: base64.StdEncoding.EncodeToString(payload),
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := w.eventStream.Write(line); err != nil {
		return err
	}
	if _, err := w.eventStream.Write([]byte("\n")); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// AppendSnapshot writes a single length-prefixed snapshot blob to the
// compressed snapshot stream. Callers decide cadence (the engine calls
// this every SnapshotInterval ticks); the writer does not buffer or batch,
// since snapshot cadence is already tick-driven and deterministic.
func (w *Writer) AppendSnapshot(tick uint64, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	//1.- Write a length-prefixed frame so readers can step through snapshots efficiently.
	header := make([]byte, 8+4)
	binary.LittleEndian.PutUint64(header[0:8], tick)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := w.snapshotStream.Write(header); err != nil {
		return err
	}
	if _, err := w.snapshotStream.Write(payload); err != nil {
		return err
	}
	return nil
}

// Close flushes all buffers, writes the header document, and releases file
// handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	//1.- Persist the metadata header before dismantling the streaming sinks.
	var firstErr error
	headerPath := filepath.Join(w.dir, "header.json")
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		RunID:         w.runID,
		RunSeed:       w.headerSeed,
		EngineVersion: w.headerVersion,
		FilePointer:   "manifest.json",
	}
	if err := WriteHeader(headerPath, header); err != nil && firstErr == nil {
		firstErr = err
	}
	//2.- Attempt every flush/close and surface the first failure for callers to inspect.
	if err := w.eventStream.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.snapshotStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.snapshotFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
