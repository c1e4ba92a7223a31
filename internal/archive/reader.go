package archive

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// EventRecord is a single decoded row from the compressed event log.
type EventRecord struct {
	Tick       uint64
	Subsystem  string
	Type       string
	ArchivedAt time.Time
	Payload    []byte
}

// SnapshotRecord is a single decoded frame from the compressed snapshot stream.
type SnapshotRecord struct {
	Tick    uint64
	Payload []byte
}

// LoadBundle reads the manifest, events, and snapshots for an archived run,
// adapted from the teacher's tools/replay_player.ReplayBundle. Where the
// teacher decoded wall-clock "simulated_ms" frames keyed to a match replay,
// this reads tick-keyed event and snapshot streams produced by Writer.
func LoadBundle(path string) (Manifest, []EventRecord, []SnapshotRecord, error) {
	if path == "" {
		return Manifest{}, nil, nil, fmt.Errorf("path is required")
	}

	manifestPath := path
	info, err := os.Stat(path)
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	if info.IsDir() {
		manifestPath = filepath.Join(path, "manifest.json")
	}
	dir := filepath.Dir(manifestPath)

	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return Manifest{}, nil, nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return Manifest{}, nil, nil, err
	}
	if manifest.Version != 1 {
		return Manifest{}, nil, nil, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}

	events, err := loadEvents(filepath.Join(dir, manifest.EventsPath))
	if err != nil {
		return Manifest{}, nil, nil, err
	}

	snapshots, err := loadSnapshots(filepath.Join(dir, manifest.SnapshotPath))
	if err != nil {
		return Manifest{}, nil, nil, err
	}

	return manifest, events, snapshots, nil
}

func loadEvents(path string) ([]EventRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := snappy.NewReader(file)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []EventRecord
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw struct {
			Tick       uint64 `json:"tick"`
			Subsystem  string `json:"subsystem"`
			Type       string `json:"type"`
			ArchivedAt string `json:"archived_at"`
			PayloadB64 string `json:"payload_b64"`
		}
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, err
		}
		archived, err := time.Parse(time.RFC3339Nano, raw.ArchivedAt)
		if err != nil {
			return nil, err
		}
		payload, err := base64.StdEncoding.DecodeString(raw.PayloadB64)
		if err != nil {
			return nil, err
		}
		records = append(records, EventRecord{
			Tick:       raw.Tick,
			Subsystem:  raw.Subsystem,
			Type:       raw.Type,
			ArchivedAt: archived,
			Payload:    payload,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func loadSnapshots(path string) ([]SnapshotRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var records []SnapshotRecord
	offset := 0
	for offset+12 <= len(payload) {
		tick := binary.LittleEndian.Uint64(payload[offset : offset+8])
		offset += 8
		size := int(binary.LittleEndian.Uint32(payload[offset : offset+4]))
		offset += 4
		if size < 0 || offset+size > len(payload) {
			return nil, fmt.Errorf("snapshot payload truncated")
		}
		blob := append([]byte(nil), payload[offset:offset+size]...)
		offset += size
		records = append(records, SnapshotRecord{Tick: tick, Payload: blob})
	}
	return records, nil
}
