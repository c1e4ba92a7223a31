// Package archivecatalog walks a directory tree for archived run headers,
// adapted from the teacher's tools/replay_catalog directory-walking
// headers-to-entries logic. Where the teacher sorted by match seed, this
// sorts by run seed, the equivalent identifier for a deterministic run.
package archivecatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/archive"
)

// Entry captures an archive header alongside its resolved bundle path.
type Entry struct {
	HeaderPath string         `json:"header_path"`
	FilePath   string         `json:"file_path"`
	Header     archive.Header `json:"header"`
}

// List walks the directory tree and returns every parsed archive header.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if name != "header.json" && !strings.HasSuffix(name, ".header.json") {
			return nil
		}
		header, err := archive.ReadHeader(path)
		if err != nil {
			return err
		}
		filePath := header.FilePointer
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(filepath.Dir(path), filePath)
		}
		entries = append(entries, Entry{HeaderPath: path, FilePath: filePath, Header: header})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Header.RunSeed == entries[j].Header.RunSeed {
			return entries[i].FilePath < entries[j].FilePath
		}
		return entries[i].Header.RunSeed < entries[j].Header.RunSeed
	})
	return entries, nil
}

// MarshalEntries produces a stable JSON representation of the entries for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
