package simstore

import (
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// Run is the row identifying a single simulation run (spec §4.1, §6).
type Run struct {
	RunID     string
	Seed      uint64
	Version   string
	StartedAt int64
}

// InsertRun records a new run. Called once, before tick 0.
func (s *Store) InsertRun(r Run) error {
	_, err := s.conn().Exec(
		`INSERT INTO run (run_id, seed, version, started_at) VALUES (?, ?, ?, ?)`,
		r.RunID, int64(r.Seed), r.Version, r.StartedAt,
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("insert run %s: %w", r.RunID, err))
	}
	return nil
}

// LoadRun fetches a run's header row, used when resuming an existing run.
func (s *Store) LoadRun(runID string) (Run, error) {
	var r Run
	var seed int64
	row := s.conn().QueryRow(
		`SELECT run_id, seed, version, started_at FROM run WHERE run_id = ?`, runID,
	)
	if err := row.Scan(&r.RunID, &seed, &r.Version, &r.StartedAt); err != nil {
		return Run{}, simerr.Storage(fmt.Errorf("load run %s: %w", runID, err))
	}
	r.Seed = uint64(seed)
	return r, nil
}
