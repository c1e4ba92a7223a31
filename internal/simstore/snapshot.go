package simstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// SaveSnapshot persists a canonically-serialized state blob for a run at a
// given tick (spec §4.5: snapshot cadence of SNAPSHOT_INTERVAL ticks).
func (s *Store) SaveSnapshot(runID string, tick uint64, stateJSON []byte) error {
	_, err := s.conn().Exec(
		`INSERT INTO snapshot (run_id, tick, state_json) VALUES (?, ?, ?)
		   ON CONFLICT(run_id, tick) DO UPDATE SET state_json = excluded.state_json`,
		runID, tick, string(stateJSON),
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("save snapshot at tick %d: %w", tick, err))
	}
	return nil
}

// LatestSnapshotAtOrBefore returns the most recent snapshot at or before
// tick, used when resuming a run: replay starts from the snapshot's tick
// instead of tick 0 (spec §4.5).
func (s *Store) LatestSnapshotAtOrBefore(runID string, tick uint64) (snapshotTick uint64, stateJSON []byte, found bool, err error) {
	row := s.conn().QueryRow(
		`SELECT tick, state_json FROM snapshot
		  WHERE run_id = ? AND tick <= ?
		  ORDER BY tick DESC LIMIT 1`,
		runID, tick,
	)
	var state string
	if scanErr := row.Scan(&snapshotTick, &state); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, simerr.Storage(fmt.Errorf("latest snapshot at or before %d: %w", tick, scanErr))
	}
	return snapshotTick, []byte(state), true, nil
}
