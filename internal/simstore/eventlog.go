package simstore

import (
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// LoggedEvent is a single row of the append-only event log. ID is the
// per-run monotonically increasing sequence that defines the total order
// of everything that happened during a run (spec §3, §8 property 1):
// AUTOINCREMENT on the primary key guarantees id(n+1) > id(n) regardless of
// tick or subsystem, so replay in id order reproduces the canonical
// ordering exactly.
type LoggedEvent struct {
	ID         int64
	RunID      string
	Tick       uint64
	Subsystem  string
	EventType  string
	Payload    string
	CreatedAt  int64
}

// AppendEvent appends one event to the log and returns its assigned id.
// Subsystem is the emitting subsystem's name, or "engine" for
// engine-originated events such as TickStarted/TickCompleted.
func (s *Store) AppendEvent(runID string, tick uint64, subsystem, eventType string, payload []byte, createdAt int64) (int64, error) {
	res, err := s.conn().Exec(
		`INSERT INTO event_log (run_id, tick, subsystem, event_type, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, tick, subsystem, eventType, string(payload), createdAt,
	)
	if err != nil {
		return 0, simerr.Storage(fmt.Errorf("append event %s at tick %d: %w", eventType, tick, err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, simerr.Storage(fmt.Errorf("append event %s at tick %d: %w", eventType, tick, err))
	}
	return id, nil
}

// EventsForTick returns every event logged for a run's tick, in id order
// (the canonical order, spec §3).
func (s *Store) EventsForTick(runID string, tick uint64) ([]LoggedEvent, error) {
	rows, err := s.conn().Query(
		`SELECT id, run_id, tick, subsystem, event_type, payload, created_at
		   FROM event_log
		  WHERE run_id = ? AND tick = ?
		  ORDER BY id ASC`,
		runID, tick,
	)
	if err != nil {
		return nil, simerr.Storage(fmt.Errorf("events for tick %d: %w", tick, err))
	}
	defer rows.Close()

	var out []LoggedEvent
	for rows.Next() {
		var e LoggedEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.Tick, &e.Subsystem, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, simerr.Storage(fmt.Errorf("events for tick %d: %w", tick, err))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Storage(err)
	}
	return out, nil
}

// EventsSince returns every event logged after afterID, in id order, so a
// reader can resume from a known cursor instead of replaying an entire run.
// Telemetry and archival export receive events through the engine's event
// sink rather than through this query.
func (s *Store) EventsSince(runID string, afterID int64) ([]LoggedEvent, error) {
	rows, err := s.conn().Query(
		`SELECT id, run_id, tick, subsystem, event_type, payload, created_at
		   FROM event_log
		  WHERE run_id = ? AND id > ?
		  ORDER BY id ASC`,
		runID, afterID,
	)
	if err != nil {
		return nil, simerr.Storage(fmt.Errorf("events since %d: %w", afterID, err))
	}
	defer rows.Close()

	var out []LoggedEvent
	for rows.Next() {
		var e LoggedEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.Tick, &e.Subsystem, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, simerr.Storage(fmt.Errorf("events since %d: %w", afterID, err))
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Storage(err)
	}
	return out, nil
}
