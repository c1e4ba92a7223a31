package simstore

import (
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// RunStats is a point-in-time rollup used by operator-facing summaries
// (cmd/sim-runner); nothing in the engine or subsystems reads it back, so
// it carries no determinism weight.
type RunStats struct {
	ActiveCustomers  int
	ChurnedCustomers int
	TotalEvents      int
	OpenComplaints   int
	ClosedComplaints int
	SLABreaches      int
}

// Stats rolls up customer, event, and complaint counts for a run.
func (s *Store) Stats(runID string) (RunStats, error) {
	var out RunStats
	if err := s.conn().QueryRow(
		`SELECT COUNT(*) FROM customer WHERE run_id = ? AND status = 'active'`, runID,
	).Scan(&out.ActiveCustomers); err != nil {
		return RunStats{}, simerr.Storage(fmt.Errorf("active customer count: %w", err))
	}
	if err := s.conn().QueryRow(
		`SELECT COUNT(*) FROM customer WHERE run_id = ? AND status = 'churned'`, runID,
	).Scan(&out.ChurnedCustomers); err != nil {
		return RunStats{}, simerr.Storage(fmt.Errorf("churned customer count: %w", err))
	}
	if err := s.conn().QueryRow(
		`SELECT COUNT(*) FROM event_log WHERE run_id = ?`, runID,
	).Scan(&out.TotalEvents); err != nil {
		return RunStats{}, simerr.Storage(fmt.Errorf("event count: %w", err))
	}
	if err := s.conn().QueryRow(
		`SELECT COUNT(*) FROM complaint WHERE run_id = ? AND status = 'open'`, runID,
	).Scan(&out.OpenComplaints); err != nil {
		return RunStats{}, simerr.Storage(fmt.Errorf("open complaint count: %w", err))
	}
	if err := s.conn().QueryRow(
		`SELECT COUNT(*) FROM complaint WHERE run_id = ? AND status = 'closed'`, runID,
	).Scan(&out.ClosedComplaints); err != nil {
		return RunStats{}, simerr.Storage(fmt.Errorf("closed complaint count: %w", err))
	}
	if err := s.conn().QueryRow(
		`SELECT COUNT(*) FROM complaint WHERE run_id = ? AND sla_breached = 1`, runID,
	).Scan(&out.SLABreaches); err != nil {
		return RunStats{}, simerr.Storage(fmt.Errorf("sla breach count: %w", err))
	}
	return out, nil
}
