package simstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// Complaint is a row owned exclusively by the complaint subsystem (spec
// §4.3, §6).
type Complaint struct {
	ComplaintID    string
	RunID          string
	CustomerID     string
	TickOpened     uint64
	TickClosed     *uint64
	Issue          string
	Priority       string
	Status         string
	SLADueTick     uint64
	SLABreached    bool
	ResolutionCode *string
}

// InsertComplaint records a newly filed complaint.
func (s *Store) InsertComplaint(c Complaint) error {
	_, err := s.conn().Exec(
		`INSERT INTO complaint (complaint_id, run_id, customer_id, tick_opened, issue, priority, status, sla_due_tick, sla_breached)
		 VALUES (?, ?, ?, ?, ?, ?, 'open', ?, 0)`,
		c.ComplaintID, c.RunID, c.CustomerID, c.TickOpened, c.Issue, c.Priority, c.SLADueTick,
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("insert complaint %s: %w", c.ComplaintID, err))
	}
	return nil
}

// CloseComplaint marks a complaint resolved at the given tick with a
// resolution code (spec §5, close_complaint command).
func (s *Store) CloseComplaint(runID, complaintID string, tickClosed uint64, resolutionCode string) error {
	res, err := s.conn().Exec(
		`UPDATE complaint SET status = 'closed', tick_closed = ?, resolution_code = ?
		  WHERE run_id = ? AND complaint_id = ? AND status = 'open'`,
		tickClosed, resolutionCode, runID, complaintID,
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("close complaint %s: %w", complaintID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return simerr.Storage(err)
	}
	if n == 0 {
		return simerr.ErrNotFound
	}
	return nil
}

// MarkSLABreached flags a complaint as having missed its SLA due tick.
func (s *Store) MarkSLABreached(runID, complaintID string) error {
	_, err := s.conn().Exec(
		`UPDATE complaint SET sla_breached = 1 WHERE run_id = ? AND complaint_id = ?`,
		runID, complaintID,
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("mark sla breached %s: %w", complaintID, err))
	}
	return nil
}

// Complaint fetches a single complaint row, or simerr.ErrNotFound if absent.
func (s *Store) Complaint(runID, complaintID string) (Complaint, error) {
	var c Complaint
	row := s.conn().QueryRow(
		`SELECT complaint_id, run_id, customer_id, tick_opened, tick_closed, issue, priority, status, sla_due_tick, sla_breached, resolution_code
		   FROM complaint WHERE run_id = ? AND complaint_id = ?`,
		runID, complaintID,
	)
	var slaBreached int
	if err := row.Scan(&c.ComplaintID, &c.RunID, &c.CustomerID, &c.TickOpened, &c.TickClosed, &c.Issue, &c.Priority, &c.Status, &c.SLADueTick, &slaBreached, &c.ResolutionCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Complaint{}, simerr.ErrNotFound
		}
		return Complaint{}, simerr.Storage(fmt.Errorf("load complaint %s: %w", complaintID, err))
	}
	c.SLABreached = slaBreached != 0
	return c, nil
}

// OpenComplaints returns every open complaint for a run, ordered by
// complaint_id, used by the subsystem each tick to check SLA due dates.
func (s *Store) OpenComplaints(runID string) ([]Complaint, error) {
	rows, err := s.conn().Query(
		`SELECT complaint_id, run_id, customer_id, tick_opened, tick_closed, issue, priority, status, sla_due_tick, sla_breached, resolution_code
		   FROM complaint WHERE run_id = ? AND status = 'open'
		  ORDER BY complaint_id ASC`,
		runID,
	)
	if err != nil {
		return nil, simerr.Storage(fmt.Errorf("open complaints: %w", err))
	}
	defer rows.Close()

	var out []Complaint
	for rows.Next() {
		var c Complaint
		var slaBreached int
		if err := rows.Scan(&c.ComplaintID, &c.RunID, &c.CustomerID, &c.TickOpened, &c.TickClosed, &c.Issue, &c.Priority, &c.Status, &c.SLADueTick, &slaBreached, &c.ResolutionCode); err != nil {
			return nil, simerr.Storage(fmt.Errorf("open complaints: %w", err))
		}
		c.SLABreached = slaBreached != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Storage(err)
	}
	return out, nil
}
