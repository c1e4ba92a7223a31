// Package complaintsub implements the complaint-handling reference
// subsystem (spec §5, slot 4): overdraft fees have a chance of generating a
// complaint, open complaints breach their SLA if left unresolved, and a
// close_complaint command resolves a case with a satisfaction adjustment.
// Grounded on original_source/core/tests/complaints.rs (12% fee-to-
// complaint trigger rate, 15-tick SLA window, resolution-code satisfaction
// deltas) since no complaint_subsystem.rs survived into the retrieved
// source pack.
package complaintsub

import (
	"encoding/json"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simstore"
)

// FeeComplaintTriggerChance is the probability an overdraft fee generates a
// complaint (original_source: complaints.rs, "At 12% trigger probability").
const FeeComplaintTriggerChance = 0.12

// SLAWindowTicks is the number of ticks a complaint has to be resolved
// before it breaches SLA (original_source: "15 days" SLA window).
const SLAWindowTicks = 15

// Subsystem is the complaint-handling reference subsystem.
type Subsystem struct {
	runID   string
	store   *simstore.Store
	nextSeq uint64
}

// New constructs the complaint subsystem bound to a run's store.
func New(runID string, store *simstore.Store) *Subsystem {
	return &Subsystem{runID: runID, store: store}
}

func (s *Subsystem) Name() string { return "complaint" }

// complaintFragment is the only piece of this subsystem's state that
// doesn't live in the complaint table: the in-memory sequence counter used
// to mint complaint ids. Without restoring it, a resumed run could mint an
// id that collides with one issued before the snapshot was taken.
type complaintFragment struct {
	NextSeq uint64 `json:"next_seq"`
}

func (s *Subsystem) SnapshotFragment() (json.RawMessage, error) {
	return json.Marshal(complaintFragment{NextSeq: s.nextSeq})
}

func (s *Subsystem) RestoreFragment(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var f complaintFragment
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.nextSeq = f.NextSeq
	return nil
}

func (s *Subsystem) Update(tick uint64, inbound []simevent.Event, rng *simrng.Stream) ([]simevent.Event, error) {
	var out []simevent.Event

	for _, ev := range inbound {
		switch e := ev.(type) {
		case simevent.FeeCharged:
			if e.FeeType != "overdraft" {
				continue
			}
			if !rng.Chance(FeeComplaintTriggerChance) {
				continue
			}
			filed, err := s.fileComplaint(tick, e)
			if err != nil {
				return nil, err
			}
			out = append(out, filed)

		case simevent.CloseComplaintRequested:
			resolved, err := s.resolveComplaint(tick, e)
			if err != nil {
				return nil, err
			}
			out = append(out, resolved)
		}
	}

	breaches, err := s.checkSLABreaches(tick)
	if err != nil {
		return nil, err
	}
	out = append(out, breaches...)

	return out, nil
}

func (s *Subsystem) fileComplaint(tick uint64, fee simevent.FeeCharged) (simevent.Event, error) {
	s.nextSeq++
	complaintID := fmt.Sprintf("comp-%d-%04d", tick, s.nextSeq)
	slaDue := tick + SLAWindowTicks

	if err := s.store.InsertComplaint(simstore.Complaint{
		ComplaintID: complaintID,
		RunID:       s.runID,
		CustomerID:  fee.CustomerID,
		TickOpened:  tick,
		Issue:       "overdraft_fee",
		Priority:    "standard",
		SLADueTick:  slaDue,
	}); err != nil {
		return nil, err
	}

	return simevent.ComplaintFiled{
		Tick:        tick,
		ComplaintID: complaintID,
		CustomerID:  fee.CustomerID,
		Issue:       "overdraft_fee",
		Priority:    "standard",
	}, nil
}

// satisfactionDelta maps a resolution code to its effect on customer
// satisfaction, carried over from original_source's resolution table
// (explanation_only: -0.02, monetary_relief: +0.15).
func satisfactionDelta(resolutionCode string) float64 {
	switch resolutionCode {
	case "explanation_only":
		return -0.02
	case "monetary_relief":
		return 0.15
	case "refund":
		return 0.10
	default:
		return 0.0
	}
}

func (s *Subsystem) resolveComplaint(tick uint64, req simevent.CloseComplaintRequested) (simevent.Event, error) {
	complaint, err := s.store.Complaint(s.runID, req.ComplaintID)
	if err != nil {
		return nil, err
	}
	if err := s.store.CloseComplaint(s.runID, req.ComplaintID, tick, req.ResolutionCode); err != nil {
		return nil, err
	}
	delta := satisfactionDelta(req.ResolutionCode)
	return simevent.ComplaintResolved{
		Tick:              tick,
		ComplaintID:       req.ComplaintID,
		CustomerID:        complaint.CustomerID,
		ResolutionCode:    req.ResolutionCode,
		SatisfactionDelta: delta,
	}, nil
}

func (s *Subsystem) checkSLABreaches(tick uint64) ([]simevent.Event, error) {
	open, err := s.store.OpenComplaints(s.runID)
	if err != nil {
		return nil, err
	}
	var out []simevent.Event
	for _, c := range open {
		if c.SLABreached || tick < c.SLADueTick {
			continue
		}
		if err := s.store.MarkSLABreached(s.runID, c.ComplaintID); err != nil {
			return nil, err
		}
		out = append(out, simevent.SLABreached{
			Tick:        tick,
			ComplaintID: c.ComplaintID,
			CustomerID:  c.CustomerID,
			DaysOverdue: int32(tick - c.SLADueTick),
		})
	}
	return out, nil
}
