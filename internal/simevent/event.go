// Package simevent defines the event bus vocabulary: every occurrence a
// subsystem or the engine itself may emit during a tick (spec §3, §9).
//
// RULE: subsystems communicate ONLY through events. A subsystem may never
// call another subsystem's functions directly, and may never read another
// subsystem's in-memory state.
//
// Event is a tagged sum type on the wire: every concrete event marshals to
// a single JSON object carrying a "type" discriminator plus its payload
// fields inline, exactly as spec §6 requires ("a tag field (type for
// events, cmd for commands) plus payload"). The variant set is append-only
// — existing types are never removed, renumbered, or reinterpreted, because
// persisted logs must stay replayable (spec §3).
package simevent

import (
	"encoding/json"
	"fmt"
)

// Event is implemented by every concrete event payload.
type Event interface {
	// Type returns the stable, snake_case wire discriminator.
	Type() string
	// TickNumber returns the tick at which the event was emitted.
	TickNumber() uint64
}

// Encode marshals an Event to its canonical wire form: a single JSON object
// with the payload's own fields plus an injected "type" key.
func Encode(e Event) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("simevent: encode %s: %w", e.Type(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("simevent: encode %s: %w", e.Type(), err)
	}
	typeTag, err := json.Marshal(e.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = typeTag
	return json.Marshal(fields)
}

// Decode inspects the "type" discriminator and unmarshals into the matching
// concrete Event. Unknown fields in the payload are ignored for forward
// compatibility (spec §6); an unknown "type" is an encoding error because
// the core itself only ever emits the documented set.
func Decode(payload []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("simevent: decode: %w", err)
	}
	factory, ok := registry[head.Type]
	if !ok {
		return nil, fmt.Errorf("simevent: unknown event type %q", head.Type)
	}
	return factory(payload)
}

var registry = map[string]func([]byte) (Event, error){}

func register[T Event](typeName string) {
	registry[typeName] = func(payload []byte) (Event, error) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("simevent: decode %s: %w", typeName, err)
		}
		return v, nil
	}
}

func init() {
	register[TickStarted]("tick_started")
	register[TickCompleted]("tick_completed")
	register[RunInitialized]("run_initialized")
	register[MacroStateUpdated]("macro_state_updated")
	register[PlayerCommandReceived]("player_command_received")
	register[CustomerOnboarded]("customer_onboarded")
	register[CustomerChurned]("customer_churned")
	register[FeeCharged]("fee_charged")
	register[ComplaintFiled]("complaint_filed")
	register[ComplaintResolved]("complaint_resolved")
	register[SLABreached]("sla_breached")
	register[ProductFeeChanged]("product_fee_changed")
	register[FeeChangeRejected]("fee_change_rejected")
	register[SetProductFeeRequested]("set_product_fee_requested")
	register[CloseComplaintRequested]("close_complaint_requested")
}

// ── Engine events ──────────────────────────────────────────────────────

// TickStarted opens every tick, attributed to "engine".
type TickStarted struct {
	Tick uint64 `json:"tick"`
}

func (e TickStarted) Type() string       { return "tick_started" }
func (e TickStarted) TickNumber() uint64 { return e.Tick }

// TickCompleted closes every tick, attributed to "engine".
type TickCompleted struct {
	Tick uint64 `json:"tick"`
}

func (e TickCompleted) Type() string       { return "tick_completed" }
func (e TickCompleted) TickNumber() uint64 { return e.Tick }

// RunInitialized marks the creation of a run.
type RunInitialized struct {
	Tick  uint64 `json:"tick"`
	RunID string `json:"run_id"`
	Seed  uint64 `json:"seed"`
}

func (e RunInitialized) Type() string       { return "run_initialized" }
func (e RunInitialized) TickNumber() uint64 { return e.Tick }

// PlayerCommandReceived is emitted by the engine when it drains a queued
// command at the start of a tick, before any subsystem runs.
type PlayerCommandReceived struct {
	Tick        uint64 `json:"tick"`
	CommandID   string `json:"command_id"`
	CommandType string `json:"command_type"`
}

func (e PlayerCommandReceived) Type() string       { return "player_command_received" }
func (e PlayerCommandReceived) TickNumber() uint64 { return e.Tick }

// ── Macro subsystem events ───────────────────────────────────────────────

// EconomicPhase is the macroeconomic cycle stage, carried over from
// core/src/event.rs unchanged.
type EconomicPhase string

const (
	PhaseExpansion   EconomicPhase = "expansion"
	PhasePeak        EconomicPhase = "peak"
	PhaseContraction EconomicPhase = "contraction"
	PhaseTrough      EconomicPhase = "trough"
)

// FraudMultiplier returns the fraud-rate multiplier for the phase, carried
// over unchanged from EconomicPhase::fraud_multiplier in the original.
func (p EconomicPhase) FraudMultiplier() float64 {
	switch p {
	case PhasePeak:
		return 1.1
	case PhaseContraction:
		return 1.35
	case PhaseTrough:
		return 1.6
	default:
		return 1.0
	}
}

// MacroStateUpdated is emitted quarterly by the macro subsystem.
type MacroStateUpdated struct {
	Tick             uint64        `json:"tick"`
	BaseRate         float64       `json:"base_rate"`
	EconomicPhase    EconomicPhase `json:"economic_phase"`
	FraudMultiplier  float64       `json:"fraud_multiplier"`
}

func (e MacroStateUpdated) Type() string       { return "macro_state_updated" }
func (e MacroStateUpdated) TickNumber() uint64 { return e.Tick }

// ── Customer / transaction events ────────────────────────────────────────

// CustomerOnboarded is emitted when the customer subsystem generates a new
// customer and requests an account be opened for them. The transaction
// subsystem, which owns the account table, opens the account itself on
// observing this event rather than the customer subsystem writing it
// directly (spec §4.3 subsystem isolation).
type CustomerOnboarded struct {
	Tick            uint64  `json:"tick"`
	CustomerID      string  `json:"customer_id"`
	Segment         string  `json:"segment"`
	AccountID       string  `json:"account_id"`
	ProductID       string  `json:"product_id"`
	InitialBalance  float64 `json:"initial_balance"`
}

func (e CustomerOnboarded) Type() string       { return "customer_onboarded" }
func (e CustomerOnboarded) TickNumber() uint64 { return e.Tick }

// CustomerChurned is emitted when a customer closes their relationship.
type CustomerChurned struct {
	Tick       uint64  `json:"tick"`
	CustomerID string  `json:"customer_id"`
	Segment    string  `json:"segment"`
	ChurnRisk  float64 `json:"churn_risk"`
}

func (e CustomerChurned) Type() string       { return "customer_churned" }
func (e CustomerChurned) TickNumber() uint64 { return e.Tick }

// FeeCharged is emitted by the transaction subsystem whenever an account
// incurs a fee. The transaction subsystem charges only overdraft fees; the
// other FeeType values are part of the wire vocabulary only.
type FeeCharged struct {
	Tick       uint64  `json:"tick"`
	CustomerID string  `json:"customer_id"`
	AccountID  string  `json:"account_id"`
	FeeType    string  `json:"fee_type"` // "overdraft" | "nsf" | "atm"
	Amount     float64 `json:"amount"`
}

func (e FeeCharged) Type() string       { return "fee_charged" }
func (e FeeCharged) TickNumber() uint64 { return e.Tick }

// ── Complaint events ──────────────────────────────────────────────────────

// ComplaintFiled is emitted when the complaint subsystem opens a new case.
type ComplaintFiled struct {
	Tick        uint64 `json:"tick"`
	ComplaintID string `json:"complaint_id"`
	CustomerID  string `json:"customer_id"`
	Issue       string `json:"issue"`
	Priority    string `json:"priority"`
}

func (e ComplaintFiled) Type() string       { return "complaint_filed" }
func (e ComplaintFiled) TickNumber() uint64 { return e.Tick }

// ComplaintResolved is emitted when a close_complaint command closes an
// open complaint; complaints are not resolved by any internal draw.
type ComplaintResolved struct {
	Tick               uint64  `json:"tick"`
	ComplaintID        string  `json:"complaint_id"`
	CustomerID         string  `json:"customer_id"`
	ResolutionCode     string  `json:"resolution_code"`
	SatisfactionDelta  float64 `json:"satisfaction_delta"`
}

func (e ComplaintResolved) Type() string       { return "complaint_resolved" }
func (e ComplaintResolved) TickNumber() uint64 { return e.Tick }

// SLABreached is emitted once when a complaint passes its SLA due tick
// while still open.
type SLABreached struct {
	Tick        uint64 `json:"tick"`
	ComplaintID string `json:"complaint_id"`
	CustomerID  string `json:"customer_id"`
	DaysOverdue int32  `json:"days_overdue"`
}

func (e SLABreached) Type() string       { return "sla_breached" }
func (e SLABreached) TickNumber() uint64 { return e.Tick }

// ── Pricing events ────────────────────────────────────────────────────────

// ProductFeeChanged is emitted when the pricing subsystem accepts a
// SetProductFee command.
type ProductFeeChanged struct {
	Tick      uint64  `json:"tick"`
	ProductID string  `json:"product_id"`
	FeeType   string  `json:"fee_type"`
	OldValue  float64 `json:"old_value"`
	NewValue  float64 `json:"new_value"`
	Warning   *string `json:"warning,omitempty"`
}

func (e ProductFeeChanged) Type() string       { return "product_fee_changed" }
func (e ProductFeeChanged) TickNumber() uint64 { return e.Tick }

// FeeChangeRejected is emitted when a SetProductFee command exceeds the
// hard limit for its fee type. This is a player-command validation error
// (spec §7): not an engine error, the tick keeps running.
type FeeChangeRejected struct {
	Tick      uint64 `json:"tick"`
	ProductID string `json:"product_id"`
	FeeType   string `json:"fee_type"`
	Reason    string `json:"reason"`
}

func (e FeeChangeRejected) Type() string       { return "fee_change_rejected" }
func (e FeeChangeRejected) TickNumber() uint64 { return e.Tick }

// ── Synthetic command-request events ─────────────────────────────────────
//
// The engine never hands a Command to a subsystem directly (spec §4.4):
// draining the queue translates each Command into one or more synthetic
// events destined for the subsystem that owns it. These events occupy the
// same "player-command events" slot of the canonical tick order as
// PlayerCommandReceived (spec §5).

// SetProductFeeRequested is the synthetic event the engine emits to the
// pricing subsystem when it drains a SetProductFee command.
type SetProductFeeRequested struct {
	Tick      uint64  `json:"tick"`
	CommandID string  `json:"command_id"`
	ProductID string  `json:"product_id"`
	FeeType   string  `json:"fee_type"`
	Amount    float64 `json:"amount"`
}

func (e SetProductFeeRequested) Type() string       { return "set_product_fee_requested" }
func (e SetProductFeeRequested) TickNumber() uint64 { return e.Tick }

// CloseComplaintRequested is the synthetic event the engine emits to the
// complaint subsystem when it drains a CloseComplaint command.
type CloseComplaintRequested struct {
	Tick           uint64 `json:"tick"`
	CommandID      string `json:"command_id"`
	ComplaintID    string `json:"complaint_id"`
	ResolutionCode string `json:"resolution_code"`
}

func (e CloseComplaintRequested) Type() string       { return "close_complaint_requested" }
func (e CloseComplaintRequested) TickNumber() uint64 { return e.Tick }
