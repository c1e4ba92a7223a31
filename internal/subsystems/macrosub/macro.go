// Package macrosub implements the macroeconomic cycle reference subsystem
// (spec §5, slot 0), ported from original_source/core/src/macro_subsystem.rs.
package macrosub

import (
	"encoding/json"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
)

// UpdateInterval is the quarterly cadence the macro subsystem recomputes on.
const UpdateInterval = 90

// State is the macro subsystem's in-memory model, carried unchanged from
// the original MacroState.
type State struct {
	BaseRate        float64
	EconomicPhase   simevent.EconomicPhase
	FraudMultiplier float64
	phaseTicksLeft  uint64
}

func defaultState() State {
	return State{
		BaseRate:        0.05,
		EconomicPhase:   simevent.PhaseExpansion,
		FraudMultiplier: 1.0,
		phaseTicksLeft:  360,
	}
}

func (s *State) advancePhase(rng *simrng.Stream) {
	switch s.EconomicPhase {
	case simevent.PhaseExpansion:
		s.EconomicPhase = simevent.PhasePeak
	case simevent.PhasePeak:
		s.EconomicPhase = simevent.PhaseContraction
	case simevent.PhaseContraction:
		s.EconomicPhase = simevent.PhaseTrough
	default:
		s.EconomicPhase = simevent.PhaseExpansion
	}
	// Next phase lasts 4-8 quarters (360-720 ticks).
	quarters := 4 + rng.NextU64Below(5)
	s.phaseTicksLeft = quarters * 90
	s.FraudMultiplier = s.EconomicPhase.FraudMultiplier()
}

func (s *State) adjustRate(rng *simrng.Stream) {
	var direction float64
	switch s.EconomicPhase {
	case simevent.PhaseExpansion:
		direction = 0.5
	case simevent.PhasePeak:
		direction = 0.0
	default:
		direction = -0.5
	}
	roll := rng.NextF64() - 0.5 + direction*0.2
	delta := -0.0025
	if roll > 0.0 {
		delta = 0.0025
	}
	rate := s.BaseRate + delta
	if rate < 0.005 {
		rate = 0.005
	}
	if rate > 0.12 {
		rate = 0.12
	}
	s.BaseRate = rate
}

// Subsystem is the macro reference subsystem.
type Subsystem struct {
	state State
}

// New constructs the macro subsystem at its default initial state.
func New() *Subsystem {
	return &Subsystem{state: defaultState()}
}

func (s *Subsystem) Name() string { return "macro" }

func (s *Subsystem) Update(tick uint64, _ []simevent.Event, rng *simrng.Stream) ([]simevent.Event, error) {
	if tick%UpdateInterval != 0 {
		return nil, nil
	}

	if s.state.phaseTicksLeft <= UpdateInterval {
		s.state.phaseTicksLeft = 0
	} else {
		s.state.phaseTicksLeft -= UpdateInterval
	}

	if s.state.phaseTicksLeft == 0 {
		s.state.advancePhase(rng)
	} else {
		s.state.adjustRate(rng)
	}

	return []simevent.Event{simevent.MacroStateUpdated{
		Tick:            tick,
		BaseRate:        s.state.BaseRate,
		EconomicPhase:   s.state.EconomicPhase,
		FraudMultiplier: s.state.FraudMultiplier,
	}}, nil
}

// stateFragment is State's serializable form: the whole macro model lives
// only in memory between quarterly updates, so a resumed run needs it back
// verbatim (spec §9) instead of replaying 90+ ticks to rederive it.
type stateFragment struct {
	BaseRate        float64                `json:"base_rate"`
	EconomicPhase   simevent.EconomicPhase `json:"economic_phase"`
	FraudMultiplier float64                `json:"fraud_multiplier"`
	PhaseTicksLeft  uint64                 `json:"phase_ticks_left"`
}

func (s *Subsystem) SnapshotFragment() (json.RawMessage, error) {
	return json.Marshal(stateFragment{
		BaseRate:        s.state.BaseRate,
		EconomicPhase:   s.state.EconomicPhase,
		FraudMultiplier: s.state.FraudMultiplier,
		PhaseTicksLeft:  s.state.phaseTicksLeft,
	})
}

func (s *Subsystem) RestoreFragment(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var f stateFragment
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.state = State{
		BaseRate:        f.BaseRate,
		EconomicPhase:   f.EconomicPhase,
		FraudMultiplier: f.FraudMultiplier,
		phaseTicksLeft:  f.PhaseTicksLeft,
	}
	return nil
}
