// Package subsystem defines the contract every domain subsystem implements
// (spec §3, §5). Subsystems are black boxes to the engine: it knows only
// their name, registration-order slot, and the Update signature. All
// domain logic — what macro, customer, transaction, complaint, and pricing
// actually do — lives in internal/subsystems/*, never here.
package subsystem

import (
	"encoding/json"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
)

// Subsystem is the single extension point the engine drives every tick:
// {name, update, snapshot_fragment} (spec §9). Update must be a pure
// function of (tick, inbound, rng) and the subsystem's own prior durable
// state: given the same three inputs and the same starting state, it must
// produce the same outbound events in the same order, every time (spec §3,
// §8).
type Subsystem interface {
	// Name is the stable identity used in persisted event rows and logs.
	// It must match the simrng.Slot this subsystem was registered under.
	Name() string

	// Update runs one tick of subsystem logic. inbound holds every event
	// and command-derived event routed to this subsystem for this tick, in
	// canonical order. The subsystem may read and write only its own rows
	// via the store handle it was constructed with (spec §4.3); it must
	// never call another subsystem's methods, inspect their in-memory
	// state, or query tables another subsystem owns — it may only observe
	// them through the events they emit. The returned events are appended
	// to the log in the order returned — that order is part of the
	// subsystem's determinism contract (spec §8 property 3).
	Update(tick uint64, inbound []simevent.Event, rng *simrng.Stream) ([]simevent.Event, error)

	// SnapshotFragment returns the subsystem's own serialized state, to be
	// folded into the engine's snapshot blob (spec §9, §4.5). A subsystem
	// whose entire durable state already lives in its own store rows may
	// return (nil, nil): nothing needs restoring beyond what the store
	// already holds.
	SnapshotFragment() (json.RawMessage, error)

	// RestoreFragment installs a previously captured fragment when an
	// engine resumes a run from a snapshot (spec §9, §4.5, §8 property 8).
	// Called once, after the subsystem has been registered and before any
	// tick runs. Implementations should treat a nil or empty fragment as
	// "nothing to restore" rather than an error, since a run with no prior
	// snapshot passes none.
	RestoreFragment(fragment json.RawMessage) error
}

// Registered pairs a Subsystem with the fixed slot that derives its RNG
// stream and fixes its position in registration order (spec §4.2, §3).
type Registered struct {
	Slot       simrng.Slot
	Subsystem  Subsystem
}

// Registry is the engine's ordered list of active subsystems for a run.
// Iteration order is registration order, which is part of the canonical
// tick ordering (spec §3: "subsystem outputs in (registration-order,
// output-order)").
type Registry struct {
	entries []Registered
	byName  map[string]Subsystem
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Subsystem)}
}

// Register appends a subsystem at the next registration slot. Order of
// calls to Register is the order the engine drives subsystems in every
// tick, so callers must register subsystems in a fixed, documented order
// (spec §5 reference ordering: macro, customer, transaction, complaint,
// pricing).
func (r *Registry) Register(slot simrng.Slot, s Subsystem) {
	r.entries = append(r.entries, Registered{Slot: slot, Subsystem: s})
	r.byName[s.Name()] = s
}

// Ordered returns the registered subsystems in registration order.
func (r *Registry) Ordered() []Registered {
	return r.entries
}

// ByName looks up a registered subsystem by name. Returns false if no
// subsystem with that name is active in this run.
func (r *Registry) ByName(name string) (Subsystem, bool) {
	s, ok := r.byName[name]
	return s, ok
}
