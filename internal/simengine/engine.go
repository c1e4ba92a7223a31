// Package simengine owns the clock, the ordered subsystem registry, the
// pending command queue, and the per-tick protocol (spec §4.4, §5). It is
// the only package that may begin or end a store transaction, and the only
// package that calls Subsystem.Update.
package simengine

import (
	"fmt"
	"time"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simclock"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simlog"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simstore"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/subsystem"
)

// SnapshotInterval is the fixed cadence, in ticks, at which the engine
// writes a full state snapshot (spec §4.5).
const SnapshotInterval = 30

// EventSink receives every event the moment it is durably appended, used to
// feed internal/telemetry's live fan-out without the engine importing it
// directly (spec's engine/subsystem boundary extends to engine/telemetry:
// the engine never blocks a tick on a slow subscriber).
type EventSink interface {
	Publish(tick uint64, subsystemName string, event simevent.Event)
}

// SnapshotSink receives a copy of every snapshot the engine writes to the
// store, at the same cadence (spec §4.5). Used to mirror snapshots into an
// archive bundle without coupling the engine to any particular export format.
type SnapshotSink interface {
	PublishSnapshot(tick uint64, blob []byte)
}

// Engine drives one tick at a time for a single run (spec §4.4).
type Engine struct {
	runID        string
	store        *simstore.Store
	clock        *simclock.Clock
	bank         *simrng.Bank
	registry     *subsystem.Registry
	streams      map[string]*simrng.Stream
	queue        []simevent.QueuedCommand
	monitor      *TickMonitor
	log          *simlog.Logger
	sink         EventSink
	snapshotSink SnapshotSink
	nextCmd      uint64
}

// New constructs an engine for a fresh or resumed run. clock must already
// carry the run's current tick (simclock.New for a fresh run, or
// simclock.FromSnapshot for a resumed one).
func New(runID string, store *simstore.Store, clock *simclock.Clock, bank *simrng.Bank, log *simlog.Logger) *Engine {
	return &Engine{
		runID:    runID,
		store:    store,
		clock:    clock,
		bank:     bank,
		registry: subsystem.NewRegistry(),
		streams:  make(map[string]*simrng.Stream),
		monitor:  NewTickMonitor(),
		log:      log,
	}
}

// SetEventSink wires a telemetry fan-out target. Optional: a nil sink
// disables live publishing without affecting persistence.
func (e *Engine) SetEventSink(sink EventSink) { e.sink = sink }

// SetSnapshotSink wires an archive target that mirrors every snapshot the
// engine writes to the store. Optional: a nil sink disables mirroring
// without affecting persistence.
func (e *Engine) SetSnapshotSink(sink SnapshotSink) { e.snapshotSink = sink }

// AddSubsystem registers a subsystem at its fixed slot and derives its RNG
// stream exactly once, for the lifetime of the run (spec §4.2: "each
// subsystem owns its RNG stream for the lifetime of the run"). Call order
// is registration order, and registration order is part of the run's ABI
// (spec §5) — always register in the same order for a given set of active
// subsystems.
func (e *Engine) AddSubsystem(slot simrng.Slot, s subsystem.Subsystem) {
	e.registry.Register(slot, s)
	e.streams[s.Name()] = e.bank.ForSubsystem(slot)
}

// Clock exposes the engine's clock for read access (e.g. CLI status output).
func (e *Engine) Clock() *simclock.Clock { return e.clock }

// Monitor exposes the tick timing monitor.
func (e *Engine) Monitor() *TickMonitor { return e.monitor }

// SubmitCommand enqueues a player command for FIFO consumption starting at
// the tick following the current one (spec §3, §5). Returns the assigned
// command id.
func (e *Engine) SubmitCommand(cmd simevent.Command) string {
	e.nextCmd++
	id := fmt.Sprintf("cmd-%d", e.nextCmd)
	e.queue = append(e.queue, simevent.QueuedCommand{
		RunID:     e.runID,
		QueuedAt:  e.clock.CurrentTick,
		CommandID: id,
		Command:   cmd,
	})
	return id
}

// RunTicks advances the engine by up to n ticks, stopping early (without
// error) if the clock is paused. It returns the number of ticks actually
// advanced.
func (e *Engine) RunTicks(n uint64) (uint64, error) {
	var advanced uint64
	for i := uint64(0); i < n; i++ {
		if e.clock.Paused {
			break
		}
		start := time.Now()
		if err := e.Tick(); err != nil {
			return advanced, err
		}
		e.monitor.Observe(time.Since(start))
		advanced++
	}
	return advanced, nil
}

// Tick executes the per-tick protocol exactly once (spec §4.4):
//
//  1. advance the clock;
//  2. begin the tick's single store transaction;
//  3. append TickStarted;
//  4. drain the command queue into PlayerCommandReceived plus synthetic
//     per-subsystem request events, in FIFO order;
//  5. run every registered subsystem in registration order, each observing
//     every event appended so far this tick;
//  6. apply any clock-control commands drained this tick (pause/resume/
//     set-speed take effect after the tick, never mid-tick);
//  7. append TickCompleted;
//  8. at snapshot boundaries, persist a snapshot;
//  9. commit.
//
// Any error aborts the tick: the transaction rolls back and the clock is
// restored to its pre-advance value, so the run's durable state is exactly
// as it was before Tick was called (spec §5, §7).
func (e *Engine) Tick() error {
	if e.clock.Paused {
		return nil
	}

	preTick := e.clock.CurrentTick
	tick := e.clock.Advance()

	if err := e.runTickBody(tick); err != nil {
		e.clock.CurrentTick = preTick
		if rbErr := e.store.RollbackTick(); rbErr != nil {
			e.logError("rollback failed after tick error", tick, rbErr)
		}
		return err
	}
	return nil
}

func (e *Engine) runTickBody(tick uint64) error {
	if err := e.store.BeginTick(); err != nil {
		return err
	}

	if err := e.appendEngineEvent(tick, simevent.TickStarted{Tick: tick}); err != nil {
		return err
	}

	clockOps, err := e.drainCommands(tick)
	if err != nil {
		return err
	}

	for _, reg := range e.registry.Ordered() {
		name := reg.Subsystem.Name()
		inbound, err := e.inboundSoFar(tick)
		if err != nil {
			return err
		}
		outbound, err := reg.Subsystem.Update(tick, inbound, e.streams[name])
		if err != nil {
			return simerr.WrapSubsystem(name, err)
		}
		for _, ev := range outbound {
			if err := e.appendSubsystemEvent(tick, name, ev); err != nil {
				return err
			}
		}
	}

	//1.- Clock-control commands take effect only after every subsystem has
	// run this tick, never mid-tick (spec §4.4, REDESIGN FLAGS).
	for _, op := range clockOps {
		op(e.clock)
	}

	if err := e.appendEngineEvent(tick, simevent.TickCompleted{Tick: tick}); err != nil {
		return err
	}

	if tick%SnapshotInterval == 0 {
		if err := e.writeSnapshot(tick); err != nil {
			return err
		}
	}

	return e.store.CommitTick()
}

// drainCommands consumes the entire pending queue, appending
// PlayerCommandReceived plus any synthetic per-subsystem request event for
// each command, in FIFO order. It returns the clock-control operations to
// apply once every subsystem has run this tick.
func (e *Engine) drainCommands(tick uint64) ([]func(*simclock.Clock), error) {
	if len(e.queue) == 0 {
		return nil, nil
	}
	pending := e.queue
	e.queue = nil

	var clockOps []func(*simclock.Clock)
	for _, qc := range pending {
		if err := e.appendEngineEvent(tick, simevent.PlayerCommandReceived{
			Tick:        tick,
			CommandID:   qc.CommandID,
			CommandType: qc.Command.Cmd(),
		}); err != nil {
			return nil, err
		}

		synthetic, op, err := translateCommand(tick, qc)
		if err != nil {
			return nil, err
		}
		if synthetic != nil {
			if err := e.appendEngineEvent(tick, synthetic); err != nil {
				return nil, err
			}
		}
		if op != nil {
			clockOps = append(clockOps, op)
		}
	}
	return clockOps, nil
}

// translateCommand converts one queued command into the synthetic event
// destined for its owning subsystem, or a clock operation if the command
// addresses the engine itself (spec §4.4).
func translateCommand(tick uint64, qc simevent.QueuedCommand) (simevent.Event, func(*simclock.Clock), error) {
	switch cmd := qc.Command.(type) {
	case simevent.Pause:
		return nil, func(c *simclock.Clock) { c.Pause() }, nil
	case simevent.Resume:
		return nil, func(c *simclock.Clock) { c.Resume() }, nil
	case simevent.SetSpeed:
		speed, err := cmd.Speed()
		if err != nil {
			return nil, nil, err
		}
		return nil, func(c *simclock.Clock) { c.SetSpeed(speed) }, nil
	case simevent.SetProductFee:
		return simevent.SetProductFeeRequested{
			Tick:      tick,
			CommandID: qc.CommandID,
			ProductID: cmd.ProductID,
			FeeType:   cmd.FeeType,
			Amount:    cmd.Amount,
		}, nil, nil
	case simevent.CloseComplaint:
		return simevent.CloseComplaintRequested{
			Tick:           tick,
			CommandID:      qc.CommandID,
			ComplaintID:    cmd.ComplaintID,
			ResolutionCode: cmd.ResolutionCode,
		}, nil, nil
	default:
		return nil, nil, simerr.NewSubsystemNotFound(qc.Command.Cmd())
	}
}

// inboundSoFar fetches every event appended this tick, in canonical id
// order, decoded back into simevent.Event values (spec §4.4 step 5a).
func (e *Engine) inboundSoFar(tick uint64) ([]simevent.Event, error) {
	rows, err := e.store.EventsForTick(e.runID, tick)
	if err != nil {
		return nil, err
	}
	out := make([]simevent.Event, 0, len(rows))
	for _, row := range rows {
		ev, err := simevent.Decode([]byte(row.Payload))
		if err != nil {
			return nil, simerr.Encoding(err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (e *Engine) appendEngineEvent(tick uint64, ev simevent.Event) error {
	return e.appendSubsystemEvent(tick, "engine", ev)
}

func (e *Engine) appendSubsystemEvent(tick uint64, subsystemName string, ev simevent.Event) error {
	payload, err := simevent.Encode(ev)
	if err != nil {
		return simerr.Encoding(err)
	}
	if _, err := e.store.AppendEvent(e.runID, tick, subsystemName, ev.Type(), payload, time.Now().Unix()); err != nil {
		return err
	}
	if e.sink != nil {
		e.sink.Publish(tick, subsystemName, ev)
	}
	return nil
}

func (e *Engine) writeSnapshot(tick uint64) error {
	snap, err := e.ToSnapshot()
	if err != nil {
		return err
	}
	blob, err := snap.MarshalCanonical()
	if err != nil {
		return err
	}
	if err := e.store.SaveSnapshot(e.runID, tick, blob); err != nil {
		return err
	}
	if e.snapshotSink != nil {
		e.snapshotSink.PublishSnapshot(tick, blob)
	}
	return nil
}

func (e *Engine) logError(msg string, tick uint64, err error) {
	if e.log == nil {
		return
	}
	e.log.Error(msg, simlog.Uint64("tick", tick), simlog.Err(err))
}
