package simevent

import (
	"encoding/json"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simclock"
)

// Command is implemented by every player-issued command payload. Like
// Event, the variant set is append-only (spec §3): new command kinds may be
// added but existing ones may never be removed, renumbered, or have their
// semantics changed.
type Command interface {
	// Cmd returns the stable, snake_case wire discriminator.
	Cmd() string
}

// EncodeCommand marshals a Command to its canonical wire form, a single
// JSON object with the payload fields plus an injected "cmd" key.
func EncodeCommand(c Command) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("simevent: encode command %s: %w", c.Cmd(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("simevent: encode command %s: %w", c.Cmd(), err)
	}
	tag, err := json.Marshal(c.Cmd())
	if err != nil {
		return nil, err
	}
	fields["cmd"] = tag
	return json.Marshal(fields)
}

// DecodeCommand inspects the "cmd" discriminator and unmarshals into the
// matching concrete Command.
func DecodeCommand(payload []byte) (Command, error) {
	var head struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, fmt.Errorf("simevent: decode command: %w", err)
	}
	factory, ok := commandRegistry[head.Cmd]
	if !ok {
		return nil, fmt.Errorf("simevent: unknown command %q", head.Cmd)
	}
	return factory(payload)
}

var commandRegistry = map[string]func([]byte) (Command, error){}

func registerCommand[T Command](cmdName string) {
	commandRegistry[cmdName] = func(payload []byte) (Command, error) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("simevent: decode command %s: %w", cmdName, err)
		}
		return v, nil
	}
}

func init() {
	registerCommand[Pause]("pause")
	registerCommand[Resume]("resume")
	registerCommand[SetSpeed]("set_speed")
	registerCommand[CloseComplaint]("close_complaint")
	registerCommand[SetProductFee]("set_product_fee")
}

// ── Clock control ─────────────────────────────────────────────────────────

// Pause requests the engine stop advancing the clock after the current tick
// completes (spec §4.4: applied after the tick, not mid-tick).
type Pause struct{}

func (Pause) Cmd() string { return "pause" }

// Resume requests the engine resume advancing the clock.
type Resume struct{}

func (Resume) Cmd() string { return "resume" }

// SetSpeed requests a change to the advisory tick rate.
type SetSpeed struct {
	SimSpeed string `json:"speed"`
}

func (SetSpeed) Cmd() string { return "set_speed" }

// Speed parses the command's speed field.
func (s SetSpeed) Speed() (simclock.Speed, error) { return simclock.ParseSpeed(s.SimSpeed) }

// ── Phase 1C: complaint control ────────────────────────────────────────────

// CloseComplaint requests the complaint subsystem close an open case.
type CloseComplaint struct {
	ComplaintID    string `json:"complaint_id"`
	ResolutionCode string `json:"resolution_code"`
}

func (CloseComplaint) Cmd() string { return "close_complaint" }

// ── Phase 1D+: pricing control ─────────────────────────────────────────────

// SetProductFee requests the pricing subsystem change a product's fee.
type SetProductFee struct {
	ProductID string  `json:"product_id"`
	FeeType   string  `json:"fee_type"`
	Amount    float64 `json:"amount"`
}

func (SetProductFee) Cmd() string { return "set_product_fee" }

// ── Phase 2+ (reserved, not yet implemented) ──────────────────────────────
// SetRiskAppetite { parameter, value }
// CreateOffer { ... }

// QueuedCommand pairs a Command with its run, submission tick, and an
// opaque command id (spec §3). Commands queue between ticks and are
// consumed in FIFO order at the start of the tick following submission.
type QueuedCommand struct {
	RunID     string
	QueuedAt  uint64
	CommandID string
	Command   Command
}
