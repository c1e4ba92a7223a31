// Package customersub implements the customer population reference
// subsystem (spec §5, slot 1). Grounded on original_source/core/tests/
// population.rs ("initial_population_generates_correct_count" expects
// exactly 50 customers after the first tick) since no customer_subsystem.rs
// survived into the retrieved source pack.
package customersub

import (
	"encoding/json"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simstore"
)

// InitialPopulation is the fixed customer count generated on a run's first
// tick (original_source: population.rs expects exactly 50).
const InitialPopulation = 50

var segments = []string{"mass", "affluent", "small_business"}

// Subsystem is the customer population reference subsystem.
type Subsystem struct {
	runID string
	store *simstore.Store
}

// New constructs the customer subsystem bound to a run's store.
func New(runID string, store *simstore.Store) *Subsystem {
	return &Subsystem{runID: runID, store: store}
}

func (s *Subsystem) Name() string { return "customer" }

// SnapshotFragment returns nil: every durable fact this subsystem tracks
// already lives in the customer table, so there is nothing beyond the
// store for a resumed run to restore (spec §9).
func (s *Subsystem) SnapshotFragment() (json.RawMessage, error) { return nil, nil }

// RestoreFragment is a no-op for the same reason.
func (s *Subsystem) RestoreFragment(json.RawMessage) error { return nil }

func (s *Subsystem) Update(tick uint64, _ []simevent.Event, rng *simrng.Stream) ([]simevent.Event, error) {
	if tick != 1 {
		return s.maybeChurn(tick, rng)
	}
	return s.onboardInitialPopulation(tick, rng)
}

func (s *Subsystem) onboardInitialPopulation(tick uint64, rng *simrng.Stream) ([]simevent.Event, error) {
	out := make([]simevent.Event, 0, InitialPopulation)
	for i := 0; i < InitialPopulation; i++ {
		customerID := fmt.Sprintf("cust-%04d", i)
		accountID := fmt.Sprintf("acct-%04d", i)
		segment := segments[rng.NextU64Below(uint64(len(segments)))]

		if err := s.store.UpsertCustomer(simstore.Customer{
			CustomerID:    customerID,
			RunID:         s.runID,
			Segment:       segment,
			Status:        "active",
			ChurnRisk:     rng.NextF64() * 0.3,
			OnboardedTick: tick,
		}); err != nil {
			return nil, err
		}
		// The account itself is opened by the transaction subsystem, which
		// owns the account table (spec §4.3): this event only carries the
		// terms the transaction subsystem needs to open it.
		out = append(out, simevent.CustomerOnboarded{
			Tick:           tick,
			CustomerID:     customerID,
			Segment:        segment,
			AccountID:      accountID,
			ProductID:      "basic_checking",
			InitialBalance: 500 + rng.NextF64()*1500,
		})
	}
	return out, nil
}

// churnCheckChance is the base per-tick probability that an active customer
// churns (each customer's ChurnRisk*0.01 is added to it), kept low so a run's population is stable over the ~1 year horizon
// spec §8's determinism scenarios run for.
const churnCheckChance = 0.0005

func (s *Subsystem) maybeChurn(tick uint64, rng *simrng.Stream) ([]simevent.Event, error) {
	active, err := s.store.ActiveCustomers(s.runID)
	if err != nil {
		return nil, err
	}
	var out []simevent.Event
	for _, c := range active {
		if !rng.Chance(churnCheckChance + c.ChurnRisk*0.01) {
			continue
		}
		c.Status = "churned"
		if err := s.store.UpsertCustomer(c); err != nil {
			return nil, err
		}
		out = append(out, simevent.CustomerChurned{
			Tick:       tick,
			CustomerID: c.CustomerID,
			Segment:    c.Segment,
			ChurnRisk:  c.ChurnRisk,
		})
	}
	return out, nil
}
