package customersub

import (
	"testing"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simstore"
)

func newTestStore(t *testing.T) *simstore.Store {
	t.Helper()
	store, err := simstore.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.InsertRun(simstore.Run{RunID: "run-1", Seed: 42, Version: "0.1.0"}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	return store
}

func TestOnboardsExactlyInitialPopulation(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)
	rng := simrng.NewBank(42).ForSubsystem(simrng.SlotCustomer)

	out, err := sub.Update(1, nil, rng)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(out) != InitialPopulation {
		t.Fatalf("expected %d onboarding events, got %d", InitialPopulation, len(out))
	}

	active, err := store.ActiveCustomers("run-1")
	if err != nil {
		t.Fatalf("active customers: %v", err)
	}
	if len(active) != InitialPopulation {
		t.Fatalf("expected %d active customers persisted, got %d", InitialPopulation, len(active))
	}
}

func TestNoOnboardingAfterFirstTick(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)
	rng := simrng.NewBank(42).ForSubsystem(simrng.SlotCustomer)

	if _, err := sub.Update(1, nil, rng); err != nil {
		t.Fatalf("update tick 1: %v", err)
	}
	out, err := sub.Update(2, nil, rng)
	if err != nil {
		t.Fatalf("update tick 2: %v", err)
	}
	if len(out) > 1 {
		t.Fatalf("expected at most trace churn events on tick 2, not a second onboarding wave, got %d", len(out))
	}
	active, err := store.ActiveCustomers("run-1")
	if err != nil {
		t.Fatalf("active customers: %v", err)
	}
	if len(active) > InitialPopulation {
		t.Fatalf("expected population not to grow past %d, got %d", InitialPopulation, len(active))
	}
}
