package transactionsub

import (
	"testing"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
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
	if err := store.InsertRun(simstore.Run{RunID: "run-1", Seed: 99, Version: "0.1.0"}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	return store
}

// onboardingEvent is what the customer subsystem actually emits at
// onboarding: transaction owns the account table and opens the row itself
// on observing it (spec §4.3).
func onboardingEvent(tick uint64) simevent.CustomerOnboarded {
	return simevent.CustomerOnboarded{
		Tick:           tick,
		CustomerID:     "cust-1",
		Segment:        "mass",
		AccountID:      "acct-1",
		ProductID:      "basic_checking",
		InitialBalance: 100,
	}
}

func TestNoActivityOnOnboardingTick(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)
	rng := simrng.NewBank(99).ForSubsystem(simrng.SlotTransaction)

	out, err := sub.Update(1, []simevent.Event{onboardingEvent(1)}, rng)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no activity on the onboarding tick, got %d events", len(out))
	}

	a, err := store.Account("run-1", "acct-1")
	if err != nil {
		t.Fatalf("expected the account to be opened on the onboarding tick: %v", err)
	}
	if a.Balance != 100 {
		t.Fatalf("expected opening balance 100, got %v", a.Balance)
	}
}

func TestActivityGeneratedOnSubsequentTicks(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)
	rng := simrng.NewBank(99).ForSubsystem(simrng.SlotTransaction)

	if _, err := sub.Update(1, []simevent.Event{onboardingEvent(1)}, rng); err != nil {
		t.Fatalf("update tick 1: %v", err)
	}
	a, err := store.Account("run-1", "acct-1")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	initialBalance := a.Balance

	if _, err := sub.Update(2, nil, rng); err != nil {
		t.Fatalf("update tick 2: %v", err)
	}
	a, err = store.Account("run-1", "acct-1")
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if a.Balance == initialBalance {
		t.Fatalf("expected account balance to change after a transaction tick")
	}
}

func TestOverdraftFeeTrackedFromProductFeeChanged(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)
	rng := simrng.NewBank(99).ForSubsystem(simrng.SlotTransaction)

	inbound := []simevent.Event{
		onboardingEvent(1),
		simevent.ProductFeeChanged{Tick: 1, ProductID: "basic_checking", FeeType: "overdraft", OldValue: DefaultOverdraftFee, NewValue: 12.5},
	}
	if _, err := sub.Update(1, inbound, rng); err != nil {
		t.Fatalf("update tick 1: %v", err)
	}
	if sub.overdraftFee != 12.5 {
		t.Fatalf("expected cached overdraft fee 12.5, got %v", sub.overdraftFee)
	}
}

func TestChurnedCustomerAccountDropsFromCache(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)
	rng := simrng.NewBank(99).ForSubsystem(simrng.SlotTransaction)

	if _, err := sub.Update(1, []simevent.Event{onboardingEvent(1)}, rng); err != nil {
		t.Fatalf("update tick 1: %v", err)
	}
	if _, err := sub.Update(2, []simevent.Event{
		simevent.CustomerChurned{Tick: 2, CustomerID: "cust-1", Segment: "mass"},
	}, rng); err != nil {
		t.Fatalf("update tick 2: %v", err)
	}
	if len(sub.accounts) != 0 {
		t.Fatalf("expected churned customer's account to drop from the cache, got %d entries", len(sub.accounts))
	}
}

func TestFragmentRoundTripsAccountsAndFee(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)
	rng := simrng.NewBank(99).ForSubsystem(simrng.SlotTransaction)

	if _, err := sub.Update(1, []simevent.Event{
		onboardingEvent(1),
		simevent.ProductFeeChanged{Tick: 1, ProductID: "basic_checking", FeeType: "overdraft", OldValue: DefaultOverdraftFee, NewValue: 30},
	}, rng); err != nil {
		t.Fatalf("update tick 1: %v", err)
	}

	blob, err := sub.SnapshotFragment()
	if err != nil {
		t.Fatalf("snapshot fragment: %v", err)
	}

	restored := New("run-1", store)
	if err := restored.RestoreFragment(blob); err != nil {
		t.Fatalf("restore fragment: %v", err)
	}
	if restored.overdraftFee != 30 {
		t.Fatalf("expected restored overdraft fee 30, got %v", restored.overdraftFee)
	}
	if len(restored.accounts) != 1 || restored.accounts[0].AccountID != "acct-1" {
		t.Fatalf("expected restored account cache to contain acct-1, got %+v", restored.accounts)
	}
}
