package pricingsub

import (
	"testing"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
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
	if err := store.InsertRun(simstore.Run{RunID: "run-1", Seed: 1, Version: "0.1.0"}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	return store
}

func TestFeeChangeWithinLimitsApplies(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)

	inbound := []simevent.Event{simevent.SetProductFeeRequested{
		Tick: 2, CommandID: "cmd-1", ProductID: "basic_checking", FeeType: "overdraft", Amount: 30.0,
	}}
	out, err := sub.Update(2, inbound, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	changed, ok := out[0].(simevent.ProductFeeChanged)
	if !ok {
		t.Fatalf("expected ProductFeeChanged, got %T", out[0])
	}
	if changed.NewValue != 30.0 || changed.OldValue != DefaultOverdraftFee() {
		t.Fatalf("unexpected change: %+v", changed)
	}
	if changed.Warning != nil {
		t.Fatalf("expected no warning below soft limit, got %v", *changed.Warning)
	}

	amount, err := store.ProductFeeAmount("run-1", "basic_checking", "overdraft")
	if err != nil {
		t.Fatalf("load fee: %v", err)
	}
	if amount != 30.0 {
		t.Fatalf("expected persisted fee 30.0, got %v", amount)
	}
}

func TestFeeChangeAboveHardLimitRejected(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)

	inbound := []simevent.Event{simevent.SetProductFeeRequested{
		Tick: 2, CommandID: "cmd-1", ProductID: "basic_checking", FeeType: "overdraft", Amount: 40.0,
	}}
	out, err := sub.Update(2, inbound, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one event, got %d", len(out))
	}
	if _, ok := out[0].(simevent.FeeChangeRejected); !ok {
		t.Fatalf("expected FeeChangeRejected, got %T", out[0])
	}
	if _, err := store.ProductFeeAmount("run-1", "basic_checking", "overdraft"); err == nil {
		t.Fatalf("expected no persisted fee row after rejection")
	}
}

func TestFeeChangeAboveSoftLimitWarns(t *testing.T) {
	store := newTestStore(t)
	sub := New("run-1", store)

	inbound := []simevent.Event{simevent.SetProductFeeRequested{
		Tick: 2, CommandID: "cmd-1", ProductID: "basic_checking", FeeType: "overdraft", Amount: 32.0,
	}}
	out, err := sub.Update(2, inbound, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	changed, ok := out[0].(simevent.ProductFeeChanged)
	if !ok {
		t.Fatalf("expected ProductFeeChanged, got %T", out[0])
	}
	if changed.Warning == nil {
		t.Fatalf("expected a warning above the soft limit")
	}
}
