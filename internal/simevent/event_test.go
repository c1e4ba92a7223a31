package simevent

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Event{
		TickStarted{Tick: 1},
		TickCompleted{Tick: 1},
		RunInitialized{Tick: 0, RunID: "run-1", Seed: 42},
		MacroStateUpdated{Tick: 90, BaseRate: 0.05, EconomicPhase: PhaseExpansion, FraudMultiplier: 1.0},
		PlayerCommandReceived{Tick: 2, CommandID: "cmd-1", CommandType: "set_product_fee"},
		CustomerOnboarded{Tick: 3, CustomerID: "cust-1", Segment: "mass", AccountID: "acct-1"},
		CustomerChurned{Tick: 4, CustomerID: "cust-1", Segment: "mass", ChurnRisk: 0.8},
		FeeCharged{Tick: 5, CustomerID: "cust-1", AccountID: "acct-1", FeeType: "overdraft", Amount: 30},
		ComplaintFiled{Tick: 6, ComplaintID: "comp-1", CustomerID: "cust-1", Issue: "fees", Priority: "high"},
		ComplaintResolved{Tick: 7, ComplaintID: "comp-1", CustomerID: "cust-1", ResolutionCode: "refund", SatisfactionDelta: 0.2},
		SLABreached{Tick: 8, ComplaintID: "comp-1", CustomerID: "cust-1", DaysOverdue: 3},
		ProductFeeChanged{Tick: 9, ProductID: "overdraft", FeeType: "overdraft", OldValue: 25, NewValue: 30},
		FeeChangeRejected{Tick: 10, ProductID: "overdraft", FeeType: "overdraft", Reason: "exceeds hard limit"},
		SetProductFeeRequested{Tick: 2, CommandID: "cmd-1", ProductID: "overdraft", FeeType: "overdraft", Amount: 30},
		CloseComplaintRequested{Tick: 2, CommandID: "cmd-2", ComplaintID: "comp-1", ResolutionCode: "refund"},
	}

	for _, want := range cases {
		encoded, err := Encode(want)
		if err != nil {
			t.Fatalf("encode %s: %v", want.Type(), err)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode %s: %v", want.Type(), err)
		}
		if got.Type() != want.Type() {
			t.Fatalf("type mismatch: got %s want %s", got.Type(), want.Type())
		}
		reencoded, err := Encode(got)
		if err != nil {
			t.Fatalf("re-encode %s: %v", want.Type(), err)
		}
		if string(reencoded) != string(encoded) {
			t.Fatalf("round trip mismatch for %s:\n  want %s\n  got  %s", want.Type(), encoded, reencoded)
		}
	}
}

func TestDecodeUnknownTypeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"not_a_real_event","tick":1}`))
	if err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

func TestEncodeIncludesTypeTag(t *testing.T) {
	encoded, err := Encode(TickStarted{Tick: 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "tick_started" {
		t.Fatalf("expected type tag tick_started, got %v", decoded["type"])
	}
}
