// Package pricingsub implements the fee-pricing reference subsystem (spec
// §5, slot 8): applies SetProductFee commands, rejecting changes above a
// fee type's hard limit and flagging a warning above its soft limit.
// Grounded on original_source/core/tests/pricing.rs (overdraft hard limit
// $35, soft limit $29, default $27.08) since no pricing_subsystem.rs
// survived into the retrieved source pack.
package pricingsub

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simstore"
)

// feeLimit names the soft and hard ceilings for a fee type. Exceeding the
// soft limit still applies the change but carries a warning; exceeding the
// hard limit rejects the change outright.
type feeLimit struct {
	defaultAmount float64
	soft          float64
	hard          float64
}

// DefaultOverdraftFeeAmount is the fee absent any player override, carried over
// from original_source's ProductState::default (basic_checking.overdraft_fee).
const DefaultOverdraftFeeAmount = 27.08

// limits is the fee-type limit table, carried over from original_source's
// ProductState defaults and the pricing.rs test constants.
var limits = map[string]feeLimit{
	"overdraft": {defaultAmount: DefaultOverdraftFeeAmount, soft: 29.00, hard: 35.00},
}

// DefaultOverdraftFee returns the overdraft fee in effect before any
// SetProductFee command has ever been applied for a run.
func DefaultOverdraftFee() float64 { return DefaultOverdraftFeeAmount }

// Subsystem is the fee-pricing reference subsystem.
type Subsystem struct {
	runID string
	store *simstore.Store
}

// New constructs the pricing subsystem bound to a run's store.
func New(runID string, store *simstore.Store) *Subsystem {
	return &Subsystem{runID: runID, store: store}
}

func (s *Subsystem) Name() string { return "pricing" }

// SnapshotFragment returns nil: fee amounts live entirely in the
// product_fee table, so a resumed run needs nothing restored here.
func (s *Subsystem) SnapshotFragment() (json.RawMessage, error) { return nil, nil }

// RestoreFragment is a no-op for the same reason.
func (s *Subsystem) RestoreFragment(json.RawMessage) error { return nil }

func (s *Subsystem) Update(tick uint64, inbound []simevent.Event, _ *simrng.Stream) ([]simevent.Event, error) {
	var out []simevent.Event
	for _, ev := range inbound {
		req, ok := ev.(simevent.SetProductFeeRequested)
		if !ok {
			continue
		}
		result, err := s.applyFeeChange(tick, req)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

func (s *Subsystem) applyFeeChange(tick uint64, req simevent.SetProductFeeRequested) (simevent.Event, error) {
	limit, known := limits[req.FeeType]
	oldValue, err := s.currentFee(req.ProductID, req.FeeType, limit, known)
	if err != nil {
		return nil, err
	}

	if known && req.Amount > limit.hard {
		return simevent.FeeChangeRejected{
			Tick:      tick,
			ProductID: req.ProductID,
			FeeType:   req.FeeType,
			Reason:    fmt.Sprintf("%.2f exceeds hard limit %.2f for %s", req.Amount, limit.hard, req.FeeType),
		}, nil
	}

	if err := s.store.UpsertProductFee(simstore.ProductFee{
		RunID:     s.runID,
		ProductID: req.ProductID,
		FeeType:   req.FeeType,
		Amount:    req.Amount,
	}); err != nil {
		return nil, err
	}

	changed := simevent.ProductFeeChanged{
		Tick:      tick,
		ProductID: req.ProductID,
		FeeType:   req.FeeType,
		OldValue:  oldValue,
		NewValue:  req.Amount,
	}
	if known && req.Amount > limit.soft {
		warning := fmt.Sprintf("%.2f exceeds soft limit %.2f for %s", req.Amount, limit.soft, req.FeeType)
		changed.Warning = &warning
	}
	return changed, nil
}

func (s *Subsystem) currentFee(productID, feeType string, limit feeLimit, known bool) (float64, error) {
	amount, err := s.store.ProductFeeAmount(s.runID, productID, feeType)
	if errors.Is(err, simerr.ErrNotFound) {
		if known {
			return limit.defaultAmount, nil
		}
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return amount, nil
}
