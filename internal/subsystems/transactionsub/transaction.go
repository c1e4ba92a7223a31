// Package transactionsub implements the account-activity reference
// subsystem (spec §5, slot 3): it owns the account table, opening accounts
// on behalf of newly onboarded customers, then applying per-tick spending
// against each open account, biweekly payroll credits, and overdraft fee
// charges when a debit would drive a balance negative. Grounded on
// original_source/core/tests/population.rs (Pareto-shaped transaction
// amounts, biweekly payroll, no activity on the onboarding tick) since no
// transaction_subsystem.rs survived into the retrieved source pack.
package transactionsub

import (
	"encoding/json"
	"sort"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simrng"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simstore"
)

// PayrollInterval is the biweekly cadence payroll credits land on.
const PayrollInterval = 14

// DefaultOverdraftFee is the overdraft fee charged absent any player
// SetProductFee override, carried over from original_source's
// ProductState::default (basic_checking.overdraft_fee = 27.08). It seeds
// the cached fee below, before any ProductFeeChanged event has ever been
// observed.
const DefaultOverdraftFee = 27.08

// openAccount is this subsystem's own record of an account it has opened,
// kept so every tick can iterate open accounts without querying the
// customer subsystem's tables (spec §4.3): account ownership is learned
// once, from CustomerOnboarded, and cached for the run.
type openAccount struct {
	AccountID  string `json:"account_id"`
	CustomerID string `json:"customer_id"`
}

// Subsystem is the account-activity reference subsystem.
type Subsystem struct {
	runID string
	store *simstore.Store

	// overdraftFee is this subsystem's own view of the current overdraft
	// fee, learned by observing pricing's ProductFeeChanged/
	// FeeChangeRejected events rather than reading pricing's product_fee
	// table directly (spec §4.3) — the same observe-don't-query pattern
	// complaintsub uses for transaction's own FeeCharged events.
	overdraftFee float64

	// accounts is this subsystem's cache of open accounts, learned from
	// customer's CustomerOnboarded/CustomerChurned events instead of
	// reading the customer table.
	accounts []openAccount
}

// New constructs the transaction subsystem bound to a run's store.
func New(runID string, store *simstore.Store) *Subsystem {
	return &Subsystem{runID: runID, store: store, overdraftFee: DefaultOverdraftFee}
}

func (s *Subsystem) Name() string { return "transaction" }

func (s *Subsystem) Update(tick uint64, inbound []simevent.Event, rng *simrng.Stream) ([]simevent.Event, error) {
	if err := s.observe(tick, inbound); err != nil {
		return nil, err
	}

	if tick <= 1 {
		// Tick 1 is the onboarding tick; accounts are opened above, but no
		// spending or payroll activity happens until the next tick.
		return nil, nil
	}

	var out []simevent.Event
	for _, ref := range s.sortedAccounts() {
		a, err := s.store.Account(s.runID, ref.AccountID)
		if err != nil {
			return nil, err
		}
		if a.Status != "open" {
			continue
		}

		if tick%PayrollInterval == 0 {
			a.Balance += rng.Pareto(1800, 2.2)
		}

		spend := rng.Pareto(15, 1.3)
		a.Balance -= spend

		if a.Balance < 0 {
			a.Balance -= s.overdraftFee
			if err := s.store.UpsertAccount(a); err != nil {
				return nil, err
			}
			out = append(out, simevent.FeeCharged{
				Tick:       tick,
				CustomerID: ref.CustomerID,
				AccountID:  a.AccountID,
				FeeType:    "overdraft",
				Amount:     s.overdraftFee,
			})
			continue
		}

		if err := s.store.UpsertAccount(a); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// observe folds this tick's inbound events into the subsystem's own cache
// and, for newly onboarded customers, opens the account the customer
// subsystem asked for (spec §4.3: account rows belong to transaction, so
// transaction is the one that writes the opening row).
func (s *Subsystem) observe(tick uint64, inbound []simevent.Event) error {
	for _, ev := range inbound {
		switch e := ev.(type) {
		case simevent.CustomerOnboarded:
			if err := s.store.UpsertAccount(simstore.Account{
				AccountID:  e.AccountID,
				RunID:      s.runID,
				CustomerID: e.CustomerID,
				ProductID:  e.ProductID,
				Balance:    e.InitialBalance,
				OpenTick:   tick,
				Status:     "open",
			}); err != nil {
				return err
			}
			s.accounts = append(s.accounts, openAccount{AccountID: e.AccountID, CustomerID: e.CustomerID})

		case simevent.CustomerChurned:
			s.removeAccountsFor(e.CustomerID)

		case simevent.ProductFeeChanged:
			if e.ProductID == "basic_checking" && e.FeeType == "overdraft" {
				s.overdraftFee = e.NewValue
			}

		case simevent.FeeChangeRejected:
			// A rejected change never takes effect; the cached fee is
			// already correct, nothing to update.
		}
	}
	return nil
}

func (s *Subsystem) removeAccountsFor(customerID string) {
	kept := s.accounts[:0]
	for _, a := range s.accounts {
		if a.CustomerID != customerID {
			kept = append(kept, a)
		}
	}
	s.accounts = kept
}

// sortedAccounts returns the cache in account-id order so iteration order
// is deterministic regardless of the order accounts were onboarded or
// churned in (spec §8 property 3).
func (s *Subsystem) sortedAccounts() []openAccount {
	out := make([]openAccount, len(s.accounts))
	copy(out, s.accounts)
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

// fragment is the subsystem's serializable cache: neither field is backed
// by a table, so a resumed run needs both restored verbatim (spec §9).
type fragment struct {
	OverdraftFee float64       `json:"overdraft_fee"`
	Accounts     []openAccount `json:"accounts"`
}

func (s *Subsystem) SnapshotFragment() (json.RawMessage, error) {
	return json.Marshal(fragment{OverdraftFee: s.overdraftFee, Accounts: s.accounts})
}

func (s *Subsystem) RestoreFragment(data json.RawMessage) error {
	if len(data) == 0 {
		return nil
	}
	var f fragment
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.overdraftFee = f.OverdraftFee
	s.accounts = f.Accounts
	return nil
}
