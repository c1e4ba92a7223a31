package simstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// Account is a row owned by the transaction subsystem (spec §4.3, §6).
type Account struct {
	AccountID  string
	RunID      string
	CustomerID string
	ProductID  string
	Balance    float64
	OpenTick   uint64
	Status     string
}

// UpsertAccount inserts a new account or updates its balance and status.
func (s *Store) UpsertAccount(a Account) error {
	_, err := s.conn().Exec(
		`INSERT INTO account (account_id, run_id, customer_id, product_id, balance, open_tick, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, account_id) DO UPDATE SET
		   balance = excluded.balance,
		   status = excluded.status`,
		a.AccountID, a.RunID, a.CustomerID, a.ProductID, a.Balance, a.OpenTick, a.Status,
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("upsert account %s: %w", a.AccountID, err))
	}
	return nil
}

// Account fetches a single account row, or simerr.ErrNotFound if absent.
func (s *Store) Account(runID, accountID string) (Account, error) {
	var a Account
	row := s.conn().QueryRow(
		`SELECT account_id, run_id, customer_id, product_id, balance, open_tick, status
		   FROM account WHERE run_id = ? AND account_id = ?`,
		runID, accountID,
	)
	if err := row.Scan(&a.AccountID, &a.RunID, &a.CustomerID, &a.ProductID, &a.Balance, &a.OpenTick, &a.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, simerr.ErrNotFound
		}
		return Account{}, simerr.Storage(fmt.Errorf("load account %s: %w", accountID, err))
	}
	return a, nil
}

// AccountsForCustomer returns every account a customer holds, ordered by
// account_id for deterministic iteration.
func (s *Store) AccountsForCustomer(runID, customerID string) ([]Account, error) {
	rows, err := s.conn().Query(
		`SELECT account_id, run_id, customer_id, product_id, balance, open_tick, status
		   FROM account WHERE run_id = ? AND customer_id = ?
		  ORDER BY account_id ASC`,
		runID, customerID,
	)
	if err != nil {
		return nil, simerr.Storage(fmt.Errorf("accounts for customer %s: %w", customerID, err))
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.AccountID, &a.RunID, &a.CustomerID, &a.ProductID, &a.Balance, &a.OpenTick, &a.Status); err != nil {
			return nil, simerr.Storage(fmt.Errorf("accounts for customer %s: %w", customerID, err))
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Storage(err)
	}
	return out, nil
}
