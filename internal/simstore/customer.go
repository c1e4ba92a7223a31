package simstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// Customer is a row owned exclusively by the customer subsystem (spec §4.3,
// §6). No other subsystem may write it.
type Customer struct {
	CustomerID    string
	RunID         string
	Segment       string
	Status        string
	ChurnRisk     float64
	OnboardedTick uint64
}

// UpsertCustomer inserts a new customer or updates an existing one.
func (s *Store) UpsertCustomer(c Customer) error {
	_, err := s.conn().Exec(
		`INSERT INTO customer (customer_id, run_id, segment, status, churn_risk, onboarded_tick)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, customer_id) DO UPDATE SET
		   segment = excluded.segment,
		   status = excluded.status,
		   churn_risk = excluded.churn_risk`,
		c.CustomerID, c.RunID, c.Segment, c.Status, c.ChurnRisk, c.OnboardedTick,
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("upsert customer %s: %w", c.CustomerID, err))
	}
	return nil
}

// Customer fetches a single customer row, or simerr.ErrNotFound if absent.
func (s *Store) Customer(runID, customerID string) (Customer, error) {
	var c Customer
	row := s.conn().QueryRow(
		`SELECT customer_id, run_id, segment, status, churn_risk, onboarded_tick
		   FROM customer WHERE run_id = ? AND customer_id = ?`,
		runID, customerID,
	)
	if err := row.Scan(&c.CustomerID, &c.RunID, &c.Segment, &c.Status, &c.ChurnRisk, &c.OnboardedTick); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, simerr.ErrNotFound
		}
		return Customer{}, simerr.Storage(fmt.Errorf("load customer %s: %w", customerID, err))
	}
	return c, nil
}

// ActiveCustomers returns every active customer for a run, ordered by
// customer_id for deterministic iteration.
func (s *Store) ActiveCustomers(runID string) ([]Customer, error) {
	rows, err := s.conn().Query(
		`SELECT customer_id, run_id, segment, status, churn_risk, onboarded_tick
		   FROM customer WHERE run_id = ? AND status = 'active'
		  ORDER BY customer_id ASC`,
		runID,
	)
	if err != nil {
		return nil, simerr.Storage(fmt.Errorf("active customers: %w", err))
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.CustomerID, &c.RunID, &c.Segment, &c.Status, &c.ChurnRisk, &c.OnboardedTick); err != nil {
			return nil, simerr.Storage(fmt.Errorf("active customers: %w", err))
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Storage(err)
	}
	return out, nil
}
