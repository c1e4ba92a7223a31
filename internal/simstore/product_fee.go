package simstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simerr"
)

// ProductFee is a row owned exclusively by the pricing subsystem (spec
// §4.3, §6). The transaction subsystem neither reads nor writes it; it
// learns the current fee from ProductFeeChanged events.
type ProductFee struct {
	RunID     string
	ProductID string
	FeeType   string
	Amount    float64
}

// UpsertProductFee inserts or updates a product's fee amount. Called by the
// pricing subsystem when it applies an accepted SetProductFee command
// (spec §5, Scenario D/E).
func (s *Store) UpsertProductFee(f ProductFee) error {
	_, err := s.conn().Exec(
		`INSERT INTO product_fee (run_id, product_id, fee_type, amount)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id, product_id, fee_type) DO UPDATE SET amount = excluded.amount`,
		f.RunID, f.ProductID, f.FeeType, f.Amount,
	)
	if err != nil {
		return simerr.Storage(fmt.Errorf("upsert product fee %s/%s: %w", f.ProductID, f.FeeType, err))
	}
	return nil
}

// ProductFeeAmount fetches the current fee amount, or simerr.ErrNotFound if
// no fee of that type has ever been set for the product.
func (s *Store) ProductFeeAmount(runID, productID, feeType string) (float64, error) {
	var amount float64
	row := s.conn().QueryRow(
		`SELECT amount FROM product_fee WHERE run_id = ? AND product_id = ? AND fee_type = ?`,
		runID, productID, feeType,
	)
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, simerr.ErrNotFound
		}
		return 0, simerr.Storage(fmt.Errorf("load product fee %s/%s: %w", productID, feeType, err))
	}
	return amount, nil
}
