package store

import (
	"context"
	"sort"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ReserveLine is one stock decrement request. A nil VariantID addresses the
// product row's own stock; otherwise the variant row's.
type ReserveLine struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

// Reserve atomically checks and decrements stock for all lines in its own
// transaction. Either every line is available and decremented, or nothing is
// mutated and an InsufficientStockError lists every shortfall.
func (s *Store) Reserve(ctx context.Context, lines []ReserveLine) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := reserveLines(ctx, tx, lines); err != nil {
		return err
	}
	return tx.Commit()
}

// reserveLines locks and decrements the stock rows touched by lines inside
// the caller's transaction. Rows are locked in ascending (product, variant)
// order so two carts sharing items cannot deadlock. Every shortfall is
// collected before returning so the buyer sees all of them in one response.
func reserveLines(ctx context.Context, tx *sqlx.Tx, lines []ReserveLine) error {
	sorted := make([]ReserveLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return variantKey(sorted[i].VariantID) < variantKey(sorted[j].VariantID)
	})

	var shortfalls []models.StockShortfall
	for _, line := range sorted {
		var available int
		if line.VariantID == nil {
			err := tx.GetContext(ctx, &available,
				"SELECT stock FROM products WHERE id = $1 FOR UPDATE", line.ProductID)
			if err != nil {
				return err
			}
		} else {
			err := tx.GetContext(ctx, &available,
				"SELECT stock FROM product_variants WHERE id = $1 AND product_id = $2 FOR UPDATE",
				*line.VariantID, line.ProductID)
			if err != nil {
				return err
			}
		}

		if available < line.Quantity {
			shortfalls = append(shortfalls, models.StockShortfall{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: available,
			})
			continue
		}

		if line.VariantID == nil {
			_, err := tx.ExecContext(ctx,
				"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2",
				line.Quantity, line.ProductID)
			if err != nil {
				return err
			}
		} else {
			_, err := tx.ExecContext(ctx,
				"UPDATE product_variants SET stock = stock - $1, updated_at = NOW() WHERE id = $2",
				line.Quantity, *line.VariantID)
			if err != nil {
				return err
			}
		}
	}

	if len(shortfalls) > 0 {
		return &models.InsufficientStockError{Shortfalls: shortfalls}
	}
	return nil
}

// restockLines returns quantities to stock inside the caller's transaction.
// Used when an admin cancels an order, reversing the reservation.
func restockLines(ctx context.Context, tx *sqlx.Tx, lines []ReserveLine) error {
	for _, line := range lines {
		if line.VariantID == nil {
			_, err := tx.ExecContext(ctx,
				"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
				line.Quantity, line.ProductID)
			if err != nil {
				return err
			}
		} else {
			_, err := tx.ExecContext(ctx,
				"UPDATE product_variants SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
				line.Quantity, *line.VariantID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func variantKey(id *int64) int64 {
	if id == nil {
		return -1
	}
	return *id
}
