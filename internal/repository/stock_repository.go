package repository

import "context"

// StockRepository owns the per-product stock ledger. Decrement and Increment
// are single conditional statements, so concurrent callers never
// over-decrement a product.
type StockRepository interface {
	// Seed creates the ledger row with qty if the product has none yet.
	Seed(ctx context.Context, productID uint64, qty int64) error
	// Decrement removes qty if at least qty is on hand and returns the
	// remaining quantity, or a *domain.InsufficientStockError.
	Decrement(ctx context.Context, productID uint64, qty int64) (int64, error)
	Increment(ctx context.Context, productID uint64, qty int64) error
	Get(ctx context.Context, productID uint64) (int64, error)
}
