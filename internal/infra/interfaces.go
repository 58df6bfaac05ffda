package infra

import (
	"context"

	"food-order-service/internal/domain"
)

// Catalog resolves product snapshots. A missing product is a
// *domain.NotFoundError.
type Catalog interface {
	GetProduct(ctx context.Context, id uint64) (*domain.ProductSnapshot, error)
}

var (
	_ Catalog = (*ProductClient)(nil)
	_ Catalog = (*CachedCatalog)(nil)
)
