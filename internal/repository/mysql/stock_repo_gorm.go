package mysql

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"food-order-service/internal/domain"
	"food-order-service/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type stockRepo struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) repository.StockRepository {
	return &stockRepo{db: db}
}

func (r *stockRepo) Seed(ctx context.Context, productID uint64, qty int64) error {
	if qty < 0 {
		qty = 0
	}
	row := domain.ProductStock{ProductID: productID, Quantity: qty}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("seed stock for product %d: %w", productID, err)
	}
	return nil
}

// Decrement is a single guarded UPDATE: the row only changes when enough
// stock is on hand, so two racing orders cannot both take the last unit.
func (r *stockRepo) Decrement(ctx context.Context, productID uint64, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, domain.NewValidationError("quantity", "must be positive")
	}

	res := r.db.WithContext(ctx).Model(&domain.ProductStock{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return 0, fmt.Errorf("decrement stock for product %d: %w", productID, res.Error)
	}

	available, err := r.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return available, &domain.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	return available, nil
}

func (r *stockRepo) Increment(ctx context.Context, productID uint64, qty int64) error {
	if qty <= 0 {
		return domain.NewValidationError("quantity", "must be positive")
	}

	res := r.db.WithContext(ctx).Model(&domain.ProductStock{}).
		Where("product_id = ?", productID).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("increment stock for product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Resource: "stock", ID: strconv.FormatUint(productID, 10)}
	}
	return nil
}

func (r *stockRepo) Get(ctx context.Context, productID uint64) (int64, error) {
	var row domain.ProductStock
	err := r.db.WithContext(ctx).First(&row, "product_id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &domain.NotFoundError{Resource: "stock", ID: strconv.FormatUint(productID, 10)}
		}
		return 0, fmt.Errorf("get stock for product %d: %w", productID, err)
	}
	return row.Quantity, nil
}
