package mysql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"food-order-service/internal/domain"
	"food-order-service/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// orderUpdateColumns are the only order columns a lifecycle write touches.
// Identity, pricing and delivery snapshots are written once at insert.
var orderUpdateColumns = []string{
	"status", "payment_status", "payment_details",
	"assigned_chef_id", "assigned_rider_id",
	"confirmed_at", "ready_at", "picked_up_at", "delivered_at", "completed_at", "cancelled_at",
	"cancellation_reason", "actual_delivery_time", "internal_notes",
	"rating", "issues", "stock_reserved", "is_active", "version", "updated_at",
}

type orderRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewOrderRepository(db *gorm.DB, logger *zap.Logger) repository.OrderRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderRepo{db: db, logger: logger}
}

func (r *orderRepo) Insert(ctx context.Context, order *domain.Order) error {
	order.Version = 1
	for i := range order.Items {
		order.Items[i].Position = i
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		resetIDs(order)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateOrderNumber
		}
		r.logger.Error("order insert failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		return fmt.Errorf("insert order: %w", err)
	}

	if order.ID == 0 {
		return errors.New("insert order: no id assigned")
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	err := r.withChildren(r.db.WithContext(ctx)).First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "order", ID: strconv.FormatUint(id, 10)}
		}
		return nil, fmt.Errorf("find order %d: %w", id, err)
	}
	return &o, nil
}

func (r *orderRepo) FindByOrderNumber(ctx context.Context, number string) (*domain.Order, error) {
	var o domain.Order
	err := r.withChildren(r.db.WithContext(ctx)).Where("order_number = ?", number).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "order", ID: number}
		}
		return nil, fmt.Errorf("find order %s: %w", number, err)
	}
	return &o, nil
}

func (r *orderRepo) Update(ctx context.Context, order *domain.Order, expectedVersion uint64) error {
	next := expectedVersion + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.Version = next
		res := tx.Model(order).
			Where("version = ?", expectedVersion).
			Select(orderUpdateColumns).
			Updates(order)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&domain.Order{}).Where("id = ?", order.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return &domain.NotFoundError{Resource: "order", ID: strconv.FormatUint(order.ID, 10)}
			}
			return domain.ErrVersionConflict
		}

		if err := appendHistory(tx, order); err != nil {
			return err
		}

		for _, it := range order.Items {
			err := tx.Model(&domain.LineItem{}).
				Where("id = ? AND order_id = ?", it.ID, order.ID).
				Updates(map[string]any{"status": it.Status, "actual_prep_minutes": it.ActualPrepMinutes}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		order.Version = expectedVersion
		if domain.IsExpected(err) {
			return err
		}
		return fmt.Errorf("update order %d: %w", order.ID, err)
	}
	return nil
}

// appendHistory inserts the entries past the ones already stored. Stored
// entries are never updated.
func appendHistory(tx *gorm.DB, order *domain.Order) error {
	var stored int64
	if err := tx.Model(&domain.StatusEvent{}).Where("order_id = ?", order.ID).Count(&stored).Error; err != nil {
		return err
	}
	if int(stored) > len(order.History) {
		return fmt.Errorf("order %d: history would shrink from %d to %d entries", order.ID, stored, len(order.History))
	}
	if int(stored) == len(order.History) {
		return nil
	}

	fresh := order.History[stored:]
	for i := range fresh {
		fresh[i].ID = 0
		fresh[i].OrderID = order.ID
	}
	return tx.Create(&fresh).Error
}

func (r *orderRepo) List(ctx context.Context, filter repository.ListFilter, page repository.Page) ([]domain.Order, int64, error) {
	page = page.Normalize()

	q := r.db.WithContext(ctx).Model(&domain.Order{})
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		q = q.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.DeliveryType != nil {
		q = q.Where("delivery_type = ?", *filter.DeliveryType)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at < ?", *filter.CreatedTo)
	}
	if !filter.IncludeArchived {
		q = q.Where("is_active = ?", true)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var out []domain.Order
	err := r.withChildren(q).
		Order("created_at DESC").Order("id DESC").
		Limit(page.Limit).Offset(page.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return out, total, nil
}

func (r *orderRepo) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") })
}

func resetIDs(order *domain.Order) {
	order.ID = 0
	order.Version = 0
	for i := range order.Items {
		order.Items[i].ID = 0
		order.Items[i].OrderID = 0
	}
	for i := range order.History {
		order.History[i].ID = 0
		order.History[i].OrderID = 0
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
