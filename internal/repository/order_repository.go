package repository

import (
	"context"
	"time"

	"food-order-service/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type OrderRepository interface {
	// Insert persists a new order with its items and initial history and
	// assigns ID and Version. A taken order number yields
	// domain.ErrDuplicateOrderNumber.
	Insert(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	FindByOrderNumber(ctx context.Context, number string) (*domain.Order, error)
	// Update writes the order only if the stored version still equals
	// expectedVersion, otherwise domain.ErrVersionConflict. History entries
	// not yet stored are appended; stored ones are never rewritten.
	Update(ctx context.Context, order *domain.Order, expectedVersion uint64) error
	List(ctx context.Context, filter ListFilter, page Page) ([]domain.Order, int64, error)
}

type ListFilter struct {
	CustomerID      *uint64
	Status          *domain.OrderStatus
	PaymentStatus   *domain.PaymentStatus
	DeliveryType    *domain.DeliveryType
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	IncludeArchived bool
}

type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}
