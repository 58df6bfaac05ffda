package mocks

import (
	"context"

	"food-order-service/internal/domain"
	"food-order-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

type MockStockRepository struct {
	mock.Mock
}

type MockCatalog struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockCatalog) GetProduct(ctx context.Context, productID uint64) (*domain.ProductSnapshot, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductSnapshot), args.Error(1)
}

func (m *MockOrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderNumber(ctx context.Context, number string) (*domain.Order, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order, expectedVersion uint64) error {
	args := m.Called(ctx, order, expectedVersion)
	return args.Error(0)
}

func (m *MockOrderRepository) List(ctx context.Context, filter repository.ListFilter, page repository.Page) ([]domain.Order, int64, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) Seed(ctx context.Context, productID uint64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *MockStockRepository) Decrement(ctx context.Context, productID uint64, qty int64) (int64, error) {
	args := m.Called(ctx, productID, qty)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStockRepository) Increment(ctx context.Context, productID uint64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *MockStockRepository) Get(ctx context.Context, productID uint64) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}
