package services

import (
	"testing"
	"time"

	"food-order-service/internal/domain"
	"food-order-service/internal/inventory"
	"food-order-service/internal/mocks"
	"food-order-service/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

const (
	TestCustomerID = uint64(42)
	TestOrderID    = uint64(1)
	TestActor      = "customer:42"
	TestPhone      = "+919876543210"
)

type testEnv struct {
	svc     *OrderService
	repo    *mocks.MockOrderRepository
	stock   *mocks.MockStockRepository
	catalog *mocks.MockCatalog
	pub     *mocks.MockPublisher
	numbers *OrderNumberGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		repo:    new(mocks.MockOrderRepository),
		stock:   new(mocks.MockStockRepository),
		catalog: new(mocks.MockCatalog),
		pub:     new(mocks.MockPublisher),
	}
	env.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	clock := func() time.Time { return testNow }
	env.numbers = NewOrderNumberGenerator("ORD", clock)
	seq := 0
	env.numbers.intN = func(int) int {
		seq++
		return seq
	}

	engine, err := pricing.NewEngine(decimal.RequireFromString("0.18"))
	require.NoError(t, err)

	env.svc, err = NewOrderService(OrderServiceDeps{
		Orders:            env.repo,
		Catalog:           env.catalog,
		Inventory:         inventory.NewAdjustor(env.stock, nil),
		Pricing:           engine,
		Numbers:           env.numbers,
		Publisher:         env.pub,
		Clock:             clock,
		DeliveryFee:       1500,
		DeliveryBuffer:    30 * time.Minute,
		MaxNumberAttempts: 3,
	})
	require.NoError(t, err)
	return env
}

func CreateMockProduct(id uint64, name string, price int64, stock int64) *domain.ProductSnapshot {
	return &domain.ProductSnapshot{
		ID:              id,
		Name:            name,
		Price:           price,
		IsActive:        true,
		IsAvailable:     true,
		StockQuantity:   stock,
		IsStockTracked:  stock > 0,
		PreparationTime: 20,
	}
}

// CreateMockOrder returns a stored order in the given status with a history
// that walks the legal path to it.
func CreateMockOrder(t *testing.T, status domain.OrderStatus) *domain.Order {
	t.Helper()

	o := &domain.Order{
		ID:          TestOrderID,
		OrderNumber: "ORD-20260314-0001",
		CustomerID:  TestCustomerID,
		Items: []domain.LineItem{
			{ID: 1, ProductID: 1, Name: "Paneer Tikka", Quantity: 2, UnitPrice: 4750, TotalPrice: 9500, Status: domain.ItemPending, StockTracked: true},
			{ID: 2, ProductID: 2, Name: "Lassi", Quantity: 1, UnitPrice: 1500, TotalPrice: 1500, Status: domain.ItemPending},
		},
		Subtotal:      11000,
		TaxAmount:     1980,
		TotalAmount:   12980,
		Currency:      "INR",
		DeliveryType:  domain.DeliveryTypeDelivery,
		ContactPhone:  TestPhone,
		PaymentMethod: domain.PaymentMethodCard,
		PaymentStatus: domain.PaymentPending,
		StockReserved: true,
		IsActive:      true,
		Version:       3,
		CreatedAt:     testNow.Add(-time.Hour),
	}
	require.NoError(t, o.Begin(TestActor, reasonOrderPlaced, o.CreatedAt))

	path := map[domain.OrderStatus][]domain.OrderStatus{
		domain.StatusPending:        nil,
		domain.StatusConfirmed:      {domain.StatusConfirmed},
		domain.StatusPreparing:      {domain.StatusConfirmed, domain.StatusPreparing},
		domain.StatusReady:          {domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady},
		domain.StatusOutForDelivery: {domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady, domain.StatusOutForDelivery},
		domain.StatusDelivered:      {domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady, domain.StatusOutForDelivery, domain.StatusDelivered},
		domain.StatusCompleted:      {domain.StatusConfirmed, domain.StatusPreparing, domain.StatusReady, domain.StatusOutForDelivery, domain.StatusDelivered, domain.StatusCompleted},
		domain.StatusCancelled:      {domain.StatusCancelled},
	}
	steps, ok := path[status]
	require.True(t, ok, "no fixture path to %s", status)
	for i, s := range steps {
		require.NoError(t, o.Transition(s, "staff:1", "", o.CreatedAt.Add(time.Duration(i+1)*time.Minute)))
	}
	return o
}

func pickupInput(lines ...CartLine) CreateOrderInput {
	return CreateOrderInput{
		CustomerID:    TestCustomerID,
		Items:         lines,
		DeliveryType:  domain.DeliveryTypePickup,
		ContactPhone:  TestPhone,
		PaymentMethod: domain.PaymentMethodCash,
		Actor:         TestActor,
	}
}
