package domain

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status.changed"
)

type OrderCreatedEvent struct {
	OrderID     uint64      `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	CustomerID  uint64      `json:"customerId"`
	Status      OrderStatus `json:"status"`
	TotalAmount int64       `json:"totalAmount"`
	Currency    string      `json:"currency"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type OrderStatusChangedEvent struct {
	OrderID        uint64        `json:"orderId"`
	OrderNumber    string        `json:"orderNumber"`
	PreviousStatus OrderStatus   `json:"previousStatus"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	Actor          string        `json:"actor,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	OccurredAt     time.Time     `json:"occurredAt"`
}

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		CreatedAt:   o.CreatedAt,
	}
}

// NewStatusChangedEvent describes the latest history entry of o.
func NewStatusChangedEvent(o *Order) OrderStatusChangedEvent {
	evt := OrderStatusChangedEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
	}
	if n := len(o.History); n > 0 {
		last := o.History[n-1]
		evt.PreviousStatus = last.From
		evt.Actor = last.Actor
		evt.Reason = last.Reason
		evt.OccurredAt = last.At
	}
	return evt
}
