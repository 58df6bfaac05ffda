package domain

import (
	"fmt"
	"slices"
	"time"
)

const ReasonPaymentReceived = "payment received"

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady},
	StatusReady:          {StatusOutForDelivery, StatusCompleted},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {StatusCompleted, StatusRefunded},
	StatusCompleted:      nil,
	StatusCancelled:      nil,
	StatusRefunded:       nil,
}

var cancellableStatuses = []OrderStatus{StatusPending, StatusConfirmed}

func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// CanTransitionTo applies the transition table and then the fulfilment
// rules: only delivery orders go out with a rider, and they are never handed
// over at the counter.
func (o *Order) CanTransitionTo(to OrderStatus) bool {
	if o.Status.Terminal() || !CanTransition(o.Status, to) {
		return false
	}
	if o.Status == StatusReady {
		isDelivery := o.DeliveryType == DeliveryTypeDelivery
		switch to {
		case StatusOutForDelivery:
			return isDelivery
		case StatusCompleted:
			return !isDelivery
		}
	}
	return true
}

func (o *Order) CanBeCancelled() bool {
	return slices.Contains(cancellableStatuses, o.Status)
}

func (o *Order) CanBeRefunded() bool {
	return (o.Status == StatusDelivered || o.Status == StatusCompleted) && o.PaymentStatus == PaymentPaid
}

// Begin records the creation entry of the status history. It is only valid
// on an order without history.
func (o *Order) Begin(actor, reason string, at time.Time) error {
	if len(o.History) > 0 {
		return fmt.Errorf("order %s already has status history", o.OrderNumber)
	}
	o.Status = StatusPending
	o.History = append(o.History, StatusEvent{
		Seq:    1,
		Status: StatusPending,
		At:     at,
		Actor:  actor,
		Reason: reason,
	})
	return nil
}

// Transition moves the order along a legal edge, appends a history entry and
// stamps the lifecycle timestamp of the target status.
func (o *Order) Transition(to OrderStatus, actor, reason string, at time.Time) error {
	from := o.Status
	if !o.CanTransitionTo(to) {
		return &IllegalTransitionError{From: from, To: to}
	}

	if n := len(o.History); n > 0 && at.Before(o.History[n-1].At) {
		at = o.History[n-1].At
	}

	o.Status = to
	o.History = append(o.History, StatusEvent{
		Seq:    len(o.History) + 1,
		Status: to,
		From:   from,
		At:     at,
		Actor:  actor,
		Reason: reason,
	})
	o.stampLifecycle(to, at)
	return nil
}

func (o *Order) stampLifecycle(status OrderStatus, at time.Time) {
	t := at
	switch status {
	case StatusConfirmed:
		o.ConfirmedAt = &t
	case StatusReady:
		o.ReadyAt = &t
	case StatusOutForDelivery:
		o.PickedUpAt = &t
	case StatusDelivered:
		o.DeliveredAt = &t
		o.ActualDeliveryTime = &t
	case StatusCompleted:
		o.CompletedAt = &t
		if o.PickedUpAt == nil {
			o.PickedUpAt = &t
		}
	case StatusCancelled:
		o.CancelledAt = &t
	}
}

// ApplyPayment records a payment status change. A successful payment on a
// pending order confirms it.
func (o *Order) ApplyPayment(status PaymentStatus, details *PaymentDetails, actor string, at time.Time) (bool, error) {
	if !status.Valid() {
		return false, NewValidationError("paymentStatus", "unknown payment status %q", status)
	}
	if o.Status.Terminal() && status != PaymentRefunded {
		return false, &ClosedOrderError{Status: o.Status, Action: "update payment"}
	}

	o.PaymentStatus = status
	if details != nil {
		d := *details
		if status == PaymentPaid && d.PaidAt == nil {
			paid := at
			d.PaidAt = &paid
		}
		o.PaymentDetails = &d
	}

	if status == PaymentPaid && o.Status == StatusPending {
		if err := o.Transition(StatusConfirmed, actor, ReasonPaymentReceived, at); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// SetItemStatus advances a single line item. Item status only moves forward.
func (o *Order) SetItemStatus(index int, status ItemStatus) error {
	if index < 0 || index >= len(o.Items) {
		return NewValidationError("index", "no line item at position %d", index)
	}
	next, ok := itemStatusRank[status]
	if !ok {
		return NewValidationError("status", "unknown item status %q", status)
	}
	if o.Status.Terminal() {
		return &ClosedOrderError{Status: o.Status, Action: "update items"}
	}
	if next <= itemStatusRank[o.Items[index].Status] {
		return NewValidationError("status", "item is already %s", o.Items[index].Status)
	}
	o.Items[index].Status = status
	return nil
}
