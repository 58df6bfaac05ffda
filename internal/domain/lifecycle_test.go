package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func newPendingOrder(t *testing.T) *Order {
	t.Helper()
	return newPendingOrderOfType(t, DeliveryTypeDelivery)
}

func newPendingOrderOfType(t *testing.T, dt DeliveryType) *Order {
	t.Helper()
	o := &Order{OrderNumber: "ORD-20261015-0001", PaymentStatus: PaymentPending, DeliveryType: dt}
	require.NoError(t, o.Begin("customer:1", "order placed", testNow))
	return o
}

func orderAt(t *testing.T, path ...OrderStatus) *Order {
	t.Helper()
	return orderOfTypeAt(t, DeliveryTypeDelivery, path...)
}

func orderOfTypeAt(t *testing.T, dt DeliveryType, path ...OrderStatus) *Order {
	t.Helper()
	o := newPendingOrderOfType(t, dt)
	for i, s := range path {
		require.NoError(t, o.Transition(s, "staff", "", testNow.Add(time.Duration(i+1)*time.Minute)))
	}
	return o
}

func TestTransition_LegalEdges(t *testing.T) {
	tests := []struct {
		name     string
		delivery DeliveryType
		path     []OrderStatus
	}{
		{"delivery flow", DeliveryTypeDelivery, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered, StatusCompleted}},
		{"pickup hand-over", DeliveryTypePickup, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted}},
		{"dine-in served", DeliveryTypeDineIn, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted}},
		{"cancel pending", DeliveryTypeDelivery, []OrderStatus{StatusCancelled}},
		{"cancel confirmed", DeliveryTypePickup, []OrderStatus{StatusConfirmed, StatusCancelled}},
		{"refund delivered", DeliveryTypeDelivery, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered, StatusRefunded}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := orderOfTypeAt(t, tt.delivery, tt.path...)
			assert.Equal(t, tt.path[len(tt.path)-1], o.Status)
			assert.Len(t, o.History, len(tt.path)+1)
			for i, ev := range o.History {
				assert.Equal(t, i+1, ev.Seq)
				if i > 0 {
					assert.Equal(t, o.History[i-1].Status, ev.From)
					assert.False(t, ev.At.Before(o.History[i-1].At))
				}
			}
		})
	}
}

func TestTransition_RejectsIllegalEdges(t *testing.T) {
	tests := []struct {
		name     string
		delivery DeliveryType
		path     []OrderStatus
		to       OrderStatus
	}{
		{"skip confirm", DeliveryTypeDelivery, nil, StatusPreparing},
		{"backwards", DeliveryTypeDelivery, []OrderStatus{StatusConfirmed, StatusPreparing}, StatusConfirmed},
		{"cancel while preparing", DeliveryTypeDelivery, []OrderStatus{StatusConfirmed, StatusPreparing}, StatusCancelled},
		{"delivery order handed over at the counter", DeliveryTypeDelivery, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady}, StatusCompleted},
		{"pickup order sent with a rider", DeliveryTypePickup, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady}, StatusOutForDelivery},
		{"dine-in order sent with a rider", DeliveryTypeDineIn, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady}, StatusOutForDelivery},
		{"out of completed", DeliveryTypePickup, []OrderStatus{StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted}, StatusRefunded},
		{"out of cancelled", DeliveryTypeDelivery, []OrderStatus{StatusCancelled}, StatusConfirmed},
		{"unknown status", DeliveryTypeDelivery, nil, OrderStatus("lost")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := orderOfTypeAt(t, tt.delivery, tt.path...)
			before := o.Status
			historyLen := len(o.History)

			err := o.Transition(tt.to, "staff", "", testNow.Add(time.Hour))

			var illegal *IllegalTransitionError
			require.True(t, errors.As(err, &illegal))
			assert.Equal(t, before, illegal.From)
			assert.Equal(t, tt.to, illegal.To)
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, before, o.Status)
			assert.Len(t, o.History, historyLen)
		})
	}
}

func TestTerminalStatesHaveNoSuccessors(t *testing.T) {
	all := []OrderStatus{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery,
		StatusDelivered, StatusCompleted, StatusCancelled, StatusRefunded}
	for _, terminal := range []OrderStatus{StatusCompleted, StatusCancelled, StatusRefunded} {
		assert.True(t, terminal.Terminal())
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, StatusPending.Terminal())
}

func TestCanBeCancelled(t *testing.T) {
	for status, want := range map[OrderStatus]bool{
		StatusPending:        true,
		StatusConfirmed:      true,
		StatusPreparing:      false,
		StatusReady:          false,
		StatusOutForDelivery: false,
		StatusDelivered:      false,
		StatusCompleted:      false,
		StatusCancelled:      false,
		StatusRefunded:       false,
	} {
		o := &Order{Status: status}
		assert.Equal(t, want, o.CanBeCancelled(), status)
	}
}

func TestCanBeRefunded(t *testing.T) {
	assert.True(t, (&Order{Status: StatusDelivered, PaymentStatus: PaymentPaid}).CanBeRefunded())
	assert.True(t, (&Order{Status: StatusCompleted, PaymentStatus: PaymentPaid}).CanBeRefunded())
	assert.False(t, (&Order{Status: StatusDelivered, PaymentStatus: PaymentPending}).CanBeRefunded())
	assert.False(t, (&Order{Status: StatusReady, PaymentStatus: PaymentPaid}).CanBeRefunded())
}

func TestTransition_StampsLifecycleTimestamps(t *testing.T) {
	o := orderAt(t, StatusConfirmed, StatusPreparing, StatusReady, StatusOutForDelivery, StatusDelivered, StatusCompleted)

	require.NotNil(t, o.ConfirmedAt)
	require.NotNil(t, o.ReadyAt)
	require.NotNil(t, o.PickedUpAt)
	require.NotNil(t, o.DeliveredAt)
	require.NotNil(t, o.ActualDeliveryTime)
	require.NotNil(t, o.CompletedAt)
	assert.Equal(t, testNow.Add(time.Minute), *o.ConfirmedAt)
	assert.Equal(t, testNow.Add(4*time.Minute), *o.PickedUpAt)
	assert.Equal(t, testNow.Add(6*time.Minute), *o.CompletedAt)
	assert.Nil(t, o.CancelledAt)
}

func TestTransition_ClampsTimestampToPrevious(t *testing.T) {
	o := newPendingOrder(t)
	require.NoError(t, o.Transition(StatusConfirmed, "", "", testNow.Add(-time.Hour)))
	assert.Equal(t, testNow, o.History[1].At)
}

func TestBegin_OnlyOnce(t *testing.T) {
	o := newPendingOrder(t)
	assert.Error(t, o.Begin("", "", testNow))
	assert.Len(t, o.History, 1)
}

func TestApplyPayment_PaidWhilePendingConfirms(t *testing.T) {
	o := newPendingOrder(t)

	confirmed, err := o.ApplyPayment(PaymentPaid, &PaymentDetails{TransactionID: "txn_1"}, "gateway", testNow.Add(time.Minute))
	require.NoError(t, err)

	assert.True(t, confirmed)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
	require.Len(t, o.History, 2)
	assert.Equal(t, ReasonPaymentReceived, o.History[1].Reason)
	assert.Equal(t, StatusConfirmed, o.History[1].Status)
	require.NotNil(t, o.PaymentDetails.PaidAt)
	assert.Equal(t, testNow.Add(time.Minute), *o.PaymentDetails.PaidAt)
}

func TestApplyPayment_NoAutoConfirmOutsidePending(t *testing.T) {
	o := orderAt(t, StatusConfirmed, StatusPreparing)

	confirmed, err := o.ApplyPayment(PaymentPaid, nil, "", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Equal(t, StatusPreparing, o.Status)
	assert.Len(t, o.History, 3)
}

func TestApplyPayment_Failures(t *testing.T) {
	o := newPendingOrder(t)
	_, err := o.ApplyPayment(PaymentStatus("bogus"), nil, "", testNow)
	assert.ErrorIs(t, err, ErrValidation)

	cancelled := orderAt(t, StatusCancelled)
	_, err = cancelled.ApplyPayment(PaymentPaid, nil, "", testNow)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	var closed *ClosedOrderError
	require.True(t, errors.As(err, &closed))
	assert.Equal(t, StatusCancelled, closed.Status)
	assert.Equal(t, "cannot update payment: order is cancelled", err.Error())
	assert.Equal(t, PaymentPending, cancelled.PaymentStatus)
}

func TestSetItemStatus(t *testing.T) {
	o := newPendingOrder(t)
	o.Items = []LineItem{{Status: ItemPending}}

	require.NoError(t, o.SetItemStatus(0, ItemPreparing))
	require.NoError(t, o.SetItemStatus(0, ItemServed))
	assert.Equal(t, ItemServed, o.Items[0].Status)

	assert.ErrorIs(t, o.SetItemStatus(0, ItemReady), ErrValidation)
	assert.ErrorIs(t, o.SetItemStatus(3, ItemReady), ErrValidation)
	assert.ErrorIs(t, o.SetItemStatus(0, ItemStatus("eaten")), ErrValidation)

	done := orderOfTypeAt(t, DeliveryTypePickup, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted)
	done.Items = []LineItem{{Status: ItemPending}}
	err := done.SetItemStatus(0, ItemReady)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, "cannot update items: order is completed", err.Error())
	assert.Equal(t, ItemPending, done.Items[0].Status)
}
