package domain

import "time"

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out-for-delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
)

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentPartial  PaymentStatus = "partial"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded, PaymentPartial:
		return true
	}
	return false
}

type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeDineIn   DeliveryType = "dine-in"
)

func (t DeliveryType) Valid() bool {
	switch t {
	case DeliveryTypeDelivery, DeliveryTypePickup, DeliveryTypeDineIn:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodWallet PaymentMethod = "wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodUPI, PaymentMethodWallet:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

var itemStatusRank = map[ItemStatus]int{
	ItemPending:   0,
	ItemPreparing: 1,
	ItemReady:     2,
	ItemServed:    3,
}

const (
	MaxCustomerNotes = 500
	MaxInternalNotes = 1000
	MaxLineQuantity  = 999
)

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Landmark   string `json:"landmark,omitempty"`
}

type AppliedCoupon struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

type PaymentDetails struct {
	TransactionID string     `json:"transactionId,omitempty"`
	Gateway       string     `json:"gateway,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

type Rating struct {
	Food     int       `json:"food"`
	Delivery int       `json:"delivery,omitempty"`
	Comment  string    `json:"comment,omitempty"`
	RatedAt  time.Time `json:"ratedAt"`
}

type IssueReport struct {
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	ReportedAt  time.Time `json:"reportedAt"`
	Resolved    bool      `json:"resolved"`
}

type SelectedPortion struct {
	Name          string `json:"name"`
	PriceModifier int64  `json:"priceModifier"`
}

type SelectedOption struct {
	Name          string `json:"name"`
	PriceModifier int64  `json:"priceModifier"`
}

type SelectedCustomization struct {
	Name               string           `json:"name"`
	Options            []SelectedOption `json:"options"`
	TotalPriceModifier int64            `json:"totalPriceModifier"`
}

// LineItem freezes the product name, image and prices at order time so later
// catalog edits never change historical orders.
type LineItem struct {
	ID                   uint64                  `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID              uint64                  `json:"-" gorm:"not null;index"`
	Position             int                     `json:"position" gorm:"not null"`
	ProductID            uint64                  `json:"productId" gorm:"not null;index"`
	Name                 string                  `json:"name" gorm:"size:255;not null"`
	ImageURL             string                  `json:"imageUrl,omitempty" gorm:"size:512"`
	Quantity             int                     `json:"quantity" gorm:"not null"`
	UnitPrice            int64                   `json:"unitPrice" gorm:"not null"`
	OriginalUnitPrice    int64                   `json:"originalUnitPrice" gorm:"not null"`
	TotalPrice           int64                   `json:"totalPrice" gorm:"not null"`
	Portion              *SelectedPortion        `json:"portion,omitempty" gorm:"serializer:json;type:text"`
	Customizations       []SelectedCustomization `json:"customizations" gorm:"serializer:json;type:text"`
	SpecialInstructions  string                  `json:"specialInstructions,omitempty" gorm:"size:500"`
	Status               ItemStatus              `json:"status" gorm:"size:16;not null;default:'pending'"`
	StockTracked         bool                    `json:"stockTracked"`
	EstimatedPrepMinutes int                     `json:"estimatedPrepMinutes"`
	ActualPrepMinutes    *int                    `json:"actualPrepMinutes,omitempty"`
}

func (LineItem) TableName() string { return "order_items" }

// StatusEvent is one entry of the append-only status history. Status is the
// tag; From is empty for the creation entry.
type StatusEvent struct {
	ID      uint64      `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID uint64      `json:"-" gorm:"not null;uniqueIndex:idx_order_seq"`
	Seq     int         `json:"seq" gorm:"not null;uniqueIndex:idx_order_seq"`
	Status  OrderStatus `json:"status" gorm:"size:32;not null"`
	From    OrderStatus `json:"from,omitempty" gorm:"column:from_status;size:32"`
	At      time.Time   `json:"timestamp" gorm:"not null"`
	Actor   string      `json:"actor,omitempty" gorm:"size:64"`
	Reason  string      `json:"reason,omitempty" gorm:"size:500"`
}

func (StatusEvent) TableName() string { return "order_status_events" }

type Order struct {
	ID          uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber string `json:"orderNumber" gorm:"size:32;not null;uniqueIndex"`
	CustomerID  uint64 `json:"customerId" gorm:"not null;index"`

	Items []LineItem `json:"items" gorm:"foreignKey:OrderID"`

	Subtotal       int64           `json:"subtotal" gorm:"not null"`
	TaxAmount      int64           `json:"taxAmount" gorm:"not null"`
	DeliveryFee    int64           `json:"deliveryFee" gorm:"not null"`
	DiscountAmount int64           `json:"discountAmount" gorm:"not null"`
	TotalAmount    int64           `json:"totalAmount" gorm:"not null"`
	Currency       string          `json:"currency" gorm:"size:3;not null"`
	AppliedCoupons []AppliedCoupon `json:"appliedCoupons,omitempty" gorm:"serializer:json;type:text"`

	LoyaltyPointsUsed   int64 `json:"loyaltyPointsUsed"`
	LoyaltyPointsEarned int64 `json:"loyaltyPointsEarned"`

	DeliveryAddress       Address      `json:"deliveryAddress" gorm:"embedded;embeddedPrefix:delivery_"`
	DeliveryType          DeliveryType `json:"deliveryType" gorm:"size:16;not null"`
	EstimatedDeliveryTime time.Time    `json:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time   `json:"actualDeliveryTime,omitempty"`
	ContactPhone          string       `json:"contactPhone" gorm:"size:20;not null"`
	AlternatePhone        string       `json:"alternatePhone,omitempty" gorm:"size:20"`

	PaymentMethod  PaymentMethod   `json:"paymentMethod" gorm:"size:16;not null"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus" gorm:"size:16;not null;index"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty" gorm:"serializer:json;type:text"`

	Status  OrderStatus   `json:"status" gorm:"size:32;not null;index"`
	History []StatusEvent `json:"statusHistory" gorm:"foreignKey:OrderID"`

	AssignedChefID  *uint64 `json:"assignedChefId,omitempty"`
	AssignedRiderID *uint64 `json:"assignedRiderId,omitempty"`

	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	ReadyAt            *time.Time `json:"readyAt,omitempty"`
	PickedUpAt         *time.Time `json:"pickedUpAt,omitempty"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty" gorm:"size:500"`

	CustomerNotes string `json:"customerNotes,omitempty" gorm:"size:500"`
	InternalNotes string `json:"internalNotes,omitempty" gorm:"size:1000"`

	Rating *Rating       `json:"rating,omitempty" gorm:"serializer:json;type:text"`
	Issues []IssueReport `json:"issues,omitempty" gorm:"serializer:json;type:text"`

	StockReserved bool      `json:"-"`
	IsActive      bool      `json:"isActive" gorm:"not null;default:true;index"`
	Version       uint64    `json:"version" gorm:"not null"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// StockLines lists the lines whose product is stock-tracked.
func (o *Order) StockLines() []LineItem {
	var out []LineItem
	for _, it := range o.Items {
		if it.StockTracked {
			out = append(out, it)
		}
	}
	return out
}
