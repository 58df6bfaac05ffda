package http

import (
	"food-order-service/internal/domain"
	"food-order-service/internal/pricing"
	"food-order-service/internal/services"
)

type CustomizationRequest struct {
	GroupID   string   `json:"groupId" binding:"required"`
	OptionIDs []string `json:"optionIds"`
}

type CartItemRequest struct {
	ProductID           uint64                 `json:"productId" binding:"required"`
	Quantity            int                    `json:"quantity" binding:"required,min=1,max=999"`
	Portion             string                 `json:"portion"`
	Customizations      []CustomizationRequest `json:"customizations" binding:"dive"`
	SpecialInstructions string                 `json:"specialInstructions" binding:"max=500"`
}

type AddressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Landmark   string `json:"landmark"`
}

type PaymentDetailsRequest struct {
	TransactionID string `json:"transactionId"`
	Gateway       string `json:"gateway"`
}

type CouponRequest struct {
	Code   string `json:"code" binding:"required"`
	Amount int64  `json:"amount" binding:"min=0"`
}

type CreateOrderRequest struct {
	CustomerID        uint64                 `json:"customerId" binding:"required"`
	Items             []CartItemRequest      `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress   AddressRequest         `json:"deliveryAddress"`
	DeliveryType      string                 `json:"deliveryType" binding:"required"`
	ContactPhone      string                 `json:"contactPhone" binding:"required"`
	AlternatePhone    string                 `json:"alternatePhone"`
	PaymentMethod     string                 `json:"paymentMethod" binding:"required"`
	PaymentStatus     string                 `json:"paymentStatus"`
	PaymentDetails    *PaymentDetailsRequest `json:"paymentDetails"`
	Coupons           []CouponRequest        `json:"coupons" binding:"dive"`
	LoyaltyPointsUsed int64                  `json:"loyaltyPointsUsed" binding:"min=0"`
	CustomerNotes     string                 `json:"customerNotes"`
}

func (r CreateOrderRequest) toInput(actor string) services.CreateOrderInput {
	in := services.CreateOrderInput{
		CustomerID:        r.CustomerID,
		DeliveryType:      domain.DeliveryType(r.DeliveryType),
		DeliveryAddress:   domain.Address(r.DeliveryAddress),
		ContactPhone:      r.ContactPhone,
		AlternatePhone:    r.AlternatePhone,
		PaymentMethod:     domain.PaymentMethod(r.PaymentMethod),
		PaymentStatus:     domain.PaymentStatus(r.PaymentStatus),
		LoyaltyPointsUsed: r.LoyaltyPointsUsed,
		CustomerNotes:     r.CustomerNotes,
		Actor:             actor,
	}
	for _, it := range r.Items {
		line := services.CartLine{
			ProductID:           it.ProductID,
			Quantity:            it.Quantity,
			PortionID:           it.Portion,
			SpecialInstructions: it.SpecialInstructions,
		}
		for _, c := range it.Customizations {
			line.Customizations = append(line.Customizations, pricing.CustomizationChoice{GroupID: c.GroupID, OptionIDs: c.OptionIDs})
		}
		in.Items = append(in.Items, line)
	}
	for _, c := range r.Coupons {
		in.Coupons = append(in.Coupons, domain.AppliedCoupon{Code: c.Code, Amount: c.Amount})
	}
	if r.PaymentDetails != nil {
		in.PaymentDetails = &domain.PaymentDetails{
			TransactionID: r.PaymentDetails.TransactionID,
			Gateway:       r.PaymentDetails.Gateway,
		}
	}
	return in
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

type UpdatePaymentRequest struct {
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transactionId"`
	Gateway       string `json:"gateway"`
}

type RefundRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type UpdateItemStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AssignStaffRequest struct {
	Role    string `json:"role" binding:"required,oneof=chef rider"`
	StaffID uint64 `json:"staffId" binding:"required"`
}

type RateOrderRequest struct {
	Food     int    `json:"food" binding:"required,min=1,max=5"`
	Delivery int    `json:"delivery" binding:"omitempty,min=1,max=5"`
	Comment  string `json:"comment"`
}

type ReportIssueRequest struct {
	Kind        string `json:"kind" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type ListOrdersQuery struct {
	CustomerID      uint64 `form:"customerId"`
	Status          string `form:"status"`
	PaymentStatus   string `form:"paymentStatus"`
	DeliveryType    string `form:"deliveryType"`
	From            string `form:"from"`
	To              string `form:"to"`
	IncludeArchived bool   `form:"includeArchived"`
	Page            int    `form:"page" binding:"min=0"`
	Limit           int    `form:"limit" binding:"min=0"`
}

type ListOrdersResponse struct {
	Data  []domain.Order `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}
