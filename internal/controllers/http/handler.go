package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-order-service/internal/domain"
	"food-order-service/internal/repository"
	"food-order-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorHeader = "X-Actor-ID"

// OrderService is the part of services.OrderService the transport needs.
type OrderService interface {
	CreateOrder(ctx context.Context, in services.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id uint64) (*domain.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter repository.ListFilter, page repository.Page) ([]domain.Order, int64, error)
	CancelOrder(ctx context.Context, id uint64, reason, actor string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uint64, to domain.OrderStatus, actor, reason string) (*domain.Order, error)
	UpdatePayment(ctx context.Context, id uint64, upd services.PaymentUpdate) (*domain.Order, error)
	RefundOrder(ctx context.Context, id uint64, actor, reason string) (*domain.Order, error)
	UpdateItemStatus(ctx context.Context, id uint64, index int, status domain.ItemStatus) (*domain.Order, error)
	AssignStaff(ctx context.Context, id uint64, role services.StaffRole, staffID uint64) (*domain.Order, error)
	RateOrder(ctx context.Context, id uint64, in services.RatingInput) (*domain.Order, error)
	ReportIssue(ctx context.Context, id uint64, kind, description string) (*domain.Order, error)
	ArchiveOrder(ctx context.Context, id uint64) (*domain.Order, error)
}

var _ OrderService = (*services.OrderService)(nil)

type Handler struct {
	service OrderService
	logger  *zap.Logger
}

func NewHandler(s OrderService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: s, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	orders := r.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/number/:number", h.GetOrderByNumber)
	orders.GET("/:id", h.GetOrder)
	orders.DELETE("/:id", h.ArchiveOrder)
	orders.POST("/:id/cancel", h.CancelOrder)
	orders.PATCH("/:id/status", h.UpdateStatus)
	orders.PATCH("/:id/payment", h.UpdatePayment)
	orders.POST("/:id/refund", h.RefundOrder)
	orders.PATCH("/:id/items/:index/status", h.UpdateItemStatus)
	orders.PUT("/:id/assignment", h.AssignStaff)
	orders.POST("/:id/rating", h.RateOrder)
	orders.POST("/:id/issues", h.ReportIssue)
}

func actor(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(actorHeader))
}

func orderID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) respond(c *gin.Context, status int, order *domain.Order, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(status, order)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	who := actor(c)
	if who == "" {
		who = "customer:" + strconv.FormatUint(req.CustomerID, 10)
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.toInput(who))
	h.respond(c, http.StatusCreated, order, err)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), id)
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) GetOrderByNumber(c *gin.Context) {
	order, err := h.service.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) ListOrders(c *gin.Context) {
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}

	filter := repository.ListFilter{IncludeArchived: q.IncludeArchived}
	if q.CustomerID != 0 {
		filter.CustomerID = &q.CustomerID
	}
	if q.Status != "" {
		s := domain.OrderStatus(q.Status)
		filter.Status = &s
	}
	if q.PaymentStatus != "" {
		s := domain.PaymentStatus(q.PaymentStatus)
		filter.PaymentStatus = &s
	}
	if q.DeliveryType != "" {
		t := domain.DeliveryType(q.DeliveryType)
		filter.DeliveryType = &t
	}

	verr := &domain.ValidationError{}
	for _, r := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{
		{"from", q.From, &filter.CreatedFrom},
		{"to", q.To, &filter.CreatedTo},
	} {
		if r.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, r.raw)
		if err != nil {
			verr.Add(r.name, "must be an RFC 3339 timestamp")
			continue
		}
		*r.dst = &t
	}
	if err := verr.OrNil(); err != nil {
		h.writeError(c, err)
		return
	}

	page := repository.Page{Page: q.Page, Limit: q.Limit}.Normalize()
	orders, total, err := h.service.ListOrders(c.Request.Context(), filter, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, ListOrdersResponse{Data: orders, Total: total, Page: page.Page, Limit: page.Limit})
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	order, err := h.service.CancelOrder(c.Request.Context(), id, req.Reason, actor(c))
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	order, err := h.service.UpdateOrderStatus(c.Request.Context(), id, domain.OrderStatus(req.Status), actor(c), req.Reason)
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) UpdatePayment(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	upd := services.PaymentUpdate{Status: domain.PaymentStatus(req.Status), Actor: actor(c)}
	if req.TransactionID != "" || req.Gateway != "" {
		upd.Details = &domain.PaymentDetails{TransactionID: req.TransactionID, Gateway: req.Gateway}
	}
	order, err := h.service.UpdatePayment(c.Request.Context(), id, upd)
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) RefundOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req RefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}
	order, err := h.service.RefundOrder(c.Request.Context(), id, actor(c), req.Reason)
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) UpdateItemStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid item index"})
		return
	}
	var req UpdateItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	order, err := h.service.UpdateItemStatus(c.Request.Context(), id, index, domain.ItemStatus(req.Status))
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) AssignStaff(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req AssignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	order, err := h.service.AssignStaff(c.Request.Context(), id, services.StaffRole(req.Role), req.StaffID)
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) RateOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req RateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	order, err := h.service.RateOrder(c.Request.Context(), id, services.RatingInput{
		Food:     req.Food,
		Delivery: req.Delivery,
		Comment:  req.Comment,
	})
	h.respond(c, http.StatusOK, order, err)
}

func (h *Handler) ReportIssue(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	order, err := h.service.ReportIssue(c.Request.Context(), id, req.Kind, req.Description)
	h.respond(c, http.StatusCreated, order, err)
}

func (h *Handler) ArchiveOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.service.ArchiveOrder(c.Request.Context(), id)
	h.respond(c, http.StatusOK, order, err)
}
