package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"food-order-service/internal/domain"
	"food-order-service/internal/infra"
	rabbit "food-order-service/internal/infra/rabbitmq"
	"food-order-service/internal/inventory"
	"food-order-service/internal/pricing"
	"food-order-service/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reasonOrderPlaced = "order placed"

	// one loyalty point per 100 major units spent, one major unit per point redeemed
	minorPerLoyaltyPoint = 10000
	loyaltyPointValue    = 100

	maxCatalogFanOut = 8
	maxIssueLength   = 1000
	maxCommentLength = 500
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

type StaffRole string

const (
	RoleChef  StaffRole = "chef"
	RoleRider StaffRole = "rider"
)

type CartLine struct {
	ProductID           uint64
	Quantity            int
	PortionID           string
	Customizations      []pricing.CustomizationChoice
	SpecialInstructions string
}

type CreateOrderInput struct {
	CustomerID        uint64
	Items             []CartLine
	DeliveryType      domain.DeliveryType
	DeliveryAddress   domain.Address
	ContactPhone      string
	AlternatePhone    string
	PaymentMethod     domain.PaymentMethod
	PaymentStatus     domain.PaymentStatus
	PaymentDetails    *domain.PaymentDetails
	Coupons           []domain.AppliedCoupon
	LoyaltyPointsUsed int64
	CustomerNotes     string
	Actor             string
}

type PaymentUpdate struct {
	Status  domain.PaymentStatus
	Details *domain.PaymentDetails
	Actor   string
}

type RatingInput struct {
	Food     int
	Delivery int
	Comment  string
}

type OrderServiceDeps struct {
	Orders    repository.OrderRepository
	Catalog   infra.Catalog
	Inventory *inventory.Adjustor
	Pricing   *pricing.Engine
	Numbers   *OrderNumberGenerator
	Publisher rabbit.PublisherInterface
	Logger    *zap.Logger
	Clock     func() time.Time

	Currency          string
	DeliveryFee       int64
	DeliveryBuffer    time.Duration
	MaxNumberAttempts int
}

type OrderService struct {
	repo      repository.OrderRepository
	catalog   infra.Catalog
	inventory *inventory.Adjustor
	pricing   *pricing.Engine
	numbers   *OrderNumberGenerator
	publisher rabbit.PublisherInterface
	logger    *zap.Logger
	clock     func() time.Time

	currency       string
	deliveryFee    int64
	deliveryBuffer time.Duration
	maxAttempts    int

	inflight sync.WaitGroup
}

func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Catalog == nil:
		return nil, errors.New("order service: catalog is required")
	case deps.Inventory == nil:
		return nil, errors.New("order service: inventory adjustor is required")
	case deps.Pricing == nil:
		return nil, errors.New("order service: pricing engine is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	numbers := deps.Numbers
	if numbers == nil {
		numbers = NewOrderNumberGenerator("ORD", clock)
	}
	attempts := deps.MaxNumberAttempts
	if attempts < 1 {
		attempts = 5
	}
	currency := deps.Currency
	if currency == "" {
		currency = "INR"
	}

	return &OrderService{
		repo:      deps.Orders,
		catalog:   deps.Catalog,
		inventory: deps.Inventory,
		pricing:   deps.Pricing,
		numbers:   numbers,
		publisher: deps.Publisher,
		logger:    logger,
		clock: func() time.Time {
			return clock().UTC()
		},
		currency:       currency,
		deliveryFee:    deps.DeliveryFee,
		deliveryBuffer: deps.DeliveryBuffer,
		maxAttempts:    attempts,
	}, nil
}

// CreateOrder prices the cart, reserves stock and persists the order. Any
// failure after the reservation releases it before returning.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	products, err := s.fetchProducts(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	items := make([]domain.LineItem, 0, len(in.Items))
	lines := make([]inventory.Line, 0, len(in.Items))
	verr := &domain.ValidationError{}
	prep := 0
	for i, cl := range in.Items {
		p := products[cl.ProductID]
		if !p.Orderable() {
			verr.Add(fmt.Sprintf("items[%d].productId", i), "%s is not available", p.Name)
			continue
		}
		item, err := s.pricing.PriceLineItem(*p, cl.Quantity, pricing.Selection{
			PortionID:      cl.PortionID,
			Customizations: cl.Customizations,
			Notes:          cl.SpecialInstructions,
		})
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				verr.Fields = append(verr.Fields, ve.Fields...)
				continue
			}
			return nil, err
		}
		items = append(items, item)
		lines = append(lines, inventory.Line{
			ProductID:    p.ID,
			ProductName:  p.Name,
			Quantity:     int64(cl.Quantity),
			StockTracked: p.IsStockTracked,
			InitialStock: p.StockQuantity,
		})
		prep = max(prep, p.PreparationTime)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	fee := int64(0)
	eta := now.Add(time.Duration(prep) * time.Minute)
	if in.DeliveryType == domain.DeliveryTypeDelivery {
		fee = s.deliveryFee
		eta = eta.Add(s.deliveryBuffer)
	}

	discount, err := requestedDiscount(in)
	if err != nil {
		return nil, err
	}
	totals, err := s.pricing.ComputeTotals(items, fee, discount)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		CustomerID:            in.CustomerID,
		Items:                 items,
		Subtotal:              totals.Subtotal,
		TaxAmount:             totals.TaxAmount,
		DeliveryFee:           totals.DeliveryFee,
		DiscountAmount:        totals.DiscountAmount,
		TotalAmount:           totals.TotalAmount,
		Currency:              s.currency,
		AppliedCoupons:        in.Coupons,
		LoyaltyPointsUsed:     in.LoyaltyPointsUsed,
		LoyaltyPointsEarned:   totals.TotalAmount / minorPerLoyaltyPoint,
		DeliveryAddress:       in.DeliveryAddress,
		DeliveryType:          in.DeliveryType,
		EstimatedDeliveryTime: eta,
		ContactPhone:          in.ContactPhone,
		AlternatePhone:        in.AlternatePhone,
		PaymentMethod:         in.PaymentMethod,
		PaymentStatus:         domain.PaymentPending,
		CustomerNotes:         strings.TrimSpace(in.CustomerNotes),
		IsActive:              true,
	}
	if err := order.Begin(in.Actor, reasonOrderPlaced, now); err != nil {
		return nil, err
	}
	if in.PaymentStatus != "" && in.PaymentStatus != domain.PaymentPending {
		if _, err := order.ApplyPayment(in.PaymentStatus, in.PaymentDetails, in.Actor, now); err != nil {
			return nil, err
		}
	}

	if err := s.inventory.Reserve(ctx, lines); err != nil {
		return nil, err
	}
	order.StockReserved = len(order.StockLines()) > 0

	if err := s.insertWithNumber(ctx, order); err != nil {
		if order.StockReserved {
			if rerr := s.inventory.Release(context.WithoutCancel(ctx), lines); rerr != nil {
				s.logger.Error("stock release after failed create", zap.Error(rerr))
				return nil, errors.Join(err, rerr)
			}
		}
		return nil, err
	}

	s.logger.Info("order created",
		zap.Uint64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
		zap.Int64("total_amount", order.TotalAmount),
	)
	s.publish(ctx, domain.EventOrderCreated, domain.NewOrderCreatedEvent(order))
	return order, nil
}

func (s *OrderService) insertWithNumber(ctx context.Context, order *domain.Order) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		order.OrderNumber = s.numbers.Next()
		err := s.repo.Insert(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return err
		}
		s.logger.Warn("order number collision",
			zap.String("order_number", order.OrderNumber),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("%w after %d attempts", domain.ErrOrderNumberExhausted, s.maxAttempts)
}

func (s *OrderService) fetchProducts(ctx context.Context, lines []CartLine) (map[uint64]*domain.ProductSnapshot, error) {
	var ids []uint64
	seen := make(map[uint64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	var mu sync.Mutex
	products := make(map[uint64]*domain.ProductSnapshot, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCatalogFanOut)
	for _, id := range ids {
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, id)
			if err != nil {
				return fmt.Errorf("lookup product %d: %w", id, err)
			}
			mu.Lock()
			products[id] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

// requestedDiscount adds up redeemed loyalty points and coupons. The
// pricing engine caps the result at the order's gross amount.
func requestedDiscount(in CreateOrderInput) (int64, error) {
	if in.LoyaltyPointsUsed > math.MaxInt64/loyaltyPointValue {
		return 0, domain.NewValidationError("loyaltyPointsUsed", "is too large")
	}
	discount := in.LoyaltyPointsUsed * loyaltyPointValue
	for i, c := range in.Coupons {
		if c.Amount > math.MaxInt64-discount {
			return 0, domain.NewValidationError(fmt.Sprintf("coupons[%d].amount", i), "is too large")
		}
		discount += c.Amount
	}
	return discount, nil
}

func validateCreateInput(in CreateOrderInput) error {
	v := &domain.ValidationError{}

	if in.CustomerID == 0 {
		v.Add("customerId", "is required")
	}
	if len(in.Items) == 0 {
		v.Add("items", "must contain at least one item")
	}
	for i, it := range in.Items {
		if it.ProductID == 0 {
			v.Add(fmt.Sprintf("items[%d].productId", i), "is required")
		}
		if it.Quantity < 1 || it.Quantity > domain.MaxLineQuantity {
			v.Add(fmt.Sprintf("items[%d].quantity", i), "must be between 1 and %d", domain.MaxLineQuantity)
		}
	}

	if !in.DeliveryType.Valid() {
		v.Add("deliveryType", "must be one of delivery, pickup, dine-in")
	}
	if !in.PaymentMethod.Valid() {
		v.Add("paymentMethod", "must be one of cash, card, upi, wallet")
	}
	switch in.PaymentStatus {
	case "", domain.PaymentPending, domain.PaymentPaid, domain.PaymentFailed:
	default:
		v.Add("paymentStatus", "cannot start as %q", in.PaymentStatus)
	}

	if !phonePattern.MatchString(in.ContactPhone) {
		v.Add("contactPhone", "must be 10 to 15 digits with an optional leading +")
	}
	if in.AlternatePhone != "" && !phonePattern.MatchString(in.AlternatePhone) {
		v.Add("alternatePhone", "must be 10 to 15 digits with an optional leading +")
	}

	if in.DeliveryType == domain.DeliveryTypeDelivery {
		addr := in.DeliveryAddress
		if strings.TrimSpace(addr.Line1) == "" {
			v.Add("deliveryAddress.line1", "is required for delivery")
		}
		if strings.TrimSpace(addr.City) == "" {
			v.Add("deliveryAddress.city", "is required for delivery")
		}
		if strings.TrimSpace(addr.PostalCode) == "" {
			v.Add("deliveryAddress.postalCode", "is required for delivery")
		}
	}

	if utf8.RuneCountInString(in.CustomerNotes) > domain.MaxCustomerNotes {
		v.Add("customerNotes", "must be at most %d characters", domain.MaxCustomerNotes)
	}
	if in.LoyaltyPointsUsed < 0 {
		v.Add("loyaltyPointsUsed", "must not be negative")
	}
	for i, c := range in.Coupons {
		if strings.TrimSpace(c.Code) == "" {
			v.Add(fmt.Sprintf("coupons[%d].code", i), "is required")
		}
		if c.Amount < 0 {
			v.Add(fmt.Sprintf("coupons[%d].amount", i), "must not be negative")
		}
	}

	return v.OrNil()
}

func (s *OrderService) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.NewValidationError("orderNumber", "is required")
	}
	return s.repo.FindByOrderNumber(ctx, number)
}

func (s *OrderService) ListOrders(ctx context.Context, filter repository.ListFilter, page repository.Page) ([]domain.Order, int64, error) {
	v := &domain.ValidationError{}
	if filter.Status != nil && !filter.Status.Valid() {
		v.Add("status", "unknown status %q", *filter.Status)
	}
	if filter.PaymentStatus != nil && !filter.PaymentStatus.Valid() {
		v.Add("paymentStatus", "unknown payment status %q", *filter.PaymentStatus)
	}
	if filter.DeliveryType != nil && !filter.DeliveryType.Valid() {
		v.Add("deliveryType", "unknown delivery type %q", *filter.DeliveryType)
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && !filter.CreatedFrom.Before(*filter.CreatedTo) {
		v.Add("createdTo", "must be after createdFrom")
	}
	if err := v.OrNil(); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter, page.Normalize())
}

// CancelOrder cancels a pending or confirmed order and gives its stock back.
func (s *OrderService) CancelOrder(ctx context.Context, id uint64, reason, actor string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}

	var released []inventory.Line
	order, err := s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		if !o.CanBeCancelled() {
			return &domain.IllegalTransitionError{From: o.Status, To: domain.StatusCancelled}
		}
		if err := o.Transition(domain.StatusCancelled, actor, reason, now); err != nil {
			return err
		}
		o.CancellationReason = reason
		if o.StockReserved {
			released = stockLines(o)
			o.StockReserved = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(released) > 0 {
		if err := s.inventory.Release(context.WithoutCancel(ctx), released); err != nil {
			// the cancellation is already committed
			s.logger.Error("stock release after cancel failed",
				zap.Uint64("order_id", order.ID),
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
		}
	}
	return order, nil
}

// UpdateOrderStatus moves an order along the lifecycle. Cancelling and
// refunding go through their dedicated paths so stock and payment stay
// consistent.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uint64, to domain.OrderStatus, actor, reason string) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.NewValidationError("status", "unknown status %q", to)
	}

	switch to {
	case domain.StatusCancelled:
		return s.CancelOrder(ctx, id, reason, actor)
	case domain.StatusRefunded:
		return s.RefundOrder(ctx, id, actor, reason)
	}

	return s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		return o.Transition(to, actor, strings.TrimSpace(reason), now)
	})
}

func (s *OrderService) UpdatePayment(ctx context.Context, id uint64, upd PaymentUpdate) (*domain.Order, error) {
	if !upd.Status.Valid() {
		return nil, domain.NewValidationError("status", "unknown payment status %q", upd.Status)
	}
	if upd.Status == domain.PaymentRefunded {
		return s.RefundOrder(ctx, id, upd.Actor, "")
	}

	return s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		confirmed, err := o.ApplyPayment(upd.Status, upd.Details, upd.Actor, now)
		if err != nil {
			return err
		}
		if confirmed {
			s.logger.Info("order confirmed by payment", zap.Uint64("order_id", o.ID))
		}
		return nil
	})
}

// RefundOrder refunds a paid order once it has been delivered. A completed
// order keeps its status and only the payment is marked refunded.
func (s *OrderService) RefundOrder(ctx context.Context, id uint64, actor, reason string) (*domain.Order, error) {
	return s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		if !o.CanBeRefunded() {
			if o.Status != domain.StatusDelivered && o.Status != domain.StatusCompleted {
				return &domain.IllegalTransitionError{From: o.Status, To: domain.StatusRefunded}
			}
			return domain.NewValidationError("paymentStatus", "only paid orders can be refunded")
		}

		if o.Status == domain.StatusDelivered {
			if err := o.Transition(domain.StatusRefunded, actor, strings.TrimSpace(reason), now); err != nil {
				return err
			}
		}
		_, err := o.ApplyPayment(domain.PaymentRefunded, nil, actor, now)
		return err
	})
}

func (s *OrderService) UpdateItemStatus(ctx context.Context, id uint64, index int, status domain.ItemStatus) (*domain.Order, error) {
	return s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		if err := o.SetItemStatus(index, status); err != nil {
			return err
		}
		if status == domain.ItemReady {
			start := o.CreatedAt
			if o.ConfirmedAt != nil {
				start = *o.ConfirmedAt
			}
			mins := int(now.Sub(start).Minutes())
			o.Items[index].ActualPrepMinutes = &mins
		}
		return nil
	})
}

func (s *OrderService) AssignStaff(ctx context.Context, id uint64, role StaffRole, staffID uint64) (*domain.Order, error) {
	if staffID == 0 {
		return nil, domain.NewValidationError("staffId", "is required")
	}
	if role != RoleChef && role != RoleRider {
		return nil, domain.NewValidationError("role", "must be chef or rider")
	}

	return s.mutate(ctx, id, func(o *domain.Order, _ time.Time) error {
		if o.Status.Terminal() {
			return &domain.ClosedOrderError{Status: o.Status, Action: "assign staff"}
		}
		switch role {
		case RoleChef:
			o.AssignedChefID = &staffID
		case RoleRider:
			if o.DeliveryType != domain.DeliveryTypeDelivery {
				return domain.NewValidationError("role", "riders are only assigned to delivery orders")
			}
			o.AssignedRiderID = &staffID
		}
		return nil
	})
}

func (s *OrderService) RateOrder(ctx context.Context, id uint64, in RatingInput) (*domain.Order, error) {
	v := &domain.ValidationError{}
	if in.Food < 1 || in.Food > 5 {
		v.Add("food", "must be between 1 and 5")
	}
	if in.Delivery != 0 && (in.Delivery < 1 || in.Delivery > 5) {
		v.Add("delivery", "must be between 1 and 5")
	}
	if utf8.RuneCountInString(in.Comment) > maxCommentLength {
		v.Add("comment", "must be at most %d characters", maxCommentLength)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		if o.Status != domain.StatusDelivered && o.Status != domain.StatusCompleted {
			return domain.NewValidationError("status", "only delivered or completed orders can be rated")
		}
		if o.Rating != nil {
			return domain.NewValidationError("rating", "order is already rated")
		}
		o.Rating = &domain.Rating{
			Food:     in.Food,
			Delivery: in.Delivery,
			Comment:  strings.TrimSpace(in.Comment),
			RatedAt:  now,
		}
		return nil
	})
}

func (s *OrderService) ReportIssue(ctx context.Context, id uint64, kind, description string) (*domain.Order, error) {
	kind = strings.TrimSpace(kind)
	description = strings.TrimSpace(description)

	v := &domain.ValidationError{}
	if kind == "" {
		v.Add("kind", "is required")
	}
	if description == "" {
		v.Add("description", "is required")
	} else if utf8.RuneCountInString(description) > maxIssueLength {
		v.Add("description", "must be at most %d characters", maxIssueLength)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(o *domain.Order, now time.Time) error {
		o.Issues = append(o.Issues, domain.IssueReport{Kind: kind, Description: description, ReportedAt: now})
		return nil
	})
}

// ArchiveOrder hides a finished order from default listings. The row and
// its history stay.
func (s *OrderService) ArchiveOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	return s.mutate(ctx, id, func(o *domain.Order, _ time.Time) error {
		if !o.Status.Terminal() {
			return domain.NewValidationError("status", "only finished orders can be archived")
		}
		o.IsActive = false
		return nil
	})
}

// mutate loads the order, applies fn and writes it back against the version
// it was loaded at. A concurrent writer surfaces as domain.ErrVersionConflict.
func (s *OrderService) mutate(ctx context.Context, id uint64, fn func(o *domain.Order, now time.Time) error) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	version := order.Version
	historyLen := len(order.History)
	if err := fn(order, s.clock()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, order, version); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.logger.Info("stale order write rejected", zap.Uint64("order_id", id), zap.Uint64("version", version))
		}
		return nil, err
	}

	for i := historyLen; i < len(order.History); i++ {
		ev := order.History[i]
		s.logger.Info("order status changed",
			zap.Uint64("order_id", order.ID),
			zap.String("order_number", order.OrderNumber),
			zap.String("from", string(ev.From)),
			zap.String("status", string(ev.Status)),
		)
	}
	if len(order.History) > historyLen {
		s.publish(ctx, domain.EventOrderStatusChanged, domain.NewStatusChangedEvent(order))
	}
	return order, nil
}

func stockLines(o *domain.Order) []inventory.Line {
	var out []inventory.Line
	for _, it := range o.StockLines() {
		out = append(out, inventory.Line{
			ProductID:    it.ProductID,
			ProductName:  it.Name,
			Quantity:     int64(it.Quantity),
			StockTracked: true,
		})
	}
	return out
}

// publish sends the event in the background. Failures are logged only.
func (s *OrderService) publish(ctx context.Context, pattern string, evt any) {
	if s.publisher == nil {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.publisher.Publish(pctx, pattern, evt); err != nil {
			s.logger.Warn("event publish failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}()
}

// Wait blocks until every background publish has finished.
func (s *OrderService) Wait() {
	s.inflight.Wait()
}
