package inventory

import (
	"context"
	"errors"
	"fmt"

	"food-order-service/internal/domain"
	"food-order-service/internal/repository"
	"food-order-service/internal/saga"

	"go.uber.org/zap"
)

// Line is the stock demand of one order line.
type Line struct {
	ProductID    uint64
	ProductName  string
	Quantity     int64
	StockTracked bool
	// InitialStock seeds the ledger the first time the product is seen.
	InitialStock int64
}

type Adjustor struct {
	stock  repository.StockRepository
	logger *zap.Logger
}

func NewAdjustor(stock repository.StockRepository, logger *zap.Logger) *Adjustor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adjustor{stock: stock, logger: logger}
}

// Reserve takes stock for every tracked product or for none of them.
func (a *Adjustor) Reserve(ctx context.Context, lines []Line) error {
	merged, err := merge(lines)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}

	orch := saga.NewOrchestrator(a.logger)
	for _, l := range merged {
		orch.Add(&reserveStep{stock: a.stock, line: l})
	}
	if err := orch.Run(ctx); err != nil {
		return err
	}

	a.logger.Debug("stock reserved", zap.Int("products", len(merged)))
	return nil
}

// Release returns stock for every tracked product. It keeps going past
// individual failures and reports all of them.
func (a *Adjustor) Release(ctx context.Context, lines []Line) error {
	merged, err := merge(lines)
	if err != nil {
		return err
	}

	var errs []error
	for _, l := range merged {
		if err := a.stock.Increment(ctx, l.ProductID, l.Quantity); err != nil {
			a.logger.Error("stock release failed",
				zap.Uint64("product_id", l.ProductID),
				zap.Int64("quantity", l.Quantity),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("release product %d: %w", l.ProductID, err))
		}
	}
	return errors.Join(errs...)
}

// merge sums quantities per tracked product, keeping first-seen order.
func merge(lines []Line) ([]Line, error) {
	var out []Line
	index := make(map[uint64]int)

	v := &domain.ValidationError{}
	for i, l := range lines {
		if !l.StockTracked {
			continue
		}
		if l.Quantity <= 0 {
			v.Add(fmt.Sprintf("lines[%d].quantity", i), "must be positive")
			continue
		}
		if j, ok := index[l.ProductID]; ok {
			out[j].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

type reserveStep struct {
	stock repository.StockRepository
	line  Line
}

func (s *reserveStep) Name() string {
	return fmt.Sprintf("reserve product %d", s.line.ProductID)
}

func (s *reserveStep) Execute(ctx context.Context) error {
	if err := s.stock.Seed(ctx, s.line.ProductID, s.line.InitialStock); err != nil {
		return err
	}
	_, err := s.stock.Decrement(ctx, s.line.ProductID, s.line.Quantity)
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		stockErr.ProductName = s.line.ProductName
	}
	return err
}

func (s *reserveStep) Compensate(ctx context.Context) error {
	return s.stock.Increment(ctx, s.line.ProductID, s.line.Quantity)
}
