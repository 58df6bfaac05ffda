// Package pricing turns catalog snapshots and cart selections into priced
// line items and order totals. All amounts are minor currency units.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"food-order-service/internal/domain"

	"github.com/shopspring/decimal"
)

type Engine struct {
	taxRate decimal.Decimal
}

func NewEngine(taxRate decimal.Decimal) (*Engine, error) {
	if taxRate.IsNegative() {
		return nil, errors.New("pricing: tax rate cannot be negative")
	}
	return &Engine{taxRate: taxRate}, nil
}

func (e *Engine) TaxRate() decimal.Decimal { return e.taxRate }

type CustomizationChoice struct {
	GroupID   string
	OptionIDs []string
}

type Selection struct {
	PortionID      string
	Customizations []CustomizationChoice
	Notes          string
}

type Totals struct {
	Subtotal       int64
	TaxAmount      int64
	DeliveryFee    int64
	DiscountAmount int64
	TotalAmount    int64
}

// PriceLineItem prices one cart line against the product snapshot:
// unitPrice = base + portion modifier + every selected option modifier.
func (e *Engine) PriceLineItem(p domain.ProductSnapshot, qty int, sel Selection) (domain.LineItem, error) {
	verr := &domain.ValidationError{}
	field := func(name string) string { return fmt.Sprintf("product[%d].%s", p.ID, name) }

	if qty < 1 {
		verr.Add(field("quantity"), "must be at least 1")
	}
	if qty > domain.MaxLineQuantity {
		verr.Add(field("quantity"), "must be at most %d", domain.MaxLineQuantity)
	}

	unit := p.Price
	overflow := false
	item := domain.LineItem{
		ProductID:            p.ID,
		Name:                 p.Name,
		ImageURL:             p.ImageURL,
		Quantity:             qty,
		OriginalUnitPrice:    p.Price,
		SpecialInstructions:  strings.TrimSpace(sel.Notes),
		Status:               domain.ItemPending,
		StockTracked:         p.IsStockTracked,
		EstimatedPrepMinutes: p.PreparationTime,
	}

	if id := strings.TrimSpace(sel.PortionID); id != "" {
		portion, ok := p.FindPortion(id)
		switch {
		case !ok:
			verr.Add(field("portion"), "unknown portion %q", id)
		case !portion.IsAvailable:
			verr.Add(field("portion"), "portion %q is unavailable", portion.Name)
		default:
			item.Portion = &domain.SelectedPortion{Name: portion.Name, PriceModifier: portion.PriceModifier}
			unit = addMinor(unit, portion.PriceModifier, &overflow)
		}
	}

	seenGroups := make(map[string]bool, len(sel.Customizations))
	chosen := make(map[string]bool, len(sel.Customizations))
	for _, choice := range sel.Customizations {
		group, ok := p.FindGroup(choice.GroupID)
		if !ok {
			verr.Add(field("customizations"), "unknown customization %q", choice.GroupID)
			continue
		}
		if seenGroups[group.ID] {
			verr.Add(field("customizations"), "customization %q selected twice", group.Name)
			continue
		}
		seenGroups[group.ID] = true

		if group.MaxSelect > 0 && len(choice.OptionIDs) > group.MaxSelect {
			verr.Add(field("customizations"), "%q allows at most %d options", group.Name, group.MaxSelect)
			continue
		}

		selected := domain.SelectedCustomization{Name: group.Name}
		seen := make(map[string]bool, len(choice.OptionIDs))
		for _, optID := range choice.OptionIDs {
			opt, ok := group.FindOption(optID)
			switch {
			case !ok:
				verr.Add(field("customizations"), "unknown option %q in %q", optID, group.Name)
				continue
			case !opt.IsAvailable:
				verr.Add(field("customizations"), "option %q in %q is unavailable", opt.Name, group.Name)
				continue
			case seen[opt.ID]:
				verr.Add(field("customizations"), "option %q selected twice", opt.Name)
				continue
			}
			seen[opt.ID] = true
			selected.Options = append(selected.Options, domain.SelectedOption{Name: opt.Name, PriceModifier: opt.PriceModifier})
			selected.TotalPriceModifier = addMinor(selected.TotalPriceModifier, opt.PriceModifier, &overflow)
		}
		if len(selected.Options) > 0 {
			chosen[group.ID] = true
			item.Customizations = append(item.Customizations, selected)
			unit = addMinor(unit, selected.TotalPriceModifier, &overflow)
		}
	}

	for _, group := range p.Customizations {
		if group.Required && !chosen[group.ID] {
			verr.Add(field("customizations"), "%q is required", group.Name)
		}
	}

	switch {
	case overflow:
		verr.Add(field("unitPrice"), "is too large")
	case unit < 0:
		verr.Add(field("unitPrice"), "modifiers push the price below zero")
	case qty > 0 && unit > math.MaxInt64/int64(qty):
		verr.Add(field("totalPrice"), "is too large")
	}

	if err := verr.OrNil(); err != nil {
		return domain.LineItem{}, err
	}

	item.UnitPrice = unit
	item.TotalPrice = unit * int64(qty)
	return item, nil
}

// ComputeTotals sums the line items and applies tax once on the subtotal,
// rounding half up to the minor unit. The discount is capped so the total
// never drops below zero.
func (e *Engine) ComputeTotals(items []domain.LineItem, deliveryFee, discount int64) (Totals, error) {
	verr := &domain.ValidationError{}
	if len(items) == 0 {
		verr.Add("items", "at least one item is required")
	}
	if deliveryFee < 0 {
		verr.Add("deliveryFee", "cannot be negative")
	}
	if discount < 0 {
		verr.Add("discountAmount", "cannot be negative")
	}
	if err := verr.OrNil(); err != nil {
		return Totals{}, err
	}

	var subtotal int64
	overflow := false
	for i, it := range items {
		if it.TotalPrice < 0 {
			verr.Add(fmt.Sprintf("items[%d].totalPrice", i), "cannot be negative")
		}
		subtotal = addMinor(subtotal, it.TotalPrice, &overflow)
	}
	if err := verr.OrNil(); err != nil {
		return Totals{}, err
	}

	tax, ok := e.tax(subtotal)
	if !ok {
		overflow = true
	}
	gross := addMinor(addMinor(subtotal, tax, &overflow), deliveryFee, &overflow)
	if overflow {
		return Totals{}, domain.NewValidationError("totalAmount", "is too large")
	}
	if discount > gross {
		discount = gross
	}

	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DeliveryFee:    deliveryFee,
		DiscountAmount: discount,
		TotalAmount:    gross - discount,
	}, nil
}

func (e *Engine) Tax(subtotal int64) int64 {
	tax, _ := e.tax(subtotal)
	return tax
}

// tax reports false when the rounded amount does not fit in int64.
func (e *Engine) tax(subtotal int64) (int64, bool) {
	// Round is half away from zero, which is half-up for non-negative amounts.
	t := decimal.NewFromInt(subtotal).Mul(e.taxRate).Round(0)
	if t.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || t.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, false
	}
	return t.IntPart(), true
}

// addMinor adds b to a and sets *overflow when the sum leaves the int64 range.
func addMinor(a, b int64, overflow *bool) int64 {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		*overflow = true
		return 0
	}
	return sum
}
