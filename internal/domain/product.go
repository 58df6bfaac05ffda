package domain

import "time"

// ProductSnapshot is what the catalog reports for a product at lookup time.
// Prices are in minor currency units.
type ProductSnapshot struct {
	ID              uint64               `json:"id"`
	Name            string               `json:"name"`
	ImageURL        string               `json:"imageUrl,omitempty"`
	Price           int64                `json:"price"`
	IsActive        bool                 `json:"isActive"`
	IsAvailable     bool                 `json:"isAvailable"`
	StockQuantity   int64                `json:"stockQuantity"`
	IsStockTracked  bool                 `json:"isStockTracked"`
	PreparationTime int                  `json:"preparationTime"` // minutes
	Portions        []Portion            `json:"portions,omitempty"`
	Customizations  []CustomizationGroup `json:"customizations,omitempty"`
}

type Portion struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PriceModifier int64  `json:"priceModifier"`
	IsAvailable   bool   `json:"isAvailable"`
}

type CustomizationGroup struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Required  bool                  `json:"required,omitempty"`
	MaxSelect int                   `json:"maxSelect,omitempty"` // 0 means unlimited
	Options   []CustomizationOption `json:"options"`
}

type CustomizationOption struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PriceModifier int64  `json:"priceModifier"`
	IsAvailable   bool   `json:"isAvailable"`
}

func (p *ProductSnapshot) Orderable() bool {
	return p.IsActive && p.IsAvailable
}

func (p *ProductSnapshot) FindPortion(id string) (Portion, bool) {
	for _, portion := range p.Portions {
		if portion.ID == id {
			return portion, true
		}
	}
	return Portion{}, false
}

func (p *ProductSnapshot) FindGroup(id string) (CustomizationGroup, bool) {
	for _, g := range p.Customizations {
		if g.ID == id {
			return g, true
		}
	}
	return CustomizationGroup{}, false
}

func (g *CustomizationGroup) FindOption(id string) (CustomizationOption, bool) {
	for _, o := range g.Options {
		if o.ID == id {
			return o, true
		}
	}
	return CustomizationOption{}, false
}

// ProductStock is the service-owned stock ledger row for a stock-tracked
// product. It is seeded from the catalog the first time the product is
// ordered and is authoritative afterwards.
type ProductStock struct {
	ProductID uint64    `json:"productId" gorm:"primaryKey;autoIncrement:false"`
	Quantity  int64     `json:"quantity" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
