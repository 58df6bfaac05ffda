package services

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const orderNumberSpace = 10000

// OrderNumberGenerator produces <PREFIX>-<YYYYMMDD>-<NNNN> numbers. It does
// not guarantee uniqueness; the repository's unique index does, and
// CreateOrder retries on collision.
type OrderNumberGenerator struct {
	prefix string
	clock  func() time.Time
	intN   func(n int) int
}

func NewOrderNumberGenerator(prefix string, clock func() time.Time) *OrderNumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "ORD"
	}
	if clock == nil {
		clock = time.Now
	}
	return &OrderNumberGenerator{prefix: prefix, clock: clock, intN: rand.IntN}
}

func (g *OrderNumberGenerator) Next() string {
	day := g.clock().UTC().Format("20060102")
	return fmt.Sprintf("%s-%s-%04d", g.prefix, day, g.intN(orderNumberSpace))
}
