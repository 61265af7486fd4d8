// Package pricing turns a shop partition into order totals.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
)

// Config holds the tax rate (a fraction, 0.08 for 8%) and the flat delivery fee in cents.
type Config struct {
	TaxRate         decimal.Decimal
	BaseDeliveryFee int64
}

// Totals is the financial snapshot stored on an order.
type Totals struct {
	Subtotal    int64
	Tax         int64
	DeliveryFee int64
	Total       int64
}

// Engine prices carts. It is immutable and safe for concurrent use.
type Engine struct {
	taxRate decimal.Decimal
	fee     int64
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate must be between 0 and 1, got %s", cfg.TaxRate)
	}
	if cfg.BaseDeliveryFee < 0 {
		return nil, errors.New("base delivery fee must not be negative")
	}
	return &Engine{taxRate: cfg.TaxRate, fee: cfg.BaseDeliveryFee}, nil
}

// Price sums the group subtotals, applies tax rounded half-up to whole cents,
// and adds the flat delivery fee once per order regardless of shop count. Sums
// that do not fit in an int64 are rejected rather than wrapped.
func (e *Engine) Price(groups []domain.ShopGroup) (Totals, error) {
	var subtotal int64
	for _, g := range groups {
		var err error
		if subtotal, err = domain.AddAmounts(subtotal, g.Subtotal); err != nil {
			return Totals{}, err
		}
	}
	tax := Tax(subtotal, e.taxRate)

	total, err := domain.AddAmounts(subtotal, tax)
	if err != nil {
		return Totals{}, err
	}
	if total, err = domain.AddAmounts(total, e.fee); err != nil {
		return Totals{}, err
	}

	return Totals{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: e.fee,
		Total:       total,
	}, nil
}

// Tax returns subtotal × rate rounded half away from zero to whole cents.
func Tax(subtotal int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(subtotal).Mul(rate).Round(0).IntPart()
}
