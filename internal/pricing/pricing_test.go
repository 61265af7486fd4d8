package pricing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hariomGiri/localshop-connect-sub001/internal/domain"
	apperrors "github.com/hariomGiri/localshop-connect-sub001/pkg/errors"
)

func newEngine(t *testing.T, rate string, fee int64) *Engine {
	t.Helper()
	e, err := NewEngine(Config{TaxRate: decimal.RequireFromString(rate), BaseDeliveryFee: fee})
	require.NoError(t, err)
	return e
}

func TestPrice_TwoShopScenario(t *testing.T) {
	e := newEngine(t, "0.08", 300)

	totals, err := e.Price([]domain.ShopGroup{
		{ShopID: "S1", Subtotal: 2000},
		{ShopID: "S2", Subtotal: 550},
	})
	require.NoError(t, err)

	assert.Equal(t, Totals{Subtotal: 2550, Tax: 204, DeliveryFee: 300, Total: 3054}, totals)
}

func TestPrice_TotalInvariant(t *testing.T) {
	e := newEngine(t, "0.0725", 150)

	for _, subtotals := range [][]int64{{1}, {999, 1}, {12345, 67890, 5}, {0}} {
		groups := make([]domain.ShopGroup, len(subtotals))
		for i, s := range subtotals {
			groups[i] = domain.ShopGroup{Subtotal: s}
		}
		got, err := e.Price(groups)
		require.NoError(t, err)
		assert.Equal(t, got.Subtotal+got.Tax+got.DeliveryFee, got.Total)
	}
}

func TestPrice_RejectsOverflow(t *testing.T) {
	e := newEngine(t, "0.08", 300)

	_, err := e.Price([]domain.ShopGroup{
		{ShopID: "S1", Subtotal: math.MaxInt64 - 10},
		{ShopID: "S2", Subtotal: 11},
	})
	assert.Equal(t, domain.CodeAmountOutOfRange, apperrors.Code(err))

	// The subtotal fits but tax and fee push the total over.
	_, err = e.Price([]domain.ShopGroup{{ShopID: "S1", Subtotal: math.MaxInt64 - 100}})
	assert.Equal(t, domain.CodeAmountOutOfRange, apperrors.Code(err))
}

func TestTax_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		subtotal int64
		rate     string
		want     int64
	}{
		{2550, "0.08", 204},
		{1250, "0.1", 125},
		{125, "0.1", 13},  // 12.5 -> 13
		{124, "0.1", 12},  // 12.4 -> 12
		{1, "0.5", 1},     // 0.5 -> 1
		{333, "0.015", 5}, // 4.995 -> 5
		{1000, "0", 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Tax(tc.subtotal, decimal.RequireFromString(tc.rate)), "%d × %s", tc.subtotal, tc.rate)
	}
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	_, err := NewEngine(Config{TaxRate: decimal.RequireFromString("-0.01")})
	assert.Error(t, err)

	_, err = NewEngine(Config{TaxRate: decimal.RequireFromString("1.5")})
	assert.Error(t, err)

	_, err = NewEngine(Config{TaxRate: decimal.Zero, BaseDeliveryFee: -1})
	assert.Error(t, err)

	_, err = NewEngine(Config{TaxRate: decimal.Zero})
	assert.NoError(t, err)
}
