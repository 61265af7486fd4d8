package domain

import "math"

// MaxQuantity bounds the quantity of a single cart line.
const MaxQuantity = 1000

// AddAmounts adds two non-negative cent amounts, failing instead of wrapping
// when the sum does not fit in an int64.
func AddAmounts(a, b int64) (int64, error) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, ErrAmountOutOfRange()
	}
	return a + b, nil
}
