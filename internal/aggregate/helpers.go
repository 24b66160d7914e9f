package aggregate

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// toDecimal scales a raw token amount by its decimals.
func toDecimal(value *big.Int, decimals int32) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -decimals)
}

// rawDecimal keeps a raw integer amount unscaled.
func rawDecimal(value *big.Int) decimal.Decimal {
	return toDecimal(value, 0)
}

func rawDecimals(values []*big.Int) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, rawDecimal(v))
	}
	return out
}

// deltaReserves returns next minus prev per token. A missing previous
// reserve counts as zero.
func deltaReserves(next []*big.Int, prev []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(next))
	for i, v := range next {
		out[i] = rawDecimal(v)
		if i < len(prev) {
			out[i] = out[i].Sub(prev[i])
		}
	}
	return out
}

// clamp saturates value into [lo, hi].
func clamp(value, lo, hi decimal.Decimal) decimal.Decimal {
	if value.LessThan(lo) {
		return lo
	}
	if value.GreaterThan(hi) {
		return hi
	}
	return value
}

func indexOf(items []string, target string) int {
	for i, item := range items {
		if item == target {
			return i
		}
	}
	return -1
}
