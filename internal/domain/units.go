// Package domain defines the unit-carrying value types shared across the
// strategy decision core: prices, quantities, money, basis points, ratios,
// and timestamps. Arithmetic is deliberately narrow — only the conversions
// the rest of the system actually needs — so that mixing units is a compile
// error instead of a silent bug.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is the quoted price of one unit of base in quote terms.
type Price float64

// Qty is an amount of the base asset.
type Qty float64

// Money is an amount of the quote asset.
type Money float64

// Bps is a basis-point quantity (1 bps = 0.01%).
type Bps float64

// Ratio is a dimensionless fraction, typically in [0,1].
type Ratio float64

// TimestampMs is a unix-epoch millisecond timestamp.
type TimestampMs int64

// AsRatio converts basis points to a plain ratio (e.g. 150 bps -> 0.015).
func (b Bps) AsRatio() Ratio {
	return Ratio(float64(b) / 10_000.0)
}

// Clamp01 clamps a ratio into [0,1].
func (r Ratio) Clamp01() Ratio {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Mul converts a quantity at a price into a money amount: qty * price.
func (q Qty) Mul(p Price) Money {
	return Money(float64(q) * float64(p))
}

// Div converts a money amount at a price into a quantity: money / price.
func (m Money) Div(p Price) Qty {
	return Qty(float64(m) / float64(p))
}

func (p Price) String() string { return fmt.Sprintf("%.4f", float64(p)) }
func (m Money) String() string { return fmt.Sprintf("%.2f", float64(m)) }
func (b Bps) String() string   { return fmt.Sprintf("%.2f bps", float64(b)) }

// DecimalMoney converts a Money value to a decimal.Decimal for
// persistence where exact textual round-tripping matters. The run metrics
// and artifact CSV writers format float64 values and do not use it.
func DecimalMoney(m Money) decimal.Decimal {
	return decimal.NewFromFloat(float64(m))
}

// DecimalPrice converts a Price value to a decimal.Decimal for persistence.
func DecimalPrice(p Price) decimal.Decimal {
	return decimal.NewFromFloat(float64(p))
}
