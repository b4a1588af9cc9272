package mmpolicy

import "github.com/atlas-desktop/trading-backend/internal/domain"

// Side is a desired order's side.
type Side int

const (
	Buy Side = iota
	Sell
)

// DesiredOrder is a single rung of the grid. It is not a placed order —
// emitted fresh per bar, stateless between bars.
type DesiredOrder struct {
	Side  Side
	Price domain.Price
	Qty   domain.Qty
}

// GridParams configures the ladder.
type GridParams struct {
	Levels            int
	StepBps           domain.Bps
	BaseQuotePerOrder domain.Money
	MaxSizeMult       float64
	SoftMin           domain.Ratio
	SoftMax           domain.Ratio
	HardMin           domain.Ratio
	HardMax           domain.Ratio
	MinBaseQty        domain.Qty
}

// Inventory is the current portfolio.
type Inventory struct {
	Base  domain.Qty
	Quote domain.Money
}

// Equity returns quote + base*mid.
func Equity(inv Inventory, mid domain.Price) domain.Money {
	return domain.Money(float64(inv.Quote) + float64(inv.Base)*float64(mid))
}

// BaseRatio returns the base asset's share of equity by value, or false
// when equity is non-positive.
func BaseRatio(inv Inventory, mid domain.Price) (domain.Ratio, bool) {
	e := float64(Equity(inv, mid))
	if e <= 0 {
		return 0, false
	}
	return domain.Ratio((float64(inv.Base) * float64(mid)) / e), true
}

func bpsFactor(bps domain.Bps) float64 {
	return 1.0 + float64(bps)/10_000.0
}

// BuildGrid constructs a symmetric ladder of desired buy/sell orders
// anchored at anchor, biased by inventory ratio and capped by remaining
// budget. Returns nil when the grid cannot be built per spec.md §4.3.
func BuildGrid(anchor, mid domain.Price, inv Inventory, params GridParams) []DesiredOrder {
	if params.Levels == 0 || mid <= 0 || anchor <= 0 {
		return nil
	}
	if inv.Base < 0 || inv.Quote < 0 {
		return nil
	}

	r, ok := BaseRatio(inv, mid)
	if !ok {
		return nil
	}
	if r < params.HardMin || r > params.HardMax {
		return nil
	}

	const target = 0.5
	dist := float64(r) - target
	if dist < 0 {
		dist = -dist
	}
	distFrac := dist / 0.5
	if distFrac > 1 {
		distFrac = 1
	}
	mult := 1.0 + (params.MaxSizeMult-1.0)*distFrac

	out := make([]DesiredOrder, 0, params.Levels*2)
	remainingBase := float64(inv.Base)
	remainingQuote := float64(inv.Quote)

	for level := 1; level <= params.Levels; level++ {
		stepBps := domain.Bps(float64(params.StepBps) * float64(level))
		factor := bpsFactor(stepBps)

		buyPrice := domain.Price(float64(anchor) / factor)
		sellPrice := domain.Price(float64(anchor) * factor)

		baseQtyBuy := float64(params.BaseQuotePerOrder) / float64(buyPrice)
		baseQtySell := float64(params.BaseQuotePerOrder) / float64(sellPrice)

		var buyMult, sellMult float64
		switch {
		case float64(r) > target:
			buyMult, sellMult = 1.0/mult, mult
		case float64(r) < target:
			buyMult, sellMult = mult, 1.0/mult
		default:
			buyMult, sellMult = 1.0, 1.0
		}

		desiredBuyQty := baseQtyBuy * buyMult
		desiredSellQty := baseQtySell * sellMult

		maxBuyQtyByQuote := 0.0
		if float64(buyPrice) > 0 {
			maxBuyQtyByQuote = remainingQuote / float64(buyPrice)
		}
		buyQty := clampNonNeg(minF(desiredBuyQty, maxBuyQtyByQuote))
		sellQty := clampNonNeg(minF(desiredSellQty, remainingBase))

		if buyQty >= float64(params.MinBaseQty) {
			remainingQuote -= buyQty * float64(buyPrice)
			out = append(out, DesiredOrder{Side: Buy, Price: buyPrice, Qty: domain.Qty(buyQty)})
		}
		if sellQty >= float64(params.MinBaseQty) {
			remainingBase -= sellQty
			out = append(out, DesiredOrder{Side: Sell, Price: sellPrice, Qty: domain.Qty(sellQty)})
		}
	}

	return out
}

// DefensiveProfile returns grid params adjusted for Defensive mode: the
// step is widened by stepMult (>=1) and the per-order size shrunk by
// sizeMult (clamped to [0.05, 1.0]).
func DefensiveProfile(base GridParams, stepMult, sizeMult float64) GridParams {
	if stepMult < 1 {
		stepMult = 1
	}
	if sizeMult < 0.05 {
		sizeMult = 0.05
	}
	if sizeMult > 1.0 {
		sizeMult = 1.0
	}
	out := base
	out.StepBps = domain.Bps(float64(base.StepBps) * stepMult)
	out.BaseQuotePerOrder = domain.Money(float64(base.BaseQuotePerOrder) * sizeMult)
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func clampNonNeg(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
