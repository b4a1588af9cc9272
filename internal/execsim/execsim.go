// Package execsim implements the deterministic fee/spread/slippage fill
// model used by the backtest drivers to simulate market fills.
package execsim

import "github.com/atlas-desktop/trading-backend/internal/domain"

// Model is a fully-specified cost model. All three parameters are clamped
// to >= 0 before conversion to ratios.
type Model struct {
	FeeBps      float64
	SpreadBps   float64
	SlippageBps float64
}

func bpsToRatio(bps float64) float64 {
	if bps < 0 {
		bps = 0
	}
	return bps / 10_000.0
}

// BuyFillPrice returns the price paid on a simulated buy.
func (m Model) BuyFillPrice(mid domain.Price) domain.Price {
	halfSpread := bpsToRatio(m.SpreadBps) / 2.0
	slippage := bpsToRatio(m.SlippageBps)
	return domain.Price(float64(mid) * (1.0 + halfSpread + slippage))
}

// SellFillPrice returns the price received on a simulated sell.
func (m Model) SellFillPrice(mid domain.Price) domain.Price {
	halfSpread := bpsToRatio(m.SpreadBps) / 2.0
	slippage := bpsToRatio(m.SlippageBps)
	return domain.Price(float64(mid) * (1.0 - halfSpread - slippage))
}

// BuyQtyForQuote returns how much base a quote budget buys at mid,
// inclusive of fees.
func (m Model) BuyQtyForQuote(quoteBudget float64, mid domain.Price) domain.Qty {
	if quoteBudget <= 0 || mid <= 0 {
		return 0
	}
	fee := bpsToRatio(m.FeeBps)
	fill := float64(m.BuyFillPrice(mid))
	if fill <= 0 {
		return 0
	}
	return domain.Qty(quoteBudget / (fill * (1.0 + fee)))
}

// BuyCost returns the total quote cost of buying qty at mid, inclusive of
// fees.
func (m Model) BuyCost(qty domain.Qty, mid domain.Price) float64 {
	if qty <= 0 || mid <= 0 {
		return 0
	}
	fee := bpsToRatio(m.FeeBps)
	return float64(qty) * float64(m.BuyFillPrice(mid)) * (1.0 + fee)
}

// SellProceeds returns the net quote proceeds of selling qty at mid, net of
// fees.
func (m Model) SellProceeds(qty domain.Qty, mid domain.Price) float64 {
	if qty <= 0 || mid <= 0 {
		return 0
	}
	fee := bpsToRatio(m.FeeBps)
	return float64(qty) * float64(m.SellFillPrice(mid)) * (1.0 - fee)
}
