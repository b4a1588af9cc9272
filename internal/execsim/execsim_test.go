package execsim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/internal/domain"
)

func TestBuyFillAboveMidSellFillBelowMid(t *testing.T) {
	m := Model{FeeBps: 10, SpreadBps: 8, SlippageBps: 2}
	mid := domain.Price(100)
	assert.Greater(t, float64(m.BuyFillPrice(mid)), float64(mid))
	assert.Less(t, float64(m.SellFillPrice(mid)), float64(mid))
}

func TestBuyCostDoesNotExceedBudget(t *testing.T) {
	m := Model{FeeBps: 10, SpreadBps: 8, SlippageBps: 2}
	budget := 1000.0
	mid := domain.Price(200)
	qty := m.BuyQtyForQuote(budget, mid)
	cost := m.BuyCost(qty, mid)
	assert.LessOrEqual(t, cost, budget+1e-9)
}

func TestRoundTripLosesMoneyWithCosts(t *testing.T) {
	m := Model{FeeBps: 10, SpreadBps: 10, SlippageBps: 5}
	mid := domain.Price(100)
	quote := 1000.0
	qty := m.BuyQtyForQuote(quote, mid)
	proceeds := m.SellProceeds(qty, mid)
	assert.Less(t, proceeds, quote)
}
