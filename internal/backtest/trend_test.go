package backtest

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/execsim"
	"github.com/atlas-desktop/trading-backend/internal/trendpolicy"
)

func baseTrendConfig() TrendConfig {
	return TrendConfig{
		Window:        50,
		FastPeriod:    3,
		SlowPeriod:    8,
		Policy:        trendpolicy.Params{AtrStopMult: 2.5},
		Gate:          trendpolicy.SweepGateParams{Gate: trendpolicy.GateNone},
		Exec:          execsim.Model{FeeBps: 5, SpreadBps: 5, SlippageBps: 2},
		PositionQuote: 1_000,
		InitialQuote:  10_000,
	}
}

func TestRunTrendEntersOnUptrend(t *testing.T) {
	var candles []candle.Candle
	price := 100.0
	for i := int64(0); i < 30; i++ {
		price += 2
		candles = append(candles, mk(i*60_000, price, price+1, price-1, price))
	}
	res := RunTrend(candles, baseTrendConfig())
	if res.Report.BuyFills == 0 {
		t.Fatalf("expected the driver to enter long during a sustained uptrend")
	}
}

func TestRunTrendExitsOnDowntrendAfterEntry(t *testing.T) {
	var candles []candle.Candle
	price := 100.0
	for i := int64(0); i < 20; i++ {
		price += 2
		candles = append(candles, mk(i*60_000, price, price+1, price-1, price))
	}
	for i := int64(20); i < 45; i++ {
		price -= 3
		candles = append(candles, mk(i*60_000, price, price+1, price-1, price))
	}
	res := RunTrend(candles, baseTrendConfig())
	if res.Report.SellFills == 0 {
		t.Fatalf("expected the driver to exit long once the trend reverses")
	}
}

func TestRunTrendGatedBySweepParamsBlocksEntry(t *testing.T) {
	cfg := baseTrendConfig()
	cfg.Gate = trendpolicy.SweepGateParams{Gate: trendpolicy.GateBos, MinTrendGapBps: 0, CooldownBars: 0, MaxAtrPct: 100}

	var candles []candle.Candle
	price := 100.0
	for i := int64(0); i < 30; i++ {
		price += 2
		candles = append(candles, mk(i*60_000, price, price+1, price-1, price))
	}
	res := RunTrend(candles, cfg)
	if res.Report.BuyFills != 0 {
		t.Fatalf("expected the BOS gate to block entry with no structure ever confirmed, got %d buys", res.Report.BuyFills)
	}
}
