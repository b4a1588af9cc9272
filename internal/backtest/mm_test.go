package backtest

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/execsim"
	"github.com/atlas-desktop/trading-backend/internal/mmpolicy"
	"github.com/atlas-desktop/trading-backend/internal/structure"
)

func mk(ts int64, o, h, l, c float64) candle.Candle {
	return candle.Candle{
		TS: domain.TimestampMs(ts), Open: domain.Price(o), High: domain.Price(h),
		Low: domain.Price(l), Close: domain.Price(c), Volume: 1,
	}
}

func baseMMConfig() MMConfig {
	return MMConfig{
		Window:    50,
		Structure: structure.Params{PivotK: 1, MinATRFrac: 0.1},
		Bos:       structure.BosParams{ConfirmBars: 1, EpsilonFrac: 0.01},
		Pullback:  structure.PullbackParams{EpsilonFrac: 0.01, RetraceFrac: 0.3},
		Policy: mmpolicy.Params{
			SoftMin: 0.35, SoftMax: 0.65, HardMin: 0.10, HardMax: 0.90,
		},
		Grid: mmpolicy.GridParams{
			Levels: 2, StepBps: 20, BaseQuotePerOrder: 100, MaxSizeMult: 1.5,
			MinBaseQty: 0.0001,
		},
		DefensiveStepMult: 1.5,
		DefensiveSizeMult: 0.5,
		MakerFeeBps:       5,
		InitialBase:       0,
		InitialQuote:      10_000,
	}
}

func TestRunMMDoesNotExceedBudget(t *testing.T) {
	var candles []candle.Candle
	price := 100.0
	for i := int64(0); i < 40; i++ {
		price += 1
		candles = append(candles, mk(i*60_000, price, price+2, price-2, price+1))
	}

	cfg := baseMMConfig()
	res := RunMM(candles, cfg)

	for _, row := range res.Equity {
		if row.Quote < -1e-6 {
			t.Fatalf("quote balance went negative: %v", row.Quote)
		}
		if row.Base < -1e-6 {
			t.Fatalf("base balance went negative: %v", row.Base)
		}
	}
}

func TestRunMMProducesEquityRows(t *testing.T) {
	var candles []candle.Candle
	price := 100.0
	for i := int64(0); i < 10; i++ {
		price += 0.5
		candles = append(candles, mk(i*60_000, price, price+1, price-1, price+0.2))
	}
	res := RunMM(candles, baseMMConfig())
	if len(res.Equity) == 0 {
		t.Fatalf("expected at least one equity row")
	}
}

func TestRunMMForceCloseLiquidatesBase(t *testing.T) {
	cfg := baseMMConfig()
	cfg.InitialBase = 1.0
	cfg.InitialQuote = 0
	cfg.ForceCloseAtEnd = true
	cfg.Exec = execsim.Model{FeeBps: 10, SpreadBps: 5, SlippageBps: 2}

	var candles []candle.Candle
	price := 100.0
	for i := int64(0); i < 5; i++ {
		candles = append(candles, mk(i*60_000, price, price+1, price-1, price))
	}
	res := RunMM(candles, cfg)

	if res.Report.SellFills == 0 {
		t.Fatalf("expected force-close to record a sell fill")
	}
}
