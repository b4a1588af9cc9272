package backtest

import (
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/execsim"
	"github.com/atlas-desktop/trading-backend/internal/structure"
	"github.com/atlas-desktop/trading-backend/internal/trendpolicy"
)

// TrendConfig configures the long-only EMA-cross trend driver.
type TrendConfig struct {
	Window         int
	FastPeriod     int
	SlowPeriod     int
	Policy         trendpolicy.Params
	Gate           trendpolicy.SweepGateParams // Gate == GateNone disables sweep gating
	Structure      structure.Params            // only evaluated when Gate != GateNone
	Bos            structure.BosParams
	Pullback       structure.PullbackParams
	Exec           execsim.Model
	PositionQuote  float64 // quote notional spent entering a position
	ForceCloseAtEnd bool
	InitialQuote   float64
}

// ema is an exponential moving average accumulator.
type ema struct {
	period int
	value  float64
	set    bool
}

func (e *ema) push(price float64) float64 {
	if !e.set {
		e.value = price
		e.set = true
		return e.value
	}
	k := 2.0 / (float64(e.period) + 1.0)
	e.value = e.value + k*(price-e.value)
	return e.value
}

// RunTrend runs the trend driver over candles in ascending timestamp order.
func RunTrend(candles []candle.Candle, cfg TrendConfig) Result {
	feed := candle.NewFeed(cfg.Window)
	fast := &ema{period: cfg.FastPeriod}
	slow := &ema{period: cfg.SlowPeriod}
	bos := structure.NewTracker()
	pullback := structure.NewPullbackTracker()

	pf := newPortfolio(0, cfg.InitialQuote)
	acc := &pnlAccumulator{}

	var equity []EquityRow
	var fills []Fill
	mode := trendpolicy.Flat.String()
	trendMode := trendpolicy.Flat

	var entryPrice domain.Price
	hasEntry := false
	barsSinceExit := 0

	var initialEquity float64
	initialEquitySet := false

	for _, c := range candles {
		if !feed.Push(c) {
			continue
		}
		atr, ok := feed.ATR()
		if !ok {
			continue
		}
		fastVal := domain.Price(fast.push(float64(c.Close)))
		slowVal := domain.Price(slow.push(float64(c.Close)))

		if !initialEquitySet {
			initialEquity = cfg.InitialQuote
			initialEquitySet = true
		}

		gateActive := cfg.Gate.Gate != trendpolicy.GateNone
		var bosConfirmed, pullbackTriggered bool
		if gateActive {
			snap := structure.Detect(feed.Bars(), cfg.Structure)
			prevBosState := bos.State
			bos.OnCandleClose(c, snap, atr, cfg.Bos)
			if prevBosState == structure.BosConfirmed && bos.State != structure.BosConfirmed {
				pullback.Reset()
			}
			pullback.OnCandleClose(c, bos, atr, cfg.Pullback)
			bosConfirmed = bos.State == structure.BosConfirmed
			pullbackTriggered = pullback.Triggered
		}

		in := trendpolicy.Input{
			Close: c.Close, ATR: atr, EmaFast: fastVal, EmaSlow: slowVal,
			PositionQty: domain.Qty(pf.base), EntryPrice: entryPrice, HasEntry: hasEntry,
		}
		decision := trendpolicy.Decide(trendMode, in, cfg.Policy)
		if gateActive {
			trendGapBps := 0.0
			if slowVal != 0 {
				gap := float64(fastVal - slowVal)
				if gap < 0 {
					gap = -gap
				}
				trendGapBps = gap / float64(slowVal) * 10_000.0
			}
			atrPct := 0.0
			if c.Close != 0 {
				atrPct = float64(atr) / float64(c.Close) * 100.0
			}
			decision = trendpolicy.ApplySweepGates(decision, trendMode, trendpolicy.SweepGateInput{
				BosConfirmed: bosConfirmed, PullbackTriggered: pullbackTriggered,
				TrendGapBps: trendGapBps, BarsSinceExit: barsSinceExit, AtrPct: atrPct,
			}, cfg.Gate)
		}

		switch decision.Action {
		case trendpolicy.EnterLong:
			qty := cfg.Exec.BuyQtyForQuote(cfg.PositionQuote, c.Close)
			if float64(qty) > 0 {
				cost := cfg.Exec.BuyCost(qty, c.Close)
				pf.applyBuy(float64(qty), cost)
				entryPrice = cfg.Exec.BuyFillPrice(c.Close)
				hasEntry = true
				fills = append(fills, Fill{TS: int64(c.TS), Side: "BUY", Mode: "Long", Qty: float64(qty), Price: float64(entryPrice), QuoteDelta: -cost})
			}
			barsSinceExit = 0
		case trendpolicy.ExitLong:
			if pf.base > 0 {
				qty := pf.base
				fillPrice := cfg.Exec.SellFillPrice(c.Close)
				proceeds := cfg.Exec.SellProceeds(domain.Qty(qty), c.Close)
				realized := pf.applySell(qty, proceeds)
				acc.record(realized)
				fills = append(fills, Fill{TS: int64(c.TS), Side: "SELL", Mode: "Flat", Qty: qty, Price: float64(fillPrice), QuoteDelta: proceeds, RealizedPnL: realized, HasRealizedPnL: true})
			}
			hasEntry = false
			entryPrice = 0
			barsSinceExit = 0
		case trendpolicy.HoldFlat:
			barsSinceExit++
		}

		trendMode = decision.NextMode
		mode = trendMode.String()

		eq, dd, reportable := pf.equityAndDrawdown(float64(c.Close))
		if reportable {
			equity = append(equity, EquityRow{
				TS: int64(c.TS), Close: float64(c.Close), Mode: mode,
				Quote: pf.quote, Base: pf.base, CostBasisQuote: pf.costBasisQuote,
				Equity: eq, DrawdownPct: dd,
			})
		}
	}

	if cfg.ForceCloseAtEnd && pf.base > 0 {
		if last, ok := feed.Last(); ok {
			fills = append(fills, forceClose(int64(last.TS), last.Close, mode, cfg.Exec, pf, acc))
		}
	}

	finalEquity := initialEquity
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1].Equity
	}

	report := buildReport(fills, acc, pf, initialEquity, finalEquity)
	return Result{Report: report, Equity: equity, Fills: fills}
}
