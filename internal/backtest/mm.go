package backtest

import (
	"sort"

	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/execsim"
	"github.com/atlas-desktop/trading-backend/internal/mmpolicy"
	"github.com/atlas-desktop/trading-backend/internal/structure"
)

// MMConfig configures the single-timeframe MM driver.
type MMConfig struct {
	Window            int
	Structure         structure.Params
	Bos               structure.BosParams
	Pullback          structure.PullbackParams
	Policy            mmpolicy.Params
	Grid              mmpolicy.GridParams
	DefensiveStepMult float64
	DefensiveSizeMult float64
	MakerFeeBps       float64
	Exec              execsim.Model // force-close fill model
	ForceCloseAtEnd   bool
	InitialBase       float64
	InitialQuote      float64
}

// Result bundles a driver's full output.
type Result struct {
	Report Report
	Equity []EquityRow
	Fills  []Fill
}

// RunMM runs the single-timeframe MM driver over candles in ascending
// timestamp order.
func RunMM(candles []candle.Candle, cfg MMConfig) Result {
	feed := candle.NewFeed(cfg.Window)
	bos := structure.NewTracker()
	pullback := structure.NewPullbackTracker()
	pf := newPortfolio(cfg.InitialBase, cfg.InitialQuote)
	acc := &pnlAccumulator{}

	var equity []EquityRow
	var fills []Fill
	mode := mmpolicy.Disabled.String()

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
		mid, ok := feed.Mid()
		if !ok {
			continue
		}

		if !initialEquitySet {
			initialEquity = float64(mmpolicy.Equity(mmpolicy.Inventory{Base: domain.Qty(pf.base), Quote: domain.Money(pf.quote)}, mid))
			initialEquitySet = true
		}

		snap := structure.Detect(feed.Bars(), cfg.Structure)
		prevBosState := bos.State
		bos.OnCandleClose(c, snap, atr, cfg.Bos)
		if prevBosState == structure.BosConfirmed && bos.State != structure.BosConfirmed {
			pullback.Reset()
		}
		pullback.OnCandleClose(c, bos, atr, cfg.Pullback)

		baseRatio, hasRatio := mmpolicy.BaseRatio(mmpolicy.Inventory{Base: domain.Qty(pf.base), Quote: domain.Money(pf.quote)}, mid)
		var decision mmpolicy.Decision
		if hasRatio {
			decision = mmpolicy.Decide(bos.State, pullback.Triggered, baseRatio, cfg.Policy)
		} else {
			decision = mmpolicy.Decision{Mode: mmpolicy.Disabled, Reason: mmpolicy.ReasonInventoryOutsideHardBand}
		}
		mode = decision.Mode.String()

		if decision.Mode == mmpolicy.Normal || decision.Mode == mmpolicy.Defensive {
			gridParams := cfg.Grid
			if decision.Mode == mmpolicy.Defensive {
				gridParams = mmpolicy.DefensiveProfile(gridParams, cfg.DefensiveStepMult, cfg.DefensiveSizeMult)
			}
			orders := mmpolicy.BuildGrid(mid, mid, mmpolicy.Inventory{Base: domain.Qty(pf.base), Quote: domain.Money(pf.quote)}, gridParams)
			fills = append(fills, fillGrid(c, orders, cfg.MakerFeeBps, mode, pf, acc)...)
		}

		eq, dd, reportable := pf.equityAndDrawdown(float64(c.Close))
		if reportable {
			equity = append(equity, EquityRow{
				TS: int64(c.TS), Close: float64(c.Close), Mode: mode,
				Quote: pf.quote, Base: pf.base, CostBasisQuote: pf.costBasisQuote,
				Equity: eq, DrawdownPct: dd,
			})
		}
	}

	if cfg.ForceCloseAtEnd {
		if lastMid, ok := feed.Mid(); ok && pf.base > 0 {
			lastTS := int64(0)
			if last, ok := feed.Last(); ok {
				lastTS = int64(last.TS)
			}
			fills = append(fills, forceClose(lastTS, lastMid, mode, cfg.Exec, pf, acc))
		}
	}

	finalEquity := initialEquity
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1].Equity
	}

	report := buildReport(fills, acc, pf, initialEquity, finalEquity)
	return Result{Report: report, Equity: equity, Fills: fills}
}

// fillGrid applies the intrabar fill approximation: all buys fill before
// sells; buys are matched descending by price, sells ascending by price.
func fillGrid(c candle.Candle, orders []mmpolicy.DesiredOrder, makerFeeBps float64, mode string, pf *portfolio, acc *pnlAccumulator) []Fill {
	var buys, sells []mmpolicy.DesiredOrder
	for _, o := range orders {
		if o.Side == mmpolicy.Buy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}
	sort.Slice(buys, func(i, j int) bool { return buys[i].Price > buys[j].Price })
	sort.Slice(sells, func(i, j int) bool { return sells[i].Price < sells[j].Price })

	var out []Fill
	for _, o := range buys {
		if float64(c.Low) > float64(o.Price) {
			continue
		}
		qty := float64(o.Qty)
		price := float64(o.Price)
		gross := qty * price
		fee := gross * makerFeeBps / 10_000.0
		totalCost := gross + fee
		if totalCost > pf.quote {
			continue
		}
		pf.applyBuy(qty, totalCost)
		out = append(out, Fill{TS: int64(c.TS), Side: "BUY", Mode: mode, Qty: qty, Price: price, FeeQuote: fee, QuoteDelta: -totalCost})
	}
	for _, o := range sells {
		if float64(c.High) < float64(o.Price) {
			continue
		}
		qty := float64(o.Qty)
		if qty > pf.base {
			qty = pf.base
		}
		if qty <= 0 {
			continue
		}
		price := float64(o.Price)
		gross := qty * price
		fee := gross * makerFeeBps / 10_000.0
		proceeds := gross - fee
		realized := pf.applySell(qty, proceeds)
		acc.record(realized)
		out = append(out, Fill{TS: int64(c.TS), Side: "SELL", Mode: mode, Qty: qty, Price: price, FeeQuote: fee, QuoteDelta: proceeds, RealizedPnL: realized, HasRealizedPnL: true})
	}
	return out
}

// forceClose liquidates remaining base via a simulated market sell at the
// final bar's mid, using the execution cost model rather than the grid's
// maker fee.
func forceClose(ts int64, mid domain.Price, mode string, exec execsim.Model, pf *portfolio, acc *pnlAccumulator) Fill {
	qty := pf.base
	fillPrice := exec.SellFillPrice(mid)
	proceeds := exec.SellProceeds(domain.Qty(qty), mid)
	gross := qty * float64(fillPrice)
	fee := gross - proceeds
	if fee < 0 {
		fee = 0
	}
	realized := pf.applySell(qty, proceeds)
	acc.record(realized)
	return Fill{TS: ts, Side: "SELL", Mode: mode, Qty: qty, Price: float64(fillPrice), FeeQuote: fee, QuoteDelta: proceeds, RealizedPnL: realized, HasRealizedPnL: true}
}

func buildReport(fills []Fill, acc *pnlAccumulator, pf *portfolio, initialEquity, finalEquity float64) Report {
	var buyFills, sellFills int
	for _, f := range fills {
		if f.Side == "BUY" {
			buyFills++
		} else {
			sellFills++
		}
	}
	pnl := finalEquity - initialEquity
	roi := 0.0
	if initialEquity > 0 {
		roi = pnl / initialEquity * 100.0
	}
	return Report{
		BuyFills:       buyFills,
		SellFills:      sellFills,
		WinRatePct:     acc.winRatePct(),
		AvgWin:         mean(acc.wins),
		AvgLoss:        mean(acc.losses),
		ProfitFactor:   profitFactor(acc.grossProfit, acc.grossLoss),
		MaxDrawdownPct: pf.maxDrawdownPct,
		PNL:            pnl,
		ROIPct:         roi,
	}
}
