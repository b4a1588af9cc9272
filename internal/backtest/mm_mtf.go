package backtest

import (
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/execsim"
	"github.com/atlas-desktop/trading-backend/internal/mmpolicy"
	"github.com/atlas-desktop/trading-backend/internal/structure"
)

// MMMTFConfig configures the multi-timeframe MM driver: structure, BOS and
// pullback are evaluated on the higher timeframe; grid construction and
// fill simulation happen bar-by-bar on the nested lower timeframe.
type MMMTFConfig struct {
	Window            int
	Structure         structure.Params
	Bos               structure.BosParams
	Pullback          structure.PullbackParams
	Policy            mmpolicy.Params
	Grid              mmpolicy.GridParams
	DefensiveStepMult float64
	DefensiveSizeMult float64
	MakerFeeBps       float64
	Exec              execsim.Model
	ForceCloseAtEnd   bool
	InitialBase       float64
	InitialQuote      float64
	// BootstrapTargetRatio is the base-asset equity share a bootstrap
	// rebalance trade aims for when the policy is disabled purely on a hard
	// band breach while structure otherwise confirms a tradeable move.
	BootstrapTargetRatio domain.Ratio
}

// RunMMMTF runs the multi-timeframe MM driver. htf and ltf must both be in
// ascending timestamp order. Each ltf candle is simulated inside the htf
// window it falls in; ltf candles timestamped before the first htf candle
// are skipped.
func RunMMMTF(htf, ltf []candle.Candle, cfg MMMTFConfig) Result {
	htfFeed := candle.NewFeed(cfg.Window)
	bos := structure.NewTracker()
	pullback := structure.NewPullbackTracker()
	pf := newPortfolio(cfg.InitialBase, cfg.InitialQuote)
	acc := &pnlAccumulator{}

	var equity []EquityRow
	var fills []Fill
	bootstrapTrades := 0

	var initialEquity float64
	initialEquitySet := false

	ltfIdx := 0

	// mode/gridParams/buildGrid are the decision carried over from the
	// previous HTF close. They drive every LTF bar inside the current HTF
	// window; recomputing them from hc itself (below) only takes effect on
	// the window that follows, since hc's own close isn't knowable until
	// its window has fully elapsed.
	mode := mmpolicy.Disabled.String()
	var gridParams mmpolicy.GridParams
	buildGrid := false

	for hi, hc := range htf {
		nextHtfTS := domain.TimestampMs(1<<62)
		if hi+1 < len(htf) {
			nextHtfTS = htf[hi+1].TS
		}

		for ltfIdx < len(ltf) && ltf[ltfIdx].TS < hc.TS {
			ltfIdx++
		}

		for ltfIdx < len(ltf) && ltf[ltfIdx].TS < nextHtfTS {
			lc := ltf[ltfIdx]
			ltfIdx++

			if buildGrid {
				orders := mmpolicy.BuildGrid(lc.Close, lc.Close, mmpolicy.Inventory{Base: domain.Qty(pf.base), Quote: domain.Money(pf.quote)}, gridParams)
				fills = append(fills, fillGrid(lc, orders, cfg.MakerFeeBps, mode, pf, acc)...)
			}

			eq, dd, reportable := pf.equityAndDrawdown(float64(lc.Close))
			if reportable {
				equity = append(equity, EquityRow{
					TS: int64(lc.TS), Close: float64(lc.Close), Mode: mode,
					Quote: pf.quote, Base: pf.base, CostBasisQuote: pf.costBasisQuote,
					Equity: eq, DrawdownPct: dd,
				})
			}
		}

		if !htfFeed.Push(hc) {
			mode, buildGrid = mmpolicy.Disabled.String(), false
			continue
		}
		atr, ok := htfFeed.ATR()
		if !ok {
			mode, buildGrid = mmpolicy.Disabled.String(), false
			continue
		}
		mid, ok := htfFeed.Mid()
		if !ok {
			mode, buildGrid = mmpolicy.Disabled.String(), false
			continue
		}

		if !initialEquitySet {
			initialEquity = float64(mmpolicy.Equity(mmpolicy.Inventory{Base: domain.Qty(pf.base), Quote: domain.Money(pf.quote)}, mid))
			initialEquitySet = true
		}

		snap := structure.Detect(htfFeed.Bars(), cfg.Structure)
		prevBosState := bos.State
		bos.OnCandleClose(hc, snap, atr, cfg.Bos)
		if prevBosState == structure.BosConfirmed && bos.State != structure.BosConfirmed {
			pullback.Reset()
		}
		pullback.OnCandleClose(hc, bos, atr, cfg.Pullback)

		baseRatio, hasRatio := mmpolicy.BaseRatio(mmpolicy.Inventory{Base: domain.Qty(pf.base), Quote: domain.Money(pf.quote)}, mid)
		var decision mmpolicy.Decision
		if hasRatio {
			decision = mmpolicy.Decide(bos.State, pullback.Triggered, baseRatio, cfg.Policy)
		} else {
			decision = mmpolicy.Decision{Mode: mmpolicy.Disabled, Reason: mmpolicy.ReasonInventoryOutsideHardBand}
		}

		if decision.Mode == mmpolicy.Disabled && decision.Reason == mmpolicy.ReasonInventoryOutsideHardBand &&
			bos.State == structure.BosConfirmed && pullback.Triggered {
			if f, ok := bootstrapRebalance(hc.TS, mid, cfg.BootstrapTargetRatio, cfg.Exec, pf, acc); ok {
				fills = append(fills, f)
				bootstrapTrades++
			}
			baseRatio, hasRatio = mmpolicy.BaseRatio(mmpolicy.Inventory{Base: domain.Qty(pf.base), Quote: domain.Money(pf.quote)}, mid)
			if hasRatio {
				decision = mmpolicy.Decide(bos.State, pullback.Triggered, baseRatio, cfg.Policy)
			}
		}

		mode = decision.Mode.String()
		buildGrid = decision.Mode == mmpolicy.Normal || decision.Mode == mmpolicy.Defensive
		if buildGrid {
			gridParams = cfg.Grid
			if decision.Mode == mmpolicy.Defensive {
				gridParams = mmpolicy.DefensiveProfile(gridParams, cfg.DefensiveStepMult, cfg.DefensiveSizeMult)
			}
		}
	}

	if cfg.ForceCloseAtEnd && pf.base > 0 {
		if mid, ok := htfFeed.Mid(); ok {
			lastTS := int64(0)
			if last, ok := htfFeed.Last(); ok {
				lastTS = int64(last.TS)
			}
			fills = append(fills, forceClose(lastTS, mid, mmpolicy.Disabled.String(), cfg.Exec, pf, acc))
		}
	}

	finalEquity := initialEquity
	if len(equity) > 0 {
		finalEquity = equity[len(equity)-1].Equity
	}

	report := buildReport(fills, acc, pf, initialEquity, finalEquity)
	report.BootstrapTrades = bootstrapTrades
	return Result{Report: report, Equity: equity, Fills: fills}
}

// bootstrapRebalance executes a single simulated market fill moving the
// base-asset equity share toward targetRatio. Returns false if the
// resulting trade would be negligible.
func bootstrapRebalance(ts domain.TimestampMs, mid domain.Price, targetRatio domain.Ratio, exec execsim.Model, pf *portfolio, acc *pnlAccumulator) (Fill, bool) {
	equity := pf.quote + pf.base*float64(mid)
	if equity <= 0 {
		return Fill{}, false
	}
	targetBaseValue := float64(targetRatio) * equity
	currentBaseValue := pf.base * float64(mid)
	diff := targetBaseValue - currentBaseValue

	const dustQuote = 1e-9
	if diff > dustQuote {
		qty := exec.BuyQtyForQuote(diff, mid)
		if float64(qty) <= 0 {
			return Fill{}, false
		}
		cost := exec.BuyCost(qty, mid)
		if cost > pf.quote {
			return Fill{}, false
		}
		pf.applyBuy(float64(qty), cost)
		return Fill{TS: int64(ts), Side: "BUY", Mode: "Bootstrap", Qty: float64(qty), Price: float64(exec.BuyFillPrice(mid)), QuoteDelta: -cost}, true
	}
	if diff < -dustQuote {
		qty := -diff / float64(mid)
		if qty > pf.base {
			qty = pf.base
		}
		if qty <= 0 {
			return Fill{}, false
		}
		proceeds := exec.SellProceeds(domain.Qty(qty), mid)
		realized := pf.applySell(qty, proceeds)
		acc.record(realized)
		return Fill{TS: int64(ts), Side: "SELL", Mode: "Bootstrap", Qty: qty, Price: float64(exec.SellFillPrice(mid)), QuoteDelta: proceeds, RealizedPnL: realized, HasRealizedPnL: true}, true
	}
	return Fill{}, false
}
