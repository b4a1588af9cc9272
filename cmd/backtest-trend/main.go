// Command backtest-trend runs the single-timeframe long-only EMA-cross
// trend driver over a candle CSV and writes its equity/fills CSVs.
package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/enginecli"
	"github.com/atlas-desktop/trading-backend/internal/structure"
	"github.com/atlas-desktop/trading-backend/internal/trendpolicy"
)

func main() {
	fs := pflag.NewFlagSet("backtest-trend", pflag.ExitOnError)
	common := enginecli.BindCommon(fs)

	candlesPath := fs.String("candles", "", "path to the candle cache CSV")
	window := fs.Int("window", 500, "rolling candle feed window")
	fastPeriod := fs.Int("fast-period", 20, "fast EMA period")
	slowPeriod := fs.Int("slow-period", 50, "slow EMA period")
	atrStopMult := fs.Float64("atr-stop-mult", 2.0, "ATR stop-loss multiplier")
	positionQuote := fs.Float64("position-quote", 1000.0, "quote notional per entry")
	gate := fs.String("gate", "none", "sweep entry gate: none|trend-bos|trend-bos-pullback")
	pivotK := fs.Int("pivot-k", 3, "structure pivot half-width")
	minATRFrac := fs.Float64("min-atr-frac", 0.5, "minimum pivot retracement as a fraction of ATR")
	bosConfirmBars := fs.Int("bos-confirm-bars", 2, "bars required to confirm a break of structure")
	bosEpsilonFrac := fs.Float64("bos-epsilon-frac", 0.0005, "BOS confirmation epsilon as a fraction of ATR")
	pullbackEpsilonFrac := fs.Float64("pullback-epsilon-frac", 0.0005, "pullback trigger epsilon as a fraction of ATR")
	pullbackRetraceFrac := fs.Float64("pullback-retrace-frac", 0.5, "pullback retracement fraction")
	minTrendGapBps := fs.Float64("min-trend-gap-bps", 0.0, "sweep gate: minimum EMA gap in bps")
	cooldownBars := fs.Int("cooldown-bars", 0, "sweep gate: bars to wait after an exit before re-entering")
	maxAtrPct := fs.Float64("max-atr-pct", 0.0, "sweep gate: max ATR as a percent of price (entry requires ATR% <= this; 0 blocks entries while a gate is set)")
	fs.Parse(os.Args[1:])

	if *candlesPath == "" {
		enginecli.Fatalf("validation error: --candles is required")
	}
	if *fastPeriod >= *slowPeriod {
		enginecli.Fatalf("validation error: --fast-period must be less than --slow-period")
	}

	candles, err := candle.LoadCSV(*candlesPath)
	if err != nil {
		enginecli.Fatalf("validation error: %v", err)
	}
	if len(candles) == 0 {
		enginecli.Fatalf("validation error: candle file %s has no rows", *candlesPath)
	}

	cfg := backtest.TrendConfig{
		Window:     *window,
		FastPeriod: *fastPeriod,
		SlowPeriod: *slowPeriod,
		Policy:     trendpolicy.Params{AtrStopMult: *atrStopMult},
		Gate: trendpolicy.SweepGateParams{
			Gate:           trendpolicy.EntryGate(*gate),
			MinTrendGapBps: *minTrendGapBps,
			CooldownBars:   *cooldownBars,
			MaxAtrPct:      *maxAtrPct,
		},
		Structure:       structure.Params{PivotK: *pivotK, MinATRFrac: *minATRFrac},
		Bos:             structure.BosParams{ConfirmBars: *bosConfirmBars, EpsilonFrac: *bosEpsilonFrac},
		Pullback:        structure.PullbackParams{EpsilonFrac: *pullbackEpsilonFrac, RetraceFrac: *pullbackRetraceFrac},
		Exec:            common.ExecModel(),
		PositionQuote:   *positionQuote,
		ForceCloseAtEnd: common.ForceCloseAtEnd,
		InitialQuote:    common.InitialQuote,
	}

	result := backtest.RunTrend(candles, cfg)
	if err := enginecli.WriteSingleRunArtifacts(common.OutDir, result); err != nil {
		enginecli.Fatalf("persistence error: %v", err)
	}
}
