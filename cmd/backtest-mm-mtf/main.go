// Command backtest-mm-mtf runs the multi-timeframe market-making driver:
// structure/BOS/pullback evaluated on a higher timeframe, grid execution
// simulated bar-by-bar on a nested lower timeframe.
package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/enginecli"
	"github.com/atlas-desktop/trading-backend/internal/mmpolicy"
	"github.com/atlas-desktop/trading-backend/internal/structure"
)

func main() {
	fs := pflag.NewFlagSet("backtest-mm-mtf", pflag.ExitOnError)
	common := enginecli.BindCommon(fs)

	htfPath := fs.String("htf-candles", "", "path to the higher-timeframe candle cache CSV")
	ltfPath := fs.String("ltf-candles", "", "path to the lower-timeframe candle cache CSV")
	htfWindow := fs.Int("htf-window", 200, "higher-timeframe rolling feed window")
	levels := fs.Int("levels", 3, "grid levels per side")
	stepBps := fs.Float64("step-bps", 10.0, "grid step in basis points")
	baseQuotePerOrder := fs.Float64("base-quote-per-order", 100.0, "quote notional per grid order")
	maxSizeMult := fs.Float64("max-size-mult", 2.0, "max per-order size multiplier applied by inventory bias")
	softMin := fs.Float64("soft-min", 0.35, "soft inventory band minimum (base ratio)")
	softMax := fs.Float64("soft-max", 0.65, "soft inventory band maximum (base ratio)")
	hardMin := fs.Float64("hard-min", 0.1, "hard inventory band minimum (base ratio)")
	hardMax := fs.Float64("hard-max", 0.9, "hard inventory band maximum (base ratio)")
	minBaseQty := fs.Float64("min-base-qty", 0.0, "minimum order size in base units")
	pivotK := fs.Int("pivot-k", 3, "structure pivot half-width")
	minATRFrac := fs.Float64("min-atr-frac", 0.5, "minimum pivot retracement as a fraction of ATR")
	bosConfirmBars := fs.Int("bos-confirm-bars", 2, "bars required to confirm a break of structure")
	bosEpsilonFrac := fs.Float64("bos-epsilon-frac", 0.0005, "BOS confirmation epsilon as a fraction of ATR")
	pullbackEpsilonFrac := fs.Float64("pullback-epsilon-frac", 0.0005, "pullback trigger epsilon as a fraction of ATR")
	pullbackRetraceFrac := fs.Float64("pullback-retrace-frac", 0.5, "pullback retracement fraction")
	defensiveStepMult := fs.Float64("defensive-step-mult", 1.5, "grid step multiplier while in defensive mode")
	defensiveSizeMult := fs.Float64("defensive-size-mult", 0.5, "grid size multiplier while in defensive mode")
	bootstrapTargetRatio := fs.Float64("bootstrap-target-ratio", 0.5, "base-asset equity share targeted by a bootstrap rebalance")
	fs.Parse(os.Args[1:])

	if *htfPath == "" || *ltfPath == "" {
		enginecli.Fatalf("validation error: --htf-candles and --ltf-candles are both required")
	}
	if !validBands(*hardMin, *softMin, *softMax, *hardMax) {
		enginecli.Fatalf("validation error: inventory bands must satisfy 0 <= hard_min <= soft_min <= soft_max <= hard_max <= 1")
	}

	htf, err := candle.LoadCSV(*htfPath)
	if err != nil {
		enginecli.Fatalf("validation error: %v", err)
	}
	ltf, err := candle.LoadCSV(*ltfPath)
	if err != nil {
		enginecli.Fatalf("validation error: %v", err)
	}
	if len(htf) == 0 || len(ltf) == 0 {
		enginecli.Fatalf("validation error: both candle files must be non-empty")
	}

	cfg := backtest.MMMTFConfig{
		Window:    *htfWindow,
		Structure: structure.Params{PivotK: *pivotK, MinATRFrac: *minATRFrac},
		Bos:       structure.BosParams{ConfirmBars: *bosConfirmBars, EpsilonFrac: *bosEpsilonFrac},
		Pullback:  structure.PullbackParams{EpsilonFrac: *pullbackEpsilonFrac, RetraceFrac: *pullbackRetraceFrac},
		Policy: mmpolicy.Params{
			SoftMin: domain.Ratio(*softMin), SoftMax: domain.Ratio(*softMax),
			HardMin: domain.Ratio(*hardMin), HardMax: domain.Ratio(*hardMax),
		},
		Grid: mmpolicy.GridParams{
			Levels: *levels, StepBps: domain.Bps(*stepBps),
			BaseQuotePerOrder: domain.Money(*baseQuotePerOrder), MaxSizeMult: *maxSizeMult,
			SoftMin: domain.Ratio(*softMin), SoftMax: domain.Ratio(*softMax),
			HardMin: domain.Ratio(*hardMin), HardMax: domain.Ratio(*hardMax),
			MinBaseQty: domain.Qty(*minBaseQty),
		},
		DefensiveStepMult:    *defensiveStepMult,
		DefensiveSizeMult:    *defensiveSizeMult,
		MakerFeeBps:          common.MakerFeeBps,
		Exec:                 common.ExecModel(),
		ForceCloseAtEnd:      common.ForceCloseAtEnd,
		InitialBase:          common.InitialBase,
		InitialQuote:         common.InitialQuote,
		BootstrapTargetRatio: domain.Ratio(*bootstrapTargetRatio),
	}

	result := backtest.RunMMMTF(htf, ltf, cfg)
	if err := enginecli.WriteSingleRunArtifacts(common.OutDir, result); err != nil {
		enginecli.Fatalf("persistence error: %v", err)
	}
}

func validBands(hardMin, softMin, softMax, hardMax float64) bool {
	return hardMin >= 0 && hardMin <= softMin && softMin <= softMax && softMax <= hardMax && hardMax <= 1
}
