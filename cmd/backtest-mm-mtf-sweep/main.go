// Command backtest-mm-mtf-sweep evaluates the multi-timeframe MM driver
// over the Cartesian product of its sweepable parameters and writes a
// ranked summary CSV of the top-N results. Its flag set matches the
// admission layer's mm_mtf_sweep preset argv.
package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/enginecli"
	"github.com/atlas-desktop/trading-backend/internal/mmpolicy"
	"github.com/atlas-desktop/trading-backend/internal/structure"
	"github.com/atlas-desktop/trading-backend/internal/sweep"
)

func main() {
	fs := pflag.NewFlagSet("backtest-mm-mtf-sweep", pflag.ExitOnError)
	common := enginecli.BindCommon(fs)

	htfPath := fs.String("htf-candles", "", "path to the higher-timeframe candle cache CSV")
	ltfPath := fs.String("ltf-candles", "", "path to the lower-timeframe candle cache CSV")
	htfWindow := fs.Int("htf-window", 200, "higher-timeframe rolling feed window")
	fs.Int("ltf-window", 1500, "reserved: lower-timeframe window (the driver currently replays ltf in full)")
	levels := fs.String("levels", "", "comma-separated grid level counts to sweep")
	stepBps := fs.String("step-bps", "", "comma-separated grid steps (bps) to sweep")
	maxSizeMult := fs.String("max-size-mult", "", "comma-separated max size multipliers to sweep")
	softMin := fs.Float64("soft-min", 0.35, "soft inventory band minimum (base ratio)")
	softMax := fs.Float64("soft-max", 0.65, "soft inventory band maximum (base ratio)")
	hardMin := fs.Float64("hard-min", 0.1, "hard inventory band minimum (base ratio)")
	hardMax := fs.Float64("hard-max", 0.9, "hard inventory band maximum (base ratio)")
	baseQuotePerOrder := fs.Float64("base-quote-per-order", 100.0, "quote notional per grid order")
	pivotK := fs.Int("pivot-k", 3, "structure pivot half-width")
	bosConfirmBars := fs.Int("bos-confirm-bars", 2, "bars required to confirm a break of structure")
	topN := fs.Int("top-n", 20, "how many ranked results to keep in the summary")
	concurrency := fs.Int("concurrency", 4, "max combinations evaluated concurrently")
	bootstrapTargetRatio := fs.Float64("bootstrap-target-ratio", 0.5, "base-asset equity share targeted by a bootstrap rebalance")
	fs.Parse(os.Args[1:])

	if *htfPath == "" || *ltfPath == "" {
		enginecli.Fatalf("validation error: --htf-candles and --ltf-candles are both required")
	}

	levelsAxis, err := enginecli.ParseIntList(*levels)
	if err != nil {
		enginecli.Fatalf("validation error: --levels: %v", err)
	}
	stepAxis, err := enginecli.ParseFloatList(*stepBps)
	if err != nil {
		enginecli.Fatalf("validation error: --step-bps: %v", err)
	}
	sizeAxis, err := enginecli.ParseFloatList(*maxSizeMult)
	if err != nil {
		enginecli.Fatalf("validation error: --max-size-mult: %v", err)
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

	structureFixed := structure.Params{PivotK: *pivotK}
	bosFixed := structure.BosParams{ConfirmBars: *bosConfirmBars}

	fixedMM := backtest.MMConfig{
		Window:    *htfWindow,
		Structure: structureFixed,
		Bos:       bosFixed,
		Policy: mmpolicy.Params{
			SoftMin: domain.Ratio(*softMin), SoftMax: domain.Ratio(*softMax),
			HardMin: domain.Ratio(*hardMin), HardMax: domain.Ratio(*hardMax),
		},
		Grid: mmpolicy.GridParams{
			BaseQuotePerOrder: domain.Money(*baseQuotePerOrder),
			SoftMin:           domain.Ratio(*softMin), SoftMax: domain.Ratio(*softMax),
			HardMin: domain.Ratio(*hardMin), HardMax: domain.Ratio(*hardMax),
		},
		MakerFeeBps:     common.MakerFeeBps,
		Exec:            common.ExecModel(),
		ForceCloseAtEnd: common.ForceCloseAtEnd,
		InitialBase:     common.InitialBase,
		InitialQuote:    common.InitialQuote,
	}

	mmConfigs, combos := sweep.BuildMMConfigs(sweep.MMAxes{
		Levels:      levelsAxis,
		StepBps:     stepAxis,
		MaxSizeMult: sizeAxis,
	}, fixedMM, structureFixed, bosFixed)
	if len(mmConfigs) == 0 {
		enginecli.Fatalf("validation error: no valid parameter combinations")
	}

	mtfConfigs := make([]backtest.MMMTFConfig, len(mmConfigs))
	for i, cfg := range mmConfigs {
		mtfConfigs[i] = backtest.MMMTFConfig{
			Window: cfg.Window, Structure: cfg.Structure, Bos: cfg.Bos, Pullback: cfg.Pullback,
			Policy: cfg.Policy, Grid: cfg.Grid, DefensiveStepMult: cfg.DefensiveStepMult,
			DefensiveSizeMult: cfg.DefensiveSizeMult, MakerFeeBps: cfg.MakerFeeBps, Exec: cfg.Exec,
			ForceCloseAtEnd: cfg.ForceCloseAtEnd, InitialBase: cfg.InitialBase, InitialQuote: cfg.InitialQuote,
			BootstrapTargetRatio: domain.Ratio(*bootstrapTargetRatio),
		}
	}

	indices := make([]int, len(mtfConfigs))
	for i := range mtfConfigs {
		indices[i] = i
	}
	results, skipped := sweep.Run(context.Background(), indices, *concurrency, func(i int) backtest.Report {
		return backtest.RunMMMTF(htf, ltf, mtfConfigs[i]).Report
	})

	sweep.Rank(results)
	top := sweep.TopN(results, *topN)

	rows := make([]backtest.SummaryRow, 0, len(top))
	for i, e := range top {
		rows = append(rows, backtest.SummaryRow{Rank: i + 1, ConfigJSON: combos[e.Combo].JSON(), Report: e.Report})
	}

	if err := enginecli.WriteSweepArtifacts(common.OutDir, rows, len(mtfConfigs), skipped); err != nil {
		enginecli.Fatalf("persistence error: %v", err)
	}
}
