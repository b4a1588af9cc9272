// Command backtest-trend-sweep evaluates the trend driver over the
// Cartesian product of its sweepable parameters and writes a ranked
// summary CSV of the top-N results.
package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/enginecli"
	"github.com/atlas-desktop/trading-backend/internal/sweep"
	"github.com/atlas-desktop/trading-backend/internal/trendpolicy"
)

func main() {
	fs := pflag.NewFlagSet("backtest-trend-sweep", pflag.ExitOnError)
	common := enginecli.BindCommon(fs)

	candlesPath := fs.String("candles", "", "path to the candle cache CSV")
	window := fs.Int("window", 500, "rolling candle feed window")
	fastPeriods := fs.String("fast-period", "", "comma-separated fast EMA periods to sweep")
	slowPeriods := fs.String("slow-period", "", "comma-separated slow EMA periods to sweep")
	atrStopMults := fs.String("atr-stop-mult", "", "comma-separated ATR stop multipliers to sweep")
	positionQuote := fs.Float64("position-quote", 1000.0, "quote notional per entry")
	gate := fs.String("gate", "none", "sweep entry gate: none|trend-bos|trend-bos-pullback")
	topN := fs.Int("top-n", 20, "how many ranked results to keep in the summary")
	concurrency := fs.Int("concurrency", 4, "max combinations evaluated concurrently")
	fs.Parse(os.Args[1:])

	if *candlesPath == "" {
		enginecli.Fatalf("validation error: --candles is required")
	}

	fastAxis, err := enginecli.ParseIntList(*fastPeriods)
	if err != nil {
		enginecli.Fatalf("validation error: --fast-period: %v", err)
	}
	slowAxis, err := enginecli.ParseIntList(*slowPeriods)
	if err != nil {
		enginecli.Fatalf("validation error: --slow-period: %v", err)
	}
	atrAxis, err := enginecli.ParseFloatList(*atrStopMults)
	if err != nil {
		enginecli.Fatalf("validation error: --atr-stop-mult: %v", err)
	}

	candles, err := candle.LoadCSV(*candlesPath)
	if err != nil {
		enginecli.Fatalf("validation error: %v", err)
	}
	if len(candles) == 0 {
		enginecli.Fatalf("validation error: candle file %s has no rows", *candlesPath)
	}

	fixed := backtest.TrendConfig{
		Window:          *window,
		Gate:            trendpolicy.SweepGateParams{Gate: trendpolicy.EntryGate(*gate)},
		Exec:            common.ExecModel(),
		PositionQuote:   *positionQuote,
		ForceCloseAtEnd: common.ForceCloseAtEnd,
		InitialQuote:    common.InitialQuote,
	}

	configs, combos := sweep.BuildTrendConfigs(sweep.TrendAxes{
		FastPeriod:  fastAxis,
		SlowPeriod:  slowAxis,
		AtrStopMult: atrAxis,
	}, fixed)
	if len(configs) == 0 {
		enginecli.Fatalf("validation error: no valid parameter combinations (check fast < slow)")
	}

	indices := make([]int, len(configs))
	for i := range configs {
		indices[i] = i
	}
	results, skipped := sweep.Run(context.Background(), indices, *concurrency, func(i int) backtest.Report {
		return backtest.RunTrend(candles, configs[i]).Report
	})

	sweep.Rank(results)
	top := sweep.TopN(results, *topN)

	rows := make([]backtest.SummaryRow, 0, len(top))
	for i, e := range top {
		rows = append(rows, backtest.SummaryRow{
			Rank:       i + 1,
			ConfigJSON: combos[e.Combo].JSON(),
			Report:     e.Report,
		})
	}

	if err := enginecli.WriteSweepArtifacts(common.OutDir, rows, len(configs), skipped); err != nil {
		enginecli.Fatalf("persistence error: %v", err)
	}
}
