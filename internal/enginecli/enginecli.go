// Package enginecli holds the bits every backtest engine binary shares:
// common pflag definitions, output-directory plumbing, and the final
// "artifacts: kind=path ..." stdout line the worker's line parser expects.
package enginecli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/execsim"
)

// ParseIntList splits a comma-separated list of integers, e.g. "1,2,3".
// An empty string yields an empty (not nil-panicking) slice.
func ParseIntList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, tok := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", tok, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ParseFloatList splits a comma-separated list of floats, e.g. "1.5,2.0".
func ParseFloatList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, tok := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", tok, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// Common holds the flags every engine binary accepts regardless of which
// driver it wraps.
type Common struct {
	OutDir          string
	MakerFeeBps     float64
	SpreadBps       float64
	SlippageBps     float64
	InitialBase     float64
	InitialQuote    float64
	ForceCloseAtEnd bool
}

// BindCommon registers the shared flags on fs.
func BindCommon(fs *pflag.FlagSet) *Common {
	c := &Common{}
	fs.StringVar(&c.OutDir, "out-dir", ".", "directory to write equity/fills/summary CSVs into")
	fs.Float64Var(&c.MakerFeeBps, "maker-fee-bps", 2.0, "maker fee in basis points")
	fs.Float64Var(&c.SpreadBps, "spread-bps", 2.0, "simulated spread in basis points")
	fs.Float64Var(&c.SlippageBps, "slippage-bps", 0.0, "simulated slippage in basis points")
	fs.Float64Var(&c.InitialBase, "initial-base", 0.0, "starting base asset balance")
	fs.Float64Var(&c.InitialQuote, "initial-quote", 10_000.0, "starting quote asset balance")
	fs.BoolVar(&c.ForceCloseAtEnd, "force-close-at-end", true, "liquidate any open inventory on the final bar")
	return c
}

// ExecModel builds the fill model from the common spread/slippage flags.
func (c *Common) ExecModel() execsim.Model {
	return execsim.Model{FeeBps: c.MakerFeeBps, SpreadBps: c.SpreadBps, SlippageBps: c.SlippageBps}
}

// WriteSingleRunArtifacts writes the equity/fills CSVs for a standalone
// (non-sweep) run and prints the final artifacts + metrics lines the
// worker's stdout parser expects.
func WriteSingleRunArtifacts(outDir string, result backtest.Result) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create out-dir: %w", err)
	}
	equityPath := filepath.Join(outDir, "equity.csv")
	fillsPath := filepath.Join(outDir, "fills.csv")

	if err := backtest.WriteEquityCSV(equityPath, result.Equity); err != nil {
		return fmt.Errorf("write equity csv: %w", err)
	}
	if err := backtest.WriteFillsCSV(fillsPath, result.Fills); err != nil {
		return fmt.Errorf("write fills csv: %w", err)
	}

	r := result.Report
	fmt.Printf("buy_fills=%d sell_fills=%d bootstrap_trades=%d win_rate_pct=%.4f avg_win=%.8f avg_loss=%.8f profit_factor=%s max_drawdown_pct=%.6f pnl=%.8f roi_pct=%.4f\n",
		r.BuyFills, r.SellFills, r.BootstrapTrades, r.WinRatePct, r.AvgWin, r.AvgLoss, formatPF(r.ProfitFactor), r.MaxDrawdownPct, r.PNL, r.ROIPct)
	fmt.Printf("artifacts: equity=%s fills=%s\n", equityPath, fillsPath)
	return nil
}

// WriteSweepArtifacts writes the summary CSV for a sweep run (the ranked
// top-N rows) and prints the final artifacts line.
func WriteSweepArtifacts(outDir string, rows []backtest.SummaryRow, totalEvaluated, skipped int) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create out-dir: %w", err)
	}
	summaryPath := filepath.Join(outDir, "summary.csv")
	if err := backtest.WriteSummaryCSV(summaryPath, rows); err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}

	fmt.Printf("combos_evaluated=%d combos_skipped=%d top_n=%d\n", totalEvaluated, skipped, len(rows))
	if len(rows) > 0 {
		best := rows[0].Report
		fmt.Printf("best_roi_pct=%.4f best_max_drawdown_pct=%.6f best_profit_factor=%s\n",
			best.ROIPct, best.MaxDrawdownPct, formatPF(best.ProfitFactor))
	}
	fmt.Printf("artifacts: summary=%s\n", summaryPath)
	return nil
}

func formatPF(pf float64) string {
	if pf > 1e18 {
		return "inf"
	}
	return fmt.Sprintf("%.6f", pf)
}

// Fatalf prints an error (validation or persistence) to stderr in the
// line-parser's "error" stream and exits non-zero, matching the engine
// CLI's failure contract (§7: Validation errors surface before any I/O, non-zero exit,
// message on stderr).
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
