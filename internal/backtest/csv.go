package backtest

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
)

// EquityCSVHeader is the column order written by WriteEquityCSV.
var EquityCSVHeader = []string{"ts", "close", "mode", "quote", "base", "cost_basis_quote", "equity", "drawdown_pct"}

// FillsCSVHeader is the column order written by WriteFillsCSV.
var FillsCSVHeader = []string{"ts", "side", "mode", "qty", "price", "fee_quote", "quote_delta", "realized_pnl"}

// WriteEquityCSV writes one row per evaluated bar.
func WriteEquityCSV(path string, rows []EquityRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(EquityCSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			fmt.Sprintf("%d", r.TS),
			fmt.Sprintf("%.8f", r.Close),
			r.Mode,
			fmt.Sprintf("%.8f", r.Quote),
			fmt.Sprintf("%.8f", r.Base),
			fmt.Sprintf("%.8f", r.CostBasisQuote),
			fmt.Sprintf("%.8f", r.Equity),
			fmt.Sprintf("%.6f", r.DrawdownPct),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteFillsCSV writes one row per simulated fill. RealizedPnL is left
// blank for buys (HasRealizedPnL == false).
func WriteFillsCSV(path string, rows []Fill) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(FillsCSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		realized := ""
		if r.HasRealizedPnL {
			realized = fmt.Sprintf("%.8f", r.RealizedPnL)
		}
		record := []string{
			fmt.Sprintf("%d", r.TS),
			r.Side,
			r.Mode,
			fmt.Sprintf("%.8f", r.Qty),
			fmt.Sprintf("%.8f", r.Price),
			fmt.Sprintf("%.8f", r.FeeQuote),
			fmt.Sprintf("%.8f", r.QuoteDelta),
			realized,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// SummaryRow is one ranked sweep result.
type SummaryRow struct {
	Rank       int
	ConfigJSON string
	Report     Report
}

// SummaryCSVHeader is the column order written by WriteSummaryCSV.
var SummaryCSVHeader = []string{
	"rank", "config", "buy_fills", "sell_fills", "bootstrap_trades",
	"win_rate_pct", "avg_win", "avg_loss", "profit_factor",
	"max_drawdown_pct", "pnl", "roi_pct",
}

// WriteSummaryCSV writes the sweep's top-N ranked results.
func WriteSummaryCSV(path string, rows []SummaryRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(SummaryCSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			fmt.Sprintf("%d", r.Rank),
			r.ConfigJSON,
			fmt.Sprintf("%d", r.Report.BuyFills),
			fmt.Sprintf("%d", r.Report.SellFills),
			fmt.Sprintf("%d", r.Report.BootstrapTrades),
			fmt.Sprintf("%.4f", r.Report.WinRatePct),
			fmt.Sprintf("%.8f", r.Report.AvgWin),
			fmt.Sprintf("%.8f", r.Report.AvgLoss),
			formatProfitFactor(r.Report.ProfitFactor),
			fmt.Sprintf("%.6f", r.Report.MaxDrawdownPct),
			fmt.Sprintf("%.8f", r.Report.PNL),
			fmt.Sprintf("%.4f", r.Report.ROIPct),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.6f", pf)
}

// SampleForChart reduces a row slice to at most maxRows entries, evenly
// spaced. The last row is always kept; the first row is kept too whenever
// maxRows >= 2 (with maxRows == 1 only the last row is returned).
func SampleForChart[T any](rows []T, maxRows int) []T {
	n := len(rows)
	if n <= maxRows || maxRows <= 0 {
		return rows
	}
	if maxRows == 1 {
		return []T{rows[n-1]}
	}
	out := make([]T, 0, maxRows)
	step := float64(n-1) / float64(maxRows-1)
	for i := 0; i < maxRows; i++ {
		idx := int(math.Round(float64(i) * step))
		if idx >= n {
			idx = n - 1
		}
		out = append(out, rows[idx])
	}
	return out
}
