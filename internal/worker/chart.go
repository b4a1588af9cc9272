package worker

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
)

// chartEquityMaxRows and chartFillsMaxRows bound how many rows a chart
// snapshot keeps; engines may write arbitrarily long CSVs, the snapshot is
// for plotting, not archival.
const (
	chartEquityMaxRows = 800
	chartFillsMaxRows  = 1200
)

// equityColumnAliases/fillColumnAliases map a canonical snapshot field to
// the header names an engine CSV may use for it, in preference order.
var equityColumnAliases = map[string][]string{
	"ts":     {"ts", "timestamp"},
	"equity": {"equity", "final_equity"},
	"close":  {"close", "price"},
}

var fillColumnAliases = map[string][]string{
	"ts":          {"ts"},
	"side":        {"side"},
	"price":       {"price", "fill_price", "mid_price"},
	"qty":         {"qty", "quantity"},
	"realized_pnl": {"realized_pnl", "trade_pnl", "pnl"},
}

// chartSnapshot builds the sampled, header-addressed row set for one
// artifact. kind selects which column aliases and row cap apply: an
// "equity"-containing kind uses equityColumnAliases/chartEquityMaxRows, a
// "fills"/"trades"-containing kind uses fillColumnAliases/chartFillsMaxRows.
// Returns ok=false for any other kind, or if the file can't be read.
func chartSnapshot(kind, path string) (metricKey string, rows []map[string]interface{}, ok bool) {
	lower := strings.ToLower(kind)
	var aliases map[string][]string
	switch {
	case strings.Contains(lower, "equity"):
		aliases, metricKey = equityColumnAliases, "chart_equity"
	case strings.Contains(lower, "fills"), strings.Contains(lower, "trades"):
		aliases, metricKey = fillColumnAliases, "chart_fills"
	default:
		return "", nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		return "", nil, false
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return "", nil, false
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(strings.ToLower(h))] = i
	}

	resolved := make(map[string]int, len(aliases))
	for field, names := range aliases {
		for _, n := range names {
			if idx, ok := colIdx[n]; ok {
				resolved[field] = idx
				break
			}
		}
	}

	var all []map[string]interface{}
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		row := make(map[string]interface{}, len(resolved))
		for field, idx := range resolved {
			if idx >= len(record) {
				continue
			}
			row[field] = parseCell(record[idx])
		}
		if len(row) > 0 {
			all = append(all, row)
		}
	}

	maxRows := chartEquityMaxRows
	if metricKey == "chart_fills" {
		maxRows = chartFillsMaxRows
	}
	return metricKey, backtest.SampleForChart(all, maxRows), true
}

func parseCell(s string) interface{} {
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
