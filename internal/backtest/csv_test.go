package backtest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteEquityCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "equity.csv")
	rows := []EquityRow{
		{TS: 1000, Close: 101.5, Mode: "Normal", Quote: 500, Base: 1.2, CostBasisQuote: 120, Equity: 620, DrawdownPct: 1.5},
	}
	if err := WriteEquityCSV(path, rows); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty file")
	}
}

func TestWriteSummaryCSVFormatsInfiniteProfitFactor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.csv")
	rows := []SummaryRow{
		{Rank: 1, ConfigJSON: `{"levels":3}`, Report: Report{ProfitFactor: profitFactor(10, 0)}},
	}
	if err := WriteSummaryCSV(path, rows); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !containsInf(string(data)) {
		t.Fatalf("expected summary CSV to contain the literal inf marker, got: %s", data)
	}
}

func containsInf(s string) bool {
	for i := 0; i+3 <= len(s); i++ {
		if s[i:i+3] == "inf" {
			return true
		}
	}
	return false
}

func TestSampleForChartKeepsFirstAndLast(t *testing.T) {
	rows := make([]int, 1000)
	for i := range rows {
		rows[i] = i
	}
	sampled := SampleForChart(rows, 100)
	if len(sampled) != 100 {
		t.Fatalf("expected 100 rows, got %d", len(sampled))
	}
	if sampled[0] != 0 {
		t.Fatalf("expected first row preserved, got %d", sampled[0])
	}
	if sampled[len(sampled)-1] != 999 {
		t.Fatalf("expected last row preserved, got %d", sampled[len(sampled)-1])
	}
}
