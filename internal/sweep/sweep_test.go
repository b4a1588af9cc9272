package sweep

import (
	"context"
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/structure"
)

func structureParamsFixture() structure.Params { return structure.Params{PivotK: 1, MinATRFrac: 0.1} }
func bosParamsFixture() structure.BosParams    { return structure.BosParams{ConfirmBars: 1, EpsilonFrac: 0.01} }

func TestRankOrdersByRoiThenDrawdownThenProfitFactor(t *testing.T) {
	evals := []Evaluation[int]{
		{Combo: 1, Report: backtest.Report{ROIPct: 5, MaxDrawdownPct: 10, ProfitFactor: 1.2}},
		{Combo: 2, Report: backtest.Report{ROIPct: 10, MaxDrawdownPct: 20, ProfitFactor: 1.0}},
		{Combo: 3, Report: backtest.Report{ROIPct: 10, MaxDrawdownPct: 5, ProfitFactor: 1.5}},
		{Combo: 4, Report: backtest.Report{ROIPct: 10, MaxDrawdownPct: 5, ProfitFactor: 2.0}},
	}
	Rank(evals)

	order := make([]int, len(evals))
	for i, e := range evals {
		order[i] = e.Combo
	}
	want := []int{4, 3, 2, 1}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("rank order = %v, want %v", order, want)
		}
	}
}

func TestTopNClampsToAvailable(t *testing.T) {
	evals := []Evaluation[int]{{Combo: 1}, {Combo: 2}}
	if got := TopN(evals, 10); len(got) != 2 {
		t.Fatalf("expected all 2 evaluations, got %d", len(got))
	}
	if got := TopN(evals, 1); len(got) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(got))
	}
}

func TestRunEvaluatesEveryCombo(t *testing.T) {
	combos := []int{1, 2, 3, 4, 5}
	results, skipped := Run(context.Background(), combos, 2, func(c int) backtest.Report {
		return backtest.Report{ROIPct: float64(c)}
	})
	if skipped != 0 {
		t.Fatalf("expected no skips, got %d", skipped)
	}
	if len(results) != len(combos) {
		t.Fatalf("expected %d results, got %d", len(combos), len(results))
	}
}

func TestBuildMMConfigsRejectsInvalidBands(t *testing.T) {
	axes := MMAxes{
		Bands: []BandCombo{
			{HardMin: 0.1, SoftMin: 0.9, SoftMax: 0.2, HardMax: 0.9}, // invalid: soft_min > soft_max
			{HardMin: 0.1, SoftMin: 0.35, SoftMax: 0.65, HardMax: 0.9},
		},
	}
	configs, combos := BuildMMConfigs(axes, backtest.MMConfig{}, structureParamsFixture(), bosParamsFixture())
	if len(configs) != 1 || len(combos) != 1 {
		t.Fatalf("expected exactly 1 valid config, got %d configs %d combos", len(configs), len(combos))
	}
	if combos[0].JSON() == "" {
		t.Fatalf("expected combo JSON to be non-empty")
	}
}

func TestBuildTrendConfigsRejectsFastNotLessThanSlow(t *testing.T) {
	axes := TrendAxes{FastPeriod: []int{5, 20}, SlowPeriod: []int{10}}
	configs, combos := BuildTrendConfigs(axes, backtest.TrendConfig{})
	if len(configs) != 1 || len(combos) != 1 {
		t.Fatalf("expected exactly 1 config with fast < slow, got %d configs %d combos", len(configs), len(combos))
	}
	if configs[0].FastPeriod != 5 {
		t.Fatalf("expected the surviving combo to use fast=5, got %d", configs[0].FastPeriod)
	}
}
