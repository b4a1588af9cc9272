package sweep

import (
	"encoding/json"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/structure"
	"github.com/atlas-desktop/trading-backend/internal/trendpolicy"
)

// MMAxes enumerates the MM backtest's sweepable parameters. Every
// non-empty slice is a dimension of the Cartesian product; bands are
// swept jointly as a single axis since they must satisfy an ordering
// invariant together.
type MMAxes struct {
	Levels     []int
	StepBps    []float64
	MaxSizeMult []float64
	Bands       []BandCombo
	PivotK      []int
	BosConfirmBars []int
}

// BandCombo is one jointly-valid set of inventory bands. Invalid
// combinations (violating 0 <= hard_min <= soft_min <= soft_max <=
// hard_max <= 1) are skipped when building configs.
type BandCombo struct {
	HardMin, SoftMin, SoftMax, HardMax float64
}

func validBand(b BandCombo) bool {
	return b.HardMin >= 0 && b.HardMin <= b.SoftMin && b.SoftMin <= b.SoftMax &&
		b.SoftMax <= b.HardMax && b.HardMax <= 1
}

// MMCombo records which axis values produced a given backtest.MMConfig, so
// a sweep's summary CSV can report "what varied" without re-deriving it
// from the full config struct.
type MMCombo struct {
	Levels         int       `json:"levels"`
	StepBps        float64   `json:"step_bps"`
	MaxSizeMult    float64   `json:"max_size_mult"`
	Bands          BandCombo `json:"bands"`
	PivotK         int       `json:"pivot_k"`
	BosConfirmBars int       `json:"bos_confirm_bars"`
}

// JSON renders the combo as a compact JSON object for a summary row's
// config column. Marshal errors can't occur for this struct shape, so the
// error is discarded.
func (c MMCombo) JSON() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// BuildMMConfigs expands axes into the Cartesian product of valid
// combinations and turns each into a runnable backtest.MMConfig, using
// fixed as the template for every field the axes don't sweep. The
// returned combos are index-aligned with the returned configs.
func BuildMMConfigs(axes MMAxes, fixed backtest.MMConfig, structureFixed structure.Params, bosFixed structure.BosParams) ([]backtest.MMConfig, []MMCombo) {
	levels := axes.Levels
	if len(levels) == 0 {
		levels = []int{fixed.Grid.Levels}
	}
	stepBps := axes.StepBps
	if len(stepBps) == 0 {
		stepBps = []float64{float64(fixed.Grid.StepBps)}
	}
	maxSizeMult := axes.MaxSizeMult
	if len(maxSizeMult) == 0 {
		maxSizeMult = []float64{fixed.Grid.MaxSizeMult}
	}
	bands := axes.Bands
	if len(bands) == 0 {
		bands = []BandCombo{{
			HardMin: float64(fixed.Policy.HardMin), SoftMin: float64(fixed.Policy.SoftMin),
			SoftMax: float64(fixed.Policy.SoftMax), HardMax: float64(fixed.Policy.HardMax),
		}}
	}
	pivotK := axes.PivotK
	if len(pivotK) == 0 {
		pivotK = []int{structureFixed.PivotK}
	}
	confirmBars := axes.BosConfirmBars
	if len(confirmBars) == 0 {
		confirmBars = []int{bosFixed.ConfirmBars}
	}

	var configs []backtest.MMConfig
	var combos []MMCombo
	for _, lv := range levels {
		for _, sb := range stepBps {
			for _, msm := range maxSizeMult {
				for _, band := range bands {
					if !validBand(band) {
						continue
					}
					for _, pk := range pivotK {
						for _, cb := range confirmBars {
							cfg := fixed
							cfg.Grid.Levels = lv
							cfg.Grid.StepBps = domain.Bps(sb)
							cfg.Grid.MaxSizeMult = msm
							cfg.Grid.HardMin = domain.Ratio(band.HardMin)
							cfg.Grid.SoftMin = domain.Ratio(band.SoftMin)
							cfg.Grid.SoftMax = domain.Ratio(band.SoftMax)
							cfg.Grid.HardMax = domain.Ratio(band.HardMax)
							cfg.Policy.HardMin = domain.Ratio(band.HardMin)
							cfg.Policy.SoftMin = domain.Ratio(band.SoftMin)
							cfg.Policy.SoftMax = domain.Ratio(band.SoftMax)
							cfg.Policy.HardMax = domain.Ratio(band.HardMax)
							cfg.Structure = structureFixed
							cfg.Structure.PivotK = pk
							cfg.Bos = bosFixed
							cfg.Bos.ConfirmBars = cb
							configs = append(configs, cfg)
							combos = append(combos, MMCombo{
								Levels: lv, StepBps: sb, MaxSizeMult: msm, Bands: band,
								PivotK: pk, BosConfirmBars: cb,
							})
						}
					}
				}
			}
		}
	}
	return configs, combos
}

// TrendAxes enumerates the trend backtest's sweepable parameters.
type TrendAxes struct {
	FastPeriod  []int
	SlowPeriod  []int
	AtrStopMult []float64
	Gates       []trendpolicy.SweepGateParams
}

// TrendCombo records which axis values produced a given backtest.TrendConfig.
type TrendCombo struct {
	FastPeriod  int                          `json:"fast_period"`
	SlowPeriod  int                          `json:"slow_period"`
	AtrStopMult float64                      `json:"atr_stop_mult"`
	Gate        trendpolicy.SweepGateParams `json:"gate"`
}

// JSON renders the combo as a compact JSON object for a summary row's
// config column.
func (c TrendCombo) JSON() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// BuildTrendConfigs expands axes into runnable backtest.TrendConfig values.
// The returned combos are index-aligned with the returned configs.
func BuildTrendConfigs(axes TrendAxes, fixed backtest.TrendConfig) ([]backtest.TrendConfig, []TrendCombo) {
	fast := axes.FastPeriod
	if len(fast) == 0 {
		fast = []int{fixed.FastPeriod}
	}
	slow := axes.SlowPeriod
	if len(slow) == 0 {
		slow = []int{fixed.SlowPeriod}
	}
	stop := axes.AtrStopMult
	if len(stop) == 0 {
		stop = []float64{fixed.Policy.AtrStopMult}
	}
	gates := axes.Gates
	if len(gates) == 0 {
		gates = []trendpolicy.SweepGateParams{fixed.Gate}
	}

	var configs []backtest.TrendConfig
	var combos []TrendCombo
	for _, f := range fast {
		for _, s := range slow {
			if f >= s {
				continue
			}
			for _, st := range stop {
				for _, g := range gates {
					cfg := fixed
					cfg.FastPeriod = f
					cfg.SlowPeriod = s
					cfg.Policy.AtrStopMult = st
					cfg.Gate = g
					configs = append(configs, cfg)
					combos = append(combos, TrendCombo{FastPeriod: f, SlowPeriod: s, AtrStopMult: st, Gate: g})
				}
			}
		}
	}
	return configs, combos
}
