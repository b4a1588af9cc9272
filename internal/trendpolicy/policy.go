// Package trendpolicy implements the long-only EMA-cross trend policy with
// an ATR stop, plus the additional entry gates used by the trend sweep.
package trendpolicy

import "github.com/atlas-desktop/trading-backend/internal/domain"

// Mode is the trend lifecycle mode.
type Mode int

const (
	Flat Mode = iota
	Long
)

func (m Mode) String() string {
	if m == Long {
		return "Long"
	}
	return "Flat"
}

// Action is the decision's output action.
type Action int

const (
	HoldFlat Action = iota
	EnterLong
	HoldLong
	ExitLong
)

// Reason explains the decision.
type Reason int

const (
	ReasonTrendUpEntry Reason = iota
	ReasonTrendDown
	ReasonAtrStopHit
	ReasonNoSignal
	ReasonInvalidLongOnlyInvariant
	ReasonMissingEntryPrice
)

// Params configures the ATR stop distance.
type Params struct {
	AtrStopMult float64
}

// Input is the per-bar decision input.
type Input struct {
	Close       domain.Price
	ATR         domain.Price
	EmaFast     domain.Price
	EmaSlow     domain.Price
	PositionQty domain.Qty
	EntryPrice  domain.Price
	HasEntry    bool
}

// Decision is the policy's output.
type Decision struct {
	NextMode Mode
	Action   Action
	Reason   Reason
}

// Decide evaluates the trend policy decision tree.
func Decide(mode Mode, in Input, params Params) Decision {
	if in.PositionQty < 0 {
		return Decision{NextMode: Flat, Action: ExitLong, Reason: ReasonInvalidLongOnlyInvariant}
	}

	trendUp := in.EmaFast > in.EmaSlow
	trendDown := in.EmaFast < in.EmaSlow

	switch mode {
	case Flat:
		if in.PositionQty > 0 {
			return Decision{NextMode: Long, Action: HoldLong, Reason: ReasonNoSignal}
		}
		if trendUp {
			return Decision{NextMode: Long, Action: EnterLong, Reason: ReasonTrendUpEntry}
		}
		return Decision{NextMode: Flat, Action: HoldFlat, Reason: ReasonNoSignal}

	case Long:
		if in.PositionQty == 0 {
			return Decision{NextMode: Flat, Action: HoldFlat, Reason: ReasonNoSignal}
		}
		if !in.HasEntry {
			return Decision{NextMode: Flat, Action: ExitLong, Reason: ReasonMissingEntryPrice}
		}
		if trendDown {
			return Decision{NextMode: Flat, Action: ExitLong, Reason: ReasonTrendDown}
		}
		atrStopMult := params.AtrStopMult
		if atrStopMult < 0 {
			atrStopMult = 0
		}
		atr := in.ATR
		if atr < 0 {
			atr = 0
		}
		stop := float64(in.EntryPrice) - atrStopMult*float64(atr)
		if float64(in.Close) <= stop {
			return Decision{NextMode: Flat, Action: ExitLong, Reason: ReasonAtrStopHit}
		}
		return Decision{NextMode: Long, Action: HoldLong, Reason: ReasonNoSignal}
	}

	return Decision{NextMode: mode, Action: HoldFlat, Reason: ReasonNoSignal}
}

// EntryGate is one of the sweep's additional preconditions on EnterLong.
type EntryGate string

const (
	GateNone          EntryGate = "none"
	GateBos           EntryGate = "trend-bos"
	GateBosPullback   EntryGate = "trend-bos-pullback"
)

// SweepGateInput carries the extra signals the sweep's entry gates check.
type SweepGateInput struct {
	BosConfirmed     bool
	PullbackTriggered bool
	TrendGapBps       float64
	BarsSinceExit     int
	AtrPct            float64
}

// SweepGateParams are the sweep's gate thresholds.
type SweepGateParams struct {
	Gate          EntryGate
	MinTrendGapBps float64
	CooldownBars   int
	MaxAtrPct      float64
}

// ApplySweepGates re-evaluates an EnterLong decision against the sweep's
// additional preconditions. If any precondition fails, the decision
// collapses to HoldFlat (from Flat) or HoldLong (from Long, i.e. the
// current mode is preserved rather than entering).
func ApplySweepGates(d Decision, currentMode Mode, in SweepGateInput, params SweepGateParams) Decision {
	if d.Action != EnterLong {
		return d
	}

	ok := true
	switch params.Gate {
	case GateBos:
		ok = in.BosConfirmed
	case GateBosPullback:
		ok = in.BosConfirmed && in.PullbackTriggered
	}
	if ok && in.TrendGapBps < params.MinTrendGapBps {
		ok = false
	}
	if ok && in.BarsSinceExit < params.CooldownBars {
		ok = false
	}
	if ok && in.AtrPct > params.MaxAtrPct {
		ok = false
	}

	if ok {
		return d
	}
	if currentMode == Long {
		return Decision{NextMode: Long, Action: HoldLong, Reason: ReasonNoSignal}
	}
	return Decision{NextMode: Flat, Action: HoldFlat, Reason: ReasonNoSignal}
}
