package trendpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntersLongOnTrendUpWhenFlat(t *testing.T) {
	d := Decide(Flat, Input{Close: 100, ATR: 1, EmaFast: 101, EmaSlow: 99, PositionQty: 0}, Params{AtrStopMult: 2.5})
	assert.Equal(t, Long, d.NextMode)
	assert.Equal(t, EnterLong, d.Action)
	assert.Equal(t, ReasonTrendUpEntry, d.Reason)
}

func TestStaysFlatWithoutEntrySignal(t *testing.T) {
	d := Decide(Flat, Input{Close: 100, ATR: 1, EmaFast: 99, EmaSlow: 101, PositionQty: 0}, Params{AtrStopMult: 2.5})
	assert.Equal(t, Flat, d.NextMode)
	assert.Equal(t, HoldFlat, d.Action)
}

func TestExitsLongOnTrendDown(t *testing.T) {
	d := Decide(Long, Input{Close: 100, ATR: 1, EmaFast: 99, EmaSlow: 101, PositionQty: 1, EntryPrice: 95, HasEntry: true}, Params{AtrStopMult: 2.5})
	assert.Equal(t, Flat, d.NextMode)
	assert.Equal(t, ExitLong, d.Action)
	assert.Equal(t, ReasonTrendDown, d.Reason)
}

func TestExitsLongOnAtrStop(t *testing.T) {
	d := Decide(Long, Input{Close: 96, ATR: 2, EmaFast: 103, EmaSlow: 100, PositionQty: 1, EntryPrice: 102, HasEntry: true}, Params{AtrStopMult: 2.5})
	assert.Equal(t, Flat, d.NextMode)
	assert.Equal(t, ExitLong, d.Action)
	assert.Equal(t, ReasonAtrStopHit, d.Reason)
}

func TestRejectsNegativePositionForLongOnly(t *testing.T) {
	d := Decide(Long, Input{Close: 100, ATR: 1, EmaFast: 101, EmaSlow: 99, PositionQty: -0.1, EntryPrice: 100, HasEntry: true}, Params{AtrStopMult: 2.5})
	assert.Equal(t, Flat, d.NextMode)
	assert.Equal(t, ExitLong, d.Action)
	assert.Equal(t, ReasonInvalidLongOnlyInvariant, d.Reason)
}

func TestSweepGateCollapsesToHoldFlatOnGapFailure(t *testing.T) {
	d := Decide(Flat, Input{Close: 100, ATR: 1, EmaFast: 101, EmaSlow: 99, PositionQty: 0}, Params{AtrStopMult: 2.5})
	require := assert.New(t)
	require.Equal(EnterLong, d.Action)

	gated := ApplySweepGates(d, Flat, SweepGateInput{BosConfirmed: true, TrendGapBps: 1, BarsSinceExit: 100, AtrPct: 1}, SweepGateParams{Gate: GateBos, MinTrendGapBps: 10, CooldownBars: 0, MaxAtrPct: 100})
	require.Equal(HoldFlat, gated.Action)
	require.Equal(Flat, gated.NextMode)
}

func TestSweepGatePassesThroughWhenAllConditionsMet(t *testing.T) {
	d := Decide(Flat, Input{Close: 100, ATR: 1, EmaFast: 101, EmaSlow: 99, PositionQty: 0}, Params{AtrStopMult: 2.5})
	gated := ApplySweepGates(d, Flat, SweepGateInput{BosConfirmed: true, PullbackTriggered: true, TrendGapBps: 200, BarsSinceExit: 100, AtrPct: 1}, SweepGateParams{Gate: GateBosPullback, MinTrendGapBps: 10, CooldownBars: 5, MaxAtrPct: 100})
	assert.Equal(t, EnterLong, gated.Action)
}
