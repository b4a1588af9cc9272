package structure

import (
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
)

// PullbackParams controls the two pullback trigger conditions.
type PullbackParams struct {
	EpsilonFrac float64
	RetraceFrac float64
}

// PullbackTracker detects a retracement after a confirmed BOS. Triggered
// latches until explicitly reset.
type PullbackTracker struct {
	MaxPriceAfterBos domain.Price
	HasMax           bool
	Triggered        bool
}

// NewPullbackTracker returns a tracker with no latched state.
func NewPullbackTracker() *PullbackTracker { return &PullbackTracker{} }

// OnCandleClose updates the tracker. Only active while bos is Confirmed and
// not yet triggered; reset is mandatory whenever BOS leaves Confirmed,
// which callers must enforce by calling Reset.
func (p *PullbackTracker) OnCandleClose(c candle.Candle, bos *Tracker, atr domain.Price, params PullbackParams) {
	if bos.State != BosConfirmed || p.Triggered {
		return
	}
	if !bos.HasLevel {
		return
	}
	level := bos.Level

	if !p.HasMax || c.High > p.MaxPriceAfterBos {
		p.MaxPriceAfterBos = c.High
		p.HasMax = true
	}

	impulse := float64(p.MaxPriceAfterBos - level)
	if impulse <= 0 {
		return
	}

	eps := float64(atr) * params.EpsilonFrac
	if abs(float64(c.Close-level)) <= eps {
		p.Triggered = true
		return
	}

	retrace := float64(p.MaxPriceAfterBos - c.Close)
	if retrace >= impulse*params.RetraceFrac {
		p.Triggered = true
	}
}

// Reset clears the latch and the tracked maximum.
func (p *PullbackTracker) Reset() {
	p.HasMax = false
	p.MaxPriceAfterBos = 0
	p.Triggered = false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
