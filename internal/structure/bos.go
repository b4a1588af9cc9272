package structure

import (
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
)

// BosState is the lifecycle state of a break-of-structure attempt.
type BosState int

const (
	BosNone BosState = iota
	BosPotential
	BosConfirmed
	BosFailed
)

// BosParams controls confirmation.
type BosParams struct {
	ConfirmBars int
	EpsilonFrac float64
}

// Tracker holds BOS state across candle closes. Invariant: Level is valid
// iff State is Potential or Confirmed.
//
// This implements the reset-on-break variant: both Potential and Confirmed
// reset to None when close <= level, rather than latching into a terminal
// Failed state. BosFailed is kept as an enum value for completeness but is
// unreachable under this variant's transition rules.
type Tracker struct {
	State        BosState
	Level        domain.Price
	HasLevel     bool
	StartedAt    domain.TimestampMs
	ConfirmedBars int
}

// NewTracker returns a tracker in the None state.
func NewTracker() *Tracker {
	return &Tracker{State: BosNone}
}

// OnCandleClose advances the tracker given a freshly closed candle.
func (t *Tracker) OnCandleClose(c candle.Candle, snap Snapshot, atr domain.Price, params BosParams) {
	eps := domain.Price(float64(atr) * params.EpsilonFrac)

	switch t.State {
	case BosNone:
		if !snap.HasHigh {
			return
		}
		if c.Close > snap.LastHigh+eps {
			t.State = BosPotential
			t.Level = snap.LastHigh
			t.HasLevel = true
			t.StartedAt = c.TS
			t.ConfirmedBars = 1
			if t.ConfirmedBars >= params.ConfirmBars {
				t.State = BosConfirmed
			}
		}

	case BosPotential:
		if c.Close <= t.Level {
			t.reset()
			return
		}
		if c.Close > t.Level+eps {
			t.ConfirmedBars++
		}
		if t.ConfirmedBars >= params.ConfirmBars {
			t.State = BosConfirmed
		}

	case BosConfirmed:
		if c.Close <= t.Level {
			t.reset()
		}

	case BosFailed:
		t.reset()
	}
}

func (t *Tracker) reset() {
	t.State = BosNone
	t.HasLevel = false
	t.Level = 0
	t.StartedAt = 0
	t.ConfirmedBars = 0
}

// Reset forces the tracker back to None.
func (t *Tracker) Reset() { t.reset() }
