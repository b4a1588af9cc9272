// Package structure implements market-structure detection: pivots, the
// break-of-structure (BOS) tracker, and the post-BOS pullback tracker.
package structure

import (
	"github.com/atlas-desktop/trading-backend/internal/candle"
	"github.com/atlas-desktop/trading-backend/internal/domain"
)

// Params controls pivot detection and the minimum retracement required to
// confirm a pivot as structural.
type Params struct {
	PivotK     int     // neighbor half-width
	MinATRFrac float64 // minimum retracement, as a fraction of ATR
}

// Snapshot is the last confirmed pivot high/low.
type Snapshot struct {
	LastHigh domain.Price
	HasHigh  bool
	LastLow  domain.Price
	HasLow   bool
}

// IsPivotHigh reports whether candles[i] is a pivot high with half-width k.
func IsPivotHigh(candles []candle.Candle, i, k int) bool {
	if i < k || i+k >= len(candles) {
		return false
	}
	hi := candles[i].High
	for j := i - k; j < i; j++ {
		if candles[j].High >= hi {
			return false
		}
	}
	for j := i + 1; j <= i+k; j++ {
		if candles[j].High >= hi {
			return false
		}
	}
	return true
}

// IsPivotLow reports whether candles[i] is a pivot low with half-width k.
func IsPivotLow(candles []candle.Candle, i, k int) bool {
	if i < k || i+k >= len(candles) {
		return false
	}
	lo := candles[i].Low
	for j := i - k; j < i; j++ {
		if candles[j].Low <= lo {
			return false
		}
	}
	for j := i + 1; j <= i+k; j++ {
		if candles[j].Low <= lo {
			return false
		}
	}
	return true
}

// Detect scans the window and returns the most recent confirmed pivot high
// and low per side. A pivot is confirmed only once some later bar retraces
// at least MinATRFrac*ATR from it.
func Detect(candles []candle.Candle, params Params) Snapshot {
	atrVal, ok := candle.ATR(candles)
	if !ok {
		return Snapshot{}
	}
	minMove := float64(atrVal) * params.MinATRFrac

	var snap Snapshot
	for i := range candles {
		if IsPivotHigh(candles, i, params.PivotK) {
			hi := float64(candles[i].High)
			for j := i + 1; j < len(candles); j++ {
				if hi-float64(candles[j].Low) >= minMove {
					snap.LastHigh = domain.Price(hi)
					snap.HasHigh = true
					break
				}
			}
		}
		if IsPivotLow(candles, i, params.PivotK) {
			lo := float64(candles[i].Low)
			for j := i + 1; j < len(candles); j++ {
				if float64(candles[j].High)-lo >= minMove {
					snap.LastLow = domain.Price(lo)
					snap.HasLow = true
					break
				}
			}
		}
	}
	return snap
}
