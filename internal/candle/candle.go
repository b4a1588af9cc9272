// Package candle implements the bounded candle feed the decision core reads
// from: a fixed-width ring of the most recent bars exposing ATR and mid,
// plus the CSV cache format described for candle data.
package candle

import (
	"github.com/atlas-desktop/trading-backend/internal/domain"
)

// Candle is one OHLCV bar. Immutable once ingested.
type Candle struct {
	TS     domain.TimestampMs
	Open   domain.Price
	High   domain.Price
	Low    domain.Price
	Close  domain.Price
	Volume domain.Qty
}

// Timeframe is a supported bar interval.
type Timeframe string

const (
	Min1  Timeframe = "1m"
	Min5  Timeframe = "5m"
	Min15 Timeframe = "15m"
	Hour1 Timeframe = "1h"
	Hour4 Timeframe = "4h"
)

// Millis returns the timeframe's duration in milliseconds.
func (t Timeframe) Millis() int64 {
	switch t {
	case Min1:
		return 60_000
	case Min5:
		return 5 * 60_000
	case Min15:
		return 15 * 60_000
	case Hour1:
		return 60 * 60_000
	case Hour4:
		return 4 * 60 * 60_000
	default:
		return 60_000
	}
}

// TrueRange computes the true range of candle c given the previous close.
func TrueRange(prevClose domain.Price, c Candle) domain.Price {
	hl := float64(c.High - c.Low)
	hc := abs(float64(c.High - prevClose))
	lc := abs(float64(c.Low - prevClose))
	return domain.Price(max3(hl, hc, lc))
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// ATR returns the simple mean true range over candles, or false if there are
// fewer than 2 candles.
func ATR(candles []Candle) (domain.Price, bool) {
	if len(candles) < 2 {
		return 0, false
	}
	var sum float64
	for i := 1; i < len(candles); i++ {
		sum += float64(TrueRange(candles[i-1].Close, candles[i]))
	}
	return domain.Price(sum / float64(len(candles)-1)), true
}

// Feed is a bounded ordered sequence of the most recent W candles.
type Feed struct {
	window int
	bars   []Candle
}

// NewFeed creates a feed bounded to the given window length.
func NewFeed(window int) *Feed {
	if window <= 0 {
		window = 1
	}
	return &Feed{window: window}
}

// Push appends a candle, dropping the oldest if the window is exceeded.
// Candles with a timestamp not strictly greater than the last one are
// rejected (ascending, deduplicated by timestamp).
func (f *Feed) Push(c Candle) bool {
	if n := len(f.bars); n > 0 && c.TS <= f.bars[n-1].TS {
		return false
	}
	f.bars = append(f.bars, c)
	if len(f.bars) > f.window {
		f.bars = f.bars[len(f.bars)-f.window:]
	}
	return true
}

// Bars returns the current window, oldest first.
func (f *Feed) Bars() []Candle { return f.bars }

// Len returns the number of candles currently held.
func (f *Feed) Len() int { return len(f.bars) }

// ATR returns the feed's current ATR, or false if insufficient data.
func (f *Feed) ATR() (domain.Price, bool) { return ATR(f.bars) }

// Mid returns the last close, or false if the feed is empty.
func (f *Feed) Mid() (domain.Price, bool) {
	if len(f.bars) == 0 {
		return 0, false
	}
	return f.bars[len(f.bars)-1].Close, true
}

// Last returns the most recently pushed candle.
func (f *Feed) Last() (Candle, bool) {
	if len(f.bars) == 0 {
		return Candle{}, false
	}
	return f.bars[len(f.bars)-1], true
}
