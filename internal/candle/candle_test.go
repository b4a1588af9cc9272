package candle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/internal/domain"
)

func mk(ts int64, o, h, l, c, v float64) Candle {
	return Candle{
		TS: domain.TimestampMs(ts), Open: domain.Price(o), High: domain.Price(h),
		Low: domain.Price(l), Close: domain.Price(c), Volume: domain.Qty(v),
	}
}

func TestFeedPushDropsOldest(t *testing.T) {
	f := NewFeed(2)
	assert.True(t, f.Push(mk(1, 1, 1, 1, 1, 1)))
	assert.True(t, f.Push(mk(2, 1, 1, 1, 1, 1)))
	assert.True(t, f.Push(mk(3, 1, 1, 1, 1, 1)))
	require.Equal(t, 2, f.Len())
	assert.EqualValues(t, 2, f.Bars()[0].TS)
}

func TestFeedRejectsNonIncreasingTimestamp(t *testing.T) {
	f := NewFeed(5)
	require.True(t, f.Push(mk(10, 1, 1, 1, 1, 1)))
	assert.False(t, f.Push(mk(10, 1, 1, 1, 1, 1)))
	assert.False(t, f.Push(mk(5, 1, 1, 1, 1, 1)))
}

func TestATRRequiresTwoCandles(t *testing.T) {
	_, ok := ATR([]Candle{mk(1, 1, 1, 1, 1, 1)})
	assert.False(t, ok)

	a, ok := ATR([]Candle{
		mk(1, 100, 102, 98, 100, 1),
		mk(2, 100, 105, 99, 103, 1),
	})
	require.True(t, ok)
	assert.InDelta(t, 6.0, float64(a), 1e-9)
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candles.csv")
	in := []Candle{
		mk(2000, 10, 11, 9, 10.5, 100),
		mk(1000, 9, 10, 8, 9.5, 50),
		mk(2000, 10, 11, 9, 10.6, 120), // duplicate ts, later row wins
	}
	require.NoError(t, SaveCSV(path, in))

	out, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.EqualValues(t, 1000, out[0].TS)
	assert.EqualValues(t, 2000, out[1].TS)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ts,open,high,low,close,volume")
}
