package candle

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/atlas-desktop/trading-backend/internal/domain"
)

// CSVHeader is the fixed header row for candle cache files (§6 Candle CSV).
var CSVHeader = []string{"ts", "open", "high", "low", "close", "volume"}

// LoadCSV reads a candle cache file. Rows are expected ascending by ts with
// no duplicate timestamps; LoadCSV enforces this by sorting and
// deduplicating (last row for a given ts wins), matching the cache-file
// contract rather than trusting the file blindly.
func LoadCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle cache %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read candle cache header: %w", err)
	}
	if len(header) < 6 {
		return nil, fmt.Errorf("candle cache %s: malformed header", path)
	}

	byTS := make(map[int64]Candle)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read candle cache row: %w", err)
		}
		c, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse candle cache row: %w", err)
		}
		byTS[int64(c.TS)] = c
	}

	out := make([]Candle, 0, len(byTS))
	for _, c := range byTS {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out, nil
}

func parseRow(row []string) (Candle, error) {
	if len(row) < 6 {
		return Candle{}, fmt.Errorf("expected 6 columns, got %d", len(row))
	}
	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("ts: %w", err)
	}
	open, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return Candle{}, fmt.Errorf("open: %w", err)
	}
	high, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Candle{}, fmt.Errorf("high: %w", err)
	}
	low, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return Candle{}, fmt.Errorf("low: %w", err)
	}
	closeV, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return Candle{}, fmt.Errorf("close: %w", err)
	}
	vol, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return Candle{}, fmt.Errorf("volume: %w", err)
	}
	return Candle{
		TS:     domain.TimestampMs(ts),
		Open:   domain.Price(open),
		High:   domain.Price(high),
		Low:    domain.Price(low),
		Close:  domain.Price(closeV),
		Volume: domain.Qty(vol),
	}, nil
}

// SaveCSV writes candles to a cache file, ascending by ts, deduplicated
// (last row for a given ts wins).
func SaveCSV(path string, candles []Candle) error {
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS < sorted[j].TS })
	deduped := sorted[:0]
	for _, c := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].TS == c.TS {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create candle cache %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(CSVHeader); err != nil {
		return err
	}
	for _, c := range deduped {
		row := []string{
			strconv.FormatInt(int64(c.TS), 10),
			strconv.FormatFloat(float64(c.Open), 'f', -1, 64),
			strconv.FormatFloat(float64(c.High), 'f', -1, 64),
			strconv.FormatFloat(float64(c.Low), 'f', -1, 64),
			strconv.FormatFloat(float64(c.Close), 'f', -1, 64),
			strconv.FormatFloat(float64(c.Volume), 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
