// Package sweep runs a backtest driver over the Cartesian product of a set
// of enumerated parameter axes, evaluating combinations concurrently and
// ranking the results. Concurrency is bounded by a semaphore the way the
// optimizer's grid search bounds parallel objective evaluations; each
// individual backtest inside a combination remains strictly sequential.
package sweep

import (
	"context"
	"sort"
	"sync"

	"github.com/atlas-desktop/trading-backend/internal/backtest"
)

// Evaluation is one combination's input and resulting report.
type Evaluation[T any] struct {
	Combo  T
	Report backtest.Report
}

// Run evaluates every combo concurrently, bounded to workers goroutines in
// flight at once. A combo whose evaluator panics is skipped (counted in the
// skipped return value) rather than aborting the whole sweep.
func Run[T any](ctx context.Context, combos []T, workers int, evaluate func(T) backtest.Report) (results []Evaluation[T], skipped int) {
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, combo := range combos {
		select {
		case <-ctx.Done():
			mu.Lock()
			skipped += len(combos) - len(results) - skipped
			mu.Unlock()
			wg.Wait()
			return results, skipped
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(c T) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					skipped++
					mu.Unlock()
				}
			}()
			report := evaluate(c)
			mu.Lock()
			results = append(results, Evaluation[T]{Combo: c, Report: report})
			mu.Unlock()
		}(combo)
	}
	wg.Wait()
	return results, skipped
}

// Rank sorts evaluations by the tiebreak order: ROI descending, max
// drawdown ascending, profit factor descending.
func Rank[T any](evals []Evaluation[T]) {
	sort.SliceStable(evals, func(i, j int) bool {
		a, b := evals[i].Report, evals[j].Report
		if a.ROIPct != b.ROIPct {
			return a.ROIPct > b.ROIPct
		}
		if a.MaxDrawdownPct != b.MaxDrawdownPct {
			return a.MaxDrawdownPct < b.MaxDrawdownPct
		}
		return a.ProfitFactor > b.ProfitFactor
	})
}

// TopN returns the first n evaluations after Rank, or all of them if there
// are fewer than n.
func TopN[T any](evals []Evaluation[T], n int) []Evaluation[T] {
	if n <= 0 || n > len(evals) {
		return evals
	}
	return evals[:n]
}
