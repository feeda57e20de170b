package cv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// Cut bins values into nBins equal-width, right-closed intervals and returns
// the bin code of each value. The lowest edge is lowered by 0.1% of the
// range so the minimum falls into the first bin.
func Cut(values []float64, nBins int) ([]int, error) {
	if nBins < 1 {
		return nil, errors.NewValidationError("bins", "must be at least 1", nBins)
	}
	if len(values) == 0 {
		return nil, errors.NewModelError("Cut", "empty data", errors.ErrEmptyData)
	}

	lo, hi := floats.Min(values), floats.Max(values)
	if math.IsNaN(lo) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil, errors.NewValueError("Cut", "cannot cut non-finite values")
	}

	edges := make([]float64, nBins+1)
	if lo == hi {
		adj := 0.001
		if lo != 0 {
			adj = 0.001 * math.Abs(lo)
		}
		floats.Span(edges, lo-adj, hi+adj)
	} else {
		floats.Span(edges, lo, hi)
		edges[0] -= (hi - lo) * 0.001
	}

	codes := make([]int, len(values))
	for i, v := range values {
		// first edge >= v closes the interval (edges[k-1], edges[k]]
		k := 1
		for k < nBins && v > edges[k] {
			k++
		}
		codes[i] = k - 1
	}
	return codes, nil
}

// RepeatKey names the i-th outer fold.
func RepeatKey(i int) string {
	return fmt.Sprintf("repeat_%d", i)
}

// StratifiedSplits bins binsOn into nBins = floor(N/nSplits) bins and
// returns the test indices of each stratified fold keyed by RepeatKey. The
// folds partition the rows.
func StratifiedSplits(binsOn []float64, nSplits int, shuffle bool, seed int) (map[string][]int, error) {
	n := len(binsOn)
	nBins := n / nSplits
	if nBins < 1 {
		return nil, errors.NewValueError("StratifiedSplits",
			fmt.Sprintf("need at least %d samples for %d splits, got %d", nSplits, nSplits, n))
	}
	codes, err := Cut(binsOn, nBins)
	if err != nil {
		return nil, err
	}
	folds, err := NewStratifiedKFold(nSplits, shuffle, seed).Split(n, codes)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]int, len(folds))
	for i, f := range folds {
		out[RepeatKey(i)] = f.TestIndices
	}
	return out, nil
}

// RepeatKeys returns repeat_0 … repeat_{n-1} in numeric order.
func RepeatKeys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = RepeatKey(i)
	}
	return out
}

// Indices returns 0..n-1 as floats, the row index used as binning input.
func Indices(n int) []float64 {
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
	}
	return idx
}

// Complement returns the indices in [0, n) that are not in test, ascending.
func Complement(n int, test []int) []int {
	in := make([]bool, n)
	for _, i := range test {
		in[i] = true
	}
	out := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}
