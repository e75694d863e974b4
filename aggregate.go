package nnsplit

import "fmt"

// Curve holds the averaged probability of every level at every byte of one
// text, stored row-major as [byte][level].
type Curve struct {
	values []float32
	levels int
}

// NewCurve wraps row-major [byte][level] values. len(values) must be a
// multiple of levels.
func NewCurve(values []float32, levels int) Curve {
	if levels <= 0 || len(values)%levels != 0 {
		panic(fmt.Sprintf("nnsplit: curve of %d values does not divide into %d levels", len(values), levels))
	}
	return Curve{values: values, levels: levels}
}

// Len returns the number of byte positions.
func (c Curve) Len() int {
	if c.levels == 0 {
		return 0
	}
	return len(c.values) / c.levels
}

// Levels returns the number of levels per position.
func (c Curve) Levels() int {
	return c.levels
}

// At returns the probability of level at byte pos.
func (c Curve) At(pos, level int) float32 {
	return c.values[pos*c.levels+level]
}

// Level returns a copy of one level's probabilities across all bytes.
func (c Curve) Level(level int) []float32 {
	out := make([]float32, c.Len())
	for i := range out {
		out[i] = c.At(i, level)
	}
	return out
}

// Reconstruct averages the per-window predictions of b into one curve per
// text, with padding stripped. preds holds one row-major
// [position][level] slice of b.WindowLength*levels values per window.
func Reconstruct(b Batch, preds [][]float32, levels int) ([]Curve, error) {
	if len(preds) != len(b.Windows) {
		return nil, fmt.Errorf("%w: got predictions for %d windows, want %d", ErrModelFailure, len(preds), len(b.Windows))
	}
	want := b.WindowLength * levels
	for i, p := range preds {
		if len(p) != want {
			return nil, fmt.Errorf("%w: window %d has %d values, want %d (%d positions x %d levels)",
				ErrModelFailure, i, len(p), want, b.WindowLength, levels)
		}
	}

	sums := make([][]float32, len(b.PaddedLengths))
	counts := make([][]int32, len(b.PaddedLengths))
	for i, n := range b.PaddedLengths {
		sums[i] = make([]float32, n*levels)
		counts[i] = make([]int32, n)
	}

	for i, w := range b.Windows {
		sum, count := sums[w.Text], counts[w.Text]
		for j := 0; j < w.Length; j++ {
			pos := w.Offset + j
			row := preds[i][j*levels : (j+1)*levels]
			for l, v := range row {
				sum[pos*levels+l] += v
			}
			count[pos]++
		}
	}

	curves := make([]Curve, len(b.PaddedLengths))
	for i, n := range b.PaddedLengths {
		sum, count := sums[i], counts[i]
		for pos := 0; pos < n; pos++ {
			if count[pos] == 0 {
				panic(fmt.Sprintf("nnsplit: text %d position %d not covered by any window", i, pos))
			}
			for l := 0; l < levels; l++ {
				sum[pos*levels+l] /= float32(count[pos])
			}
		}
		curves[i] = Curve{
			values: sum[b.Padding*levels : (n-b.Padding)*levels],
			levels: levels,
		}
	}

	return curves, nil
}
