package image

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/tensor"
)

// DefaultBins is the histogram size used by HistogramEqualization2D.
const DefaultBins = 256

// EqualizeHistogram maps every value of x through the normalized cumulative
// histogram of x, interpolated linearly between the left bin edges. Bins
// span [min(x), max(x)] evenly; values map into (0, 1], so the maximum maps
// to 1 and a constant image maps to 1.
func EqualizeHistogram(x *tensor.Tensor, bins int) (*tensor.Tensor, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("HistogramEqualization: %w: bins must be positive, got %d", nn.ErrInvalidArgument, bins)
	}
	data := x.Data()
	if len(data) == 0 {
		return x, nil
	}
	sorted := slices.Clone(data)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := make([]float64, bins+1)
	floats.Span(edges, lo, hi)

	// The last bin is closed; stat.Histogram wants it open.
	dividers := slices.Clone(edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	cdf := stat.Histogram(nil, dividers, sorted, nil)
	floats.CumSum(cdf, cdf)
	floats.Scale(1/cdf[bins-1], cdf)

	for i, v := range data {
		data[i] = interp(v, edges[:bins], cdf)
	}
	return tensor.FromSlice(data, x.Shape()...), nil
}

// interp evaluates the piecewise-linear function through (xs, ys) at v,
// clamping outside the range of xs.
func interp(v float64, xs, ys []float64) float64 {
	n := len(xs)
	switch {
	case v <= xs[0]:
		return ys[0]
	case v >= xs[n-1]:
		return ys[n-1]
	}
	j := sort.SearchFloat64s(xs, v)
	if xs[j] == v {
		return ys[j]
	}
	t := (v - xs[j-1]) / (xs[j] - xs[j-1])
	return ys[j-1] + t*(ys[j]-ys[j-1])
}

// HistogramEqualization2D is the layer form of EqualizeHistogram for
// [C, H, W] images. The histogram covers all channels together.
type HistogramEqualization2D struct {
	bins int
}

// NewHistogramEqualization2D creates the layer; bins <= 0 selects
// DefaultBins.
func NewHistogramEqualization2D(bins int) *HistogramEqualization2D {
	if bins <= 0 {
		bins = DefaultBins
	}
	return &HistogramEqualization2D{bins: bins}
}

// Forward equalizes x.
func (h *HistogramEqualization2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkImage("HistogramEqualization2D", x, 0); err != nil {
		return nil, err
	}
	return EqualizeHistogram(x, h.bins)
}

// Parameters returns nil.
func (h *HistogramEqualization2D) Parameters() []*nn.Parameter { return nil }

// Bins returns the histogram size.
func (h *HistogramEqualization2D) Bins() int { return h.bins }
