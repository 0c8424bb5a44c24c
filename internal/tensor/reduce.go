package tensor

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Reducer folds a contiguous run of values into one value.
type Reducer func(values []float64) float64

// Built-in reducers backed by gonum/floats.
var (
	ReduceSum Reducer = floats.Sum
	ReduceMax Reducer = floats.Max
	ReduceMin Reducer = floats.Min
)

// ReduceMean averages values.
func ReduceMean(values []float64) float64 {
	return floats.Sum(values) / float64(len(values))
}

// ReduceVariance is the population variance of values.
func ReduceVariance(values []float64) float64 {
	return stat.PopVariance(values, nil)
}

// splitAxes returns the kept and reduced axes, both ascending.
// An empty axes list reduces every axis.
func (t *Tensor) splitAxes(axes []int) (kept, reduced []int) {
	rank := len(t.shape)
	mark := make([]bool, rank)
	if len(axes) == 0 {
		for i := range mark {
			mark[i] = true
		}
	}
	for _, a := range axes {
		a = mustAxis(a, rank)
		if mark[a] {
			panic(fmt.Sprintf("tensor: repeated axis %d in %v", a, axes))
		}
		mark[a] = true
	}
	for i := 0; i < rank; i++ {
		if mark[i] {
			reduced = append(reduced, i)
		} else {
			kept = append(kept, i)
		}
	}
	return kept, reduced
}

// groupAxes transposes the tensor so that the given axes are last and
// returns the transposed tensor plus the size of each trailing group.
func (t *Tensor) groupAxes(axes []int) (moved *Tensor, kept []int, group int) {
	kept, reduced := t.splitAxes(axes)
	perm := append(slices.Clone(kept), reduced...)
	group = 1
	for _, a := range reduced {
		group *= t.shape[a]
	}
	return t.Transpose(perm...), kept, group
}

// Reduce folds the given axes with r. With no axes every axis is reduced.
// keepDims keeps the reduced axes as size-1 dimensions.
func (t *Tensor) Reduce(r Reducer, keepDims bool, axes ...int) *Tensor {
	moved, kept, group := t.groupAxes(axes)
	n := 1
	for _, a := range kept {
		n *= t.shape[a]
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r(moved.data[i*group : (i+1)*group])
	}

	var shape Shape
	if keepDims {
		shape = t.shape.Clone()
		_, reduced := t.splitAxes(axes)
		for _, a := range reduced {
			shape[a] = 1
		}
	} else {
		shape = make(Shape, len(kept))
		for i, a := range kept {
			shape[i] = t.shape[a]
		}
	}
	return newTensor(out, shape, Float64)
}

// Sum adds elements over axes.
func (t *Tensor) Sum(keepDims bool, axes ...int) *Tensor { return t.Reduce(ReduceSum, keepDims, axes...) }

// Mean averages elements over axes.
func (t *Tensor) Mean(keepDims bool, axes ...int) *Tensor {
	return t.Reduce(ReduceMean, keepDims, axes...)
}

// Max takes the maximum over axes.
func (t *Tensor) Max(keepDims bool, axes ...int) *Tensor { return t.Reduce(ReduceMax, keepDims, axes...) }

// Min takes the minimum over axes.
func (t *Tensor) Min(keepDims bool, axes ...int) *Tensor { return t.Reduce(ReduceMin, keepDims, axes...) }

// Variance computes the population variance over axes.
func (t *Tensor) Variance(keepDims bool, axes ...int) *Tensor {
	return t.Reduce(ReduceVariance, keepDims, axes...)
}

// ArgMax returns the flat index of the largest element.
func (t *Tensor) ArgMax() int {
	return floats.MaxIdx(t.data)
}

// MapGroups transforms each run of elements spanning axes with f, which
// writes its result into dst. The output has the input's shape.
//
// This is the building block for normalization layers and softmax.
func (t *Tensor) MapGroups(f func(dst, src []float64), axes ...int) *Tensor {
	moved, kept, group := t.groupAxes(axes)
	out := make([]float64, len(moved.data))
	for i := 0; i*group < len(out); i++ {
		f(out[i*group:(i+1)*group], moved.data[i*group:(i+1)*group])
	}

	_, reduced := t.splitAxes(axes)
	perm := append(slices.Clone(kept), reduced...)
	movedShape := make(Shape, len(perm))
	for i, a := range perm {
		movedShape[i] = t.shape[a]
	}
	inverse := make([]int, len(perm))
	for i, a := range perm {
		inverse[a] = i
	}
	return newTensor(out, movedShape, Float64).Transpose(inverse...)
}

// Softmax normalizes exp(x) to sum to one along axis.
func (t *Tensor) Softmax(axis int) *Tensor {
	return t.MapGroups(func(dst, src []float64) {
		hi := floats.Max(src)
		for i, v := range src {
			dst[i] = math.Exp(v - hi)
		}
		floats.Scale(1/floats.Sum(dst), dst)
	}, axis)
}

// LogSoftmax computes log(softmax(x)) along axis.
func (t *Tensor) LogSoftmax(axis int) *Tensor {
	return t.MapGroups(func(dst, src []float64) {
		hi := floats.Max(src)
		lse := hi + math.Log(floats.SumCompensated(expShift(src, hi)))
		for i, v := range src {
			dst[i] = v - lse
		}
	}, axis)
}

func expShift(src []float64, shift float64) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = math.Exp(v - shift)
	}
	return out
}
