package tensor

import (
	"fmt"

	"github.com/born-ml/strata/internal/parallel"
)

// ConvOptions configures an N-dimensional convolution.
//
// All per-axis slices cover the spatial axes only. Nil slices mean stride 1,
// no padding and no dilation.
type ConvOptions struct {
	Strides        []int
	Padding        [][2]int // (before, after) per axis; negative values crop
	InputDilation  []int    // zeros inserted between input elements (transposed convolution)
	KernelDilation []int    // holes between kernel taps (atrous convolution)
	Groups         int      // feature groups; 0 means 1
}

func (o ConvOptions) withDefaults(nd int) ConvOptions {
	ones := func(v []int) []int {
		if v != nil {
			if len(v) != nd {
				panic(fmt.Sprintf("tensor.Conv: expected %d values, got %v", nd, v))
			}
			return v
		}
		out := make([]int, nd)
		for i := range out {
			out[i] = 1
		}
		return out
	}
	o.Strides = ones(o.Strides)
	o.InputDilation = ones(o.InputDilation)
	o.KernelDilation = ones(o.KernelDilation)
	if o.Padding == nil {
		o.Padding = make([][2]int, nd)
	}
	if len(o.Padding) != nd {
		panic(fmt.Sprintf("tensor.Conv: expected %d padding pairs, got %v", nd, o.Padding))
	}
	if o.Groups == 0 {
		o.Groups = 1
	}
	return o
}

// convPlan holds the prepared input and index tables shared by the direct
// and local convolutions.
type convPlan struct {
	input      *Tensor // dilated and padded input
	outSpatial Shape
	kernelOffs []int // input offsets of each kernel tap, relative to a window origin
	outOffs    []int // input offsets of each output position's window origin
}

func planConv(x *Tensor, kernel []int, o ConvOptions) convPlan {
	nd := len(kernel)
	if x.Rank() != nd+1 {
		panic(fmt.Sprintf("tensor.Conv: expected input rank %d, got shape %v", nd+1, x.shape))
	}

	inDil := append([]int{1}, o.InputDilation...)
	pads := append([][2]int{{0, 0}}, o.Padding...)
	xp := x.Dilate(inDil, 0).Pad(pads, 0)

	out := make(Shape, nd)
	for d := 0; d < nd; d++ {
		extent := (kernel[d]-1)*o.KernelDilation[d] + 1
		n := xp.shape[d+1] - extent
		if n < 0 {
			panic(fmt.Sprintf("tensor.Conv: kernel extent %d exceeds padded input %d on axis %d", extent, xp.shape[d+1], d))
		}
		out[d] = n/o.Strides[d] + 1
	}

	kernelOffs := offsets(Shape(kernel), func(d, i int) int {
		return i * o.KernelDilation[d] * xp.strides[d+1]
	})
	outOffs := offsets(out, func(d, i int) int {
		return i * o.Strides[d] * xp.strides[d+1]
	})
	return convPlan{input: xp, outSpatial: out, kernelOffs: kernelOffs, outOffs: outOffs}
}

// offsets enumerates shape in row-major order and sums step(d, i) over axes.
func offsets(shape Shape, step func(d, i int) int) []int {
	n := shape.NumElements()
	out := make([]int, n)
	idx := make([]int, len(shape))
	for pos := 0; pos < n; pos++ {
		off := 0
		for d, i := range idx {
			off += step(d, i)
		}
		out[pos] = off
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}

func checkGroups(op string, inC, outC, kernelIn, groups int) {
	if groups < 1 || inC%groups != 0 || outC%groups != 0 {
		panic(fmt.Sprintf("tensor.%s: %d input and %d output features not divisible into %d groups", op, inC, outC, groups))
	}
	if kernelIn != inC/groups {
		panic(fmt.Sprintf("tensor.%s: kernel expects %d input features per group, input has %d", op, kernelIn, inC/groups))
	}
}

// Conv computes a channel-first cross-correlation.
//
// x has shape [C, spatial...] and w has shape [O, C/groups, kernel...]. The
// result has shape [O, out...] where each out axis is
// (in·dilation + pads − effective kernel) / stride + 1.
func Conv(x, w *Tensor, opts ConvOptions) *Tensor {
	nd := w.Rank() - 2
	if nd < 1 {
		panic(fmt.Sprintf("tensor.Conv: kernel must have rank >= 3, got %v", w.shape))
	}
	o := opts.withDefaults(nd)
	outC, cin := w.shape[0], w.shape[1]
	checkGroups("Conv", x.shape[0], outC, cin, o.Groups)

	plan := planConv(x, w.shape[2:], o)
	xp := plan.input
	taps := len(plan.kernelOffs)
	positions := len(plan.outOffs)
	perGroup := outC / o.Groups
	out := make([]float64, outC*positions)

	parallel.For(outC, outC*positions*cin*taps, func(oc int) {
		g := oc / perGroup
		dst := out[oc*positions : (oc+1)*positions]
		for c := 0; c < cin; c++ {
			chanBase := (g*cin + c) * xp.strides[0]
			wBase := (oc*cin + c) * taps
			for p, po := range plan.outOffs {
				base := chanBase + po
				acc := 0.0
				for k, ko := range plan.kernelOffs {
					acc += xp.data[base+ko] * w.data[wBase+k]
				}
				dst[p] += acc
			}
		}
	})

	shape := append(Shape{outC}, plan.outSpatial...)
	return newTensor(out, shape, Float64)
}

// Patches extracts the receptive field of every output position.
//
// The result has shape [C·prod(kernel), out...], ordered channel-major then
// kernel tap, so that a kernel flattened as [O, C, kernel...] lines up.
func Patches(x *Tensor, kernel []int, opts ConvOptions) *Tensor {
	o := opts.withDefaults(len(kernel))
	plan := planConv(x, kernel, o)
	xp := plan.input
	channels := x.shape[0]
	taps := len(plan.kernelOffs)
	positions := len(plan.outOffs)
	out := make([]float64, channels*taps*positions)
	for c := 0; c < channels; c++ {
		for k, ko := range plan.kernelOffs {
			row := out[(c*taps+k)*positions : (c*taps+k+1)*positions]
			for p, po := range plan.outOffs {
				row[p] = xp.data[c*xp.strides[0]+po+ko]
			}
		}
	}
	shape := append(Shape{channels * taps}, plan.outSpatial...)
	return newTensor(out, shape, Float64)
}

// LocalConv is a convolution with unshared weights: every output position
// has its own kernel.
//
// w has shape [O, C·prod(kernel), out...].
func LocalConv(x, w *Tensor, kernel []int, opts ConvOptions) *Tensor {
	patches := Patches(x, kernel, opts)
	if w.Rank() != patches.Rank()+1 || w.shape[1] != patches.shape[0] {
		panic(fmt.Sprintf("tensor.LocalConv: weight %v does not match patches %v", w.shape, patches.shape))
	}
	for d := 1; d < patches.Rank(); d++ {
		if w.shape[d+1] != patches.shape[d] {
			panic(fmt.Sprintf("tensor.LocalConv: weight %v does not match output %v", w.shape, patches.shape[1:]))
		}
	}
	outC := w.shape[0]
	j := patches.shape[0]
	positions := patches.Size() / j
	flatW := w.Reshape(outC, j, positions)
	flatP := patches.Reshape(j, positions)
	y := Einsum("ojp,jp->op", flatW, flatP)
	return y.Reshape(append([]int{outC}, patches.shape[1:]...)...)
}
