package tensor

import (
	"fmt"
	"slices"
)

// gatherStrided copies the elements addressed by (offset, strides) over shape
// into a new row-major buffer. Zero strides broadcast; negative strides flip.
func gatherStrided(data []float64, shape Shape, strides []int, offset int) []float64 {
	n := shape.NumElements()
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	idx := make([]int, len(shape))
	off := offset
	for pos := 0; pos < n; pos++ {
		out[pos] = data[off]
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			off += strides[d]
			if idx[d] < shape[d] {
				break
			}
			off -= strides[d] * shape[d]
			idx[d] = 0
		}
	}
	return out
}

// Reshape returns a tensor with the same values and a new shape.
// At most one dimension may be -1; it is inferred from the element count.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	s := Shape(shape).Clone()
	infer := -1
	known := 1
	for i, d := range s {
		switch {
		case d == -1 && infer < 0:
			infer = i
		case d < 0:
			panic(fmt.Sprintf("tensor.Reshape: invalid shape %v", shape))
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			panic(fmt.Sprintf("tensor.Reshape: cannot infer -1 reshaping %v to %v", t.shape, shape))
		}
		s[infer] = len(t.data) / known
	}
	if s.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor.Reshape: cannot reshape %v to %v", t.shape, shape))
	}
	return newTensor(t.Data(), s, t.dtype)
}

// Flatten returns a rank-1 view of the values.
func (t *Tensor) Flatten() *Tensor { return t.Reshape(-1) }

// Transpose permutes the axes. With no arguments the axes are reversed.
func (t *Tensor) Transpose(axes ...int) *Tensor {
	rank := len(t.shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("tensor.Transpose: permutation %v does not match rank %d", axes, rank))
	}
	seen := make([]bool, rank)
	shape := make(Shape, rank)
	strides := make([]int, rank)
	for i, a := range axes {
		a = mustAxis(a, rank)
		if seen[a] {
			panic(fmt.Sprintf("tensor.Transpose: repeated axis in %v", axes))
		}
		seen[a] = true
		shape[i] = t.shape[a]
		strides[i] = t.strides[a]
	}
	return newTensor(gatherStrided(t.data, shape, strides, 0), shape, t.dtype)
}

// MoveAxis moves axis src to position dst, keeping the order of the others.
func (t *Tensor) MoveAxis(src, dst int) *Tensor {
	rank := len(t.shape)
	src = mustAxis(src, rank)
	dst = mustAxis(dst, rank)
	if src == dst {
		return t
	}
	perm := make([]int, 0, rank)
	for i := 0; i < rank; i++ {
		if i != src {
			perm = append(perm, i)
		}
	}
	perm = slices.Insert(perm, dst, src)
	return t.Transpose(perm...)
}

// ExpandDims inserts a size-1 axis at position axis.
func (t *Tensor) ExpandDims(axis int) *Tensor {
	axis = mustAxis(axis, len(t.shape)+1)
	shape := slices.Insert(t.shape.Clone(), axis, 1)
	return newTensor(t.Data(), shape, t.dtype)
}

// Squeeze removes the given size-1 axes, or all of them when none are given.
func (t *Tensor) Squeeze(axes ...int) *Tensor {
	drop := make([]bool, len(t.shape))
	if len(axes) == 0 {
		for i, d := range t.shape {
			drop[i] = d == 1
		}
	}
	for _, a := range axes {
		a = mustAxis(a, len(t.shape))
		if t.shape[a] != 1 {
			panic(fmt.Sprintf("tensor.Squeeze: axis %d of %v is not 1", a, t.shape))
		}
		drop[a] = true
	}
	shape := make(Shape, 0, len(t.shape))
	for i, d := range t.shape {
		if !drop[i] {
			shape = append(shape, d)
		}
	}
	return newTensor(t.Data(), shape, t.dtype)
}

// Broadcast expands the tensor to shape using broadcasting rules.
func (t *Tensor) Broadcast(shape ...int) *Tensor {
	target := Shape(shape).Clone()
	out, err := BroadcastShapes(t.shape, target)
	if err != nil || !out.Equal(target) {
		panic(fmt.Sprintf("tensor.Broadcast: cannot broadcast %v to %v", t.shape, target))
	}
	return newTensor(gatherStrided(t.data, target, broadcastStrides(t.shape, target), 0), target, t.dtype)
}

// Slice returns elements [start, end) along axis.
func (t *Tensor) Slice(axis, start, end int) *Tensor {
	axis = mustAxis(axis, len(t.shape))
	if start < 0 || end > t.shape[axis] || start > end {
		panic(fmt.Sprintf("tensor.Slice: range [%d, %d) invalid for axis %d of %v", start, end, axis, t.shape))
	}
	shape := t.shape.Clone()
	shape[axis] = end - start
	return newTensor(gatherStrided(t.data, shape, t.strides, start*t.strides[axis]), shape, t.dtype)
}

// Window returns the block starting at starts with extent sizes.
func (t *Tensor) Window(starts, sizes []int) *Tensor {
	if len(starts) != len(t.shape) || len(sizes) != len(t.shape) {
		panic(fmt.Sprintf("tensor.Window: starts %v and sizes %v do not match rank %d", starts, sizes, len(t.shape)))
	}
	offset := 0
	for i := range starts {
		if starts[i] < 0 || sizes[i] < 0 || starts[i]+sizes[i] > t.shape[i] {
			panic(fmt.Sprintf("tensor.Window: window %v+%v outside %v", starts, sizes, t.shape))
		}
		offset += starts[i] * t.strides[i]
	}
	shape := Shape(sizes).Clone()
	return newTensor(gatherStrided(t.data, shape, t.strides, offset), shape, t.dtype)
}

// Flip reverses the order of elements along the given axes.
func (t *Tensor) Flip(axes ...int) *Tensor {
	strides := slices.Clone(t.strides)
	offset := 0
	for _, a := range axes {
		a = mustAxis(a, len(t.shape))
		if t.shape[a] == 0 {
			continue
		}
		offset += (t.shape[a] - 1) * strides[a]
		strides[a] = -strides[a]
	}
	return newTensor(gatherStrided(t.data, t.shape, strides, offset), t.shape.Clone(), t.dtype)
}

// Concat joins tensors along an existing axis.
func Concat(axis int, ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("tensor.Concat: no tensors")
	}
	first := ts[0]
	axis = mustAxis(axis, len(first.shape))
	shape := first.shape.Clone()
	shape[axis] = 0
	for _, x := range ts {
		if len(x.shape) != len(shape) {
			panic(fmt.Sprintf("tensor.Concat: rank mismatch %v vs %v", first.shape, x.shape))
		}
		for i := range shape {
			if i != axis && x.shape[i] != first.shape[i] {
				panic(fmt.Sprintf("tensor.Concat: shape mismatch %v vs %v on axis %d", first.shape, x.shape, i))
			}
		}
		shape[axis] += x.shape[axis]
	}

	outer := Shape(shape[:axis]).NumElements()
	inner := Shape(shape[axis+1:]).NumElements()
	out := make([]float64, 0, shape.NumElements())
	for o := 0; o < outer; o++ {
		for _, x := range ts {
			block := x.shape[axis] * inner
			out = append(out, x.data[o*block:(o+1)*block]...)
		}
	}
	return newTensor(out, shape, first.dtype)
}

// Stack joins tensors of equal shape along a new axis.
func Stack(axis int, ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("tensor.Stack: no tensors")
	}
	expanded := make([]*Tensor, len(ts))
	for i, x := range ts {
		expanded[i] = x.ExpandDims(axis)
	}
	return Concat(axis, expanded...)
}

// Split divides the tensor into equal sections along axis.
func (t *Tensor) Split(axis, sections int) []*Tensor {
	axis = mustAxis(axis, len(t.shape))
	if sections <= 0 || t.shape[axis]%sections != 0 {
		panic(fmt.Sprintf("tensor.Split: axis %d of %v not divisible into %d sections", axis, t.shape, sections))
	}
	size := t.shape[axis] / sections
	parts := make([]*Tensor, sections)
	for i := range parts {
		parts[i] = t.Slice(axis, i*size, (i+1)*size)
	}
	return parts
}

// Pad adds (before, after) elements along every axis, filled with value.
// Negative amounts remove elements from that side.
func (t *Tensor) Pad(pads [][2]int, value float64) *Tensor {
	rank := len(t.shape)
	if len(pads) != rank {
		panic(fmt.Sprintf("tensor.Pad: %d pad pairs for rank %d", len(pads), rank))
	}
	shape := make(Shape, rank)
	for i, p := range pads {
		shape[i] = t.shape[i] + p[0] + p[1]
		if shape[i] < 0 {
			panic(fmt.Sprintf("tensor.Pad: padding %v makes axis %d of %v negative", p, i, t.shape))
		}
	}
	out := make([]float64, shape.NumElements())
	idx := make([]int, rank)
	for pos := range out {
		off := 0
		inside := true
		for d := 0; d < rank; d++ {
			src := idx[d] - pads[d][0]
			if src < 0 || src >= t.shape[d] {
				inside = false
				break
			}
			off += src * t.strides[d]
		}
		if inside {
			out[pos] = t.data[off]
		} else {
			out[pos] = value
		}
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return newTensor(out, shape, t.dtype)
}

// Take gathers the given indices along axis.
func (t *Tensor) Take(indices []int, axis int) *Tensor {
	axis = mustAxis(axis, len(t.shape))
	dim := t.shape[axis]
	shape := t.shape.Clone()
	shape[axis] = len(indices)
	outer := Shape(t.shape[:axis]).NumElements()
	inner := Shape(t.shape[axis+1:]).NumElements()
	out := make([]float64, 0, shape.NumElements())
	for o := 0; o < outer; o++ {
		base := o * dim * inner
		for _, ix := range indices {
			if ix < 0 || ix >= dim {
				panic(fmt.Sprintf("tensor.Take: index %d out of range for axis %d of %v", ix, axis, t.shape))
			}
			start := base + ix*inner
			out = append(out, t.data[start:start+inner]...)
		}
	}
	return newTensor(out, shape, t.dtype)
}

// Dilate inserts factor-1 fill values between consecutive elements along
// every axis.
func (t *Tensor) Dilate(factors []int, fill float64) *Tensor {
	rank := len(t.shape)
	if len(factors) != rank {
		panic(fmt.Sprintf("tensor.Dilate: %d factors for rank %d", len(factors), rank))
	}
	trivial := true
	shape := make(Shape, rank)
	for i, f := range factors {
		if f < 1 {
			panic(fmt.Sprintf("tensor.Dilate: factor %d must be positive", f))
		}
		trivial = trivial && f == 1
		if t.shape[i] == 0 {
			continue
		}
		shape[i] = (t.shape[i]-1)*f + 1
	}
	if trivial {
		return t
	}
	out := make([]float64, shape.NumElements())
	if fill != 0 {
		for i := range out {
			out[i] = fill
		}
	}
	outStrides := shape.ComputeStrides()
	idx := make([]int, rank)
	for pos := range t.data {
		off := 0
		for d := 0; d < rank; d++ {
			off += idx[d] * factors[d] * outStrides[d]
		}
		out[off] = t.data[pos]
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < t.shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return newTensor(out, shape, t.dtype)
}
