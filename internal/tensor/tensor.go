// Package tensor implements the dense, immutable N-dimensional arrays used by
// the layer catalog.
//
// Every operation returns a new tensor; input tensors are never modified.
// Operations panic on shape misuse, the same way slice indexing does. Layers
// validate user input before reaching this package and report errors instead.
package tensor

import (
	"fmt"
	"math"
	"strings"
)

// Tensor is a dense row-major array of float64 values.
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
	dtype   DataType
}

func newTensor(data []float64, shape Shape, dtype DataType) *Tensor {
	return &Tensor{
		shape:   shape,
		strides: shape.ComputeStrides(),
		data:    data,
		dtype:   dtype,
	}
}

// FromSlice creates a Float64 tensor from a copy of data.
//
// Panics if len(data) does not match the number of elements in shape.
//
// Example:
//
//	x := tensor.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
func FromSlice(data []float64, shape ...int) *Tensor {
	s := Shape(shape).Clone()
	if err := s.Validate(); err != nil {
		panic(err)
	}
	if len(data) != s.NumElements() {
		panic(fmt.Sprintf("tensor.FromSlice: %d values do not fill shape %v", len(data), s))
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return newTensor(buf, s, Float64)
}

// FromInts creates an Int64 tensor from data.
func FromInts(data []int, shape ...int) *Tensor {
	s := Shape(shape).Clone()
	if err := s.Validate(); err != nil {
		panic(err)
	}
	if len(data) != s.NumElements() {
		panic(fmt.Sprintf("tensor.FromInts: %d values do not fill shape %v", len(data), s))
	}
	buf := make([]float64, len(data))
	for i, v := range data {
		buf[i] = float64(v)
	}
	return newTensor(buf, s, Int64)
}

// Full creates a Float64 tensor filled with value.
func Full(value float64, shape ...int) *Tensor {
	s := Shape(shape).Clone()
	if err := s.Validate(); err != nil {
		panic(err)
	}
	buf := make([]float64, s.NumElements())
	if value != 0 {
		for i := range buf {
			buf[i] = value
		}
	}
	return newTensor(buf, s, Float64)
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor { return Full(0, shape...) }

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor { return Full(1, shape...) }

// Scalar creates a rank-0 tensor.
func Scalar(value float64) *Tensor {
	return newTensor([]float64{value}, Shape{}, Float64)
}

// Arange returns the Float64 vector [0, 1, ..., n-1].
func Arange(n int) *Tensor {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = float64(i)
	}
	return newTensor(buf, Shape{n}, Float64)
}

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) *Tensor {
	buf := make([]float64, n)
	switch n {
	case 0:
	case 1:
		buf[0] = start
	default:
		step := (stop - start) / float64(n-1)
		for i := range buf {
			buf[i] = start + float64(i)*step
		}
		buf[n-1] = stop
	}
	return newTensor(buf, Shape{n}, Float64)
}

// Shape returns a copy of the tensor's dimensions.
func (t *Tensor) Shape() Shape { return t.shape.Clone() }

// Dim returns the size of one axis. Negative axes count from the end.
func (t *Tensor) Dim(axis int) int { return t.shape[mustAxis(axis, len(t.shape))] }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Size returns the number of elements.
func (t *Tensor) Size() int { return len(t.data) }

// DType returns the data type.
func (t *Tensor) DType() DataType { return t.dtype }

// Data returns a copy of the underlying row-major values.
func (t *Tensor) Data() []float64 {
	out := make([]float64, len(t.data))
	copy(out, t.data)
	return out
}

// Ints returns the values converted to int.
func (t *Tensor) Ints() []int {
	out := make([]int, len(t.data))
	for i, v := range t.data {
		out[i] = int(v)
	}
	return out
}

// At returns the element at the given index.
func (t *Tensor) At(index ...int) float64 {
	if len(index) != len(t.shape) {
		panic(fmt.Sprintf("tensor.At: got %d indices for rank %d", len(index), len(t.shape)))
	}
	off := 0
	for i, idx := range index {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("tensor.At: index %v out of range for shape %v", index, t.shape))
		}
		off += idx * t.strides[i]
	}
	return t.data[off]
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor.Item: tensor of shape %v has %d elements", t.shape, len(t.data)))
	}
	return t.data[0]
}

// IsIntegral reports whether every value is a whole number.
func (t *Tensor) IsIntegral() bool {
	if t.dtype == Int64 {
		return true
	}
	for _, v := range t.data {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AsType returns a copy of the tensor tagged with dtype.
// Converting to Int64 truncates toward zero.
func (t *Tensor) AsType(dtype DataType) *Tensor {
	buf := t.Data()
	if dtype == Int64 {
		for i, v := range buf {
			buf[i] = math.Trunc(v)
		}
	}
	return newTensor(buf, t.shape.Clone(), dtype)
}

// String formats the tensor shape and a prefix of its values.
func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor(%s, shape=%v, [", t.dtype, []int(t.shape))
	for i, v := range t.data {
		if i == 8 {
			sb.WriteString(" ...")
			break
		}
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteString("])")
	return sb.String()
}
