// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/strata/internal/tensor"
)

// Tensor is a dense, immutable N-dimensional array of float64 values.
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType describes how tensor values are interpreted.
type DataType = tensor.DataType

// Data types.
const (
	Float64 = tensor.Float64
	Int64   = tensor.Int64
)

// ErrShape is wrapped by every shape error reported by this package.
var ErrShape = tensor.ErrShape

// Creation

// FromSlice creates a Float64 tensor from a copy of data.
//
// Example:
//
//	x := tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
func FromSlice(data []float64, shape ...int) *Tensor { return tensor.FromSlice(data, shape...) }

// FromInts creates an Int64 tensor, typically embedding indices.
func FromInts(data []int, shape ...int) *Tensor { return tensor.FromInts(data, shape...) }

// Full creates a tensor filled with value.
func Full(value float64, shape ...int) *Tensor { return tensor.Full(value, shape...) }

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor { return tensor.Zeros(shape...) }

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor { return tensor.Ones(shape...) }

// Scalar creates a rank-0 tensor.
func Scalar(value float64) *Tensor { return tensor.Scalar(value) }

// Arange returns the vector [0, 1, ..., n-1].
func Arange(n int) *Tensor { return tensor.Arange(n) }

// Linspace returns n evenly spaced values over [start, stop].
func Linspace(start, stop float64, n int) *Tensor { return tensor.Linspace(start, stop, n) }

// Arithmetic (NumPy broadcasting)

// Add returns a + b.
func Add(a, b *Tensor) *Tensor { return tensor.Add(a, b) }

// Sub returns a - b.
func Sub(a, b *Tensor) *Tensor { return tensor.Sub(a, b) }

// Mul returns a * b element-wise.
func Mul(a, b *Tensor) *Tensor { return tensor.Mul(a, b) }

// Div returns a / b element-wise.
func Div(a, b *Tensor) *Tensor { return tensor.Div(a, b) }

// Maximum returns the element-wise maximum.
func Maximum(a, b *Tensor) *Tensor { return tensor.Maximum(a, b) }

// Minimum returns the element-wise minimum.
func Minimum(a, b *Tensor) *Tensor { return tensor.Minimum(a, b) }

// Where selects a where cond is non-zero and b elsewhere.
func Where(cond, a, b *Tensor) *Tensor { return tensor.Where(cond, a, b) }

// AllClose reports whether a and b have the same shape and all values
// satisfy |a-b| <= atol + rtol*|b|.
func AllClose(a, b *Tensor, rtol, atol float64) bool { return tensor.AllClose(a, b, rtol, atol) }

// Linear algebra

// MatMul multiplies matrices, batching over leading axes.
func MatMul(a, b *Tensor) *Tensor { return tensor.MatMul(a, b) }

// Einsum evaluates an Einstein summation such as "ij,jk->ik".
func Einsum(spec string, operands ...*Tensor) *Tensor { return tensor.Einsum(spec, operands...) }

// Shape manipulation

// Concat joins tensors along axis.
func Concat(axis int, ts ...*Tensor) *Tensor { return tensor.Concat(axis, ts...) }

// Stack joins tensors along a new axis.
func Stack(axis int, ts ...*Tensor) *Tensor { return tensor.Stack(axis, ts...) }

// BroadcastShapes returns the NumPy broadcast of shapes.
func BroadcastShapes(shapes ...Shape) (Shape, error) { return tensor.BroadcastShapes(shapes...) }

// Resizing

// ResizeMethod selects the interpolation used by Resize.
type ResizeMethod = tensor.ResizeMethod

// Resize methods.
const (
	Nearest = tensor.Nearest
	Linear  = tensor.Linear
	Cubic   = tensor.Cubic
)

// ParseResizeMethod converts "nearest", "linear" or "cubic".
func ParseResizeMethod(name string) (ResizeMethod, error) { return tensor.ParseResizeMethod(name) }

// Resize interpolates x to shape.
func Resize(x *Tensor, shape []int, method ResizeMethod, antialias bool) *Tensor {
	return tensor.Resize(x, shape, method, antialias)
}
