package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is wrapped by every shape-related error reported by this package.
var ErrShape = errors.New("tensor: invalid shape")

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks that every dimension is non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrShape, i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// NormalizeAxis maps a possibly negative axis into [0, rank).
func NormalizeAxis(axis, rank int) (int, error) {
	if axis < -rank || axis >= rank {
		return 0, fmt.Errorf("%w: axis %d out of range for rank %d", ErrShape, axis, rank)
	}
	if axis < 0 {
		axis += rank
	}
	return axis, nil
}

func mustAxis(axis, rank int) int {
	a, err := NormalizeAxis(axis, rank)
	if err != nil {
		panic(err)
	}
	return a
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared from the right; two dimensions are compatible when
// they are equal or one of them is 1. Missing dimensions count as 1.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5)
//	(5)    + (3, 5) → (3, 5)
//	(3, 4) + (3, 5) → error
func BroadcastShapes(shapes ...Shape) (Shape, error) {
	rank := 0
	for _, s := range shapes {
		rank = max(rank, len(s))
	}
	result := make(Shape, rank)
	for i := range result {
		result[i] = 1
	}

	for _, s := range shapes {
		offset := rank - len(s)
		for i, dim := range s {
			cur := result[offset+i]
			switch {
			case cur == dim, dim == 1:
			case cur == 1:
				result[offset+i] = dim
			default:
				return nil, fmt.Errorf("%w: shapes %v not compatible for broadcasting (dimension %d: %d vs %d)",
					ErrShape, shapes, offset+i, cur, dim)
			}
		}
	}
	return result, nil
}

// broadcastStrides returns strides that read a tensor of shape src as if it
// had shape dst. Broadcast dimensions get a zero stride.
func broadcastStrides(src, dst Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(dst))
	offset := len(dst) - len(src)
	for i := range src {
		if src[i] != 1 || dst[offset+i] == 1 {
			strides[offset+i] = srcStrides[i]
		}
	}
	return strides
}
