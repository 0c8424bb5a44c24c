// Package shapes implements the shape algebra shared by windowed layers:
// canonicalizing per-axis arguments, resolving padding, and computing
// output sizes of convolutions, transposed convolutions and pooling.
package shapes

import (
	"errors"
	"fmt"
	"slices"
)

// Validation errors. Layer constructors wrap these with context.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLengthMismatch  = errors.New("length mismatch")
	ErrUnknownTag      = errors.New("unknown tag")
)

// Canonicalize expands a per-axis argument to ndim values.
// A single value is repeated; otherwise exactly ndim values are required.
//
// Example:
//
//	Canonicalize([]int{3}, 2, "kernel_size")    // [3 3]
//	Canonicalize([]int{3, 3}, 3, "kernel_size") // error
func Canonicalize(values []int, ndim int, name string) ([]int, error) {
	switch len(values) {
	case ndim:
		return slices.Clone(values), nil
	case 1:
		out := make([]int, ndim)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must have 1 or %d values, got %v", ErrLengthMismatch, name, ndim, values)
	}
}

// CanonicalizeOr is Canonicalize with a default used when values is empty.
func CanonicalizeOr(values []int, def, ndim int, name string) ([]int, error) {
	if len(values) == 0 {
		values = []int{def}
	}
	return Canonicalize(values, ndim, name)
}

// CheckPositive returns an error unless every value is > 0.
func CheckPositive(name string, values ...int) error {
	for _, v := range values {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidArgument, name, values)
		}
	}
	return nil
}

// DilatedKernel returns the effective kernel extent (k-1)*d+1 per axis.
func DilatedKernel(kernel, dilation []int) []int {
	out := make([]int, len(kernel))
	for i, k := range kernel {
		out[i] = (k-1)*dilation[i] + 1
	}
	return out
}

// ConvOutputShape returns (in + before + after - kernel) / stride + 1 per axis.
// kernel is the effective (dilated) extent.
func ConvOutputShape(in, kernel, strides []int, pads [][2]int) ([]int, error) {
	out := make([]int, len(in))
	for i := range in {
		span := in[i] + pads[i][0] + pads[i][1] - kernel[i]
		if span < 0 {
			return nil, fmt.Errorf("%w: kernel %d larger than padded input %d on axis %d",
				ErrInvalidArgument, kernel[i], in[i]+pads[i][0]+pads[i][1], i)
		}
		out[i] = span/strides[i] + 1
	}
	return out, nil
}

// TransposeOutputShape returns the spatial size produced by a transposed
// convolution with the given forward pads and output padding.
func TransposeOutputShape(in, kernel, strides, dilation []int, pads [][2]int, extra []int) []int {
	out := make([]int, len(in))
	for i := range in {
		span := (kernel[i] - 1) * dilation[i]
		out[i] = (in[i]-1)*strides[i] + 1 + 2*span - pads[i][0] - pads[i][1] + extra[i] - span
	}
	return out
}
