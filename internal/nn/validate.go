package nn

import (
	"fmt"

	"github.com/born-ml/strata/internal/shapes"
	"github.com/born-ml/strata/internal/tensor"
)

// checkSpatial requires a channel-first input with ndim spatial axes.
func checkSpatial(layer string, x *tensor.Tensor, ndim int) error {
	if x.Rank() != ndim+1 {
		return fmt.Errorf("%s: %w: expected %d axes [features, spatial...], got shape %v",
			layer, ErrInputRank, ndim+1, x.Shape())
	}
	return nil
}

// checkFeatures requires the leading axis of x to equal want.
func checkFeatures(layer string, x *tensor.Tensor, want int) error {
	if got := x.Dim(0); got != want {
		return fmt.Errorf("%s: %w: expected %d input features, got %d (shape %v)",
			layer, ErrInputFeatures, want, got, x.Shape())
	}
	return nil
}

// checkInFeatures validates an input feature count that may be Lazy.
func checkInFeatures(layer string, in int) error {
	if in == Lazy {
		return nil
	}
	if in <= 0 {
		return fmt.Errorf("%s: %w: in_features must be positive or Lazy, got %d", layer, ErrInvalidArgument, in)
	}
	return nil
}

func checkPositive(layer, name string, values ...int) error {
	if err := shapes.CheckPositive(name, values...); err != nil {
		return fmt.Errorf("%s: %w", layer, err)
	}
	return nil
}

func checkRate(layer, name string, p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%s: %w: %s must be in [0, 1], got %g", layer, ErrInvalidArgument, name, p)
	}
	return nil
}

// canonicalize wraps shapes.CanonicalizeOr with the layer name and a
// positivity check.
func canonicalize(layer string, values []int, def, ndim int, name string) ([]int, error) {
	out, err := shapes.CanonicalizeOr(values, def, ndim, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", layer, err)
	}
	if err := checkPositive(layer, name, out...); err != nil {
		return nil, err
	}
	return out, nil
}

func spatialShape(x *tensor.Tensor) tensor.Shape {
	return x.Shape()[1:]
}

func product(values []int) int {
	n := 1
	for _, v := range values {
		n *= v
	}
	return n
}

// channelShape returns [n, 1, ..., 1] with ndim trailing ones, used to
// broadcast per-channel tensors over spatial axes.
func channelShape(n, ndim int) []int {
	s := make([]int, ndim+1)
	for i := range s {
		s[i] = 1
	}
	s[0] = n
	return s
}
