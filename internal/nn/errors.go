package nn

import (
	"errors"

	"github.com/born-ml/strata/internal/shapes"
)

// Construction-time errors.
var (
	// ErrInvalidArgument is returned for non-positive sizes and out-of-range rates.
	ErrInvalidArgument = shapes.ErrInvalidArgument
	// ErrLengthMismatch is returned when per-axis tuples disagree in length.
	ErrLengthMismatch = shapes.ErrLengthMismatch
	// ErrUnknownTag is returned for unknown padding, initializer or activation names.
	ErrUnknownTag = shapes.ErrUnknownTag
	// ErrNotDivisible is returned when features do not split into heads or groups.
	ErrNotDivisible = errors.New("not divisible")
)

// Call-time errors.
var (
	// ErrInputRank is returned when the input has the wrong number of axes.
	ErrInputRank = errors.New("wrong input rank")
	// ErrInputFeatures is returned when the leading feature axis has the wrong size.
	ErrInputFeatures = errors.New("wrong input features")
	// ErrInputShape is returned when spatial axes do not match a size fixed at construction.
	ErrInputShape = errors.New("wrong input shape")
	// ErrStateType is returned when a recurrent cell receives another cell's state.
	ErrStateType = errors.New("wrong state type")
	// ErrIndexType is returned when an embedding receives non-integer indices.
	ErrIndexType = errors.New("non-integer index")
	// ErrKeyRequired is returned when a stochastic layer is called without a key.
	ErrKeyRequired = errors.New("random key required")
)

// State dictionary errors.
var (
	ErrMissingParameter    = errors.New("missing parameter")
	ErrUnexpectedParameter = errors.New("unexpected parameter")
	ErrParameterShape      = errors.New("parameter shape mismatch")
)
