package shapes

import (
	"fmt"
	"strings"
)

type paddingKind uint8

const (
	padUnset paddingKind = iota
	padSame
	padValid
	padExplicit
	padUnknown
)

// Padding describes how a windowed operation pads its spatial axes.
//
// The zero value is "unset"; layers replace it with their own default
// (SAME for convolutions, VALID for pooling) through Or.
type Padding struct {
	kind  paddingKind
	pairs [][2]int // one pair broadcasts to every axis
	tag   string
}

// Same pads so that stride 1 preserves the spatial shape.
func Same() Padding { return Padding{kind: padSame} }

// Valid applies no padding.
func Valid() Padding { return Padding{kind: padValid} }

// Int pads every axis by n on both sides.
func Int(n int) Padding { return Padding{kind: padExplicit, pairs: [][2]int{{n, n}}} }

// PerAxis pads axis i by ns[i] on both sides.
func PerAxis(ns ...int) Padding {
	pairs := make([][2]int, len(ns))
	for i, n := range ns {
		pairs[i] = [2]int{n, n}
	}
	return Padding{kind: padExplicit, pairs: pairs}
}

// Pairs pads axis i by (before, after) = ps[i].
func Pairs(ps ...[2]int) Padding {
	return Padding{kind: padExplicit, pairs: append([][2]int(nil), ps...)}
}

// Tag parses "same" or "valid", ignoring case. Unknown tags are kept and
// reported by Validate so that constructors can return the error.
func Tag(tag string) Padding {
	switch strings.ToLower(tag) {
	case "same":
		return Same()
	case "valid":
		return Valid()
	default:
		return Padding{kind: padUnknown, tag: tag}
	}
}

// IsZero reports whether the padding is unset.
func (p Padding) IsZero() bool { return p.kind == padUnset }

// IsExplicit reports whether the padding holds explicit pad amounts.
func (p Padding) IsExplicit() bool { return p.kind == padExplicit }

// Or returns def when p is unset.
func (p Padding) Or(def Padding) Padding {
	if p.IsZero() {
		return def
	}
	return p
}

func (p Padding) String() string {
	switch p.kind {
	case padUnset:
		return "unset"
	case padSame:
		return "same"
	case padValid:
		return "valid"
	case padExplicit:
		return fmt.Sprint(p.pairs)
	default:
		return fmt.Sprintf("%q", p.tag)
	}
}

// Validate checks the padding against the number of spatial axes.
func (p Padding) Validate(ndim int) error {
	switch p.kind {
	case padUnknown:
		return fmt.Errorf("%w: padding %q, expected \"same\" or \"valid\"", ErrUnknownTag, p.tag)
	case padExplicit:
		if len(p.pairs) != 1 && len(p.pairs) != ndim {
			return fmt.Errorf("%w: padding %v has %d entries for %d spatial axes",
				ErrLengthMismatch, p.pairs, len(p.pairs), ndim)
		}
	}
	return nil
}

// Resolve computes explicit (before, after) pads for each spatial axis.
//
// in, kernel and strides hold one value per axis; kernel is the effective
// (dilated) kernel extent.
func (p Padding) Resolve(in, kernel, strides []int) ([][2]int, error) {
	ndim := len(kernel)
	if len(in) != ndim || len(strides) != ndim {
		return nil, fmt.Errorf("%w: input %v, kernel %v and strides %v differ in length",
			ErrLengthMismatch, in, kernel, strides)
	}
	if err := p.Validate(ndim); err != nil {
		return nil, err
	}
	out := make([][2]int, ndim)
	switch p.kind {
	case padSame:
		for i := range out {
			l, r := SamePaddingAlongDim(in[i], kernel[i], strides[i])
			out[i] = [2]int{l, r}
		}
	case padExplicit:
		for i := range out {
			if len(p.pairs) == 1 {
				out[i] = p.pairs[0]
			} else {
				out[i] = p.pairs[i]
			}
		}
	}
	return out, nil
}

// SamePaddingAlongDim returns the (before, after) pads that keep
// ceil(in/stride) outputs. The odd pad goes after.
func SamePaddingAlongDim(in, kernel, stride int) (int, int) {
	var pad int
	if in%stride == 0 {
		pad = max(kernel-stride, 0)
	} else {
		pad = max(kernel-in%stride, 0)
	}
	return pad / 2, pad - pad/2
}

// TransposePadding converts the pads of a forward convolution into the pads
// applied to the dilated input of the matching transposed convolution.
// extra is added after each axis (output padding).
func TransposePadding(pads [][2]int, kernel, dilation, extra []int) [][2]int {
	out := make([][2]int, len(pads))
	for i, p := range pads {
		span := (kernel[i] - 1) * dilation[i]
		out[i] = [2]int{span - p[0], span - p[1] + extra[i]}
	}
	return out
}
