package nn

import "github.com/born-ml/strata/internal/shapes"

// Padding selects how a windowed layer pads its spatial axes. The zero value
// selects the layer default: SAME for convolutions, VALID for pooling.
type Padding = shapes.Padding

// Same pads so that stride 1 preserves the spatial shape.
func Same() Padding { return shapes.Same() }

// Valid applies no padding.
func Valid() Padding { return shapes.Valid() }

// PadTag parses "same" or "valid" (any case). Other strings are reported as
// ErrUnknownTag by the layer constructor.
func PadTag(tag string) Padding { return shapes.Tag(tag) }

// PadInt pads every spatial axis by n on both sides.
func PadInt(n int) Padding { return shapes.Int(n) }

// PadPerAxis pads spatial axis i by ns[i] on both sides.
func PadPerAxis(ns ...int) Padding { return shapes.PerAxis(ns...) }

// PadPairs pads spatial axis i by (before, after) = ps[i].
func PadPairs(ps ...[2]int) Padding { return shapes.Pairs(ps...) }
