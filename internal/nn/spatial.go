package nn

import (
	"fmt"
	"math"
	"slices"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/shapes"
	"github.com/born-ml/strata/internal/tensor"
)

// spatialOp carries the name and spatial rank shared by the layers below.
type spatialOp struct {
	stateless
	name string
	ndim int
}

func newSpatialOp(prefix string, ndim int) (spatialOp, error) {
	op := spatialOp{name: fmt.Sprintf("%s%dD", prefix, ndim), ndim: ndim}
	if ndim < 1 {
		return op, fmt.Errorf("%s: %w: at least one spatial axis is required", op.name, ErrInvalidArgument)
	}
	return op, nil
}

// crop returns the window [starts, starts+size) of the spatial axes.
func (op spatialOp) crop(x *tensor.Tensor, starts, size []int) (*tensor.Tensor, error) {
	spatial := spatialShape(x)
	for d := range size {
		if starts[d] < 0 || starts[d]+size[d] > spatial[d] {
			return nil, fmt.Errorf("%s: %w: window start %v size %v outside spatial size %v",
				op.name, ErrInputShape, starts, size, spatial)
		}
	}
	return x.Window(append([]int{0}, starts...), append([]int{x.Dim(0)}, size...)), nil
}

// Crop cuts a fixed window out of the spatial axes.
type Crop struct {
	spatialOp
	size  []int
	start []int
}

// NewCrop creates a crop of the given size starting at start.
func NewCrop(ndim int, size, start []int) (*Crop, error) {
	op, err := newSpatialOp("Crop", ndim)
	if err != nil {
		return nil, err
	}
	s, err := canonicalize(op.name, size, 0, ndim, "size")
	if err != nil {
		return nil, err
	}
	st, err := shapes.CanonicalizeOr(start, 0, ndim, "start")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.name, err)
	}
	for _, v := range st {
		if v < 0 {
			return nil, fmt.Errorf("%s: %w: start must be non-negative, got %v", op.name, ErrInvalidArgument, st)
		}
	}
	return &Crop{spatialOp: op, size: s, start: st}, nil
}

// Forward crops x of shape [features, spatial...].
func (c *Crop) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(c.name, x, c.ndim); err != nil {
		return nil, err
	}
	return c.crop(x, c.start, c.size)
}

// CenterCrop cuts a window of fixed size from the middle of the spatial
// axes. An axis smaller than the window is kept whole.
type CenterCrop struct {
	spatialOp
	size []int
}

// NewCenterCrop creates a centered crop.
func NewCenterCrop(ndim int, size []int) (*CenterCrop, error) {
	op, err := newSpatialOp("CenterCrop", ndim)
	if err != nil {
		return nil, err
	}
	s, err := canonicalize(op.name, size, 0, ndim, "size")
	if err != nil {
		return nil, err
	}
	return &CenterCrop{spatialOp: op, size: s}, nil
}

// Forward crops x of shape [features, spatial...].
func (c *CenterCrop) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(c.name, x, c.ndim); err != nil {
		return nil, err
	}
	spatial := spatialShape(x)
	starts := make([]int, c.ndim)
	size := make([]int, c.ndim)
	for d, n := range spatial {
		size[d] = min(c.size[d], n)
		starts[d] = (n - size[d]) / 2
	}
	return c.crop(x, starts, size)
}

// RandomCrop cuts a window of fixed size at a random position.
type RandomCrop struct {
	spatialOp
	size []int
}

// NewRandomCrop creates a random crop.
func NewRandomCrop(ndim int, size []int) (*RandomCrop, error) {
	op, err := newSpatialOp("RandomCrop", ndim)
	if err != nil {
		return nil, err
	}
	s, err := canonicalize(op.name, size, 0, ndim, "size")
	if err != nil {
		return nil, err
	}
	return &RandomCrop{spatialOp: op, size: s}, nil
}

// ForwardRandom crops x at a position drawn from key.
func (c *RandomCrop) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	if err := checkSpatial(c.name, x, c.ndim); err != nil {
		return nil, err
	}
	return randomCrop(c.spatialOp, x, c.size, key)
}

func randomCrop(op spatialOp, x *tensor.Tensor, size []int, key random.Key) (*tensor.Tensor, error) {
	spatial := spatialShape(x)
	starts := make([]int, len(size))
	for d, k := range key.Split(len(size)) {
		if size[d] > spatial[d] {
			return nil, fmt.Errorf("%s: %w: crop %v larger than spatial size %v", op.name, ErrInputShape, size, spatial)
		}
		starts[d] = random.Intn(k, spatial[d]-size[d]+1)
	}
	return op.crop(x, starts, size)
}

// Pad pads the spatial axes with a constant.
type Pad struct {
	spatialOp
	pads  [][2]int
	value float64
}

// NewPad creates a constant padding. padding must be explicit (PadInt,
// PadPerAxis or PadPairs).
func NewPad(ndim int, padding Padding, value float64) (*Pad, error) {
	op, err := newSpatialOp("Pad", ndim)
	if err != nil {
		return nil, err
	}
	if !padding.IsExplicit() {
		return nil, fmt.Errorf("%s: %w: padding must be explicit, got %v", op.name, ErrInvalidArgument, padding)
	}
	ones := make([]int, ndim)
	for i := range ones {
		ones[i] = 1
	}
	pads, err := padding.Resolve(ones, ones, ones)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.name, err)
	}
	for _, p := range pads {
		if p[0] < 0 || p[1] < 0 {
			return nil, fmt.Errorf("%s: %w: padding must be non-negative, got %v", op.name, ErrInvalidArgument, pads)
		}
	}
	return &Pad{spatialOp: op, pads: pads, value: value}, nil
}

// Forward pads x of shape [features, spatial...].
func (p *Pad) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(p.name, x, p.ndim); err != nil {
		return nil, err
	}
	return x.Pad(append([][2]int{{0, 0}}, p.pads...), p.value), nil
}

// ResizeConfig selects the interpolation of Resize, Upsample and
// RandomZoom. The zero value is nearest-neighbour with antialiasing.
type ResizeConfig struct {
	Method      string // "nearest" (default), "linear" or "cubic"
	NoAntialias bool
}

func (c ResizeConfig) method(layer string) (tensor.ResizeMethod, error) {
	if c.Method == "" {
		return tensor.Nearest, nil
	}
	m, err := tensor.ParseResizeMethod(c.Method)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", layer, ErrUnknownTag, err)
	}
	return m, nil
}

// Resize interpolates the spatial axes to a fixed size.
type Resize struct {
	spatialOp
	size      []int
	method    tensor.ResizeMethod
	antialias bool
}

// NewResize creates a resize to size.
func NewResize(ndim int, size []int, cfg ResizeConfig) (*Resize, error) {
	op, err := newSpatialOp("Resize", ndim)
	if err != nil {
		return nil, err
	}
	s, err := canonicalize(op.name, size, 0, ndim, "size")
	if err != nil {
		return nil, err
	}
	m, err := cfg.method(op.name)
	if err != nil {
		return nil, err
	}
	return &Resize{spatialOp: op, size: s, method: m, antialias: !cfg.NoAntialias}, nil
}

// Forward resizes x of shape [features, spatial...].
func (r *Resize) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(r.name, x, r.ndim); err != nil {
		return nil, err
	}
	return tensor.Resize(x, append([]int{x.Dim(0)}, r.size...), r.method, r.antialias), nil
}

// Upsample multiplies each spatial size by an integer scale.
type Upsample struct {
	spatialOp
	scale  []int
	method tensor.ResizeMethod
}

// NewUpsample creates an upsampling by scale.
func NewUpsample(ndim int, scale []int, cfg ResizeConfig) (*Upsample, error) {
	op, err := newSpatialOp("Upsample", ndim)
	if err != nil {
		return nil, err
	}
	s, err := canonicalize(op.name, scale, 1, ndim, "scale")
	if err != nil {
		return nil, err
	}
	m, err := cfg.method(op.name)
	if err != nil {
		return nil, err
	}
	return &Upsample{spatialOp: op, scale: s, method: m}, nil
}

// Forward upsamples x of shape [features, spatial...].
func (u *Upsample) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(u.name, x, u.ndim); err != nil {
		return nil, err
	}
	shape := x.Shape()
	for d := 1; d < len(shape); d++ {
		shape[d] *= u.scale[d-1]
	}
	return tensor.Resize(x, shape, u.method, false), nil
}

// RandomZoom zooms each spatial axis by a factor drawn uniformly from its
// range. A positive factor f zooms in: the axis is stretched to
// floor(n·(1+f)) and a random window of n is cropped back. A negative
// factor zooms out: the axis shrinks to floor(n·(1+f)) and is padded with
// zeros before the content. The output shape equals the input shape.
type RandomZoom struct {
	spatialOp
	factors   [][2]float64
	method    tensor.ResizeMethod
	antialias bool
}

// NewRandomZoom creates a random zoom. factors holds one (min, max) range
// per spatial axis, or one range for all; nil means (0, 1) on every axis.
func NewRandomZoom(ndim int, factors [][2]float64, cfg ResizeConfig) (*RandomZoom, error) {
	op, err := newSpatialOp("RandomZoom", ndim)
	if err != nil {
		return nil, err
	}
	if len(factors) == 0 {
		factors = [][2]float64{{0, 1}}
	}
	if len(factors) != 1 && len(factors) != ndim {
		return nil, fmt.Errorf("%s: %w: %d factor ranges for %d spatial axes", op.name, ErrLengthMismatch, len(factors), ndim)
	}
	out := make([][2]float64, ndim)
	for d := range out {
		f := factors[0]
		if len(factors) == ndim {
			f = factors[d]
		}
		if f[0] > f[1] || f[0] <= -1 {
			return nil, fmt.Errorf("%s: %w: factor range %v must satisfy -1 < min <= max", op.name, ErrInvalidArgument, f)
		}
		out[d] = f
	}
	m, err := cfg.method(op.name)
	if err != nil {
		return nil, err
	}
	return &RandomZoom{spatialOp: op, factors: out, method: m, antialias: !cfg.NoAntialias}, nil
}

// ForwardRandom zooms x with factors and crop positions drawn from key.
func (z *RandomZoom) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	if err := checkSpatial(z.name, x, z.ndim); err != nil {
		return nil, err
	}
	keys := key.Split(2)
	spatial := spatialShape(x)
	target := x.Shape()
	for d, k := range keys[0].Split(z.ndim) {
		f := z.factors[d][0] + random.Float64(k)*(z.factors[d][1]-z.factors[d][0])
		target[d+1] = max(1, int(math.Floor(float64(spatial[d])*(1+f))))
	}
	y := x
	if !slices.Equal(target, x.Shape()) {
		y = tensor.Resize(x, target, z.method, z.antialias)
	}

	starts := make([]int, z.ndim)
	pads := make([][2]int, z.ndim+1)
	for d, k := range keys[1].Split(z.ndim) {
		n, r := spatial[d], target[d+1]
		if r > n {
			starts[d] = random.Intn(k, r-n+1)
		} else {
			pads[d+1] = [2]int{n - r, 0}
		}
	}
	y = y.Pad(pads, 0)
	return y.Window(append([]int{0}, starts...), x.Shape()), nil
}

// Flatten merges the axes from start to end (inclusive, negative counts
// from the end) into one.
type Flatten struct {
	stateless
	start, end int
}

// NewFlatten creates a flatten over [start, end].
func NewFlatten(start, end int) *Flatten { return &Flatten{start: start, end: end} }

// Forward flattens x.
func (f *Flatten) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	s, err := tensor.NormalizeAxis(f.start, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Flatten: %w: %v", ErrInputRank, err)
	}
	e, err := tensor.NormalizeAxis(f.end, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Flatten: %w: %v", ErrInputRank, err)
	}
	if s > e {
		return nil, fmt.Errorf("Flatten: %w: start axis %d after end axis %d", ErrInvalidArgument, f.start, f.end)
	}
	shape := x.Shape()
	merged := append(slices.Clone(shape[:s]), product(shape[s:e+1]))
	return x.Reshape(append(merged, shape[e+1:]...)...), nil
}

// Unflatten splits one axis into shape.
type Unflatten struct {
	stateless
	axis  int
	shape []int
}

// NewUnflatten creates an unflatten of axis into shape.
func NewUnflatten(axis int, shape []int) (*Unflatten, error) {
	if err := checkPositive("Unflatten", "shape", shape...); err != nil {
		return nil, err
	}
	return &Unflatten{axis: axis, shape: slices.Clone(shape)}, nil
}

// Forward unflattens x.
func (u *Unflatten) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a, err := tensor.NormalizeAxis(u.axis, x.Rank())
	if err != nil {
		return nil, fmt.Errorf("Unflatten: %w: %v", ErrInputRank, err)
	}
	if x.Dim(a) != product(u.shape) {
		return nil, fmt.Errorf("Unflatten: %w: axis %d of size %d cannot hold %v", ErrInputShape, a, x.Dim(a), u.shape)
	}
	shape := x.Shape()
	out := append(slices.Clone(shape[:a]), u.shape...)
	return x.Reshape(append(out, shape[a+1:]...)...), nil
}
