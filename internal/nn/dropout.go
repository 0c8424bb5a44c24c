package nn

import (
	"fmt"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// Dropout zeroes each element with probability p and scales the survivors
// by 1/(1-p).
type Dropout struct {
	stateless
	p float64
}

// NewDropout creates an element-wise dropout with drop probability p.
func NewDropout(p float64) (*Dropout, error) {
	if err := checkRate("Dropout", "drop_rate", p); err != nil {
		return nil, err
	}
	return &Dropout{p: p}, nil
}

// Rate returns the drop probability.
func (d *Dropout) Rate() float64 { return d.p }

// ForwardRandom applies dropout with a mask drawn from key.
func (d *Dropout) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	return dropMask(x, d.p, key, x.Shape()), nil
}

func dropMask(x *tensor.Tensor, p float64, key random.Key, maskShape tensor.Shape) *tensor.Tensor {
	switch p {
	case 0:
		return x
	case 1:
		return tensor.Zeros(x.Shape()...)
	}
	keep := random.Bernoulli(key, 1-p, maskShape...).Scale(1 / (1 - p))
	return tensor.Mul(x, keep)
}

// DropoutND zeroes whole features of channel-first input: every spatial
// element of a dropped feature is zero.
type DropoutND struct {
	stateless
	name string
	ndim int
	p    float64
}

// NewDropoutND creates a feature dropout for inputs with ndim spatial axes.
func NewDropoutND(ndim int, p float64) (*DropoutND, error) {
	name := fmt.Sprintf("Dropout%dD", ndim)
	if ndim < 1 {
		return nil, fmt.Errorf("%s: %w: at least one spatial axis is required", name, ErrInvalidArgument)
	}
	if err := checkRate(name, "drop_rate", p); err != nil {
		return nil, err
	}
	return &DropoutND{name: name, ndim: ndim, p: p}, nil
}

// ForwardRandom drops features of x with a mask drawn from key.
func (d *DropoutND) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	if err := checkSpatial(d.name, x, d.ndim); err != nil {
		return nil, err
	}
	return dropMask(x, d.p, key, channelShape(x.Dim(0), d.ndim)), nil
}

// RandomCutout fills cutoutCount randomly placed patches of the spatial
// axes with a constant. The same patches apply to every feature.
type RandomCutout struct {
	stateless
	name  string
	ndim  int
	shape []int
	count int
	fill  float64
}

// NewRandomCutout creates a cutout of patch size shape (one value per
// spatial axis, or one value repeated).
func NewRandomCutout(ndim int, shape []int, cutoutCount int, fillValue float64) (*RandomCutout, error) {
	name := fmt.Sprintf("RandomCutout%dD", ndim)
	if ndim < 1 {
		return nil, fmt.Errorf("%s: %w: at least one spatial axis is required", name, ErrInvalidArgument)
	}
	s, err := canonicalize(name, shape, 0, ndim, "shape")
	if err != nil {
		return nil, err
	}
	if err := checkPositive(name, "cutout_count", cutoutCount); err != nil {
		return nil, err
	}
	return &RandomCutout{name: name, ndim: ndim, shape: s, count: cutoutCount, fill: fillValue}, nil
}

// ForwardRandom places the patches with positions drawn from key. A patch
// starts anywhere inside the input and is clipped at the far edge. An input
// with an empty spatial axis is returned unchanged.
func (c *RandomCutout) ForwardRandom(x *tensor.Tensor, key random.Key) (*tensor.Tensor, error) {
	if err := checkSpatial(c.name, x, c.ndim); err != nil {
		return nil, err
	}
	spatial := spatialShape(x)
	if product(spatial) == 0 {
		return x, nil
	}
	mask := make([]float64, product(spatial))
	starts := make([]int, c.ndim)
	for _, k := range key.Split(c.count) {
		for d, dk := range k.Split(c.ndim) {
			starts[d] = random.Intn(dk, spatial[d])
		}
		markPatch(mask, spatial, starts, c.shape)
	}

	m := tensor.FromSlice(mask, spatial...).ExpandDims(0)
	return tensor.Where(m, tensor.Full(c.fill, x.Shape()...), x), nil
}

// markPatch sets mask to 1 over the box [starts, starts+size) clipped to
// shape.
func markPatch(mask []float64, shape tensor.Shape, starts, size []int) {
	strides := shape.ComputeStrides()
	n := product(size)
	for i := 0; i < n; i++ {
		off, rem, inside := 0, i, true
		for d := len(size) - 1; d >= 0; d-- {
			j := starts[d] + rem%size[d]
			rem /= size[d]
			if j >= shape[d] {
				inside = false
				break
			}
			off += j * strides[d]
		}
		if inside {
			mask[off] = 1
		}
	}
}
