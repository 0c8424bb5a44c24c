package image

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// Blur2D is a separable blur: a depthwise [k, 1] convolution followed by a
// depthwise [1, k] one, both with SAME zero padding. The kernel is fixed;
// the layer has no learnable parameters.
type Blur2D struct {
	name       string
	kernel     []float64
	vertical   *nn.Conv
	horizontal *nn.Conv
}

// fixedKernel returns an initializer that tiles taps over every channel of
// a depthwise weight [C, 1, kh, kw].
func fixedKernel(taps []float64) nn.Initializer {
	return func(_ random.Key, shape tensor.Shape, _ nn.Fan) *tensor.Tensor {
		data := make([]float64, 0, shape.NumElements())
		for c := 0; c < shape[0]; c++ {
			data = append(data, taps...)
		}
		return tensor.FromSlice(data, shape...)
	}
}

func newBlur2D(name string, inFeatures int, taps []float64) (*Blur2D, error) {
	k := len(taps)
	cfg := nn.ConvConfig{Padding: nn.Same(), WeightInit: nn.InitWith(fixedKernel(taps)), BiasInit: nn.NoInit()}
	v, err := nn.NewDepthwiseConv(2, inFeatures, []int{k, 1}, random.NewKey(0), cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	h, err := nn.NewDepthwiseConv(2, inFeatures, []int{1, k}, random.NewKey(0), cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Blur2D{name: name, kernel: taps, vertical: v, horizontal: h}, nil
}

// NewAvgBlur2D creates a box blur of size kernelSize. inFeatures may be
// nn.Lazy.
func NewAvgBlur2D(inFeatures, kernelSize int) (*Blur2D, error) {
	if kernelSize <= 0 {
		return nil, fmt.Errorf("AvgBlur2D: %w: kernel_size must be positive, got %d", nn.ErrInvalidArgument, kernelSize)
	}
	taps := make([]float64, kernelSize)
	for i := range taps {
		taps[i] = 1 / float64(kernelSize)
	}
	return newBlur2D("AvgBlur2D", inFeatures, taps)
}

// NewGaussianBlur2D creates a Gaussian blur with standard deviation sigma
// sampled at kernelSize integer offsets around the center. inFeatures may
// be nn.Lazy.
func NewGaussianBlur2D(inFeatures, kernelSize int, sigma float64) (*Blur2D, error) {
	if kernelSize <= 0 {
		return nil, fmt.Errorf("GaussianBlur2D: %w: kernel_size must be positive, got %d", nn.ErrInvalidArgument, kernelSize)
	}
	if sigma <= 0 || math.IsNaN(sigma) {
		return nil, fmt.Errorf("GaussianBlur2D: %w: sigma must be positive, got %g", nn.ErrInvalidArgument, sigma)
	}
	half := float64(kernelSize-1) / 2
	taps := make([]float64, kernelSize)
	floats.Span(taps, -half, half)
	for i, x := range taps {
		taps[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
	}
	floats.Scale(1/floats.Sum(taps), taps)
	return newBlur2D("GaussianBlur2D", inFeatures, taps)
}

// Kernel returns a copy of the 1D blur taps.
func (b *Blur2D) Kernel() []float64 { return append([]float64(nil), b.kernel...) }

// Forward blurs x of shape [C, H, W].
func (b *Blur2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkImage(b.name, x, 0); err != nil {
		return nil, err
	}
	y, err := b.vertical.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	if y, err = b.horizontal.Forward(y); err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return y, nil
}

// Parameters returns nil: the blur kernel is not learnable.
func (b *Blur2D) Parameters() []*nn.Parameter { return nil }
