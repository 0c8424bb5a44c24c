package nn

import (
	"fmt"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// SpectralConv mixes features in the Fourier domain, keeping only the
// lowest modes of every spatial axis (the building block of Fourier neural
// operators).
//
// The input is transformed with a real-to-complex FFT over the spatial axes.
// Each retained frequency is multiplied by a complex [out, in] matrix; the
// rest are dropped. Axes other than the last keep both the low and the high
// (negative) frequencies, giving 2^(ndim-1) weight corners. The weight
// tensors "weight_r" and "weight_i" have shape
// [2^(ndim-1), out_features, in_features, modes...].
type SpectralConv struct {
	name        string
	ndim        int
	inFeatures  int
	outFeatures int
	modes       []int
	weightR     *Parameter
	weightI     *Parameter
}

// NewSpectralConv creates a spectral convolution with ndim spatial axes.
// Weights are drawn uniformly from [0, 1/(in·out)).
func NewSpectralConv(ndim, inFeatures, outFeatures int, modes []int, key random.Key) (*SpectralConv, error) {
	name := fmt.Sprintf("SpectralConv%dD", ndim)
	if ndim < 1 {
		return nil, fmt.Errorf("%s: %w: at least one spatial axis is required", name, ErrInvalidArgument)
	}
	if err := checkPositive(name, "in_features", inFeatures); err != nil {
		return nil, err
	}
	if err := checkPositive(name, "out_features", outFeatures); err != nil {
		return nil, err
	}
	m, err := canonicalize(name, modes, 0, ndim, "modes")
	if err != nil {
		return nil, err
	}
	scale := 1 / float64(inFeatures*outFeatures)
	shape := append([]int{1 << (ndim - 1), outFeatures, inFeatures}, m...)
	keys := key.Split(2)
	return &SpectralConv{
		name:        name,
		ndim:        ndim,
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		modes:       m,
		weightR:     NewParameter("weight_r", random.Uniform(keys[0], 0, scale, shape...)),
		weightI:     NewParameter("weight_i", random.Uniform(keys[1], 0, scale, shape...)),
	}, nil
}

// Forward applies the layer to x of shape [in_features, spatial...]. Every
// spatial axis must hold at least modes frequencies: modes ≤ n/2+1 on the
// last axis and 2·modes ≤ n on the others.
func (s *SpectralConv) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(s.name, x, s.ndim); err != nil {
		return nil, err
	}
	if err := checkFeatures(s.name, x, s.inFeatures); err != nil {
		return nil, err
	}
	spatial := spatialShape(x)
	last := s.ndim - 1
	for d, n := range spatial {
		limit := n / 2
		if d == last {
			limit = n/2 + 1
		}
		if s.modes[d] > limit {
			return nil, fmt.Errorf("%s: %w: %d modes do not fit axis %d of size %d",
				s.name, ErrInputShape, s.modes[d], d, n)
		}
	}

	axes := make([]int, s.ndim)
	for d := range axes {
		axes[d] = d + 1
	}
	xf := tensor.FFTN(x.Complex(), axes...).Values()

	m := spatial.NumElements()
	strides := spatial.ComputeStrides()
	modeCount := product(s.modes)
	modeStrides := tensor.Shape(s.modes).ComputeStrides()
	wr, wi := s.weightR.Tensor().Data(), s.weightI.Tensor().Data()

	out := make([]complex128, s.outFeatures*m)
	for corner := 0; corner < 1<<last; corner++ {
		for local := 0; local < modeCount; local++ {
			off := 0
			for d := 0; d < s.ndim; d++ {
				i := local / modeStrides[d] % s.modes[d]
				if d < last && corner&(1<<d) != 0 {
					i += spatial[d] - s.modes[d]
				}
				off += i * strides[d]
			}
			for o := 0; o < s.outFeatures; o++ {
				var acc complex128
				for c := 0; c < s.inFeatures; c++ {
					w := ((corner*s.outFeatures+o)*s.inFeatures+c)*modeCount + local
					acc += xf[c*m+off] * complex(wr[w], wi[w])
				}
				out[o*m+off] = acc
			}
		}
	}
	hermitianFill(out, s.outFeatures, spatial, strides)

	y := tensor.IFFTN(tensor.ComplexFromValues(out, append([]int{s.outFeatures}, spatial...)...), axes...)
	return y.Real(), nil
}

// hermitianFill completes the upper half of the last axis from the lower
// half, Y[k] = conj(Y[-k]), so that the inverse transform is real.
func hermitianFill(data []complex128, channels int, spatial tensor.Shape, strides []int) {
	nd := len(spatial)
	n := spatial[nd-1]
	half := n/2 + 1
	m := spatial.NumElements()
	for pos := 0; pos < m; pos++ {
		if pos/strides[nd-1]%n < half {
			continue
		}
		mirror := 0
		for d := 0; d < nd; d++ {
			i := pos / strides[d] % spatial[d]
			mirror += ((spatial[d] - i) % spatial[d]) * strides[d]
		}
		for c := 0; c < channels; c++ {
			v := data[c*m+mirror]
			data[c*m+pos] = complex(real(v), -imag(v))
		}
	}
}

// Parameters returns [weight_r, weight_i].
func (s *SpectralConv) Parameters() []*Parameter { return []*Parameter{s.weightR, s.weightI} }

// Corners returns the number of frequency corners, 2^(ndim-1).
func (s *SpectralConv) Corners() int { return 1 << (s.ndim - 1) }
