package nn

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// Fan carries the fan-in and fan-out of a weight, including the receptive
// field of convolution kernels.
type Fan struct {
	In, Out int
}

// Initializer creates a tensor of the given shape.
type Initializer func(key random.Key, shape tensor.Shape, fan Fan) *tensor.Tensor

// Init selects an initializer in a layer config.
//
// The zero value selects the layer's default. NoInit disables the tensor
// entirely, which is how a bias is turned off.
type Init struct {
	tag  string
	fn   Initializer
	none bool
}

// InitTag selects a built-in initializer by name (see InitNames).
func InitTag(tag string) Init { return Init{tag: tag} }

// InitWith selects a custom initializer.
func InitWith(fn Initializer) Init { return Init{fn: fn} }

// NoInit disables the tensor.
func NoInit() Init { return Init{none: true} }

// or returns def when i is the zero value.
func (i Init) or(def Init) Init {
	if i.tag == "" && i.fn == nil && !i.none {
		return def
	}
	return i
}

// resolve returns the initializer, or nil when disabled.
func (i Init) resolve(def string) (Initializer, error) {
	switch {
	case i.none:
		return nil, nil
	case i.fn != nil:
		return i.fn, nil
	case i.tag != "":
		return ResolveInit(i.tag)
	default:
		return ResolveInit(def)
	}
}

// truncatedStd corrects the standard deviation of a normal truncated to
// two standard deviations.
const truncatedStd = 0.87962566103423978

func varianceScaling(scale float64, mode string, dist string) Initializer {
	return func(key random.Key, shape tensor.Shape, fan Fan) *tensor.Tensor {
		var n float64
		switch mode {
		case "fan_in":
			n = float64(fan.In)
		case "fan_out":
			n = float64(fan.Out)
		default:
			n = float64(fan.In+fan.Out) / 2
		}
		variance := scale / math.Max(1, n)
		if dist == "uniform" {
			limit := math.Sqrt(3 * variance)
			return random.Uniform(key, -limit, limit, shape...)
		}
		std := math.Sqrt(variance) / truncatedStd
		return random.TruncatedNormal(key, -2, 2, shape...).Scale(std)
	}
}

// Orthogonal returns an initializer producing matrices with orthonormal
// rows or columns. The tensor is viewed as [shape[0], rest...] flattened to
// two dimensions; the factorization uses gonum's QR.
func Orthogonal(scale float64) Initializer {
	return func(key random.Key, shape tensor.Shape, _ Fan) *tensor.Tensor {
		if len(shape) < 2 {
			return random.Normal(key, shape...).Scale(scale)
		}
		rows := shape[0]
		cols := shape.NumElements() / rows
		m, n := max(rows, cols), min(rows, cols)

		a := random.Normal(key, m, n).ToDense()
		var qr mat.QR
		qr.Factorize(a)
		var q, r mat.Dense
		qr.QTo(&q)
		qr.RTo(&r)

		out := mat.NewDense(m, n, nil)
		for j := 0; j < n; j++ {
			sign := 1.0
			if r.At(j, j) < 0 {
				sign = -1
			}
			for i := 0; i < m; i++ {
				out.Set(i, j, sign*scale*q.At(i, j))
			}
		}
		w := tensor.FromDense(out)
		if rows < cols {
			w = w.Transpose()
		}
		return w.Reshape(shape...)
	}
}

var initializers = map[string]Initializer{
	"he_normal":      varianceScaling(2, "fan_in", "normal"),
	"he_uniform":     varianceScaling(2, "fan_in", "uniform"),
	"glorot_normal":  varianceScaling(1, "fan_avg", "normal"),
	"glorot_uniform": varianceScaling(1, "fan_avg", "uniform"),
	"xavier_normal":  varianceScaling(1, "fan_avg", "normal"),
	"xavier_uniform": varianceScaling(1, "fan_avg", "uniform"),
	"lecun_normal":   varianceScaling(1, "fan_in", "normal"),
	"lecun_uniform":  varianceScaling(1, "fan_in", "uniform"),
	"normal": func(key random.Key, shape tensor.Shape, _ Fan) *tensor.Tensor {
		return random.Normal(key, shape...).Scale(1e-2)
	},
	"uniform": func(key random.Key, shape tensor.Shape, _ Fan) *tensor.Tensor {
		return random.Uniform(key, 0, 1e-2, shape...)
	},
	"ones": func(_ random.Key, shape tensor.Shape, _ Fan) *tensor.Tensor {
		return tensor.Ones(shape...)
	},
	"zeros": func(_ random.Key, shape tensor.Shape, _ Fan) *tensor.Tensor {
		return tensor.Zeros(shape...)
	},
	"orthogonal": Orthogonal(1),
}

// ResolveInit looks up a built-in initializer by name.
func ResolveInit(tag string) (Initializer, error) {
	fn, ok := initializers[strings.ToLower(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: initializer %q, available: %s", ErrUnknownTag, tag, strings.Join(InitNames(), ", "))
	}
	return fn, nil
}

// InitNames lists the built-in initializer names.
func InitNames() []string {
	names := make([]string, 0, len(initializers))
	for name := range initializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newParam initializes an optional parameter. A nil initializer yields nil.
func newParam(name string, init Initializer, key random.Key, shape tensor.Shape, fan Fan) *Parameter {
	if init == nil {
		return nil
	}
	return NewParameter(name, init(key, shape, fan))
}
