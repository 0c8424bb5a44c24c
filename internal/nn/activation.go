package nn

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/born-ml/strata/internal/tensor"
)

// Elementwise is a parameter-free activation applied to every element.
type Elementwise struct {
	stateless
	name string
	fn   func(float64) float64
}

// Name returns the activation's registry name.
func (e *Elementwise) Name() string { return e.name }

// Forward applies the activation.
func (e *Elementwise) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return x.Map(e.fn), nil
}

func elementwise(name string, fn func(float64) float64) *Elementwise {
	return &Elementwise{name: name, fn: fn}
}

func relu(x float64) float64 { return math.Max(0, x) }

func softplus(x float64) float64 {
	return math.Log1p(math.Exp(-math.Abs(x))) + math.Max(x, 0)
}

func hardSigmoid(x float64) float64 { return math.Min(math.Max(x+3, 0), 6) / 6 }

// ReLU returns max(0, x).
func ReLU() *Elementwise { return elementwise("relu", relu) }

// ReLU6 returns min(max(0, x), 6).
func ReLU6() *Elementwise {
	return elementwise("relu6", func(x float64) float64 { return math.Min(relu(x), 6) })
}

// Sigmoid returns 1 / (1 + e^-x).
func Sigmoid() *Elementwise { return elementwise("sigmoid", tensor.Sigmoid) }

// Tanh returns tanh(x).
func Tanh() *Elementwise { return elementwise("tanh", math.Tanh) }

// SoftPlus returns log(1 + e^x).
func SoftPlus() *Elementwise { return elementwise("softplus", softplus) }

// SoftSign returns x / (1 + |x|).
func SoftSign() *Elementwise {
	return elementwise("softsign", func(x float64) float64 { return x / (1 + math.Abs(x)) })
}

// SquarePlus returns (x + sqrt(x² + 4)) / 2.
func SquarePlus() *Elementwise {
	return elementwise("squareplus", func(x float64) float64 { return 0.5 * (x + math.Sqrt(x*x+4)) })
}

// Swish returns x · sigmoid(x).
func Swish() *Elementwise {
	return elementwise("swish", func(x float64) float64 { return x * tensor.Sigmoid(x) })
}

// Mish returns x · tanh(softplus(x)).
func Mish() *Elementwise {
	return elementwise("mish", func(x float64) float64 { return x * math.Tanh(softplus(x)) })
}

// TanhShrink returns x − tanh(x).
func TanhShrink() *Elementwise {
	return elementwise("tanh_shrink", func(x float64) float64 { return x - math.Tanh(x) })
}

// HardSigmoid returns relu6(x + 3) / 6.
func HardSigmoid() *Elementwise { return elementwise("hard_sigmoid", hardSigmoid) }

// HardSwish returns x · hard_sigmoid(x).
func HardSwish() *Elementwise {
	return elementwise("hard_swish", func(x float64) float64 { return x * hardSigmoid(x) })
}

// HardTanh clips x to [-1, 1].
func HardTanh() *Elementwise {
	return elementwise("hard_tanh", func(x float64) float64 { return math.Max(-1, math.Min(1, x)) })
}

// LogSigmoid returns log(sigmoid(x)).
func LogSigmoid() *Elementwise {
	return elementwise("log_sigmoid", func(x float64) float64 { return -softplus(-x) })
}

// SeLU is the scaled exponential linear unit.
func SeLU() *Elementwise {
	const (
		alpha = 1.6732632423543772848170429916717
		scale = 1.0507009873554804934193349852946
	)
	return elementwise("selu", func(x float64) float64 {
		if x > 0 {
			return scale * x
		}
		return scale * alpha * math.Expm1(x)
	})
}

// GELU is the Gaussian error linear unit. approximate selects the tanh
// approximation.
func GELU(approximate bool) *Elementwise {
	if approximate {
		c := math.Sqrt(2 / math.Pi)
		return elementwise("gelu", func(x float64) float64 {
			return 0.5 * x * (1 + math.Tanh(c*(x+0.044715*x*x*x)))
		})
	}
	return elementwise("gelu", func(x float64) float64 {
		return 0.5 * x * (1 + math.Erf(x/math.Sqrt2))
	})
}

// NewCeLU returns max(0, x) + min(0, α(e^(x/α) − 1)); α must be positive.
func NewCeLU(alpha float64) (*Elementwise, error) {
	if !(alpha > 0) {
		return nil, fmt.Errorf("CeLU: %w: alpha must be > 0, got %g", ErrInvalidArgument, alpha)
	}
	return elementwise("celu", func(x float64) float64 {
		return math.Max(0, x) + math.Min(0, alpha*math.Expm1(x/alpha))
	}), nil
}

// ELU returns x for x > 0 and α(e^x − 1) otherwise.
func ELU(alpha float64) *Elementwise {
	return elementwise("elu", func(x float64) float64 {
		if x > 0 {
			return x
		}
		return alpha * math.Expm1(x)
	})
}

// NewLeakyReLU returns x for x ≥ 0 and slope·x otherwise; slope must be
// >= 0.
func NewLeakyReLU(slope float64) (*Elementwise, error) {
	if err := checkNonNegative("LeakyReLU", "negative_slope", slope); err != nil {
		return nil, err
	}
	return elementwise("leaky_relu", func(x float64) float64 {
		if x >= 0 {
			return x
		}
		return slope * x
	}), nil
}

func checkNonNegative(layer, name string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return fmt.Errorf("%s: %w: %s must be >= 0, got %g", layer, ErrInvalidArgument, name, v)
	}
	return nil
}

// NewHardShrink zeroes values in [-α, α].
func NewHardShrink(alpha float64) (*Elementwise, error) {
	if err := checkNonNegative("HardShrink", "alpha", alpha); err != nil {
		return nil, err
	}
	return elementwise("hard_shrink", func(x float64) float64 {
		if x > alpha || x < -alpha {
			return x
		}
		return 0
	}), nil
}

// NewSoftShrink zeroes values in [-α, α] and shifts the rest toward zero by α.
func NewSoftShrink(alpha float64) (*Elementwise, error) {
	if err := checkNonNegative("SoftShrink", "alpha", alpha); err != nil {
		return nil, err
	}
	return elementwise("softshrink", func(x float64) float64 {
		switch {
		case x < -alpha:
			return x + alpha
		case x > alpha:
			return x - alpha
		default:
			return 0
		}
	}), nil
}

// NewThresholdedReLU keeps values above θ and zeroes the rest.
func NewThresholdedReLU(theta float64) (*Elementwise, error) {
	if err := checkNonNegative("ThresholdedReLU", "theta", theta); err != nil {
		return nil, err
	}
	return elementwise("thresholded_relu", func(x float64) float64 {
		if x > theta {
			return x
		}
		return 0
	}), nil
}

// NewSnake returns x + (1 − cos(2ax)) / (2a) for frequency a > 0.
func NewSnake(a float64) (*Elementwise, error) {
	if a <= 0 || math.IsNaN(a) {
		return nil, fmt.Errorf("Snake: %w: frequency must be > 0, got %g", ErrInvalidArgument, a)
	}
	return elementwise("snake", func(x float64) float64 {
		return x + (1-math.Cos(2*a*x))/(2*a)
	}), nil
}

// GLU splits the last axis in halves a and b and returns a · sigmoid(b).
type GLU struct{ stateless }

// Forward applies the gate. The last axis must have even length.
func (GLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() == 0 || x.Dim(-1)%2 != 0 {
		return nil, fmt.Errorf("GLU: %w: last axis must have even length, got shape %v", ErrInputFeatures, x.Shape())
	}
	parts := x.Split(-1, 2)
	return tensor.Mul(parts[0], parts[1].Sigmoid()), nil
}

// LogSoftmax normalizes the last axis in log space.
type LogSoftmax struct{ stateless }

// Forward applies log-softmax over the last axis.
func (LogSoftmax) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() == 0 {
		return nil, fmt.Errorf("LogSoftmax: %w: scalar input", ErrInputRank)
	}
	return x.LogSoftmax(-1), nil
}

// scalarActivation is an activation with one learnable scalar a.
type scalarActivation struct {
	a *Parameter
}

// Parameters returns the scalar parameter.
func (s *scalarActivation) Parameters() []*Parameter { return []*Parameter{s.a} }

// A returns the current value of the learnable scalar.
func (s *scalarActivation) A() float64 { return s.a.Tensor().Item() }

func newScalarActivation(layer string, a float64) (scalarActivation, error) {
	if err := checkNonNegative(layer, "a", a); err != nil {
		return scalarActivation{}, err
	}
	return scalarActivation{a: NewParameter("a", tensor.Scalar(a))}, nil
}

// AdaptiveLeakyReLU returns max(0, ax) − v·max(0, −ax) with learnable a.
type AdaptiveLeakyReLU struct {
	scalarActivation
	v float64
}

// NewAdaptiveLeakyReLU creates the activation; a and v must be >= 0.
func NewAdaptiveLeakyReLU(a, v float64) (*AdaptiveLeakyReLU, error) {
	base, err := newScalarActivation("AdaptiveLeakyReLU", a)
	if err != nil {
		return nil, err
	}
	if err := checkNonNegative("AdaptiveLeakyReLU", "v", v); err != nil {
		return nil, err
	}
	return &AdaptiveLeakyReLU{scalarActivation: base, v: v}, nil
}

// Forward applies the activation.
func (l *AdaptiveLeakyReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a, v := l.A(), l.v
	return x.Map(func(x float64) float64 { return relu(a*x) - v*relu(-a*x) }), nil
}

// AdaptiveReLU returns max(0, ax) with learnable a.
type AdaptiveReLU struct{ scalarActivation }

// NewAdaptiveReLU creates the activation; a must be >= 0.
func NewAdaptiveReLU(a float64) (*AdaptiveReLU, error) {
	base, err := newScalarActivation("AdaptiveReLU", a)
	if err != nil {
		return nil, err
	}
	return &AdaptiveReLU{base}, nil
}

// Forward applies the activation.
func (l *AdaptiveReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a := l.A()
	return x.Map(func(x float64) float64 { return relu(a * x) }), nil
}

// AdaptiveSigmoid returns sigmoid(ax) with learnable a.
type AdaptiveSigmoid struct{ scalarActivation }

// NewAdaptiveSigmoid creates the activation; a must be >= 0.
func NewAdaptiveSigmoid(a float64) (*AdaptiveSigmoid, error) {
	base, err := newScalarActivation("AdaptiveSigmoid", a)
	if err != nil {
		return nil, err
	}
	return &AdaptiveSigmoid{base}, nil
}

// Forward applies the activation.
func (l *AdaptiveSigmoid) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a := l.A()
	return x.Map(func(x float64) float64 { return tensor.Sigmoid(a * x) }), nil
}

// AdaptiveTanh returns tanh(ax) with learnable a.
type AdaptiveTanh struct{ scalarActivation }

// NewAdaptiveTanh creates the activation; a must be >= 0.
func NewAdaptiveTanh(a float64) (*AdaptiveTanh, error) {
	base, err := newScalarActivation("AdaptiveTanh", a)
	if err != nil {
		return nil, err
	}
	return &AdaptiveTanh{base}, nil
}

// Forward applies the activation.
func (l *AdaptiveTanh) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a := l.A()
	return x.Map(func(x float64) float64 { return math.Tanh(a * x) }), nil
}

// PReLU returns x for x ≥ 0 and a·x otherwise, with learnable a.
type PReLU struct{ scalarActivation }

// NewPReLU creates the activation; a must be >= 0. The usual start is 0.25.
func NewPReLU(a float64) (*PReLU, error) {
	base, err := newScalarActivation("PReLU", a)
	if err != nil {
		return nil, err
	}
	return &PReLU{base}, nil
}

// Forward applies the activation.
func (l *PReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a := l.A()
	return x.Map(func(x float64) float64 {
		if x >= 0 {
			return x
		}
		return a * x
	}), nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// activations builds each registered activation with its default settings.
var activations = map[string]func() Layer{
	"adaptive_leaky_relu": func() Layer { return must(NewAdaptiveLeakyReLU(1, 1)) },
	"adaptive_relu":       func() Layer { return must(NewAdaptiveReLU(1)) },
	"adaptive_sigmoid":    func() Layer { return must(NewAdaptiveSigmoid(1)) },
	"adaptive_tanh":       func() Layer { return must(NewAdaptiveTanh(1)) },
	"celu":                func() Layer { return must(NewCeLU(1)) },
	"elu":                 func() Layer { return ELU(1) },
	"gelu":                func() Layer { return GELU(true) },
	"glu":                 func() Layer { return GLU{} },
	"hard_shrink":         func() Layer { return must(NewHardShrink(0.5)) },
	"hard_sigmoid":        func() Layer { return HardSigmoid() },
	"hard_swish":          func() Layer { return HardSwish() },
	"hard_tanh":           func() Layer { return HardTanh() },
	"leaky_relu":          func() Layer { return must(NewLeakyReLU(0.01)) },
	"log_sigmoid":         func() Layer { return LogSigmoid() },
	"log_softmax":         func() Layer { return LogSoftmax{} },
	"mish":                func() Layer { return Mish() },
	"prelu":               func() Layer { return must(NewPReLU(0.25)) },
	"relu":                func() Layer { return ReLU() },
	"relu6":               func() Layer { return ReLU6() },
	"selu":                func() Layer { return SeLU() },
	"sigmoid":             func() Layer { return Sigmoid() },
	"snake":               func() Layer { return must(NewSnake(1)) },
	"softplus":            func() Layer { return SoftPlus() },
	"softshrink":          func() Layer { return must(NewSoftShrink(0.5)) },
	"softsign":            func() Layer { return SoftSign() },
	"squareplus":          func() Layer { return SquarePlus() },
	"swish":               func() Layer { return Swish() },
	"tanh":                func() Layer { return Tanh() },
	"tanh_shrink":         func() Layer { return TanhShrink() },
	"thresholded_relu":    func() Layer { return must(NewThresholdedReLU(1)) },
}

// ResolveActivation builds a fresh activation by name. Learnable
// activations are never shared between callers.
func ResolveActivation(tag string) (Layer, error) {
	build, ok := activations[strings.ToLower(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: activation %q, available: %s", ErrUnknownTag, tag, strings.Join(ActivationNames(), ", "))
	}
	return build(), nil
}

// ActivationNames lists the registered activation names.
func ActivationNames() []string {
	names := make([]string, 0, len(activations))
	for name := range activations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Act selects an activation in a layer config. The zero value selects the
// layer's default.
type Act struct {
	tag   string
	layer Layer
}

// ActTag selects a registered activation by name.
func ActTag(tag string) Act { return Act{tag: tag} }

// ActWith selects a custom activation layer.
func ActWith(layer Layer) Act { return Act{layer: layer} }

func (a Act) resolve(def string) (Layer, error) {
	switch {
	case a.layer != nil:
		return a.layer, nil
	case a.tag != "":
		return ResolveActivation(a.tag)
	default:
		return ResolveActivation(def)
	}
}
