package nn

import (
	"fmt"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/shapes"
	"github.com/born-ml/strata/internal/tensor"
)

// ConvConfig configures the convolution family.
//
// The zero value gives stride 1, SAME padding, no dilation, one group,
// glorot_uniform weights and a zero bias. Per-axis slices take one value
// (repeated) or one value per spatial axis.
type ConvConfig struct {
	Strides         []int
	Padding         Padding
	InputDilation   []int // ignored by transposed convolutions
	KernelDilation  []int
	Groups          int   // ignored by depthwise convolutions
	OutputPadding   []int // transposed convolutions only
	DepthMultiplier int   // depthwise and separable convolutions only; default 1
	WeightInit      Init
	BiasInit        Init
}

type convEngine func(x, w *tensor.Tensor, opts tensor.ConvOptions) *tensor.Tensor

// Conv is an N-dimensional convolution over channel-first input
// [in_features, spatial...].
//
// The weight has shape [out_features, in_features/groups, kernel...] and the
// bias [out_features, 1, ...]. Direct and FFT variants compute the same
// cross-correlation; transposed variants dilate the input by the strides.
type Conv struct {
	name        string
	ndim        int
	inFeatures  int
	outFeatures int
	kernel      []int
	strides     []int
	padding     Padding
	inDilation  []int
	kerDilation []int
	outPadding  []int
	groups      int
	multiplier  int // depthwise: out = multiplier·in and groups = in
	transpose   bool
	engine      convEngine

	wInit, bInit Initializer
	key          random.Key
	lazy         *lazyInit
	weight       *Parameter
	bias         *Parameter
}

type convKind struct {
	prefix    string
	transpose bool
	fft       bool
	depthwise bool
}

func (k convKind) name(ndim int) string {
	s := k.prefix
	if k.fft {
		s = "FFT" + s
	}
	s = fmt.Sprintf("%s%dD", s, ndim)
	if k.transpose {
		s += "Transpose"
	}
	return s
}

func newConv(kind convKind, ndim, in, out int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	name := kind.name(ndim)
	if ndim < 1 {
		return nil, fmt.Errorf("%s: %w: at least one spatial axis is required", name, ErrInvalidArgument)
	}
	if err := checkInFeatures(name, in); err != nil {
		return nil, err
	}
	c := &Conv{
		name:       name,
		ndim:       ndim,
		inFeatures: in,
		transpose:  kind.transpose,
		engine:     tensor.Conv,
		key:        key,
	}
	if kind.fft {
		c.engine = tensor.FFTConv
	}
	if kind.depthwise {
		c.multiplier = cfg.DepthMultiplier
		if c.multiplier == 0 {
			c.multiplier = 1
		}
		if err := checkPositive(name, "depth_multiplier", c.multiplier); err != nil {
			return nil, err
		}
	} else {
		if err := checkPositive(name, "out_features", out); err != nil {
			return nil, err
		}
		c.outFeatures = out
	}

	var err error
	if c.kernel, err = canonicalize(name, kernel, 0, ndim, "kernel_size"); err != nil {
		return nil, err
	}
	if c.strides, err = canonicalize(name, cfg.Strides, 1, ndim, "strides"); err != nil {
		return nil, err
	}
	if c.inDilation, err = canonicalize(name, cfg.InputDilation, 1, ndim, "input_dilation"); err != nil {
		return nil, err
	}
	if c.kerDilation, err = canonicalize(name, cfg.KernelDilation, 1, ndim, "kernel_dilation"); err != nil {
		return nil, err
	}
	if c.outPadding, err = shapes.CanonicalizeOr(cfg.OutputPadding, 0, ndim, "output_padding"); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for _, p := range c.outPadding {
		if p < 0 {
			return nil, fmt.Errorf("%s: %w: output_padding must be non-negative, got %v", name, ErrInvalidArgument, c.outPadding)
		}
	}
	c.padding = cfg.Padding.Or(Same())
	if err := c.padding.Validate(ndim); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	c.groups = cfg.Groups
	if c.groups == 0 {
		c.groups = 1
	}
	if err := checkPositive(name, "groups", c.groups); err != nil {
		return nil, err
	}
	if c.wInit, err = cfg.WeightInit.resolve("glorot_uniform"); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if c.wInit == nil {
		return nil, fmt.Errorf("%s: %w: weight initializer cannot be disabled", name, ErrInvalidArgument)
	}
	if c.bInit, err = cfg.BiasInit.resolve("zeros"); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	c.lazy = newLazy(in)
	if c.lazy == nil {
		if err := c.build(in); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Conv) build(in int) error {
	groups, out := c.groups, c.outFeatures
	if c.multiplier > 0 {
		groups, out = in, c.multiplier*in
	}
	if in%groups != 0 || out%groups != 0 {
		return fmt.Errorf("%s: %w: in_features %d and out_features %d by groups %d",
			c.name, ErrNotDivisible, in, out, groups)
	}
	keys := c.key.Split(2)
	rf := product(c.kernel)
	fan := Fan{In: in / groups * rf, Out: out * rf}
	shape := append([]int{out, in / groups}, c.kernel...)
	c.weight = newParam("weight", c.wInit, keys[0], shape, fan)
	c.bias = newParam("bias", c.bInit, keys[1], channelShape(out, c.ndim), fan)
	c.inFeatures, c.outFeatures, c.groups = in, out, groups
	return nil
}

// options resolves padding against the input's spatial shape.
func (c *Conv) options(in []int) (tensor.ConvOptions, error) {
	extent := shapes.DilatedKernel(c.kernel, c.kerDilation)
	pads, err := c.padding.Resolve(in, extent, c.strides)
	if err != nil {
		return tensor.ConvOptions{}, fmt.Errorf("%s: %w", c.name, err)
	}
	if c.transpose {
		out := shapes.TransposeOutputShape(in, c.kernel, c.strides, c.kerDilation, pads, c.outPadding)
		for d, n := range out {
			if n <= 0 {
				return tensor.ConvOptions{}, fmt.Errorf("%s: %w: spatial size %v gives empty output on axis %d",
					c.name, ErrInvalidArgument, in, d)
			}
		}
		return tensor.ConvOptions{
			Padding:        shapes.TransposePadding(pads, c.kernel, c.kerDilation, c.outPadding),
			InputDilation:  c.strides,
			KernelDilation: c.kerDilation,
			Groups:         c.groups,
		}, nil
	}
	dilated := make([]int, len(in))
	for d, n := range in {
		dilated[d] = (n-1)*c.inDilation[d] + 1
	}
	if _, err := shapes.ConvOutputShape(dilated, extent, c.strides, pads); err != nil {
		return tensor.ConvOptions{}, fmt.Errorf("%s: %w", c.name, err)
	}
	return tensor.ConvOptions{
		Strides:        c.strides,
		Padding:        pads,
		InputDilation:  c.inDilation,
		KernelDilation: c.kerDilation,
		Groups:         c.groups,
	}, nil
}

// Forward convolves x of shape [in_features, spatial...].
func (c *Conv) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkSpatial(c.name, x, c.ndim); err != nil {
		return nil, err
	}
	if err := c.lazy.run(func() error { return c.build(x.Dim(0)) }); err != nil {
		return nil, err
	}
	if err := checkFeatures(c.name, x, c.inFeatures); err != nil {
		return nil, err
	}
	opts, err := c.options(spatialShape(x))
	if err != nil {
		return nil, err
	}
	y := c.engine(x, c.weight.Tensor(), opts)
	if c.bias != nil {
		y = tensor.Add(y, c.bias.Tensor())
	}
	return y, nil
}

// Parameters returns [weight, bias], or nothing before lazy initialization.
func (c *Conv) Parameters() []*Parameter {
	if !c.lazy.ready() {
		return nil
	}
	return collect(c.weight, c.bias)
}

// InFeatures returns the input feature count, or Lazy before the first call.
func (c *Conv) InFeatures() int {
	if !c.lazy.ready() {
		return Lazy
	}
	return c.inFeatures
}

// OutFeatures returns the output feature count. For a lazy depthwise
// convolution it is 0 until the first call.
func (c *Conv) OutFeatures() int { return c.outFeatures }

// KernelSize returns the per-axis kernel size.
func (c *Conv) KernelSize() []int { return append([]int(nil), c.kernel...) }

// NewConv creates a convolution with ndim spatial axes.
func NewConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return newConv(convKind{prefix: "Conv"}, ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewConv1D creates a convolution over [in_features, length] input.
func NewConv1D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return NewConv(1, inFeatures, outFeatures, kernel, key, cfg)
}

// NewConv2D creates a convolution over [in_features, height, width] input.
func NewConv2D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return NewConv(2, inFeatures, outFeatures, kernel, key, cfg)
}

// NewConv3D creates a convolution over [in_features, depth, height, width] input.
func NewConv3D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return NewConv(3, inFeatures, outFeatures, kernel, key, cfg)
}

// NewConvTranspose creates a transposed convolution. With SAME padding, no
// output padding and a spatial size divisible by the stride, the size is
// multiplied by the stride.
func NewConvTranspose(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return newConv(convKind{prefix: "Conv", transpose: true}, ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewDepthwiseConv convolves each input feature with its own
// DepthMultiplier kernels. Groups is ignored.
func NewDepthwiseConv(ndim, inFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return newConv(convKind{prefix: "DepthwiseConv", depthwise: true}, ndim, inFeatures, 0, kernel, key, cfg)
}

// NewFFTConv creates a convolution computed in the frequency domain.
func NewFFTConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return newConv(convKind{prefix: "Conv", fft: true}, ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewFFTConv1D creates an FFT convolution over [in_features, length] input.
func NewFFTConv1D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return NewFFTConv(1, inFeatures, outFeatures, kernel, key, cfg)
}

// NewFFTConv2D creates an FFT convolution over [in_features, height, width] input.
func NewFFTConv2D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return NewFFTConv(2, inFeatures, outFeatures, kernel, key, cfg)
}

// NewFFTConv3D creates an FFT convolution over [in_features, depth, height, width] input.
func NewFFTConv3D(inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return NewFFTConv(3, inFeatures, outFeatures, kernel, key, cfg)
}

// NewFFTConvTranspose creates a transposed convolution computed in the
// frequency domain.
func NewFFTConvTranspose(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return newConv(convKind{prefix: "Conv", transpose: true, fft: true}, ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewDepthwiseFFTConv is NewDepthwiseConv computed in the frequency domain.
func NewDepthwiseFFTConv(ndim, inFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*Conv, error) {
	return newConv(convKind{prefix: "DepthwiseConv", fft: true, depthwise: true}, ndim, inFeatures, 0, kernel, key, cfg)
}

// SeparableConv is a depthwise convolution followed by a 1×…×1 pointwise
// convolution. The depthwise stage has no bias.
type SeparableConv struct {
	depthwise *Conv
	pointwise *Conv
}

func newSeparable(fft bool, ndim, in, out int, kernel []int, key random.Key, cfg ConvConfig) (*SeparableConv, error) {
	keys := key.Split(2)
	dw, err := newConv(convKind{prefix: "SeparableConv", fft: fft, depthwise: true}, ndim, in, 0, kernel, keys[0], ConvConfig{
		Strides:         cfg.Strides,
		Padding:         cfg.Padding,
		KernelDilation:  cfg.KernelDilation,
		DepthMultiplier: cfg.DepthMultiplier,
		WeightInit:      cfg.WeightInit,
		BiasInit:        NoInit(),
	})
	if err != nil {
		return nil, err
	}
	pwIn := Lazy
	if in != Lazy {
		pwIn = in * dw.multiplier
	}
	pw, err := newConv(convKind{prefix: "SeparableConv", fft: fft}, ndim, pwIn, out, []int{1}, keys[1], ConvConfig{
		WeightInit: cfg.WeightInit,
		BiasInit:   cfg.BiasInit,
	})
	if err != nil {
		return nil, err
	}
	return &SeparableConv{depthwise: dw, pointwise: pw}, nil
}

// NewSeparableConv creates a separable convolution.
func NewSeparableConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*SeparableConv, error) {
	return newSeparable(false, ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewSeparableFFTConv creates a separable convolution whose stages run in
// the frequency domain.
func NewSeparableFFTConv(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvConfig) (*SeparableConv, error) {
	return newSeparable(true, ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// Forward applies the depthwise then the pointwise stage.
func (s *SeparableConv) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := s.depthwise.Forward(x)
	if err != nil {
		return nil, err
	}
	return s.pointwise.Forward(y)
}

// Parameters returns "depthwise.weight", "pointwise.weight" and
// "pointwise.bias".
func (s *SeparableConv) Parameters() []*Parameter {
	return append(prefixed("depthwise", s.depthwise.Parameters()), prefixed("pointwise", s.pointwise.Parameters())...)
}
