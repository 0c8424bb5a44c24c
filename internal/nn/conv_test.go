package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

// TestConv1D_Values tests a ones kernel with SAME padding.
func TestConv1D_Values(t *testing.T) {
	conv, err := NewConv1D(1, 1, []int{3}, random.NewKey(0), ConvConfig{WeightInit: InitTag("ones")})
	require.NoError(t, err)

	y, err := conv.Forward(tensor.FromSlice([]float64{1, 2, 3, 4, 5}, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 5}, y.Shape())
	assert.InDeltaSlice(t, []float64{3, 6, 9, 12, 9}, y.Data(), 1e-12)
}

// TestConv_OutputShape tests out = (n + pads - dilated kernel) / stride + 1.
func TestConv_OutputShape(t *testing.T) {
	tests := []struct {
		name  string
		cfg   ConvConfig
		in    []int
		want  tensor.Shape
		inDim int
	}{
		{"same", ConvConfig{}, []int{9, 9}, tensor.Shape{8, 9, 9}, 3},
		{"valid stride 2", ConvConfig{Strides: []int{2}, Padding: Valid()}, []int{9, 9}, tensor.Shape{8, 4, 4}, 3},
		{"same stride 2", ConvConfig{Strides: []int{2}}, []int{9, 9}, tensor.Shape{8, 5, 5}, 3},
		{"explicit", ConvConfig{Padding: PadInt(1)}, []int{6, 6}, tensor.Shape{8, 6, 6}, 3},
		{"dilated valid", ConvConfig{KernelDilation: []int{2}, Padding: Valid()}, []int{9, 9}, tensor.Shape{8, 5, 5}, 3},
		{"groups", ConvConfig{Groups: 2}, []int{4, 4}, tensor.Shape{8, 4, 4}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := NewConv2D(tt.inDim, 8, []int{3}, random.NewKey(0), tt.cfg)
			require.NoError(t, err)
			y, err := conv.Forward(tensor.Ones(append([]int{tt.inDim}, tt.in...)...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, y.Shape())
		})
	}
}

func TestConv_Errors(t *testing.T) {
	_, err := NewConv2D(3, 8, []int{3, 3, 3}, random.NewKey(0), ConvConfig{})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = NewConv2D(3, 8, []int{3}, random.NewKey(0), ConvConfig{Groups: 2})
	assert.ErrorIs(t, err, ErrNotDivisible)

	_, err = NewConv2D(3, 8, []int{3}, random.NewKey(0), ConvConfig{Padding: PadTag("full")})
	assert.ErrorIs(t, err, ErrUnknownTag)

	conv, err := NewConv2D(3, 8, []int{3}, random.NewKey(0), ConvConfig{})
	require.NoError(t, err)
	_, err = conv.Forward(tensor.Ones(3, 4))
	assert.ErrorIs(t, err, ErrInputRank)
	_, err = conv.Forward(tensor.Ones(2, 4, 4))
	assert.ErrorIs(t, err, ErrInputFeatures)
}

func TestConv_Lazy(t *testing.T) {
	conv, err := NewConv1D(Lazy, 4, []int{3}, random.NewKey(0), ConvConfig{})
	require.NoError(t, err)
	assert.Empty(t, conv.Parameters())

	y, err := conv.Forward(tensor.Ones(5, 10))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 10}, y.Shape())
	assert.Equal(t, 5, conv.InFeatures())
	assert.Equal(t, tensor.Shape{4, 5, 3}, StateDict(conv)["weight"].Shape())
	assert.Equal(t, tensor.Shape{4, 1}, StateDict(conv)["bias"].Shape())
}

// TestConvTranspose_OutputShape tests that SAME padding scales a spatial
// size divisible by the stride by the stride.
func TestConvTranspose_OutputShape(t *testing.T) {
	conv, err := NewConvTranspose(2, 2, 3, []int{3}, random.NewKey(0), ConvConfig{Strides: []int{2}})
	require.NoError(t, err)

	y, err := conv.Forward(tensor.Ones(2, 4, 6))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 8, 12}, y.Shape())

	valid, err := NewConvTranspose(1, 1, 1, []int{3}, random.NewKey(0), ConvConfig{Padding: Valid()})
	require.NoError(t, err)
	y, err = valid.Forward(tensor.Ones(1, 4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 6}, y.Shape())
}

// TestFFTConv_MatchesConv tests that both engines agree with shared weights.
func TestFFTConv_MatchesConv(t *testing.T) {
	cfg := ConvConfig{Strides: []int{2, 1}, KernelDilation: []int{1, 2}}
	direct, err := NewConv2D(2, 3, []int{3}, random.NewKey(1), cfg)
	require.NoError(t, err)
	fft, err := NewFFTConv2D(2, 3, []int{3}, random.NewKey(2), cfg)
	require.NoError(t, err)
	require.NoError(t, LoadStateDict(fft, StateDict(direct)))

	x := random.Normal(random.NewKey(3), 2, 7, 6)
	want, err := direct.Forward(x)
	require.NoError(t, err)
	got, err := fft.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, want.Shape(), got.Shape())
	assert.True(t, tensor.AllClose(want, got, 1e-7, 1e-9))
}

func TestFFTConvTranspose_MatchesConvTranspose(t *testing.T) {
	cfg := ConvConfig{Strides: []int{2}}
	direct, err := NewConvTranspose(1, 2, 2, []int{3}, random.NewKey(1), cfg)
	require.NoError(t, err)
	fft, err := NewFFTConvTranspose(1, 2, 2, []int{3}, random.NewKey(2), cfg)
	require.NoError(t, err)
	require.NoError(t, LoadStateDict(fft, StateDict(direct)))

	x := random.Normal(random.NewKey(3), 2, 5)
	want, err := direct.Forward(x)
	require.NoError(t, err)
	got, err := fft.Forward(x)
	require.NoError(t, err)
	assert.True(t, tensor.AllClose(want, got, 1e-7, 1e-9))
}

func TestDepthwiseConv(t *testing.T) {
	conv, err := NewDepthwiseConv(2, 3, []int{3}, random.NewKey(0), ConvConfig{DepthMultiplier: 2})
	require.NoError(t, err)
	assert.Equal(t, 6, conv.OutFeatures())
	assert.Equal(t, tensor.Shape{6, 1, 3, 3}, StateDict(conv)["weight"].Shape())

	y, err := conv.Forward(tensor.Ones(3, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6, 5, 5}, y.Shape())

	fft, err := NewDepthwiseFFTConv(2, 3, []int{3}, random.NewKey(1), ConvConfig{DepthMultiplier: 2})
	require.NoError(t, err)
	require.NoError(t, LoadStateDict(fft, StateDict(conv)))
	x := random.Normal(random.NewKey(2), 3, 5, 5)
	want, _ := conv.Forward(x)
	got, err := fft.Forward(x)
	require.NoError(t, err)
	assert.True(t, tensor.AllClose(want, got, 1e-7, 1e-9))
}

func TestSeparableConv(t *testing.T) {
	conv, err := NewSeparableConv(1, 2, 5, []int{3}, random.NewKey(0), ConvConfig{DepthMultiplier: 3})
	require.NoError(t, err)

	var names []string
	for _, p := range conv.Parameters() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"depthwise.weight", "pointwise.weight", "pointwise.bias"}, names)

	sd := StateDict(conv)
	assert.Equal(t, tensor.Shape{6, 1, 3}, sd["depthwise.weight"].Shape())
	assert.Equal(t, tensor.Shape{5, 6, 1}, sd["pointwise.weight"].Shape())

	y, err := conv.Forward(tensor.Ones(2, 8))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{5, 8}, y.Shape())

	fft, err := NewSeparableFFTConv(1, 2, 5, []int{3}, random.NewKey(1), ConvConfig{DepthMultiplier: 3})
	require.NoError(t, err)
	require.NoError(t, LoadStateDict(fft, sd))
	x := random.Normal(random.NewKey(2), 2, 8)
	want, _ := conv.Forward(x)
	got, err := fft.Forward(x)
	require.NoError(t, err)
	assert.True(t, tensor.AllClose(want, got, 1e-7, 1e-9))
}

// TestLocalConv tests unshared weights: with ones weights it matches a
// shared ones kernel.
func TestLocalConv(t *testing.T) {
	local, err := NewLocalConv(1, 1, 1, []int{3}, []int{5}, random.NewKey(0),
		ConvConfig{Padding: Valid(), WeightInit: InitTag("ones")})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, local.OutSize())
	assert.Equal(t, tensor.Shape{1, 3, 3}, StateDict(local)["weight"].Shape())
	assert.Equal(t, tensor.Shape{1, 3}, StateDict(local)["bias"].Shape())

	y, err := local.Forward(tensor.FromSlice([]float64{1, 2, 3, 4, 5}, 1, 5))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{6, 9, 12}, y.Data(), 1e-12)

	_, err = local.Forward(tensor.Ones(1, 6))
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestSpectralConv(t *testing.T) {
	conv, err := NewSpectralConv(2, 2, 3, []int{2, 3}, random.NewKey(0))
	require.NoError(t, err)
	assert.Equal(t, 2, conv.Corners())

	sd := StateDict(conv)
	assert.Equal(t, tensor.Shape{2, 3, 2, 2, 3}, sd["weight_r"].Shape())
	assert.Equal(t, tensor.Shape{2, 3, 2, 2, 3}, sd["weight_i"].Shape())
	for _, v := range sd["weight_r"].Data() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0/6)
	}

	y, err := conv.Forward(random.Normal(random.NewKey(1), 2, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 8, 8}, y.Shape())

	_, err = conv.Forward(tensor.Ones(2, 3, 8))
	assert.ErrorIs(t, err, ErrInputShape)
}

// TestSpectralConv_ConstantInput tests that only the zero mode of a constant
// signal survives: y = mean weight response times the constant.
func TestSpectralConv_ConstantInput(t *testing.T) {
	conv, err := NewSpectralConv(1, 1, 1, []int{1}, random.NewKey(0))
	require.NoError(t, err)
	require.NoError(t, LoadStateDict(conv, map[string]*tensor.Tensor{
		"weight_r": tensor.Full(0.5, 1, 1, 1, 1),
		"weight_i": tensor.Zeros(1, 1, 1, 1),
	}))

	y, err := conv.Forward(tensor.Full(2, 1, 6))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 1, 1, 1, 1}, y.Data(), 1e-12)
}
