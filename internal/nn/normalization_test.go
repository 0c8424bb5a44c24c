package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

func TestLayerNorm(t *testing.T) {
	norm, err := NewLayerNorm([]int{4}, random.NewKey(0), NormConfig{})
	require.NoError(t, err)

	y, err := norm.Forward(tensor.FromSlice([]float64{1, 2, 3, 4, 10, 10, 10, 10}, 2, 4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4}, y.Shape())

	s := 1 / math.Sqrt(1.25+1e-5)
	assert.InDeltaSlice(t, []float64{-1.5 * s, -0.5 * s, 0.5 * s, 1.5 * s}, y.Slice(0, 0, 1).Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, y.Slice(0, 1, 2).Data(), 1e-12)

	_, err = norm.Forward(tensor.Ones(4, 3))
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestLayerNorm_Affine(t *testing.T) {
	norm, err := NewLayerNorm([]int{2, 2}, random.NewKey(0), NormConfig{})
	require.NoError(t, err)
	require.NoError(t, LoadStateDict(norm, map[string]*tensor.Tensor{
		"weight": tensor.Full(2, 2, 2),
		"bias":   tensor.Full(1, 2, 2),
	}))

	y, err := norm.Forward(tensor.FromSlice([]float64{0, 0, 2, 2}, 2, 2))
	require.NoError(t, err)
	s := 2 / math.Sqrt(1+1e-5)
	assert.InDeltaSlice(t, []float64{1 - s, 1 - s, 1 + s, 1 + s}, y.Data(), 1e-12)

	plain, err := NewLayerNorm([]int{2}, random.NewKey(0), NormConfig{WeightInit: NoInit(), BiasInit: NoInit()})
	require.NoError(t, err)
	assert.Empty(t, plain.Parameters())
}

func TestRMSNorm(t *testing.T) {
	norm, err := NewRMSNorm(2, random.NewKey(0), NormConfig{})
	require.NoError(t, err)
	assert.Equal(t, 2, NumParameters(norm))

	x := tensor.FromSlice([]float64{3, 4, 0, 0}, 2, 2)
	y, err := norm.Forward(x)
	require.NoError(t, err)
	s := 1 / math.Sqrt(12.5+1e-5)
	assert.InDeltaSlice(t, []float64{3 * s, 4 * s, 0, 0}, y.Data(), 1e-12)

	require.NoError(t, LoadStateDict(norm, map[string]*tensor.Tensor{
		"weight": tensor.FromSlice([]float64{2, 0.5}, 2),
	}))
	y, err = norm.Forward(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{6 * s, 2 * s, 0, 0}, y.Data(), 1e-12)

	_, err = norm.Forward(tensor.Ones(2, 3))
	assert.ErrorIs(t, err, ErrInputShape)
	_, err = NewRMSNorm(0, random.NewKey(0), NormConfig{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// TestGroupNorm tests that every group has zero mean.
func TestGroupNorm(t *testing.T) {
	norm, err := NewGroupNorm(4, 2, random.NewKey(0), NormConfig{})
	require.NoError(t, err)

	x := random.Normal(random.NewKey(1), 4, 3).Scale(3).AddScalar(7)
	y, err := norm.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 3}, y.Shape())

	for g := 0; g < 2; g++ {
		group := y.Slice(0, 2*g, 2*g+2)
		assert.InDelta(t, 0, group.Mean(false).Item(), 1e-9)
		assert.InDelta(t, 1, group.Variance(false).Item(), 1e-4)
	}

	_, err = NewGroupNorm(4, 3, random.NewKey(0), NormConfig{})
	assert.ErrorIs(t, err, ErrNotDivisible)
}

func TestGroupNorm_Lazy(t *testing.T) {
	norm, err := NewGroupNorm(Lazy, 2, random.NewKey(0), NormConfig{})
	require.NoError(t, err)
	assert.Empty(t, norm.Parameters())

	_, err = norm.Forward(tensor.Ones(6, 5))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{6}, StateDict(norm)["weight"].Shape())
}

// TestInstanceNorm tests per-feature statistics.
func TestInstanceNorm(t *testing.T) {
	norm, err := NewInstanceNorm(2, random.NewKey(0), NormConfig{})
	require.NoError(t, err)

	y, err := norm.Forward(tensor.FromSlice([]float64{1, 3, 100, 300}, 2, 2))
	require.NoError(t, err)
	assert.InDelta(t, -1, y.At(0, 0), 1e-4)
	assert.InDelta(t, 1, y.At(0, 1), 1e-4)
	assert.InDelta(t, -1, y.At(1, 0), 1e-4)
	assert.InDelta(t, 1, y.At(1, 1), 1e-4)
}

func TestBatchNorm_TrainEvaluate(t *testing.T) {
	bn, err := NewBatchNorm(2, random.NewKey(0), BatchNormConfig{})
	require.NoError(t, err)
	state := bn.InitState()

	// Feature axis 0, statistics over axis 1.
	x := tensor.FromSlice([]float64{1, 3, 10, 30}, 2, 2)
	y, next, err := bn.Train(x, state)
	require.NoError(t, err)
	assert.InDelta(t, -1, y.At(0, 0), 1e-4)
	assert.InDelta(t, 1, y.At(1, 1), 1e-4)

	assert.InDeltaSlice(t, []float64{0.01 * 2, 0.01 * 20}, next.RunningMean.Data(), 1e-12)
	assert.InDeltaSlice(t, []float64{0.99 + 0.01*1, 0.99 + 0.01*100}, next.RunningVar.Data(), 1e-12)

	// The input state is unchanged.
	assert.Equal(t, []float64{0, 0}, state.RunningMean.Data())

	y, err = bn.Evaluate(x, state)
	require.NoError(t, err)
	s := 1 / math.Sqrt(1+1e-5)
	assert.InDeltaSlice(t, []float64{s, 3 * s, 10 * s, 30 * s}, y.Data(), 1e-12)
}

func TestBatchNorm_Errors(t *testing.T) {
	bn, err := NewBatchNorm(3, random.NewKey(0), BatchNormConfig{Axis: -1})
	require.NoError(t, err)

	_, _, err = bn.Train(tensor.Ones(4, 2), bn.InitState())
	assert.ErrorIs(t, err, ErrInputFeatures)

	_, _, err = bn.Train(tensor.Ones(4, 3), BatchNormState{})
	assert.ErrorIs(t, err, ErrStateType)

	_, _, err = bn.Train(tensor.Ones(3), bn.InitState())
	assert.ErrorIs(t, err, ErrInputRank)

	_, err = NewBatchNorm(3, random.NewKey(0), BatchNormConfig{Momentum: 1.5})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWeightNorm(t *testing.T) {
	w := tensor.FromSlice([]float64{3, 4, 0, 5}, 2, 2)
	got := WeightNorm(w, 0)
	assert.InDeltaSlice(t, []float64{0.6, 0.8, 0, 1}, got.Data(), 1e-9)

	layer, err := NewLinear(3, 2, random.NewKey(0), LinearConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, ApplyWeightNorm(layer, -1))

	normed := StateDict(layer)["weight"]
	for j := 0; j < 2; j++ {
		col := normed.Slice(1, j, j+1).Data()
		var sum float64
		for _, v := range col {
			sum += v * v
		}
		assert.InDelta(t, 1, sum, 1e-9)
	}
}
