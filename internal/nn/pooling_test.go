package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/strata/internal/tensor"
)

func ramp(n int) *tensor.Tensor {
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i + 1)
	}
	return tensor.FromSlice(data, 1, n)
}

// TestMaxPool1D_Values tests kernel 2 with SAME and VALID padding.
func TestMaxPool1D_Values(t *testing.T) {
	same, err := NewMaxPool(1, []int{2}, PoolConfig{Padding: Same()})
	require.NoError(t, err)
	y, err := same.Forward(ramp(10))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7, 8, 9, 10, 10}, y.Data())

	valid, err := NewMaxPool(1, []int{2}, PoolConfig{Strides: []int{2}})
	require.NoError(t, err)
	y, err = valid.Forward(ramp(10))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6, 8, 10}, y.Data())
}

// TestMaxPool_PadsWithNegativeInfinity tests that padding never wins a max.
func TestMaxPool_PadsWithNegativeInfinity(t *testing.T) {
	pool, err := NewMaxPool(1, []int{3}, PoolConfig{Padding: PadInt(1)})
	require.NoError(t, err)
	y, err := pool.Forward(tensor.Full(-5, 1, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{-5, -5, -5}, y.Data())
}

func TestMaxPool2D_Values(t *testing.T) {
	pool, err := NewMaxPool(2, []int{2}, PoolConfig{Strides: []int{2}})
	require.NoError(t, err)

	y, err := pool.Forward(ramp(16).Reshape(1, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 2}, y.Shape())
	assert.Equal(t, []float64{6, 8, 14, 16}, y.Data())
	assert.Empty(t, pool.Parameters())
}

// TestAvgPool_CountsPadding tests that padded zeros count toward the mean.
func TestAvgPool_CountsPadding(t *testing.T) {
	pool, err := NewAvgPool(1, []int{2}, PoolConfig{Strides: []int{2}})
	require.NoError(t, err)
	y, err := pool.Forward(ramp(4))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 3.5}, y.Data())

	padded, err := NewAvgPool(1, []int{2}, PoolConfig{Strides: []int{2}, Padding: PadPairs([2]int{1, 1})})
	require.NoError(t, err)
	y, err = padded.Forward(ramp(4))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 2.5, 2}, y.Data())
}

func TestLPPool(t *testing.T) {
	pool, err := NewLPPool(1, 2, []int{2}, PoolConfig{Strides: []int{2}})
	require.NoError(t, err)
	y, err := pool.Forward(tensor.FromSlice([]float64{3, 4, 6, 8}, 1, 4))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5, 10}, y.Data(), 1e-12)

	_, err = NewLPPool(1, 0, []int{2}, PoolConfig{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPool_Errors(t *testing.T) {
	_, err := NewMaxPool(2, []int{2, 2, 2}, PoolConfig{})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = NewAvgPool(1, []int{0}, PoolConfig{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	pool, err := NewMaxPool(2, []int{2}, PoolConfig{})
	require.NoError(t, err)
	_, err = pool.Forward(tensor.Ones(4))
	assert.ErrorIs(t, err, ErrInputRank)
}

func TestGlobalPool(t *testing.T) {
	x := tensor.FromSlice([]float64{1, 2, 3, 4, -1, -2, -3, -4}, 2, 2, 2)

	avg := NewGlobalAvgPool(2, false)
	y, err := avg.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, y.Shape())
	assert.Equal(t, []float64{2.5, -2.5}, y.Data())

	maxPool := NewGlobalMaxPool(2, true)
	y, err = maxPool.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1, 1}, y.Shape())
	assert.Equal(t, []float64{4, -1}, y.Data())
}

func TestAdaptivePool(t *testing.T) {
	avg, err := NewAdaptiveAvgPool(1, []int{2})
	require.NoError(t, err)
	y, err := avg.Forward(ramp(4))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 3.5}, y.Data())

	// Overlapping bins: 5 inputs into 3 outputs cover [0,2), [1,4), [3,5).
	maxPool, err := NewAdaptiveMaxPool(1, []int{3})
	require.NoError(t, err)
	y, err = maxPool.Forward(ramp(5))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 5}, y.Data())

	up, err := NewAdaptiveAvgPool(2, []int{4, 4})
	require.NoError(t, err)
	y, err = up.Forward(tensor.Ones(3, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4, 4}, y.Shape())
	for _, v := range y.Data() {
		assert.False(t, math.IsNaN(v))
	}
}
