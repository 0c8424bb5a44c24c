// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/strata/nn"
	"github.com/born-ml/strata/random"
	"github.com/born-ml/strata/tensor"
)

// TestModuleInterface verifies that the re-exported layers implement the
// public interfaces.
func TestModuleInterface(t *testing.T) {
	key := random.NewKey(0)
	linear, err := nn.NewLinear(10, 5, key, nn.LinearConfig{})
	require.NoError(t, err)
	conv, err := nn.NewConv2D(1, 4, []int{3, 3}, key, nn.ConvConfig{Padding: nn.Same()})
	require.NoError(t, err)
	drop, err := nn.NewDropout(0.1)
	require.NoError(t, err)
	seq, err := nn.NewSequential(linear, nn.ReLU())
	require.NoError(t, err)

	layers := map[string]nn.Layer{"Linear": linear, "Conv2D": conv, "ReLU": nn.ReLU(), "Sequential": seq}
	for name, l := range layers {
		assert.NotNil(t, l, name)
	}
	var _ nn.RandomLayer = drop
	var _ nn.Cell = (*nn.LSTMCell)(nil)

	assert.Equal(t, 10*5+5, nn.NumParameters(linear))
	assert.Len(t, nn.StateDict(seq), 2)
}

func TestSequentialForward(t *testing.T) {
	keys := random.NewKey(7).Split(2)
	hidden, err := nn.NewLinear(nn.Lazy, 8, keys[0], nn.LinearConfig{})
	require.NoError(t, err)
	out, err := nn.NewLinear(8, 3, keys[1], nn.LinearConfig{})
	require.NoError(t, err)
	model, err := nn.NewSequential(hidden, nn.GELU(false), out)
	require.NoError(t, err)

	y, err := model.Forward(tensor.Ones(4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3}, y.Shape())

	_, err = model.Forward(tensor.Ones(5))
	assert.ErrorIs(t, err, nn.ErrInputFeatures)
}
