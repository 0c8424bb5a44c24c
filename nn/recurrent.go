// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/random"
)

// State is the carried state of a recurrent cell.
type State = nn.State

// Cell is one step of a recurrent network.
type Cell = nn.Cell

// Cell states.
type (
	SimpleRNNState = nn.SimpleRNNState
	LSTMState      = nn.LSTMState
	GRUState       = nn.GRUState
	DenseState     = nn.DenseState
	ConvLSTMState  = nn.ConvLSTMState
	ConvGRUState   = nn.ConvGRUState
)

// Cells.
type (
	RecurrentConfig     = nn.RecurrentConfig
	ConvRecurrentConfig = nn.ConvRecurrentConfig
	SimpleRNNCell       = nn.SimpleRNNCell
	LSTMCell            = nn.LSTMCell
	GRUCell             = nn.GRUCell
	DenseCell           = nn.DenseCell
	ConvLSTMCell        = nn.ConvLSTMCell
	ConvGRUCell         = nn.ConvGRUCell
	ScanRNN             = nn.ScanRNN
)

func NewSimpleRNNCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*SimpleRNNCell, error) {
	return nn.NewSimpleRNNCell(inFeatures, hiddenFeatures, key, cfg)
}

func NewLSTMCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*LSTMCell, error) {
	return nn.NewLSTMCell(inFeatures, hiddenFeatures, key, cfg)
}

func NewGRUCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*GRUCell, error) {
	return nn.NewGRUCell(inFeatures, hiddenFeatures, key, cfg)
}

func NewDenseCell(inFeatures, hiddenFeatures int, key random.Key, cfg RecurrentConfig) (*DenseCell, error) {
	return nn.NewDenseCell(inFeatures, hiddenFeatures, key, cfg)
}

func NewConvLSTMCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvLSTMCell, error) {
	return nn.NewConvLSTMCell(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

func NewFFTConvLSTMCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvLSTMCell, error) {
	return nn.NewFFTConvLSTMCell(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

func NewConvGRUCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvGRUCell, error) {
	return nn.NewConvGRUCell(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

func NewFFTConvGRUCell(ndim, inFeatures, outFeatures int, kernel []int, key random.Key, cfg ConvRecurrentConfig) (*ConvGRUCell, error) {
	return nn.NewFFTConvGRUCell(ndim, inFeatures, outFeatures, kernel, key, cfg)
}

// NewScanRNN runs cell over the leading time axis. A non-nil backward cell
// makes the network bidirectional; its outputs are concatenated along the
// feature axis.
func NewScanRNN(cell, backward Cell, returnSequences bool) (*ScanRNN, error) {
	return nn.NewScanRNN(cell, backward, returnSequences)
}
