// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the strata layer catalog.
//
// # Overview
//
// This package contains:
//   - Linear layers: Linear, Bilinear, Multilinear, GeneralLinear, Embedding, FNN/MLP
//   - Convolutions: Conv (1D/2D/3D, transpose, depthwise, separable, FFT), LocalConv, SpectralConv
//   - Pooling: MaxPool, AvgPool, LPPool, global and adaptive pools
//   - Normalization: LayerNorm, RMSNorm, GroupNorm, InstanceNorm, BatchNorm, WeightNorm
//   - Recurrent cells: SimpleRNN, LSTM, GRU, Dense, ConvLSTM, ConvGRU, ScanRNN
//   - Attention: DotProductAttention, MultiHeadAttention
//   - Regularization: Dropout, DropoutND, RandomCutout
//   - Spatial: Crop, CenterCrop, RandomCrop, Pad, Resize, Upsample, RandomZoom, Flatten
//   - Containers: Sequential, RandomApply, Eval
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/strata/nn"
//	    "github.com/born-ml/strata/random"
//	    "github.com/born-ml/strata/tensor"
//	)
//
//	func main() {
//	    keys := random.NewKey(0).Split(2)
//	    hidden, _ := nn.NewLinear(784, 128, keys[0], nn.LinearConfig{})
//	    out, _ := nn.NewLinear(128, 10, keys[1], nn.LinearConfig{})
//	    model, _ := nn.NewSequential(hidden, nn.ReLU(), out)
//
//	    logits, err := model.Forward(tensor.Zeros(784))
//	    ...
//	}
//
// # Lazy Layers
//
// Passing nn.Lazy as the input feature count defers parameter creation to
// the first call, which reads the size from the input.
//
// # Errors
//
// Constructors and Forward return errors that wrap the sentinels of this
// package (ErrInvalidArgument, ErrInputRank, ...); match them with errors.Is.
package nn
