// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 tensors used by the strata layer
// catalog.
//
// # Overview
//
// Tensors are immutable: every operation returns a new tensor and leaves its
// inputs untouched. Values are stored as float64 in row-major order; Int64
// tensors hold integral values and are used for indices.
//
// # Basic Usage
//
//	import "github.com/born-ml/strata/tensor"
//
//	func main() {
//	    x := tensor.FromSlice([]float64{1, 2, 3, 4}, 2, 2)
//	    y := tensor.Ones(2, 2)
//
//	    z := tensor.Add(x, y)
//	    w := tensor.MatMul(x, y.Transpose())
//	    fmt.Println(z.Shape(), w.Sum(false))
//	}
//
// # Shape Errors
//
// Operations panic on shape misuse, the way slice indexing does. The layers
// in package nn validate their inputs first and return errors instead.
package tensor
