// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package serialization saves and loads layer parameters as SafeTensors
// files.
//
//	if err := serialization.Save("model.safetensors", model, nil); err != nil {
//	    log.Fatal(err)
//	}
package serialization

import (
	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/serialization"
	"github.com/born-ml/strata/internal/tensor"
)

// Header is a decoded SafeTensors header.
type Header = serialization.Header

// TensorMeta describes one tensor in a file.
type TensorMeta = serialization.TensorMeta

// ValidationError describes a rejected header entry.
type ValidationError = serialization.ValidationError

// Reader reads tensors from a file on demand.
type Reader = serialization.SafeTensorsReader

// MmapReader reads tensors from a memory-mapped file.
type MmapReader = serialization.MmapReader

// ErrChecksumMismatch reports corrupted tensor data.
var ErrChecksumMismatch = serialization.ErrChecksumMismatch

// Save writes the parameters of m to path.
func Save(path string, m nn.Module, metadata map[string]string) error {
	return serialization.Save(path, m, metadata)
}

// Load replaces the parameters of m with those stored at path.
func Load(path string, m nn.Module) error { return serialization.Load(path, m) }

// WriteSafeTensors writes a state dictionary to path.
func WriteSafeTensors(path string, stateDict map[string]*tensor.Tensor, metadata map[string]string) error {
	return serialization.WriteSafeTensors(path, stateDict, metadata)
}

// Open opens path for reading with strict validation.
func Open(path string) (*Reader, error) { return serialization.NewSafeTensorsReader(path) }

// OpenMmap memory-maps path for reading with strict validation.
func OpenMmap(path string) (*MmapReader, error) { return serialization.NewMmapReader(path) }
