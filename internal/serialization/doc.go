// Package serialization saves and loads layer parameters in the SafeTensors
// format.
//
//	File structure:
//	  [8 bytes: header size N (uint64 LE)]
//	  [N bytes: JSON header, space-padded to a multiple of 8]
//	  [tensor data: raw little-endian values]
//
// The header maps each tensor name to its dtype, shape and byte range in the
// data section, plus an optional "__metadata__" object of string pairs.
// Parameters are float64 tensors ("F64"); index tensors use "I64".
//
// Writers record the SHA-256 of the data section under the "strata.sha256"
// metadata key. Readers verify it when present, and validate every header
// entry (names, dtypes, offsets) before touching tensor data.
//
// Example usage:
//
//	layer, _ := nn.NewLinear(784, 128, random.NewKey(0), nn.LinearConfig{})
//	if err := serialization.Save("linear.safetensors", layer, nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	fresh, _ := nn.NewLinear(784, 128, random.NewKey(1), nn.LinearConfig{})
//	if err := serialization.Load("linear.safetensors", fresh); err != nil {
//	    log.Fatal(err)
//	}
package serialization
