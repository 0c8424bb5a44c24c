package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Limits applied to untrusted files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB, the SafeTensors limit
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
	MaxMetadataSize  = 10 * 1024 * 1024 // sum of key and value lengths
)

// ValidationLevel controls which header checks readers run.
type ValidationLevel int

const (
	// ValidationStrict runs every check (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal skips the offset checks.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateTensorOffsets checks that the byte ranges of tensors lie inside a
// data section of dataSize bytes and do not overlap.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if err := checkTensorCount(len(tensors)); err != nil {
		return err
	}

	sorted := slices.SortedFunc(slices.Values(tensors), func(a, b TensorMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	for i, t := range sorted {
		end := t.Offset + t.Size
		switch {
		case t.Offset < 0 || t.Size < 0:
			return &ValidationError{Type: "negative_offset", Tensor: t.Name,
				Details: fmt.Sprintf("offset %d, size %d", t.Offset, t.Size)}
		case end > dataSize:
			return &ValidationError{Type: "out_of_bounds", Tensor: t.Name,
				Details: fmt.Sprintf("ends at %d, data section has %d bytes", end, dataSize)}
		case i+1 < len(sorted) && end > sorted[i+1].Offset:
			next := sorted[i+1]
			return &ValidationError{Type: "offset_overlap", Tensor: t.Name, Tensor2: next.Name,
				Details: fmt.Sprintf("[%d, %d) and [%d, %d)", t.Offset, end, next.Offset, next.Offset+next.Size)}
		}
	}
	return nil
}

// nameRules reject names that could escape a directory when a state dict
// is unpacked to files.
var nameRules = []struct {
	bad    func(string) bool
	reason string
}{
	{func(s string) bool { return s == "" }, "empty name"},
	{func(s string) bool { return s == MetadataKey }, "reserved for file metadata"},
	{func(s string) bool { return strings.Contains(s, "..") }, "contains \"..\""},
	{func(s string) bool { return strings.ContainsAny(s, `/\`) }, "contains a path separator"},
	{func(s string) bool { return strings.ContainsRune(s, 0) }, "contains a NUL byte"},
}

// ValidateTensorName checks a parameter name such as "layers.0.weight".
func ValidateTensorName(name string) error {
	if len(name) > MaxTensorNameLen {
		return &ValidationError{Type: "name_too_long", Tensor: name[:32] + "...",
			Details: fmt.Sprintf("%d bytes, max %d", len(name), MaxTensorNameLen)}
	}
	for _, rule := range nameRules {
		if rule.bad(name) {
			return &ValidationError{Type: "invalid_name", Tensor: name, Details: rule.reason}
		}
	}
	return nil
}

// ValidateHeader checks h against a data section of dataSize bytes.
// ValidationNormal checks counts, names and metadata size; ValidationStrict
// also checks offsets.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if err := checkTensorCount(len(h.Tensors)); err != nil {
		return err
	}
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
	}

	size := 0
	for k, v := range h.Metadata {
		size += len(k) + len(v)
	}
	if size > MaxMetadataSize {
		return &ValidationError{Type: "metadata_too_large",
			Details: fmt.Sprintf("%d bytes, max %d", size, MaxMetadataSize)}
	}

	if level == ValidationStrict {
		return ValidateTensorOffsets(h.Tensors, dataSize)
	}
	return nil
}

func checkTensorCount(n int) error {
	if n > MaxTensorCount {
		return &ValidationError{Type: "too_many_tensors", Details: fmt.Sprintf("%d, max %d", n, MaxTensorCount)}
	}
	return nil
}
