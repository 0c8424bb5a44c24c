package serialization

import (
	"errors"
	"strings"
	"testing"
)

// linearLayout is the layout WriteTo produces for a Linear(4, 3) state dict.
func linearLayout() []TensorMeta {
	return []TensorMeta{
		{Name: "bias", DType: "F64", Shape: []int{3}, Offset: 0, Size: 24},
		{Name: "weight", DType: "F64", Shape: []int{4, 3}, Offset: 24, Size: 96},
	}
}

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		want     error
	}{
		{"linear layout", linearLayout(), 120, nil},
		{"unsorted input", []TensorMeta{linearLayout()[1], linearLayout()[0]}, 120, nil},
		{"touching ranges", []TensorMeta{{Name: "a", Size: 8}, {Name: "b", Offset: 8, Size: 8}}, 16, nil},
		{"empty", nil, 0, nil},
		{"overlap by one byte", []TensorMeta{{Name: "a", Size: 9}, {Name: "b", Offset: 8, Size: 8}}, 16, ErrOffsetOverlap},
		{"past the data section", linearLayout(), 119, ErrOutOfBounds},
		{"offset beyond data", []TensorMeta{{Name: "a", Offset: 1000, Size: 8}}, 500, ErrOutOfBounds},
		{"negative offset", []TensorMeta{{Name: "a", Offset: -8, Size: 8}}, 16, ErrNegativeOffset},
		{"negative size", []TensorMeta{{Name: "a", Size: -8}}, 16, ErrNegativeOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateTensorOffsets_OverlapNamesBothTensors(t *testing.T) {
	err := ValidateTensorOffsets([]TensorMeta{
		{Name: "weight", Offset: 16, Size: 16},
		{Name: "bias", Offset: 0, Size: 24},
	}, 32)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Tensor != "bias" || verr.Tensor2 != "weight" {
		t.Errorf("got tensors %q and %q, want bias and weight", verr.Tensor, verr.Tensor2)
	}
}

func TestValidateTensorOffsets_TooManyTensors(t *testing.T) {
	tensors := make([]TensorMeta, MaxTensorCount+1)
	for i := range tensors {
		tensors[i] = TensorMeta{Name: "t", Offset: int64(i) * 8, Size: 8}
	}
	err := ValidateTensorOffsets(tensors, int64(len(tensors))*8)
	if !errors.Is(err, ErrTooManyTensors) {
		t.Fatalf("expected ErrTooManyTensors, got %v", err)
	}
}

func TestValidateTensorName(t *testing.T) {
	for _, name := range []string{
		"weight",
		"layers.0.weight",
		"layers.2.cell.in_to_hidden.weight",
		"pointwise.bias",
		"q_projection.weight",
		"embedding-matrix",
		"UPPER_123",
	} {
		if err := ValidateTensorName(name); err != nil {
			t.Errorf("ValidateTensorName(%q): %v", name, err)
		}
	}

	bad := map[string]error{
		"":                        ErrInvalidTensorName,
		MetadataKey:               ErrInvalidTensorName,
		"../../etc/passwd":        ErrInvalidTensorName,
		`..\windows`:              ErrInvalidTensorName,
		"layers/0/weight":         ErrInvalidTensorName,
		`layers\0\weight`:         ErrInvalidTensorName,
		"weight\x00hidden":        ErrInvalidTensorName,
		strings.Repeat("w", 4097): ErrTensorNameTooLong,
	}
	for name, want := range bad {
		if err := ValidateTensorName(name); !errors.Is(err, want) {
			t.Errorf("ValidateTensorName(%.20q): got %v, want %v", name, err, want)
		}
	}
}

func TestValidateHeader(t *testing.T) {
	overlapping := Header{Tensors: []TensorMeta{{Name: "a", Size: 16}, {Name: "b", Offset: 8, Size: 16}}}
	traversal := Header{Tensors: []TensorMeta{{Name: "../x", Offset: -8, Size: -8}}}
	bigMetadata := Header{Metadata: map[string]string{"notes": strings.Repeat("x", MaxMetadataSize)}}

	tests := []struct {
		name   string
		header Header
		level  ValidationLevel
		want   error
	}{
		{"strict accepts a linear layout", Header{Tensors: linearLayout()}, ValidationStrict, nil},
		{"strict rejects overlap", overlapping, ValidationStrict, ErrOffsetOverlap},
		{"normal skips offsets", overlapping, ValidationNormal, nil},
		{"normal checks names", traversal, ValidationNormal, ErrInvalidTensorName},
		{"none skips everything", traversal, ValidationNone, nil},
		{"strict metadata size", bigMetadata, ValidationStrict, ErrMetadataTooLarge},
		{"normal metadata size", bigMetadata, ValidationNormal, ErrMetadataTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(&tt.header, 120, tt.level)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		err  *ValidationError
		want string
	}{
		{
			&ValidationError{Type: "out_of_bounds", Tensor: "weight", Details: "ends at 128, data section has 120 bytes"},
			`out_of_bounds: tensor "weight": ends at 128, data section has 120 bytes`,
		},
		{
			&ValidationError{Type: "offset_overlap", Tensor: "bias", Tensor2: "weight", Details: "[0, 24) and [16, 32)"},
			`offset_overlap: tensors "bias" and "weight": [0, 24) and [16, 32)`,
		},
		{
			&ValidationError{Type: "too_many_tensors", Details: "100001, max 100000"},
			"too_many_tensors: 100001, max 100000",
		},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %s, want %s", got, tt.want)
		}
	}
}

func FuzzValidateTensorName(f *testing.F) {
	f.Add("layers.0.weight")
	f.Add("../weight")
	f.Add("layers/0")
	f.Add("\x00")
	f.Add(strings.Repeat("w", MaxTensorNameLen))

	f.Fuzz(func(_ *testing.T, name string) {
		_ = ValidateTensorName(name)
	})
}

func FuzzValidateTensorOffsets(f *testing.F) {
	f.Add(int64(0), int64(24), int64(120))
	f.Add(int64(-8), int64(8), int64(120))
	f.Add(int64(8), int64(-8), int64(120))

	f.Fuzz(func(_ *testing.T, offset, size, dataSize int64) {
		_ = ValidateTensorOffsets([]TensorMeta{{Name: "weight", Offset: offset, Size: size}}, dataSize)
	})
}
