package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/born-ml/strata/internal/tensor"
)

// Format constants.
const (
	HeaderLengthSize = 8              // uint64 LE header length prefix
	HeaderAlignment  = 8              // JSON header is space-padded to this boundary
	MetadataKey      = "__metadata__" // reserved header key for string metadata
	ChecksumKey      = "strata.sha256"
	elementSize      = 8 // bytes per F64 or I64 value
)

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Header is the decoded SafeTensors header.
type Header struct {
	Tensors  []TensorMeta      // Sorted by Offset
	Metadata map[string]string // Contents of "__metadata__", never nil
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string // Tensor name (e.g., "layers.0.weight")
	DType  string // "F64" or "I64"
	Shape  []int  // Tensor shape
	Offset int64  // Offset in the data section (bytes from start of tensor data)
	Size   int64  // Size in bytes
}

// NumElements returns the number of values in the tensor.
func (m TensorMeta) NumElements() int {
	return tensor.Shape(m.Shape).NumElements()
}

// encodeTensor returns the little-endian bytes of t.
func encodeTensor(t *tensor.Tensor) []byte {
	values := t.Data()
	buf := make([]byte, len(values)*elementSize)
	for i, v := range values {
		var bits uint64
		if t.DType() == tensor.Int64 {
			bits = uint64(int64(v))
		} else {
			bits = math.Float64bits(v)
		}
		binary.LittleEndian.PutUint64(buf[i*elementSize:], bits)
	}
	return buf
}

// decodeTensor builds a tensor from the bytes described by meta.
func decodeTensor(meta TensorMeta, data []byte) (*tensor.Tensor, error) {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, fmt.Errorf("tensor %q: %w: %s", meta.Name, ErrUnsupportedDType, meta.DType)
	}
	n := meta.NumElements()
	if len(data) != n*elementSize {
		return nil, fmt.Errorf("tensor %q: %w: %d bytes for shape %v", meta.Name, ErrSizeMismatch, len(data), meta.Shape)
	}
	if dtype == tensor.Int64 {
		values := make([]int, n)
		for i := range values {
			values[i] = int(int64(binary.LittleEndian.Uint64(data[i*elementSize:])))
		}
		return tensor.FromInts(values, meta.Shape...), nil
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*elementSize:]))
	}
	return tensor.FromSlice(values, meta.Shape...), nil
}

// encodeHeader builds the padded JSON header for the given tensors, which
// must already carry their offsets.
func encodeHeader(tensors []TensorMeta, metadata map[string]string) ([]byte, error) {
	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header[MetadataKey] = metadata
	}
	for _, meta := range tensors {
		shape := make([]int64, len(meta.Shape))
		for i, dim := range meta.Shape {
			shape[i] = int64(dim)
		}
		header[meta.Name] = SafeTensorHeader{
			DType:       meta.DType,
			Shape:       shape,
			DataOffsets: [2]int64{meta.Offset, meta.Offset + meta.Size},
		}
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	for len(headerJSON)%HeaderAlignment != 0 {
		headerJSON = append(headerJSON, ' ')
	}
	return headerJSON, nil
}

// decodeHeader parses a JSON header. Entries are checked for a known dtype,
// non-negative dimensions and a byte range that matches the shape; offsets
// against the data section are left to ValidateHeader.
func decodeHeader(raw []byte) (Header, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	h := Header{Metadata: make(map[string]string)}
	if md, ok := entries[MetadataKey]; ok {
		if err := json.Unmarshal(md, &h.Metadata); err != nil {
			return Header{}, fmt.Errorf("%w: %s: %w", ErrInvalidHeader, MetadataKey, err)
		}
		delete(entries, MetadataKey)
	}
	if len(entries) > MaxTensorCount {
		return Header{}, &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount),
		}
	}

	h.Tensors = make([]TensorMeta, 0, len(entries))
	for name, msg := range entries {
		var entry SafeTensorHeader
		if err := json.Unmarshal(msg, &entry); err != nil {
			return Header{}, fmt.Errorf("%w: tensor %q: %w", ErrInvalidHeader, name, err)
		}
		meta, err := entry.meta(name)
		if err != nil {
			return Header{}, err
		}
		h.Tensors = append(h.Tensors, meta)
	}
	sort.Slice(h.Tensors, func(i, j int) bool {
		if h.Tensors[i].Offset != h.Tensors[j].Offset {
			return h.Tensors[i].Offset < h.Tensors[j].Offset
		}
		return h.Tensors[i].Name < h.Tensors[j].Name
	})
	return h, nil
}

func (e SafeTensorHeader) meta(name string) (TensorMeta, error) {
	if _, ok := tensor.ParseDataType(e.DType); !ok {
		return TensorMeta{}, &ValidationError{Type: "invalid_dtype", Tensor: name, Details: e.DType}
	}
	start, end := e.DataOffsets[0], e.DataOffsets[1]
	if start < 0 || end < start {
		return TensorMeta{}, &ValidationError{
			Type:    "negative_offset",
			Tensor:  name,
			Details: fmt.Sprintf("data_offsets [%d, %d]", start, end),
		}
	}
	shape := make([]int, len(e.Shape))
	elements := int64(1)
	for i, dim := range e.Shape {
		if dim < 0 || dim > math.MaxInt32 {
			return TensorMeta{}, &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("invalid dimension %d", dim),
			}
		}
		shape[i] = int(dim)
		elements *= dim
		if elements > math.MaxInt64/elementSize {
			return TensorMeta{}, &ValidationError{Type: "size_mismatch", Tensor: name, Details: "shape overflows"}
		}
	}
	if size := end - start; size != elements*elementSize {
		return TensorMeta{}, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  name,
			Details: fmt.Sprintf("shape %v needs %d bytes, data_offsets span %d", shape, elements*elementSize, size),
		}
	}
	return TensorMeta{Name: name, DType: e.DType, Shape: shape, Offset: start, Size: end - start}, nil
}

// layout assigns consecutive offsets to the tensors of stateDict in name
// order and returns their metadata with the concatenated data section.
func layout(stateDict map[string]*tensor.Tensor) ([]TensorMeta, []byte, error) {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	metas := make([]TensorMeta, 0, len(names))
	var data []byte
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		t := stateDict[name]
		if t == nil {
			return nil, nil, fmt.Errorf("tensor %q is nil", name)
		}
		buf := encodeTensor(t)
		metas = append(metas, TensorMeta{
			Name:   name,
			DType:  t.DType().String(),
			Shape:  []int(t.Shape()),
			Offset: int64(len(data)),
			Size:   int64(len(buf)),
		})
		data = append(data, buf...)
	}
	return metas, data, nil
}
