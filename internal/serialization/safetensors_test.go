package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/born-ml/strata/internal/nn"
	"github.com/born-ml/strata/internal/random"
	"github.com/born-ml/strata/internal/tensor"
)

func testStateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight":  tensor.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3),
		"bias":    tensor.FromSlice([]float64{0.1, -0.2, 0.3}, 3),
		"indices": tensor.FromInts([]int{4, -1, 7}, 3),
		"scale":   tensor.Scalar(2.5),
	}
}

func assertSameStateDict(t *testing.T, want, got map[string]*tensor.Tensor) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d tensors, got %d", len(want), len(got))
	}
	for name, w := range want {
		g, ok := got[name]
		if !ok {
			t.Errorf("Tensor %q missing", name)
			continue
		}
		if !g.Shape().Equal(w.Shape()) {
			t.Errorf("Tensor %q: shape %v, want %v", name, g.Shape(), w.Shape())
		}
		if g.DType() != w.DType() {
			t.Errorf("Tensor %q: dtype %v, want %v", name, g.DType(), w.DType())
		}
		if !reflect.DeepEqual(g.Data(), w.Data()) {
			t.Errorf("Tensor %q: data %v, want %v", name, g.Data(), w.Data())
		}
	}
}

// TestSafeTensorsRoundTrip tests write -> read for F64 and I64 tensors.
func TestSafeTensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.safetensors")
	stateDict := testStateDict()
	metadata := map[string]string{"framework": "strata"}

	if err := WriteSafeTensors(path, stateDict, metadata); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}
	if len(metadata) != 1 {
		t.Errorf("Caller metadata should not be modified, got %v", metadata)
	}

	reader, err := NewSafeTensorsReader(path)
	if err != nil {
		t.Fatalf("NewSafeTensorsReader failed: %v", err)
	}
	defer reader.Close()

	want := []string{"bias", "indices", "scale", "weight"}
	if got := reader.TensorNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("TensorNames() = %v, want %v", got, want)
	}
	if reader.Metadata()["framework"] != "strata" {
		t.Errorf("Metadata lost: %v", reader.Metadata())
	}
	if _, ok := reader.Metadata()[ChecksumKey]; !ok {
		t.Errorf("Expected %s in metadata", ChecksumKey)
	}

	info, err := reader.TensorInfo("indices")
	if err != nil {
		t.Fatalf("TensorInfo failed: %v", err)
	}
	if info.DType != "I64" || info.Size != 24 || info.Offset != 24 {
		t.Errorf("Unexpected info for indices: %+v", *info)
	}

	got, err := reader.ReadStateDict()
	if err != nil {
		t.Fatalf("ReadStateDict failed: %v", err)
	}
	assertSameStateDict(t, stateDict, got)

	if _, err := reader.LoadTensor("missing"); !errors.Is(err, ErrTensorNotFound) {
		t.Errorf("Expected ErrTensorNotFound, got %v", err)
	}
	_ = reader.Close()
	if _, err := reader.ReadStateDict(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

// TestSafeTensorsLayout checks the on-disk layout byte by byte.
func TestSafeTensorsLayout(t *testing.T) {
	var buf bytes.Buffer
	stateDict := map[string]*tensor.Tensor{"a": tensor.FromSlice([]float64{1.5}, 1)}
	if err := WriteTo(&buf, stateDict, nil); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	raw := buf.Bytes()

	n := binary.LittleEndian.Uint64(raw[:HeaderLengthSize])
	if n%HeaderAlignment != 0 {
		t.Errorf("Header length %d is not a multiple of %d", n, HeaderAlignment)
	}
	if got := uint64(len(raw)) - HeaderLengthSize - n; got != 8 {
		t.Errorf("Expected 8 data bytes, got %d", got)
	}
	data := raw[HeaderLengthSize+n:]
	want := []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f} // 1.5 as float64 LE
	if !bytes.Equal(data, want) {
		t.Errorf("Data = %x, want %x", data, want)
	}

	got, header, err := ReadBytes(raw)
	if err != nil {
		t.Fatalf("ReadBytes failed: %v", err)
	}
	assertSameStateDict(t, stateDict, got)
	if len(header.Tensors) != 1 || header.Tensors[0].Name != "a" {
		t.Errorf("Unexpected header: %+v", header)
	}
}

// TestSafeTensorsChecksumMismatch detects corrupted tensor data.
func TestSafeTensorsChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.safetensors")
	if err := WriteSafeTensors(path, testStateDict(), nil); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSafeTensorsReader(path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got %v", err)
	}
	if _, err := NewMmapReader(path); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("MmapReader: expected ErrChecksumMismatch, got %v", err)
	}
	if _, _, err := ReadBytes(raw); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("ReadBytes: expected ErrChecksumMismatch, got %v", err)
	}

	reader, err := NewSafeTensorsReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	if err != nil {
		t.Fatalf("Skipping the checksum should open the file, got %v", err)
	}
	_ = reader.Close()
}

// encodeRaw builds a file from a hand-written JSON header and data section.
func encodeRaw(header string, data []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(header)))
	buf.WriteString(header)
	buf.Write(data)
	return buf.Bytes()
}

// TestReadFrom_MalformedHeaders tests that bad headers are rejected before
// any tensor data is decoded.
func TestReadFrom_MalformedHeaders(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		data    []byte
		wantErr error
	}{
		{
			name:    "not json",
			header:  "{oops",
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "unknown dtype",
			header:  `{"w":{"dtype":"F16","shape":[1],"data_offsets":[0,2]}}`,
			data:    make([]byte, 2),
			wantErr: ErrUnsupportedDType,
		},
		{
			name:    "size does not match shape",
			header:  `{"w":{"dtype":"F64","shape":[2],"data_offsets":[0,8]}}`,
			data:    make([]byte, 8),
			wantErr: ErrSizeMismatch,
		},
		{
			name:    "reversed offsets",
			header:  `{"w":{"dtype":"F64","shape":[1],"data_offsets":[8,0]}}`,
			data:    make([]byte, 8),
			wantErr: ErrNegativeOffset,
		},
		{
			name:    "beyond data section",
			header:  `{"w":{"dtype":"F64","shape":[2],"data_offsets":[0,16]}}`,
			data:    make([]byte, 8),
			wantErr: ErrOutOfBounds,
		},
		{
			name: "overlapping tensors",
			header: `{"a":{"dtype":"F64","shape":[2],"data_offsets":[0,16]},` +
				`"b":{"dtype":"F64","shape":[1],"data_offsets":[8,16]}}`,
			data:    make([]byte, 16),
			wantErr: ErrOffsetOverlap,
		},
		{
			name:    "path in name",
			header:  `{"../w":{"dtype":"F64","shape":[1],"data_offsets":[0,8]}}`,
			data:    make([]byte, 8),
			wantErr: ErrInvalidTensorName,
		},
		{
			name:    "bad checksum value",
			header:  `{"__metadata__":{"strata.sha256":"nope"}}`,
			wantErr: ErrInvalidHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadBytes(encodeRaw(tt.header, tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReadFrom_HeaderTooLarge(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint64(MaxHeaderSize+1))
	if _, _, err := ReadFrom(&buf); !errors.Is(err, ErrHeaderTooLarge) {
		t.Errorf("Expected ErrHeaderTooLarge, got %v", err)
	}
}

func TestReadFrom_Truncated(t *testing.T) {
	raw := encodeRaw(`{"w":{"dtype":"F64","shape":[1],"data_offsets":[0,8]}}`, make([]byte, 8))
	for _, n := range []int{0, 4, HeaderLengthSize + 10} {
		if _, _, err := ReadBytes(raw[:n]); !errors.Is(err, ErrInvalidHeader) {
			t.Errorf("%d bytes: expected ErrInvalidHeader, got %v", n, err)
		}
	}
	if _, _, err := ReadBytes(raw[:len(raw)-1]); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("short data section: expected ErrOutOfBounds, got %v", err)
	}
}

// TestWriteTo_InvalidName refuses to write names readers would reject.
func TestWriteTo_InvalidName(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTo(&buf, map[string]*tensor.Tensor{"a/b": tensor.Ones(1)}, nil)
	if !errors.Is(err, ErrInvalidTensorName) {
		t.Errorf("Expected ErrInvalidTensorName, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Nothing should be written on error, got %d bytes", buf.Len())
	}
}

func TestMmapReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mmap.safetensors")
	stateDict := testStateDict()
	if err := WriteSafeTensors(path, stateDict, nil); err != nil {
		t.Fatalf("WriteSafeTensors failed: %v", err)
	}

	reader, err := NewMmapReader(path)
	if err != nil {
		t.Fatalf("NewMmapReader failed: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadStateDict()
	if err != nil {
		t.Fatalf("ReadStateDict failed: %v", err)
	}
	assertSameStateDict(t, stateDict, got)

	view, err := reader.TensorData("scale")
	if err != nil {
		t.Fatalf("TensorData failed: %v", err)
	}
	dup, err := reader.TensorDataCopy("scale")
	if err != nil {
		t.Fatalf("TensorDataCopy failed: %v", err)
	}
	if !bytes.Equal(view, dup) || len(dup) != 8 {
		t.Errorf("TensorDataCopy = %x, want %x", dup, view)
	}

	if err := reader.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if _, err := reader.TensorData("scale"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestMmapReader_TooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.safetensors")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMmapReader(path); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("Expected ErrInvalidHeader, got %v", err)
	}
}

// TestSaveLoad tests a module round trip through a file.
func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linear.safetensors")

	src, err := nn.NewLinear(3, 2, random.NewKey(0), nn.LinearConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(path, src, map[string]string{"layer": "linear"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	dst, err := nn.NewLinear(3, 2, random.NewKey(1), nn.LinearConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Load(path, dst); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertSameStateDict(t, nn.StateDict(src), nn.StateDict(dst))

	x := tensor.FromSlice([]float64{1, -2, 0.5}, 3)
	want, _ := src.Forward(x)
	got, _ := dst.Forward(x)
	if !reflect.DeepEqual(want.Data(), got.Data()) {
		t.Errorf("Loaded layer output %v, want %v", got.Data(), want.Data())
	}

	wider, err := nn.NewLinear(4, 2, random.NewKey(0), nn.LinearConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Load(path, wider); !errors.Is(err, nn.ErrParameterShape) {
		t.Errorf("Expected nn.ErrParameterShape, got %v", err)
	}

	noBias, err := nn.NewLinear(3, 2, random.NewKey(0), nn.LinearConfig{BiasInit: nn.NoInit()})
	if err != nil {
		t.Fatal(err)
	}
	if err := Load(path, noBias); !errors.Is(err, nn.ErrUnexpectedParameter) {
		t.Errorf("Expected nn.ErrUnexpectedParameter, got %v", err)
	}

	if err := Load(filepath.Join(t.TempDir(), "missing.safetensors"), dst); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

// TestWriteSafeTensors_FailureLeavesNoFile tests that a rejected state dict
// leaves neither the target nor a temporary file behind.
func TestWriteSafeTensors_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.safetensors")
	err := WriteSafeTensors(path, map[string]*tensor.Tensor{"": tensor.Ones(2)}, nil)
	if !errors.Is(err, ErrInvalidTensorName) {
		t.Fatalf("Expected ErrInvalidTensorName, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected an empty directory, found %d entries", len(entries))
	}
}

func TestSafeTensorsWriter_Closed(t *testing.T) {
	w, err := NewSafeTensorsWriter(filepath.Join(t.TempDir(), "w.safetensors"))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
	if err := w.WriteStateDict(testStateDict(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
