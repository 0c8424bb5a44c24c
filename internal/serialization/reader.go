package serialization

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/strata/internal/tensor"
)

// SafeTensorsReader reads tensors from a SafeTensors file with positioned
// reads. Only the header is kept in memory.
type SafeTensorsReader struct {
	tensorIndex
	file     *os.File
	dataSize int64
	closed   bool
}

// ReaderOptions configures header validation for the readers.
type ReaderOptions struct {
	SkipChecksumValidation bool // do not hash the data section on open
	ValidationLevel        ValidationLevel
}

// NewSafeTensorsReader opens path with strict validation.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return NewSafeTensorsReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewSafeTensorsReaderWithOptions opens path with custom options.
func NewSafeTensorsReaderWithOptions(path string, opts ReaderOptions) (*SafeTensorsReader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: user-supplied model path
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	r := &SafeTensorsReader{file: file}
	if err := r.init(opts); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func (r *SafeTensorsReader) init(opts ReaderOptions) error {
	header, headerSize, err := readHeader(r.file)
	if err != nil {
		return err
	}
	r.header, r.dataOffset = header, HeaderLengthSize+headerSize

	stat, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	r.dataSize = stat.Size() - r.dataOffset
	return r.verify(r.dataSize, opts, func() ([32]byte, error) {
		return ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, r.dataSize))
	})
}

// readHeader reads the length prefix and the JSON header from r. It returns
// the header and its length in bytes, excluding the prefix.
func readHeader(r io.Reader) (Header, int64, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return Header{}, 0, fmt.Errorf("%w: read length prefix: %v", ErrInvalidHeader, err)
	}
	if n > MaxHeaderSize {
		return Header{}, 0, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, 0, fmt.Errorf("%w: read %d header bytes: %v", ErrInvalidHeader, n, err)
	}
	header, err := decodeHeader(raw)
	if err != nil {
		return Header{}, 0, err
	}
	return header, int64(n), nil
}

// ReadTensorData reads the raw bytes of the named tensor.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("reader: %w", ErrClosed)
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(data, r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("read tensor %q: %w", name, err)
	}
	return data, nil
}

// LoadTensor reads and decodes the named tensor.
func (r *SafeTensorsReader) LoadTensor(name string) (*tensor.Tensor, error) {
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}
	meta, _ := r.TensorInfo(name)
	return decodeTensor(*meta, data)
}

// ReadStateDict reads every tensor in the file.
func (r *SafeTensorsReader) ReadStateDict() (map[string]*tensor.Tensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader: %w", ErrClosed)
	}
	stateDict := make(map[string]*tensor.Tensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = t
	}
	return stateDict, nil
}

// Close closes the file. It is safe to call more than once.
func (r *SafeTensorsReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadFrom reads a complete SafeTensors stream with strict validation.
func ReadFrom(reader io.Reader) (map[string]*tensor.Tensor, Header, error) {
	header, _, err := readHeader(reader)
	if err != nil {
		return nil, Header{}, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, Header{}, fmt.Errorf("read data section: %w", err)
	}
	ix := tensorIndex{header: header}
	err = ix.verify(int64(len(data)), ReaderOptions{ValidationLevel: ValidationStrict}, func() ([32]byte, error) {
		return ComputeChecksum(data), nil
	})
	if err != nil {
		return nil, Header{}, err
	}
	stateDict, err := decodeAll(header, data)
	if err != nil {
		return nil, Header{}, err
	}
	return stateDict, header, nil
}

// ReadBytes is ReadFrom over an in-memory file.
func ReadBytes(b []byte) (map[string]*tensor.Tensor, Header, error) {
	return ReadFrom(bytes.NewReader(b))
}
