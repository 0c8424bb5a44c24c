package serialization

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"github.com/born-ml/strata/internal/tensor"
)

// MmapReader maps a SafeTensors file into memory. Opening decodes only the
// header; tensor bytes are paged in by the OS when read.
//
// Always Close the reader to unmap the file.
type MmapReader struct {
	tensorIndex
	file   *os.File
	data   []byte // whole file, read-only
	closed bool
}

// NewMmapReader maps path with strict validation.
func NewMmapReader(path string) (*MmapReader, error) {
	return NewMmapReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewMmapReaderWithOptions maps path with custom options.
func NewMmapReaderWithOptions(path string, opts ReaderOptions) (*MmapReader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: user-supplied model path
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}
	if stat.Size() < HeaderLengthSize {
		_ = file.Close()
		return nil, fmt.Errorf("%w: file has %d bytes", ErrInvalidHeader, stat.Size())
	}
	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap: %w", err)
	}

	r := &MmapReader{file: file, data: data}
	header, headerSize, err := readHeader(bytes.NewReader(data))
	if err == nil {
		r.header, r.dataOffset = header, HeaderLengthSize+headerSize
		section := r.section()
		err = r.verify(int64(len(section)), opts, func() ([32]byte, error) {
			return ComputeChecksum(section), nil
		})
	}
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *MmapReader) section() []byte { return r.data[r.dataOffset:] }

// Close unmaps and closes the file. It is safe to call more than once.
func (r *MmapReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := munmapFile(r.data)
	r.data = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// TensorData returns the bytes of the named tensor without copying. The
// slice is read-only and valid until Close.
func (r *MmapReader) TensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("mmap reader: %w", ErrClosed)
	}
	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	section := r.section()
	if end := meta.Offset + meta.Size; meta.Offset < 0 || end > int64(len(section)) {
		return nil, fmt.Errorf("%w: tensor %q ends at %d, data section has %d bytes",
			ErrOutOfBounds, name, end, len(section))
	}
	return section[meta.Offset : meta.Offset+meta.Size], nil
}

// TensorDataCopy is TensorData into a fresh slice that outlives the reader.
func (r *MmapReader) TensorDataCopy(name string) ([]byte, error) {
	data, err := r.TensorData(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(data), nil
}

// LoadTensor decodes the named tensor.
func (r *MmapReader) LoadTensor(name string) (*tensor.Tensor, error) {
	data, err := r.TensorData(name)
	if err != nil {
		return nil, err
	}
	meta, _ := r.TensorInfo(name)
	return decodeTensor(*meta, data)
}

// ReadStateDict decodes every tensor in the file.
func (r *MmapReader) ReadStateDict() (map[string]*tensor.Tensor, error) {
	if r.closed {
		return nil, fmt.Errorf("mmap reader: %w", ErrClosed)
	}
	return decodeAll(r.header, r.section())
}
