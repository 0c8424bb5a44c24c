package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"

	"github.com/born-ml/strata/internal/tensor"
)

// SafeTensorsWriter writes one state dict to a file.
type SafeTensorsWriter struct {
	file   *os.File
	closed bool
}

// NewSafeTensorsWriter creates or truncates path.
func NewSafeTensorsWriter(path string) (*SafeTensorsWriter, error) {
	file, err := os.Create(path) //nolint:gosec // G304: user-supplied model path
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return &SafeTensorsWriter{file: file}, nil
}

// WriteSafeTensors writes stateDict to path. The file is written next to
// path under a temporary name and renamed into place, so a failed write
// never leaves a partial file at path.
func WriteSafeTensors(path string, stateDict map[string]*tensor.Tensor, metadata map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	w := &SafeTensorsWriter{file: tmp}
	err = w.WriteStateDict(stateDict, metadata)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// WriteStateDict writes stateDict with metadata. See WriteTo.
func (w *SafeTensorsWriter) WriteStateDict(stateDict map[string]*tensor.Tensor, metadata map[string]string) error {
	if w.closed {
		return fmt.Errorf("writer: %w", ErrClosed)
	}
	return WriteTo(w.file, stateDict, metadata)
}

// Close flushes and closes the file. It is safe to call more than once.
func (w *SafeTensorsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("sync: %w", err)
	}
	return w.file.Close()
}

// WriteTo encodes stateDict to writer.
//
// Tensors are laid out in name order. The SHA-256 of the data section is
// added under ChecksumKey to a copy of metadata. Nothing is written when
// a name or the header is invalid.
func WriteTo(writer io.Writer, stateDict map[string]*tensor.Tensor, metadata map[string]string) error {
	tensors, data, err := layout(stateDict)
	if err != nil {
		return err
	}

	md := maps.Clone(metadata)
	if md == nil {
		md = make(map[string]string, 1)
	}
	md[ChecksumKey] = FormatChecksum(ComputeChecksum(data))

	header, err := encodeHeader(tensors, md)
	if err != nil {
		return err
	}
	if len(header) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(header))
	}

	prefix := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	for _, chunk := range [][]byte{prefix, header, data} {
		if _, err := writer.Write(chunk); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return nil
}
