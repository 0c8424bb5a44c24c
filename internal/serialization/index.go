package serialization

import (
	"fmt"

	"github.com/born-ml/strata/internal/tensor"
)

// tensorIndex is the decoded header shared by the file readers, with the
// position of the data section in the file.
type tensorIndex struct {
	header     Header
	dataOffset int64
}

// Header returns the file header.
func (ix *tensorIndex) Header() Header { return ix.header }

// Metadata returns the string metadata of the file, including ChecksumKey
// when the writer recorded one.
func (ix *tensorIndex) Metadata() map[string]string { return ix.header.Metadata }

// TensorNames returns the tensor names in data-section order.
func (ix *tensorIndex) TensorNames() []string {
	names := make([]string, len(ix.header.Tensors))
	for i, meta := range ix.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the layout of the named tensor.
func (ix *tensorIndex) TensorInfo(name string) (*TensorMeta, error) {
	for i := range ix.header.Tensors {
		if ix.header.Tensors[i].Name == name {
			return &ix.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
}

// verify validates the header against a data section of dataSize bytes and,
// unless skipped, compares the recorded checksum with hash().
func (ix *tensorIndex) verify(dataSize int64, opts ReaderOptions, hash func() ([32]byte, error)) error {
	if err := ValidateHeader(&ix.header, dataSize, opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if opts.SkipChecksumValidation {
		return nil
	}
	stored, ok, err := storedChecksum(ix.header.Metadata)
	if err != nil || !ok {
		return err
	}
	computed, err := hash()
	if err != nil {
		return fmt.Errorf("hash data section: %w", err)
	}
	return ValidateChecksum(computed, stored)
}

// decodeAll decodes every tensor of h from an in-memory data section.
func decodeAll(h Header, section []byte) (map[string]*tensor.Tensor, error) {
	stateDict := make(map[string]*tensor.Tensor, len(h.Tensors))
	for _, meta := range h.Tensors {
		end := meta.Offset + meta.Size
		if meta.Offset < 0 || end > int64(len(section)) {
			return nil, fmt.Errorf("%w: tensor %q ends at %d, data section has %d bytes",
				ErrOutOfBounds, meta.Name, end, len(section))
		}
		t, err := decodeTensor(meta, section[meta.Offset:end])
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = t
	}
	return stateDict, nil
}
