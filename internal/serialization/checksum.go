package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Files written by this package record the SHA-256 of their data section
// under ChecksumKey in the header metadata. Files from other writers carry
// no checksum and are read without one.

// ComputeChecksum returns the SHA-256 of a data section.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ComputeChecksumReader hashes r without buffering it in memory.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	var sum [32]byte
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return sum, err
	}
	h.Sum(sum[:0])
	return sum, nil
}

// ValidateChecksum returns ErrChecksumMismatch unless computed == stored.
func ValidateChecksum(computed, stored [32]byte) error {
	if computed != stored {
		return fmt.Errorf("%w: data section hashes to %s, header records %s",
			ErrChecksumMismatch, FormatChecksum(computed)[:12], FormatChecksum(stored)[:12])
	}
	return nil
}

// FormatChecksum returns the lowercase hex form stored in metadata.
func FormatChecksum(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}

// ParseChecksum is the inverse of FormatChecksum.
func ParseChecksum(s string) ([32]byte, error) {
	var sum [32]byte
	if len(s) != hex.EncodedLen(len(sum)) {
		return [32]byte{}, fmt.Errorf("%w: malformed %s %q", ErrInvalidHeader, ChecksumKey, s)
	}
	if _, err := hex.Decode(sum[:], []byte(s)); err != nil {
		return [32]byte{}, fmt.Errorf("%w: malformed %s %q", ErrInvalidHeader, ChecksumKey, s)
	}
	return sum, nil
}

func storedChecksum(metadata map[string]string) ([32]byte, bool, error) {
	s, ok := metadata[ChecksumKey]
	if !ok {
		return [32]byte{}, false, nil
	}
	sum, err := ParseChecksum(s)
	return sum, true, err
}
