package serialization

import (
	"bytes"
	"errors"
	"testing"

	"github.com/born-ml/strata/internal/tensor"
)

func TestComputeChecksum(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tt := range tests {
		sum := ComputeChecksum([]byte(tt.input))
		if got := FormatChecksum(sum); got != tt.want {
			t.Errorf("checksum of %q = %s, want %s", tt.input, got, tt.want)
		}
		fromReader, err := ComputeChecksumReader(bytes.NewReader([]byte(tt.input)))
		if err != nil {
			t.Fatalf("ComputeChecksumReader: %v", err)
		}
		if fromReader != sum {
			t.Errorf("reader checksum of %q differs from ComputeChecksum", tt.input)
		}
	}
}

func TestValidateChecksum(t *testing.T) {
	section := encodeTensor(tensor.FromSlice([]float64{0.5, -1, 2, 0, 0, 1}, 2, 3))
	sum := ComputeChecksum(section)
	if err := ValidateChecksum(sum, sum); err != nil {
		t.Errorf("matching checksums: %v", err)
	}

	section[3] ^= 0xff
	if err := ValidateChecksum(ComputeChecksum(section), sum); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestParseChecksum(t *testing.T) {
	sum := ComputeChecksum([]byte("hello world"))
	got, err := ParseChecksum(FormatChecksum(sum))
	if err != nil {
		t.Fatalf("ParseChecksum: %v", err)
	}
	if got != sum {
		t.Error("parsed checksum differs from the original")
	}

	hexSum := FormatChecksum(sum)
	for _, bad := range []string{"", "zz", hexSum[:62], hexSum + "00", "g" + hexSum[1:]} {
		if _, err := ParseChecksum(bad); !errors.Is(err, ErrInvalidHeader) {
			t.Errorf("ParseChecksum(%q): expected ErrInvalidHeader, got %v", bad, err)
		}
	}
}

func TestStoredChecksum(t *testing.T) {
	if _, ok, err := storedChecksum(map[string]string{"layer": "linear"}); ok || err != nil {
		t.Errorf("metadata without %s: ok=%v err=%v", ChecksumKey, ok, err)
	}
	sum := ComputeChecksum(nil)
	got, ok, err := storedChecksum(map[string]string{ChecksumKey: FormatChecksum(sum)})
	if !ok || err != nil || got != sum {
		t.Errorf("got %x ok=%v err=%v", got, ok, err)
	}
	if _, _, err := storedChecksum(map[string]string{ChecksumKey: "nope"}); !errors.Is(err, ErrInvalidHeader) {
		t.Errorf("expected ErrInvalidHeader, got %v", err)
	}
}
