package serialization

import (
	"fmt"

	"github.com/born-ml/strata/internal/nn"
)

// Save writes the parameters of m to path. Lazy layers that have not run
// yet own no parameters and produce an empty file.
func Save(path string, m nn.Module, metadata map[string]string) error {
	if err := WriteSafeTensors(path, nn.StateDict(m), metadata); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Load replaces the parameters of m with the tensors stored at path.
// The file must hold exactly the parameters of m, with matching shapes.
func Load(path string, m nn.Module) error {
	reader, err := NewSafeTensorsReader(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	defer reader.Close() //nolint:errcheck // read-only

	stateDict, err := reader.ReadStateDict()
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if err := nn.LoadStateDict(m, stateDict); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
