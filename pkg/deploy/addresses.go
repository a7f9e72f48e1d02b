package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteAddresses merges the result into the deployed_addresses.json file at
// path, keeping entries of other modules.
func WriteAddresses(path string, r *Result) error {
	if path == "" {
		return errors.New("addresses file path required")
	}
	if r == nil {
		return errors.New("result required")
	}

	all := make(map[string]string)
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(b, &all); err != nil {
			return fmt.Errorf("invalid addresses file %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("error reading addresses file %s: %w", path, err)
	}

	for k, v := range r.Addresses() {
		all[k] = v
	}

	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding addresses: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o600); err != nil {
		return fmt.Errorf("error writing addresses file %s: %w", path, err)
	}
	return nil
}
