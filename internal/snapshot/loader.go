package snapshot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a whole scheduling dataset from one YAML document. Used by
// the CLI's import path and by test fixtures.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML snapshot document and validates it.
func Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
