package rig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseRig decodes a rig asset from YAML bytes and validates it.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *Rig: the decoded rig
//   - error: error if decoding or validation fails
func ParseRig(data []byte) (*Rig, error) {
	var r Rig
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode rig: %w", err)
	}

	// Documents may omit the index field; it is implied by list position.
	omitted := true
	for _, e := range r.Elements {
		if e.Index != 0 {
			omitted = false
			break
		}
	}
	if omitted {
		for i := range r.Elements {
			r.Elements[i].Index = i
		}
	}

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rig: %w", err)
	}
	return &r, nil
}

// LoadRig reads and decodes a rig asset from a YAML file on disk.
//
// Parameters:
//   - path: the file path to read
//
// Returns:
//   - *Rig: the decoded rig
//   - error: error if reading, decoding, or validation fails
func LoadRig(path string) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rig file %s: %w", path, err)
	}
	r, err := ParseRig(data)
	if err != nil {
		return nil, fmt.Errorf("rig file %s: %w", path, err)
	}
	return r, nil
}

// Marshal encodes the rig asset to YAML bytes.
//
// Returns:
//   - []byte: the YAML document
//   - error: error if encoding fails
func (r *Rig) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rig: %w", err)
	}
	return data, nil
}
