package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/jointstream/internal/ir"
)

// marshalFloats converts a value array to canonical JSON TEXT for storage.
// A nil slice is stored as [].
func marshalFloats(v []float64) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	return string(data), nil
}

// marshalNames converts joint names to canonical JSON TEXT for storage.
func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := ir.MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	return string(data), nil
}

// unmarshalFloats parses a stored array. Empty TEXT is treated as [].
func unmarshalFloats(data string) ([]float64, error) {
	out := []float64{}
	if data == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return out, nil
}

// unmarshalNames parses stored joint names.
func unmarshalNames(data string) ([]string, error) {
	out := []string{}
	if data == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal names: %w", err)
	}
	return out, nil
}
