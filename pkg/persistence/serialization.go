package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalCachedResult serializes a CachedResult to JSON bytes.
func MarshalCachedResult(r *CachedResult) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot marshal nil CachedResult")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CachedResult to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalCachedResult deserializes a CachedResult from JSON bytes.
func UnmarshalCachedResult(data []byte) (*CachedResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var r CachedResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to CachedResult: %w", err)
	}

	return &r, nil
}
