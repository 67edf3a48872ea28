package store

import (
	"fmt"

	"github.com/roach88/cartsync/internal/canon"
)

// marshalFields converts args or results to canonical JSON TEXT.
// A nil map is stored as "{}".
func marshalFields(fields map[string]any) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	data, err := canon.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func mustSeq(seq int64) error {
	if seq <= 0 {
		return fmt.Errorf("seq must be positive, got %d", seq)
	}
	return nil
}
