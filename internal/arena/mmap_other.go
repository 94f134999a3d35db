//go:build !unix

package arena

import (
	"errors"
	"fmt"
)

func createMapping(string, int) ([]byte, error) {
	return nil, fmt.Errorf("shared mappings: %w", errors.ErrUnsupported)
}

func openMapping(string, int) ([]byte, error) {
	return nil, fmt.Errorf("shared mappings: %w", errors.ErrUnsupported)
}

func unmap([]byte) error { return nil }
