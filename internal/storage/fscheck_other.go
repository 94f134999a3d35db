//go:build !darwin && !linux

package storage

import (
	"errors"
	"fmt"
)

// The arena is only mapped on Linux and macOS; elsewhere the backing path
// cannot be vetted.
func detectFilesystemType(path string) (string, error) {
	return "", fmt.Errorf("detect filesystem for arena path %q: %w", path, errors.ErrUnsupported)
}
