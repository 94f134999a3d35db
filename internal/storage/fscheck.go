// Package storage checks where the device's backing region may live.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// ValidateBackingPath ensures the shared region path is on a local
// filesystem. Futex words and MAP_SHARED coherence do not survive network
// filesystems.
func ValidateBackingPath(path string) error {
	return validateBackingPathWithDetector(path, detectFilesystemType)
}

// FilesystemType reports the filesystem holding path (or its nearest
// existing parent), for diagnostics.
func FilesystemType(path string) (string, error) {
	inspectPath, err := nearestExistingPath(path)
	if err != nil {
		return "", err
	}
	return detectFilesystemType(inspectPath)
}

func validateBackingPathWithDetector(path string, detector func(string) (string, error)) error {
	if path == "" {
		return fmt.Errorf("arena path is empty")
	}

	inspectPath, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve arena path %q: %w", path, err)
	}

	fsType, err := detector(inspectPath)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", inspectPath, err)
	}

	if isNetworkFilesystem(fsType) {
		return fmt.Errorf(
			"arena path %q is on network filesystem %q; the shared region must be on local memory (use /dev/shm or a local path via arena.path or --arena)",
			path,
			fsType,
		)
	}

	return nil
}

func nearestExistingPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	candidate := absPath
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}

		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", absPath)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	normalized := strings.TrimSpace(strings.ToLower(fsType))
	_, found := networkFilesystems[normalized]
	return found
}
