//go:build darwin

package storage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// detectFilesystemType returns the mount's type name as reported by the
// kernel, e.g. "apfs", "nfs" or "smbfs".
func detectFilesystemType(path string) (string, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}
	return unix.ByteSliceToString(stat.Fstypename[:]), nil
}
