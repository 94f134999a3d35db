//go:build linux

package futex

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Operations are issued without FUTEX_PRIVATE_FLAG: the words may be shared
// between processes through a MAP_SHARED mapping.
const (
	futexWait = 0
	futexWake = 1
)

// wait sleeps while *addr == val. EAGAIN (value already changed) and EINTR
// both return to the caller, which rechecks its condition.
func wait(addr *uint32, val uint32) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWait, uintptr(val), 0, 0, 0)
}

func wake(addr *uint32, n int) {
	_, _, _ = unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWake, uintptr(n), 0, 0, 0)
}
