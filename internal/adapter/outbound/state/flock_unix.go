//go:build !windows

package state

import "golang.org/x/sys/unix"

// flockLock blocks until it holds an exclusive flock on fd.
func flockLock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX)
}

// flockUnlock releases the flock on fd.
func flockUnlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
