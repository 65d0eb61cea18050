//go:build unix

package flock

import (
	"os"

	"golang.org/x/sys/unix"
)

// TryLock acquires an exclusive non-blocking lock on f.
// Returns ErrBusy if another process already holds the lock.
func TryLock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		return ErrBusy
	}
	return err
}

// Unlock releases the lock on f.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
