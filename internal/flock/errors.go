// Package flock wraps the OS advisory file-locking primitive
// (flock(2) on unix, LockFileEx on windows) behind one small interface:
// try to take an exclusive lock on a file, non-blocking, and release it.
// It has no notion of shared/read locks; Lattice's lock manager
// (internal/lockmgr) only ever needs mutual exclusion.
package flock

import "errors"

// ErrBusy is returned when a non-blocking exclusive lock attempt finds
// the file already locked by another process.
var ErrBusy = errors.New("flock: lock held by another process")
