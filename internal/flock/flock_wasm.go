//go:build js && wasm

package flock

import "os"

// TryLock is a no-op in WASM; that runtime is single-process.
func TryLock(f *os.File) error {
	return nil
}

// Unlock is a no-op in WASM.
func Unlock(f *os.File) error {
	return nil
}
