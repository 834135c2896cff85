//go:build js && wasm

package lockfile

import "os"

// WASM builds are single-process, so every lock mode is a no-op.

func lockExclusive(f *os.File) error { return nil }
func lockShared(f *os.File) error    { return nil }
func unlock(f *os.File) error        { return nil }
