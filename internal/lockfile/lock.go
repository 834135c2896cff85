// Package lockfile guards exclusive access to a storage engine's on-disk
// data directory (C2): the in-process kv.Driver implementations never
// need this (a single memory.Driver instance is already the only
// writer), but any file-backed backend must stop a second
// process from opening the same directory underneath a running one.
// One OS-level advisory lock file, held exclusive for the process that
// owns the directory and shared for read-only tools inspecting it
// (a backup utility, a consistency checker), backs both modes.
package lockfile

import (
	"errors"
	"os"
)

// ErrLocked is returned when Lock cannot be acquired because another
// process already holds a conflicting lock.
var ErrLocked = errors.New("lockfile: already locked by another process")

// IsLocked reports whether err is (or wraps) ErrLocked.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}

// Lock is an advisory, non-blocking file lock over a single path.
type Lock struct {
	path string
	f    *os.File
}

// New opens (creating if necessary) the lock file at path without
// acquiring any lock yet.
func New(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &Lock{path: path, f: f}, nil
}

// Exclusive acquires an exclusive, non-blocking lock: the one mode a
// storage engine's owning process holds for as long as it runs.
// Returns ErrLocked if any other process holds a shared or exclusive
// lock on the same path.
func (l *Lock) Exclusive() error {
	return lockExclusive(l.f)
}

// Shared acquires a shared, non-blocking lock: multiple readers may
// hold this concurrently, but it conflicts with another process's
// Exclusive lock.
func (l *Lock) Shared() error {
	return lockShared(l.f)
}

// Unlock releases whatever lock this Lock currently holds.
func (l *Lock) Unlock() error {
	return unlock(l.f)
}

// Close releases the lock and closes the underlying file handle.
func (l *Lock) Close() error {
	_ = l.Unlock()
	return l.f.Close()
}

// Path returns the filesystem path backing this lock.
func (l *Lock) Path() string { return l.path }
