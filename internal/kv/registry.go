package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory opens a Driver for a given DSN-shaped path/connection string.
// The shape follows the teacher's BackendFactory type in
// internal/storage/factory/factory.go, generalized from "open a storage.Storage"
// to "open a kv.Driver".
type Factory func(ctx context.Context, dsn string, opts Options) (Driver, error)

// Options configures how a backend is opened, mirroring the teacher
// factory.Options struct (ReadOnly/LockTimeout/ServerMode fields) but
// trimmed to what a generic ordered KV backend needs.
type Options struct {
	ReadOnly    bool
	LockTimeout int // milliseconds; 0 means backend default

	// Server-mode fields, relevant only to the sqlstore backends which
	// can address either an embedded file or a running SQL server.
	ServerMode bool
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a named backend factory to the registry. Backend
// packages call this from an init() func, the same pattern the teacher
// uses for its Dolt/SQLite storage backends.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Open constructs a Driver using the backend registered under name.
func Open(ctx context.Context, name, dsn string, opts Options) (Driver, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("kv: unknown backend %q (registered: %v)", name, RegisteredNames())
	}
	drv, err := factory(ctx, dsn, opts)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", name, err)
	}
	return drv, nil
}

// RegisteredNames lists every backend name currently registered, sorted
// for deterministic error messages and diagnostics.
func RegisteredNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
