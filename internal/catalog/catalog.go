// Package catalog implements the schema layer (C4): namespace, database,
// table, field, index, event, and param definitions. Namespace, database
// and table definitions carry a cache-version UUID that is regenerated
// each time they are defined; field, index, event and param definitions
// carry none, and defining one leaves its table's version unchanged.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/kv"
	"github.com/surrealcore/coredb/internal/namespace"
	"github.com/surrealcore/coredb/internal/value"
)

// TableKind discriminates a table's record-creation discipline.
type TableKind int

const (
	// TableNormal allows CREATE/UPSERT of arbitrary record ids.
	TableNormal TableKind = iota
	// TableExpunge deletes (rather than tombstones) purged records and
	// their edges, per SPEC_FULL's C6 purge clarification.
	TableExpunge
)

// SchemaMode controls whether undeclared fields are rejected.
type SchemaMode int

const (
	SchemaFull SchemaMode = iota
	Schemaless
)

// NamespaceDef is the root catalog entity.
type NamespaceDef struct {
	Name    string
	Version uuid.UUID
}

// DatabaseDef belongs to exactly one namespace.
type DatabaseDef struct {
	Namespace string
	Name      string
	Version   uuid.UUID
}

// TableDef describes one table's schema discipline and record kind.
type TableDef struct {
	Namespace string
	Database  string
	Name      string
	Kind      TableKind
	Schema    SchemaMode
	Version   uuid.UUID
}

// FieldDef constrains one field of a table to a value.Type, optionally
// with a DEFAULT and a read-only flag, for the document processor's
// "field" stage (C6) to apply.
type FieldDef struct {
	Namespace string
	Database  string
	Table     string
	Name      string
	Kind      value.Type
	Default   *value.Value
	ReadOnly  bool
}

// IndexKind discriminates which secondary index engine (C7) backs an
// IndexDef.
type IndexKind int

const (
	IndexStandard IndexKind = iota
	IndexUnique
	IndexFullText
	IndexMTree
	IndexHNSW
)

// IndexDef describes one secondary index over a table.
type IndexDef struct {
	Namespace string
	Database  string
	Table     string
	Name      string
	Kind      IndexKind
	Fields    []string
	// Dimension/Distance apply to IndexMTree/IndexHNSW only.
	Dimension int
	Distance  string
}

// EventKind discriminates the lifecycle point an EventDef fires on.
type EventKind int

const (
	EventCreate EventKind = iota
	EventUpdate
	EventDelete
)

// EventDef describes one table-level trigger fired during C6's "event"
// stage.
type EventDef struct {
	Namespace string
	Database  string
	Table     string
	Name      string
	When      EventKind
	Then      string // opaque statement body, interpreted by the caller
}

// ParamDef is a database-scoped named constant/parameter.
type ParamDef struct {
	Namespace string
	Database  string
	Name      string
	Value     value.Value
}

// Catalog persists and caches definitions against an underlying kv.Tx. It
// is safe for concurrent use; each method opens its own short-lived
// transaction, and no method accepts a caller's transaction.
type Catalog struct {
	driver kv.Driver

	mu       sync.Mutex
	versions map[string]uuid.UUID
}

// New wraps a kv.Driver with catalog persistence.
func New(driver kv.Driver) *Catalog {
	return &Catalog{driver: driver, versions: make(map[string]uuid.UUID)}
}

func (c *Catalog) bumpVersion(key string) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := uuid.New()
	c.versions[key] = v
	return v
}

// Version returns the current cache-version UUID for a catalog key,
// generating a fresh one the first time it is observed.
func (c *Catalog) Version(key string) uuid.UUID {
	c.mu.Lock()
	v, ok := c.versions[key]
	c.mu.Unlock()
	if ok {
		return v
	}
	return c.bumpVersion(key)
}

// DefineNamespace creates or replaces a namespace definition.
func (c *Catalog) DefineNamespace(ctx context.Context, name string) (NamespaceDef, error) {
	addr := namespace.Address{Namespace: name}
	if err := addr.Validate(); err != nil {
		return NamespaceDef{}, fmt.Errorf("catalog: define namespace: %w", err)
	}
	def := NamespaceDef{Name: name, Version: c.bumpVersion("ns:" + name)}
	if err := c.put(ctx, keycodec.Namespace(name).Bytes(), encodeNamespaceDef(def)); err != nil {
		return NamespaceDef{}, err
	}
	return def, nil
}

// DefineDatabase creates or replaces a database definition under ns.
func (c *Catalog) DefineDatabase(ctx context.Context, ns, name string) (DatabaseDef, error) {
	def := DatabaseDef{Namespace: ns, Name: name, Version: c.bumpVersion(fmt.Sprintf("db:%s:%s", ns, name))}
	if err := c.put(ctx, keycodec.Database(ns, name).Bytes(), encodeDatabaseDef(def)); err != nil {
		return DatabaseDef{}, err
	}
	return def, nil
}

// DefineTable creates or replaces a table definition.
func (c *Catalog) DefineTable(ctx context.Context, ns, db, name string, kind TableKind, schema SchemaMode) (TableDef, error) {
	def := TableDef{
		Namespace: ns, Database: db, Name: name,
		Kind: kind, Schema: schema,
		Version: c.bumpVersion(fmt.Sprintf("tb:%s:%s:%s", ns, db, name)),
	}
	if err := c.put(ctx, keycodec.Table(ns, db, name).Bytes(), encodeTableDef(def)); err != nil {
		return TableDef{}, err
	}
	return def, nil
}

// DefineField creates or replaces a field definition.
func (c *Catalog) DefineField(ctx context.Context, fd FieldDef) error {
	return c.put(ctx, keycodec.Field(fd.Namespace, fd.Database, fd.Table, fd.Name).Bytes(), encodeFieldDef(fd))
}

// DefineIndex creates or replaces an index definition. The secondary
// index engines (C7) are responsible for building the physical index
// structure once this definition is persisted.
func (c *Catalog) DefineIndex(ctx context.Context, ix IndexDef) error {
	return c.put(ctx, keycodec.Index(ix.Namespace, ix.Database, ix.Table, ix.Name).Bytes(), encodeIndexDef(ix))
}

// DefineEvent creates or replaces an event definition.
func (c *Catalog) DefineEvent(ctx context.Context, ev EventDef) error {
	return c.put(ctx, keycodec.Event(ev.Namespace, ev.Database, ev.Table, ev.Name).Bytes(), encodeEventDef(ev))
}

// DefineParam creates or replaces a database-scoped parameter.
func (c *Catalog) DefineParam(ctx context.Context, pd ParamDef) error {
	return c.put(ctx, keycodec.Param(pd.Namespace, pd.Database, pd.Name).Bytes(), encodeParamDef(pd))
}

func (c *Catalog) put(ctx context.Context, key, val []byte) error {
	tx, err := c.driver.Begin(ctx, kv.TxOptions{})
	if err != nil {
		return fmt.Errorf("catalog: begin: %w", err)
	}
	if err := tx.Set(ctx, key, val); err != nil {
		_ = tx.Cancel(ctx)
		return fmt.Errorf("catalog: put %x: %w", key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	return nil
}

// Table fetches a table definition, returning kv.ErrNotFound if absent.
func (c *Catalog) Table(ctx context.Context, ns, db, name string) (TableDef, error) {
	raw, err := c.get(ctx, keycodec.Table(ns, db, name).Bytes())
	if err != nil {
		return TableDef{}, err
	}
	return decodeTableDef(raw)
}

// Field fetches a field definition.
func (c *Catalog) Field(ctx context.Context, ns, db, tb, name string) (FieldDef, error) {
	raw, err := c.get(ctx, keycodec.Field(ns, db, tb, name).Bytes())
	if err != nil {
		return FieldDef{}, err
	}
	return decodeFieldDef(raw)
}

// Fields lists every field defined on a table, used by C6's "field" and
// "clean" stages to iterate declared fields.
func (c *Catalog) Fields(ctx context.Context, ns, db, tb string) ([]FieldDef, error) {
	tx, err := c.driver.Begin(ctx, kv.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Cancel(ctx)

	prefix := keycodec.Field(ns, db, tb, "").Bytes()
	entries, err := tx.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan fields: %w", err)
	}
	out := make([]FieldDef, 0, len(entries))
	for _, e := range entries {
		fd, err := decodeFieldDef(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, fd)
	}
	return out, nil
}

// Indexes lists every index defined on a table.
func (c *Catalog) Indexes(ctx context.Context, ns, db, tb string) ([]IndexDef, error) {
	tx, err := c.driver.Begin(ctx, kv.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Cancel(ctx)

	prefix := keycodec.Index(ns, db, tb, "").Bytes()
	entries, err := tx.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan indexes: %w", err)
	}
	out := make([]IndexDef, 0, len(entries))
	for _, e := range entries {
		ix, err := decodeIndexDef(e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}

// Events lists every event defined on a table matching when, or all
// events if when is nil.
func (c *Catalog) Events(ctx context.Context, ns, db, tb string, when *EventKind) ([]EventDef, error) {
	tx, err := c.driver.Begin(ctx, kv.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Cancel(ctx)

	prefix := keycodec.Event(ns, db, tb, "").Bytes()
	entries, err := tx.ScanPrefix(ctx, prefix, 0, false)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan events: %w", err)
	}
	out := make([]EventDef, 0, len(entries))
	for _, e := range entries {
		ev, err := decodeEventDef(e.Value)
		if err != nil {
			return nil, err
		}
		if when != nil && ev.When != *when {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Catalog) get(ctx context.Context, key []byte) ([]byte, error) {
	tx, err := c.driver.Begin(ctx, kv.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Cancel(ctx)
	v, err := tx.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return v, nil
}
