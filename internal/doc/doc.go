// Package doc implements the document processor (C6): the fixed
// 18-stage pipeline every CREATE/UPDATE/UPSERT/DELETE/RELATE statement
// drives a target record through, from initial load to final pluck.
package doc

import (
	"context"
	"fmt"
	"log"

	"github.com/surrealcore/coredb/internal/catalog"
	"github.com/surrealcore/coredb/internal/changefeed"
	"github.com/surrealcore/coredb/internal/idgen"
	"github.com/surrealcore/coredb/internal/index"
	"github.com/surrealcore/coredb/internal/index/fts"
	"github.com/surrealcore/coredb/internal/index/hnsw"
	"github.com/surrealcore/coredb/internal/index/metric"
	"github.com/surrealcore/coredb/internal/index/mtree"
	"github.com/surrealcore/coredb/internal/keycodec"
	"github.com/surrealcore/coredb/internal/merge"
	"github.com/surrealcore/coredb/internal/txn"
	"github.com/surrealcore/coredb/internal/value"
)

// Mutation names the write operation driving the pipeline.
type Mutation int

const (
	MutationCreate Mutation = iota
	MutationUpdate
	MutationUpsert
	MutationDelete
	MutationRelate
)

// Stage identifies one of the 18 fixed pipeline steps, in execution
// order.
type Stage int

const (
	StageLoadInitial Stage = iota
	StageAllow
	StageCheck
	StageEmpty
	StageMerge
	StageClean
	StageField
	StageReset
	StageRelation
	StageEdges
	StageIndex
	StageStore
	StageTable
	StageLives
	StageEvent
	StageChangefeeds
	StagePluck
	StagePurge
)

var stageNames = []string{
	"load_initial", "allow", "check", "empty", "merge", "clean", "field",
	"reset", "relation", "edges", "index", "store", "table", "lives",
	"event", "changefeeds", "pluck", "purge",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Context carries one document through the pipeline. Before is the
// record's value prior to this statement (None for CREATE); After
// accumulates the in-progress result; Final is set once the pipeline
// completes successfully.
type Context struct {
	Namespace string
	Database  string
	Table     string
	RecordID  value.RecordID

	Mutation Mutation
	Content  value.Value // CONTENT/SET/MERGE payload as given by the statement

	Before value.Value
	After  value.Value
	Final  value.Value

	Table_ catalog.TableDef
	Fields []catalog.FieldDef
	Events []catalog.EventDef

	// LiveMatchers supplies one compiled WHERE-condition matcher per
	// registered live query id, set by the caller (the QEP layer compiles
	// conditions; this package never parses expressions itself). A nil
	// map skips live-query evaluation entirely.
	LiveMatchers map[[16]byte]changefeed.Matcher
	// Notifications accumulates the live-query notifications this
	// mutation produced, for the caller to dispatch once the owning
	// transaction has committed successfully.
	Notifications []changefeed.Notification

	// Ignore short-circuits the remaining stages without error (C6's
	// "empty" stage sets this for an UPSERT that resolves to no-op).
	Ignore bool

	PendingEvents []txn.PendingEvent
}

// Stages is the fixed, ordered pipeline every mutation runs through.
// Each function may set ctx.Ignore to short-circuit remaining stages.
type stageFunc func(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error

var pipeline = []struct {
	stage Stage
	fn    stageFunc
}{
	{StageLoadInitial, loadInitial},
	{StageAllow, allow},
	{StageCheck, check},
	{StageEmpty, empty},
	{StageMerge, mergeStage},
	{StageClean, clean},
	{StageField, field},
	{StageReset, reset},
	{StageRelation, relation},
	{StageEdges, edges},
	{StageIndex, indexStage},
	{StageStore, store},
	{StageTable, table},
	{StageLives, lives},
	{StageEvent, event},
	{StageChangefeeds, changefeeds},
	{StagePluck, pluck},
	{StagePurge, purge},
}

// Run drives d through every pipeline stage in order, stopping early if a
// stage returns an error or sets d.Ignore.
func Run(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	for _, step := range pipeline {
		if d.Ignore {
			log.Printf("doc: pipeline short-circuited at stage %s (ignore)", step.stage)
			break
		}
		if err := step.fn(ctx, tx, cat, d); err != nil {
			return fmt.Errorf("doc: stage %s: %w", step.stage, err)
		}
	}
	return nil
}

func loadInitial(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	tbl, err := cat.Table(ctx, d.Namespace, d.Database, d.Table)
	if err == nil {
		d.Table_ = tbl
	}
	fields, err := cat.Fields(ctx, d.Namespace, d.Database, d.Table)
	if err == nil {
		d.Fields = fields
	}

	if d.Mutation == MutationCreate && d.RecordID.Key.Kind == value.RecordIDKeyRandom {
		generated, err := idgen.NewRandomKey()
		if err != nil {
			return fmt.Errorf("doc: generate record id: %w", err)
		}
		d.RecordID.Key = value.RecordIDKey{Kind: value.RecordIDKeyString, Str: generated}
	}

	key := keycodec.Record(d.Namespace, d.Database, d.Table, keycodec.RecordKeyString, []byte(d.RecordID.Key.String())).Bytes()
	raw, err := tx.Raw().Get(ctx, key)
	if err != nil {
		d.Before = value.None()
	} else {
		decoded, err := value.Decode(raw)
		if err != nil {
			return fmt.Errorf("doc: decode stored record: %w", err)
		}
		d.Before = decoded
	}
	d.After = d.Before
	return nil
}

// allow enforces statement-level permission; it is intentionally
// permissive here (no row-level ACL engine is in scope) but provides the
// hook point a caller can override by wrapping Run.
func allow(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	return nil
}

func check(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	switch d.Mutation {
	case MutationCreate:
		if !d.Before.IsNone() {
			return fmt.Errorf("record %s already exists", d.RecordID)
		}
	case MutationUpdate:
		if d.Before.IsNone() {
			return fmt.Errorf("record %s does not exist", d.RecordID)
		}
	}
	return nil
}

// empty is DELETE-only per stage 4: a DELETE of a record that doesn't
// exist short-circuits the rest of the pipeline rather than erroring. It
// also catches the UPSERT case where the merged content wouldn't change
// the existing record, the same kind of no-op short-circuit.
func empty(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	if d.Mutation == MutationDelete && d.Before.IsNone() {
		d.Ignore = true
		return nil
	}
	if d.Mutation == MutationUpsert && value.Equal(d.Before, merge.Merge(d.Before, d.Content)) {
		d.Ignore = true
	}
	return nil
}

func mergeStage(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	switch d.Mutation {
	case MutationDelete:
		d.After = value.None()
	default:
		d.After = merge.Merge(d.Before, d.Content)
	}
	return nil
}

// clean strips fields not declared in the schema when the table is
// SchemaFull, leaving Schemaless tables untouched.
func clean(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	if d.Mutation == MutationDelete || d.Table_.Schema != catalog.SchemaFull {
		return nil
	}
	declared := map[string]bool{}
	for _, f := range d.Fields {
		declared[f.Name] = true
	}
	for _, k := range d.After.ObjectKeys() {
		if !declared[k] {
			d.After = d.After.WithField(k, value.None())
		}
	}
	return nil
}

// field applies each FieldDef's default, read-only check and coercion, in
// the order d.Fields holds them (catalog.Fields' storage key order),
// matching §4.5's DEFAULT/TYPE enforcement.
func field(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	if d.Mutation == MutationDelete {
		return nil
	}
	for _, f := range d.Fields {
		cur := d.After.Get(f.Name)
		if cur.IsNone() && f.Default != nil {
			cur = *f.Default
		}
		if cur.IsNone() {
			continue
		}
		if f.ReadOnly && !d.Before.IsNone() {
			prior := d.Before.Get(f.Name)
			if !value.Equal(prior, cur) {
				return fmt.Errorf("field %q is read-only", f.Name)
			}
		}
		coerced, err := value.Coerce(cur, f.Kind)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		d.After = d.After.WithField(f.Name, coerced)
	}
	return nil
}

// reset is a no-op for every table: field() returns a coercion failure
// as an error, and no field value is restored here.
func reset(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	return nil
}

// relation validates that RELATE statements target an edge-capable
// record id shape; plain CREATE/UPDATE pass through untouched.
func relation(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	if d.Mutation != MutationRelate {
		return nil
	}
	if d.RecordID.Table == "" {
		return fmt.Errorf("relate: missing edge table")
	}
	return nil
}

// edges writes the four graph-edge pointer entries a RELATE creates: the
// in-node's outgoing pointer to the edge, the edge's incoming pointer back
// to the in-node, the edge's outgoing pointer to the out-node, and the
// out-node's incoming pointer back to the edge. The first and last are
// keyed under the endpoint records' own tables so that a traversal
// starting from either endpoint (SELECT ->likes-> or <-likes<-) finds the
// edge without ever touching the edge table itself.
func edges(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	if d.Mutation != MutationRelate {
		return nil
	}
	inField := d.After.Get("in")
	outField := d.After.Get("out")
	if inField.Kind() != value.KindRecordID || outField.Kind() != value.KindRecordID {
		return fmt.Errorf("relate: in/out must be record ids")
	}
	in, out := inField.AsRecordID(), outField.AsRecordID()
	idBytes := []byte(d.RecordID.Key.String())
	inID := []byte(in.Key.String())
	outID := []byte(out.Key.String())
	pointers := []struct {
		tbl      string
		id       []byte
		dir      byte
		otherTbl string
		otherID  []byte
	}{
		{in.Table, inID, 'O', d.Table, idBytes},
		{d.Table, idBytes, 'I', in.Table, inID},
		{d.Table, idBytes, 'O', out.Table, outID},
		{out.Table, outID, 'I', d.Table, idBytes},
	}
	for _, p := range pointers {
		key := keycodec.Edge(d.Namespace, d.Database, p.tbl, p.id, p.dir, p.otherTbl, p.otherID).Bytes()
		if err := tx.Set(ctx, key, nil); err != nil {
			return fmt.Errorf("edges: write pointer: %w", err)
		}
	}
	return nil
}

// indexStage dispatches to the secondary index engine matching each
// defined index's kind, keeping standard/unique composite indices, BM25
// full-text postings, and M-Tree/HNSW vector graphs consistent with the
// document's before/after projection in the same transaction as the
// record write itself.
func indexStage(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	idxs, err := cat.Indexes(ctx, d.Namespace, d.Database, d.Table)
	if err != nil {
		return fmt.Errorf("index: list: %w", err)
	}
	for _, ix := range idxs {
		switch ix.Kind {
		case catalog.IndexStandard, catalog.IndexUnique:
			if err := index.Maintain(ctx, tx.Raw(), d.Namespace, d.Database, d.Table, ix.Name, ix.Fields, ix.Kind == catalog.IndexUnique, d.Before, d.After, d.RecordID); err != nil {
				return err
			}
		case catalog.IndexFullText:
			if err := fts.Maintain(ctx, tx.Raw(), d.Namespace, d.Database, d.Table, ix.Name, ix.Fields, d.Before, d.After, d.RecordID); err != nil {
				return err
			}
		case catalog.IndexMTree:
			// Remove any prior entry before inserting the new one, so an
			// UPDATE that changes the indexed vector doesn't leave a stale
			// entry behind, and a DELETE (After is None, so the insert
			// below is skipped) tombstones the entry instead of leaking it.
			if _, had := indexedVector(d.Before, ix.Fields); had {
				if err := mtree.Remove(ctx, tx.Raw(), d.Namespace, d.Database, d.Table, ix.Name, d.RecordID); err != nil {
					return err
				}
			}
			if vec, ok := indexedVector(d.After, ix.Fields); ok {
				cfg := mtree.Config{Metric: metric.Kind(ix.Distance), MaxEntries: 16}
				if err := mtree.Insert(ctx, tx.Raw(), d.Namespace, d.Database, d.Table, ix.Name, cfg, vec, d.RecordID); err != nil {
					return err
				}
			}
		case catalog.IndexHNSW:
			if _, had := indexedVector(d.Before, ix.Fields); had {
				if err := hnsw.Remove(ctx, tx.Raw(), d.Namespace, d.Database, d.Table, ix.Name, d.RecordID); err != nil {
					return err
				}
			}
			if vec, ok := indexedVector(d.After, ix.Fields); ok {
				cfg := hnsw.Config{Metric: metric.Kind(ix.Distance)}
				if err := hnsw.Insert(ctx, tx.Raw(), d.Namespace, d.Database, d.Table, ix.Name, cfg, vec, d.RecordID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// indexedVector projects the first indexed field onto a []float64,
// returning ok=false when the field is absent or not numeric-array
// shaped (e.g. on a Delete, where After is None).
func indexedVector(doc value.Value, fields []string) ([]float64, bool) {
	if len(fields) == 0 || doc.IsNone() {
		return nil, false
	}
	arr := doc.Get(fields[0]).AsArray()
	if len(arr) == 0 {
		return nil, false
	}
	out := make([]float64, len(arr))
	for i, v := range arr {
		out[i] = v.AsNumber().AsFloat64()
	}
	return out, true
}

func store(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	key := keycodec.Record(d.Namespace, d.Database, d.Table, keycodec.RecordKeyString, []byte(d.RecordID.Key.String())).Bytes()
	if d.Mutation == MutationDelete {
		if d.Table_.Kind == catalog.TableExpunge {
			return tx.Clr(ctx, key)
		}
		return tx.Del(ctx, key)
	}
	return tx.Set(ctx, key, value.Encode(d.After))
}

// table is a hook for table-level statistics maintenance (row counts);
// no-op here since statistics are not in scope.
func table(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	return nil
}

// lives evaluates every live query registered against the table against
// this mutation's before/after state, via the caller-supplied matcher for
// each live query id (compiled WHERE evaluation lives in the QEP layer,
// not here). A nil LiveMatchers leaves this a no-op, for callers that
// don't support live queries.
func lives(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	if d.LiveMatchers == nil {
		return nil
	}
	defs, err := changefeed.List(ctx, tx.Raw(), d.Namespace, d.Database, d.Table)
	if err != nil {
		return fmt.Errorf("lives: list: %w", err)
	}
	for _, def := range defs {
		matcher, ok := d.LiveMatchers[def.ID]
		if !ok {
			continue
		}
		n, err := changefeed.EvaluateChange(def, matcher, d.Before, d.After)
		if err != nil {
			return fmt.Errorf("lives: evaluate: %w", err)
		}
		if n != nil {
			d.Notifications = append(d.Notifications, *n)
		}
	}
	return nil
}

// event buffers each matching EventDef as a PendingEvent, to be delivered
// only once the owning transaction commits (see internal/txn.BufferEvent).
func event(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	var want catalog.EventKind
	switch d.Mutation {
	case MutationCreate, MutationRelate:
		want = catalog.EventCreate
	case MutationUpdate, MutationUpsert:
		want = catalog.EventUpdate
	case MutationDelete:
		want = catalog.EventDelete
	}
	evs, err := cat.Events(ctx, d.Namespace, d.Database, d.Table, &want)
	if err != nil {
		return fmt.Errorf("event: list: %w", err)
	}
	for _, ev := range evs {
		pe := txn.PendingEvent{
			Name: ev.Name,
			Payload: map[string]interface{}{
				"record": d.RecordID.String(),
				"then":   ev.Then,
			},
		}
		d.PendingEvents = append(d.PendingEvents, pe)
		tx.BufferEvent(pe)
	}
	return nil
}

// changefeeds appends one versionstamped mutation entry for this record to
// the table's change feed. One entry is written per record mutation rather
// than batching a whole commit's mutations into a single versionstamp,
// since batching would need new buffering state in txn.Transaction
// (akin to PendingEvent) that this pass doesn't add.
func changefeeds(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	var kind changefeed.MutationKind
	switch d.Mutation {
	case MutationCreate, MutationRelate:
		kind = changefeed.MutationCreate
	case MutationUpdate, MutationUpsert:
		kind = changefeed.MutationUpdate
	case MutationDelete:
		kind = changefeed.MutationDelete
	}

	beforeJSON, err := value.ToJSON(d.Before)
	if err != nil {
		return fmt.Errorf("changefeeds: encode before: %w", err)
	}
	afterJSON, err := value.ToJSON(d.After)
	if err != nil {
		return fmt.Errorf("changefeeds: encode after: %w", err)
	}
	mut := changefeed.TableMutation{
		Kind:     kind,
		RecordID: d.RecordID.String(),
		Before:   beforeJSON,
		After:    afterJSON,
	}

	vs, err := changefeed.NextVersionstamp(ctx, tx.Raw(), d.Namespace, d.Database)
	if err != nil {
		return fmt.Errorf("changefeeds: versionstamp: %w", err)
	}
	if err := changefeed.WriteEntry(ctx, tx.Raw(), d.Namespace, d.Database, d.Table, vs, []changefeed.TableMutation{mut}); err != nil {
		return fmt.Errorf("changefeeds: write: %w", err)
	}
	return nil
}

// pluck projects the statement's RETURN clause; with no RETURN clause
// support wired into this layer, Final is simply the post-mutation value.
func pluck(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	d.Final = d.After
	return nil
}

// purge removes all four graph-edge pointer entries for a deleted relation
// record (the same set edges writes: the two endpoint-keyed pointers plus
// the two edge-keyed pointers), via Clr under EXPUNGE-mode tables per
// SPEC_FULL's C6 clarification, or Del otherwise.
func purge(ctx context.Context, tx *txn.Transaction, cat *catalog.Catalog, d *Context) error {
	if d.Mutation != MutationDelete {
		return nil
	}
	inField := d.Before.Get("in")
	outField := d.Before.Get("out")
	if inField.Kind() != value.KindRecordID || outField.Kind() != value.KindRecordID {
		return nil
	}
	in, out := inField.AsRecordID(), outField.AsRecordID()
	idBytes := []byte(d.RecordID.Key.String())
	inID := []byte(in.Key.String())
	outID := []byte(out.Key.String())
	pointers := []struct {
		tbl      string
		id       []byte
		dir      byte
		otherTbl string
		otherID  []byte
	}{
		{in.Table, inID, 'O', d.Table, idBytes},
		{d.Table, idBytes, 'I', in.Table, inID},
		{d.Table, idBytes, 'O', out.Table, outID},
		{out.Table, outID, 'I', d.Table, idBytes},
	}
	expunge := d.Table_.Kind == catalog.TableExpunge
	for _, p := range pointers {
		key := keycodec.Edge(d.Namespace, d.Database, p.tbl, p.id, p.dir, p.otherTbl, p.otherID).Bytes()
		var err error
		if expunge {
			err = tx.Clr(ctx, key)
		} else {
			err = tx.Del(ctx, key)
		}
		if err != nil {
			return fmt.Errorf("purge: remove edge pointer: %w", err)
		}
	}
	return nil
}
