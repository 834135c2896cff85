// Package merge implements the object merge/patch semantics used by C6's
// "merge" and "alter" document-processor stages and by the CONTENT/MERGE/
// PATCH statement family described in spec.md §4.5: setting a field to
// NONE removes it, a nested object merge recurses field-by-field, and
// arrays/sets/scalars are replaced wholesale rather than merged.
package merge

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/surrealcore/coredb/internal/value"
)

// Merge folds patch into base per the rules above. Neither argument is
// mutated; a new Value is returned.
func Merge(base, patch value.Value) value.Value {
	if patch.IsNone() {
		return base
	}
	if patch.Kind() != value.KindObject || base.Kind() != value.KindObject {
		return patch
	}
	out := base
	for _, k := range patch.ObjectKeys() {
		pv := patch.Get(k)
		if pv.IsNone() {
			out = out.WithField(k, value.None())
			continue
		}
		bv := out.Get(k)
		if bv.Kind() == value.KindObject && pv.Kind() == value.KindObject {
			out = out.WithField(k, Merge(bv, pv))
		} else {
			out = out.WithField(k, pv)
		}
	}
	return out
}

// Increment implements the `+=` field operator: numeric addition for
// numbers, append for arrays/sets, union for sets-of-records.
func Increment(cur, delta value.Value) (value.Value, error) {
	switch cur.Kind() {
	case value.KindNumber:
		if delta.Kind() != value.KindNumber {
			return value.None(), fmt.Errorf("increment: cannot add %s to number", delta.Kind())
		}
		return value.Num(cur.AsNumber().Add(delta.AsNumber())), nil
	case value.KindArray:
		return value.Array(append(append([]value.Value{}, cur.AsArray()...), delta)), nil
	case value.KindSet:
		return value.Set(append(append([]value.Value{}, cur.AsArray()...), delta)), nil
	case value.KindNone, value.KindNull:
		return delta, nil
	default:
		return value.None(), fmt.Errorf("increment: unsupported base kind %s", cur.Kind())
	}
}

// Decrement implements the `-=` field operator: numeric subtraction, or
// removal of a matching element from an array/set.
func Decrement(cur, delta value.Value) (value.Value, error) {
	switch cur.Kind() {
	case value.KindNumber:
		if delta.Kind() != value.KindNumber {
			return value.None(), fmt.Errorf("decrement: cannot subtract %s from number", delta.Kind())
		}
		return value.Num(cur.AsNumber().Sub(delta.AsNumber())), nil
	case value.KindArray, value.KindSet:
		items := cur.AsArray()
		out := make([]value.Value, 0, len(items))
		removed := false
		for _, it := range items {
			if !removed && value.Equal(it, delta) {
				removed = true
				continue
			}
			out = append(out, it)
		}
		if cur.Kind() == value.KindSet {
			return value.Set(out), nil
		}
		return value.Array(out), nil
	default:
		return value.None(), fmt.Errorf("decrement: unsupported base kind %s", cur.Kind())
	}
}

// DiffOp is one JSON-Patch-shaped operation as emitted by Diff and consumed
// by ApplyDiff. The Path syntax follows RFC 6902, the same surface the
// change feed and live-query DIFF notifications expose.
type DiffOp struct {
	Op    string // "add", "remove", "replace"
	Path  string
	Value value.Value
}

// Diff computes the JSON-Patch operations that transform before into
// after, using gjson/sjson over the values' JSON projections. This backs
// the change-feed and live-query DIFF output variant from §4.8.
func Diff(before, after value.Value) ([]DiffOp, error) {
	beforeJSON, err := value.ToJSON(before)
	if err != nil {
		return nil, fmt.Errorf("diff: encode before: %w", err)
	}
	afterJSON, err := value.ToJSON(after)
	if err != nil {
		return nil, fmt.Errorf("diff: encode after: %w", err)
	}
	var ops []DiffOp
	diffObjects("", gjson.Parse(beforeJSON), gjson.Parse(afterJSON), &ops)
	return ops, nil
}

func diffObjects(prefix string, b, a gjson.Result, ops *[]DiffOp) {
	if !b.Exists() && a.Exists() {
		*ops = append(*ops, DiffOp{Op: "add", Path: prefix, Value: value.FromJSON(a.Raw)})
		return
	}
	if b.Exists() && !a.Exists() {
		*ops = append(*ops, DiffOp{Op: "remove", Path: prefix})
		return
	}
	if b.IsObject() && a.IsObject() {
		seen := map[string]bool{}
		b.ForEach(func(k, bv gjson.Result) bool {
			key := k.String()
			seen[key] = true
			av := a.Get(key)
			diffObjects(prefix+"/"+key, bv, av, ops)
			return true
		})
		a.ForEach(func(k, av gjson.Result) bool {
			key := k.String()
			if seen[key] {
				return true
			}
			diffObjects(prefix+"/"+key, gjson.Result{}, av, ops)
			return true
		})
		return
	}
	if b.Raw != a.Raw {
		*ops = append(*ops, DiffOp{Op: "replace", Path: prefix, Value: value.FromJSON(a.Raw)})
	}
}

// ApplyDiff applies a sequence of DiffOp to base, producing the patched
// Value. Operations are applied via their JSON projection through sjson
// and re-decoded, mirroring how the change feed replays DIFF entries.
func ApplyDiff(base value.Value, ops []DiffOp) (value.Value, error) {
	doc, err := value.ToJSON(base)
	if err != nil {
		return value.None(), fmt.Errorf("applydiff: encode base: %w", err)
	}
	for _, op := range ops {
		path := sjsonPath(op.Path)
		switch op.Op {
		case "remove":
			doc, err = sjson.Delete(doc, path)
		case "add", "replace":
			valJSON, jerr := value.ToJSON(op.Value)
			if jerr != nil {
				return value.None(), fmt.Errorf("applydiff: encode value at %s: %w", op.Path, jerr)
			}
			doc, err = sjson.SetRaw(doc, path, valJSON)
		default:
			return value.None(), fmt.Errorf("applydiff: unknown op %q", op.Op)
		}
		if err != nil {
			return value.None(), fmt.Errorf("applydiff: apply %s %s: %w", op.Op, op.Path, err)
		}
	}
	return value.FromJSON(doc), nil
}

func sjsonPath(rfc6902Path string) string {
	out := ""
	for i, seg := range splitPath(rfc6902Path) {
		if i > 0 {
			out += "."
		}
		out += seg
	}
	return out
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	var segs []string
	cur := ""
	for _, r := range p {
		if r == '/' {
			if cur != "" {
				segs = append(segs, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		segs = append(segs, cur)
	}
	return segs
}
