// Package value implements the runtime Value and Kind (type) system shared
// by every layer above the key-value transaction layer: the document
// processor, the secondary index engines, and the query execution plan all
// exchange data as Value.
//
// A Value is a closed sum of variants (null, bool, number, string, bytes,
// uuid, datetime, duration, object, array, set, record id, geometry, file,
// range). Construction always goes through one of the constructor
// functions (None, Null, Bool, Int, Str, Object, Record, ...) so
// that the zero Value is unambiguously None.
package value

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind tags the variant stored in a Value. The zero Kind is KindNone.
type Kind int

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindBytes
	KindUUID
	KindDatetime
	KindDuration
	KindObject
	KindArray
	KindSet
	KindRecordID
	KindGeometry
	KindFile
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindUUID:
		return "uuid"
	case KindDatetime:
		return "datetime"
	case KindDuration:
		return "duration"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindSet:
		return "set"
	case KindRecordID:
		return "record"
	case KindGeometry:
		return "geometry"
	case KindFile:
		return "file"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NumberKind discriminates the closed sum of numeric representations.
type NumberKind int

const (
	NumberInt NumberKind = iota
	NumberFloat
	NumberDecimal
)

// Number is the closed sum int64/float64/decimal.Decimal described in §3.
// Comparison between subtypes is value-preserving: int(3) == float(3.0) ==
// dec(3).
type Number struct {
	kind NumberKind
	i    int64
	f    float64
	d    decimal.Decimal
}

func NewInt(i int64) Number     { return Number{kind: NumberInt, i: i} }
func NewFloat(f float64) Number { return Number{kind: NumberFloat, f: f} }
func NewDecimal(d decimal.Decimal) Number {
	return Number{kind: NumberDecimal, d: d}
}

func (n Number) Kind() NumberKind { return n.kind }

// AsDecimal widens any numeric subtype to decimal.Decimal, the common
// ground used for cross-subtype arithmetic and comparison.
func (n Number) AsDecimal() decimal.Decimal {
	switch n.kind {
	case NumberInt:
		return decimal.NewFromInt(n.i)
	case NumberFloat:
		return decimal.NewFromFloat(n.f)
	case NumberDecimal:
		return n.d
	default:
		return decimal.Zero
	}
}

func (n Number) AsFloat64() float64 {
	switch n.kind {
	case NumberInt:
		return float64(n.i)
	case NumberFloat:
		return n.f
	case NumberDecimal:
		f, _ := n.d.Float64()
		return f
	default:
		return 0
	}
}

func (n Number) AsInt64() (int64, bool) {
	switch n.kind {
	case NumberInt:
		return n.i, true
	case NumberFloat:
		if n.f != float64(int64(n.f)) {
			return 0, false
		}
		return int64(n.f), true
	case NumberDecimal:
		if !n.d.Equal(n.d.Truncate(0)) {
			return 0, false
		}
		return n.d.IntPart(), true
	default:
		return 0, false
	}
}

func (n Number) String() string {
	switch n.kind {
	case NumberInt:
		return fmt.Sprintf("%d", n.i)
	case NumberFloat:
		return fmt.Sprintf("%g", n.f)
	case NumberDecimal:
		return n.d.String()
	default:
		return "0"
	}
}

// Compare orders two numbers regardless of subtype.
func (n Number) Compare(o Number) int {
	return n.AsDecimal().Cmp(o.AsDecimal())
}

// Add, Sub implement the arithmetic half of C5's Increment/Decrement rule.
func (n Number) Add(o Number) Number {
	if n.kind == NumberInt && o.kind == NumberInt {
		return NewInt(n.i + o.i)
	}
	if n.kind == NumberDecimal || o.kind == NumberDecimal {
		return NewDecimal(n.AsDecimal().Add(o.AsDecimal()))
	}
	return NewFloat(n.AsFloat64() + o.AsFloat64())
}

func (n Number) Sub(o Number) Number {
	if n.kind == NumberInt && o.kind == NumberInt {
		return NewInt(n.i - o.i)
	}
	if n.kind == NumberDecimal || o.kind == NumberDecimal {
		return NewDecimal(n.AsDecimal().Sub(o.AsDecimal()))
	}
	return NewFloat(n.AsFloat64() - o.AsFloat64())
}

// RecordIDKey is the closed sum of key shapes a RecordId may carry.
type RecordIDKeyKind int

const (
	RecordIDKeyInt RecordIDKeyKind = iota
	RecordIDKeyString
	RecordIDKeyUUID
	RecordIDKeyArray
	RecordIDKeyObject
	RecordIDKeyRange
	RecordIDKeyRandom
)

// RecordIDKey holds exactly one populated field per RecordIDKeyKind.
type RecordIDKey struct {
	Kind   RecordIDKeyKind
	Int    int64
	Str    string
	UUID   uuid.UUID
	Array  []Value
	Object map[string]Value
	Range  *RangeKey
}

// RangeKey bounds a record-id range scan; either bound may be absent.
type RangeKey struct {
	Begin        *RecordIDKey
	BeginInclude bool
	End          *RecordIDKey
	EndInclude   bool
}

func (k RecordIDKey) String() string {
	switch k.Kind {
	case RecordIDKeyInt:
		return fmt.Sprintf("%d", k.Int)
	case RecordIDKeyString:
		return k.Str
	case RecordIDKeyUUID:
		return k.UUID.String()
	case RecordIDKeyArray:
		return fmt.Sprintf("%v", k.Array)
	case RecordIDKeyObject:
		return fmt.Sprintf("%v", k.Object)
	case RecordIDKeyRange:
		return "range"
	case RecordIDKeyRandom:
		return "⟨random⟩"
	default:
		return "?"
	}
}

// RecordID is the (TableName, RecordIdKey) pair addressing a document.
type RecordID struct {
	Table string
	Key   RecordIDKey
}

func (r RecordID) String() string {
	return fmt.Sprintf("%s:%s", r.Table, r.Key.String())
}

func (r RecordID) IsZero() bool { return r.Table == "" }

// Versionstamp is the 10-byte monotonic commit identifier issued by C3.
type Versionstamp [10]byte

func (v Versionstamp) Compare(o Versionstamp) int {
	for i := range v {
		if v[i] != o[i] {
			if v[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (v Versionstamp) IsZero() bool {
	return v == Versionstamp{}
}

// GeometryKind discriminates the GeoJSON-shaped geometry sum.
type GeometryKind int

const (
	GeometryPoint GeometryKind = iota
	GeometryLine
	GeometryPolygon
	GeometryMultiPoint
	GeometryMultiLine
	GeometryMultiPolygon
	GeometryCollection
)

// Geometry mirrors the GeoJSON shapes named in §3: point, line, polygon,
// multi*, collection.
type Geometry struct {
	Kind       GeometryKind
	Point      [2]float64
	Points     [][2]float64   // Line, MultiPoint
	Rings      [][][2]float64 // Polygon: first ring is exterior
	Polygons   [][][][2]float64
	Collection []Geometry
}

// File is a reference into a configured storage Bucket (C3/C4 Bucket
// catalog entity), not inline file content.
type File struct {
	Bucket string
	Key    string
}

// Value is the sum type described in §3. Exactly one field is meaningful,
// selected by Kind. The zero Value is None (absence of any assignment,
// distinct from Null which is an explicit NULL literal).
type Value struct {
	kind     Kind
	b        bool
	num      Number
	str      string
	bytes    []byte
	uid      uuid.UUID
	datetime time.Time
	duration time.Duration
	object   map[string]Value
	// objectKeys preserves nothing semantically (object key order is
	// irrelevant per §3) but is kept so Equal/round-trip tests are
	// deterministic about iteration order.
	objectKeys []string
	array      []Value
	set        []Value
	recordID   RecordID
	geometry   Geometry
	file       File
	rang       RangeKey
}

func None() Value                 { return Value{kind: KindNone} }
func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Num(n Number) Value          { return Value{kind: KindNumber, num: n} }
func Int(i int64) Value           { return Num(NewInt(i)) }
func Float(f float64) Value       { return Num(NewFloat(f)) }
func Str(s string) Value          { return Value{kind: KindString, str: s} }
func Bytes(b []byte) Value        { return Value{kind: KindBytes, bytes: b} }
func UUID(u uuid.UUID) Value      { return Value{kind: KindUUID, uid: u} }
func Datetime(t time.Time) Value  { return Value{kind: KindDatetime, datetime: t} }
func Duration(d time.Duration) Value {
	return Value{kind: KindDuration, duration: d}
}
func Record(r RecordID) Value { return Value{kind: KindRecordID, recordID: r} }
func GeometryValue(g Geometry) Value {
	return Value{kind: KindGeometry, geometry: g}
}
func FileValue(f File) Value { return Value{kind: KindFile, file: f} }
func RangeValue(r RangeKey) Value {
	return Value{kind: KindRange, rang: r}
}

// Object builds an object Value. Keys must be unique; insertion order is
// irrelevant per §3, and keys are kept in sorted order for deterministic
// iteration.
func Object(fields map[string]Value) Value {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, object: cp, objectKeys: keys}
}

func EmptyObject() Value { return Object(nil) }

func Array(items []Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, array: cp}
}

// Set builds a deduplicated, canonically ordered Set Value.
func Set(items []Value) Value {
	out := make([]Value, 0, len(items))
	for _, it := range items {
		found := false
		for _, existing := range out {
			if Equal(existing, it) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
	return Value{kind: KindSet, set: out}
}

func (v Value) Kind() Kind          { return v.kind }
func (v Value) IsNone() bool        { return v.kind == KindNone }
func (v Value) IsNull() bool        { return v.kind == KindNull }
func (v Value) IsNullish() bool     { return v.kind == KindNone || v.kind == KindNull }
func (v Value) AsBool() bool        { return v.b }
func (v Value) AsNumber() Number    { return v.num }
func (v Value) AsString() string    { return v.str }
func (v Value) AsBytes() []byte     { return v.bytes }
func (v Value) AsUUID() uuid.UUID   { return v.uid }
func (v Value) AsDatetime() time.Time    { return v.datetime }
func (v Value) AsDuration() time.Duration { return v.duration }
func (v Value) AsRecordID() RecordID { return v.recordID }
func (v Value) AsGeometry() Geometry { return v.geometry }
func (v Value) AsFile() File         { return v.file }
func (v Value) AsRange() RangeKey    { return v.rang }

// AsArray returns the underlying slice for Array or Set kinds, nil otherwise.
func (v Value) AsArray() []Value {
	switch v.kind {
	case KindArray:
		return v.array
	case KindSet:
		return v.set
	default:
		return nil
	}
}

// AsObject returns the field map for an Object kind, nil otherwise.
func (v Value) AsObject() map[string]Value {
	if v.kind != KindObject {
		return nil
	}
	return v.object
}

// ObjectKeys returns the sorted key list of an Object Value.
func (v Value) ObjectKeys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.objectKeys
}

// Get looks up a single object field, returning None if absent or if the
// receiver is not an Object.
func (v Value) Get(field string) Value {
	if v.kind != KindObject {
		return None()
	}
	if val, ok := v.object[field]; ok {
		return val
	}
	return None()
}

// WithField returns a copy of the receiver with field set to val. NONE
// removes the field, matching the merge rule in §4.5.
func (v Value) WithField(field string, val Value) Value {
	fields := make(map[string]Value, len(v.object)+1)
	for k, fv := range v.object {
		fields[k] = fv
	}
	if val.IsNone() {
		delete(fields, field)
	} else {
		fields[field] = val
	}
	return Object(fields)
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "NONE"
	case KindNull:
		return "NULL"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.num.String()
	case KindString:
		return v.str
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bytes))
	case KindUUID:
		return v.uid.String()
	case KindDatetime:
		return v.datetime.Format(time.RFC3339Nano)
	case KindDuration:
		return v.duration.String()
	case KindRecordID:
		return v.recordID.String()
	case KindObject:
		return fmt.Sprintf("{%d fields}", len(v.object))
	case KindArray:
		return fmt.Sprintf("[%d items]", len(v.array))
	case KindSet:
		return fmt.Sprintf("<%d items>", len(v.set))
	case KindGeometry:
		return "geometry"
	case KindFile:
		return fmt.Sprintf("file:%s/%s", v.file.Bucket, v.file.Key)
	case KindRange:
		return "range"
	default:
		return "?"
	}
}
