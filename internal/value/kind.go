package value

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/shopspring/decimal"
)

func parseDecimal(s string) (Number, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Number{}, err
	}
	return NewDecimal(d), nil
}

// TypeKind discriminates the Kind type-language sum described in §3: the
// primitive kinds plus the composite/constrained forms (option, either,
// array<T,N>, set<T,N>, record<tables...>, geometry<shapes...>,
// literal(v), function, range).
type TypeKind int

const (
	TypeAny TypeKind = iota
	TypePrimitive
	TypeOption
	TypeEither
	TypeArray
	TypeSet
	TypeRecord
	TypeGeometry
	TypeLiteral
	TypeFunction
	TypeRange
)

// Type is one node of the Kind type language. Primitive leaves carry a
// Kind in Prim; composite nodes carry their operand(s) in Of/Alt.
type Type struct {
	TypeKind    TypeKind
	Prim        Kind     // valid when TypeKind == TypePrimitive
	Of          *Type    // Option/Array/Set element type
	Alt         []Type   // Either branches
	Max         int      // Array/Set bound, 0 = unbounded
	Tables      []string // Record: allowed table names, empty = any table
	Shapes      []string // Geometry: allowed shape names, empty = any
	LiteralVal  Value    // Literal: the exact value required
}

func Any() Type                 { return Type{TypeKind: TypeAny} }
func Primitive(k Kind) Type     { return Type{TypeKind: TypePrimitive, Prim: k} }
func Option(t Type) Type        { return Type{TypeKind: TypeOption, Of: &t} }
func Either(alts ...Type) Type  { return Type{TypeKind: TypeEither, Alt: alts} }
func ArrayOf(t Type, max int) Type {
	return Type{TypeKind: TypeArray, Of: &t, Max: max}
}
func SetOf(t Type, max int) Type {
	return Type{TypeKind: TypeSet, Of: &t, Max: max}
}
func RecordOf(tables ...string) Type { return Type{TypeKind: TypeRecord, Tables: tables} }
func GeometryOf(shapes ...string) Type {
	return Type{TypeKind: TypeGeometry, Shapes: shapes}
}
func Literal(v Value) Type   { return Type{TypeKind: TypeLiteral, LiteralVal: v} }
func FunctionType() Type     { return Type{TypeKind: TypeFunction} }
func RangeType() Type        { return Type{TypeKind: TypeRange} }

func (t Type) String() string {
	switch t.TypeKind {
	case TypeAny:
		return "any"
	case TypePrimitive:
		return t.Prim.String()
	case TypeOption:
		return "option<" + t.Of.String() + ">"
	case TypeEither:
		s := ""
		for i, a := range t.Alt {
			if i > 0 {
				s += "|"
			}
			s += a.String()
		}
		return s
	case TypeArray:
		if t.Max > 0 {
			return fmt.Sprintf("array<%s,%d>", t.Of.String(), t.Max)
		}
		return "array<" + t.Of.String() + ">"
	case TypeSet:
		if t.Max > 0 {
			return fmt.Sprintf("set<%s,%d>", t.Of.String(), t.Max)
		}
		return "set<" + t.Of.String() + ">"
	case TypeRecord:
		return "record"
	case TypeGeometry:
		return "geometry"
	case TypeLiteral:
		return "literal"
	case TypeFunction:
		return "function"
	case TypeRange:
		return "range"
	default:
		return "?"
	}
}

// Accepts reports whether v can be coerced to t, i.e. whether Coerce
// returns no error.
func (t Type) Accepts(v Value) bool {
	_, err := Coerce(v, t)
	return err == nil
}

// Coerce attempts to convert v into a value satisfying Kind t, following
// the coercion table in §4.5 (e.g. string -> datetime via RFC3339 or a
// natural-language literal, int -> float, array -> set dedup).
func Coerce(v Value, t Type) (Value, error) {
	switch t.TypeKind {
	case TypeAny:
		return v, nil
	case TypeOption:
		if v.IsNullish() {
			return v, nil
		}
		return Coerce(v, *t.Of)
	case TypeEither:
		var lastErr error
		for _, alt := range t.Alt {
			cv, err := Coerce(v, alt)
			if err == nil {
				return cv, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("coerce: no alternatives in either type")
		}
		return None(), lastErr
	case TypeLiteral:
		if Equal(v, t.LiteralVal) {
			return v, nil
		}
		return None(), fmt.Errorf("coerce: %s does not equal literal %s", v, t.LiteralVal)
	case TypeArray:
		items := v.AsArray()
		if v.Kind() != KindArray && v.Kind() != KindSet {
			return None(), fmt.Errorf("coerce: %s is not an array", v.Kind())
		}
		if t.Max > 0 && len(items) > t.Max {
			return None(), fmt.Errorf("coerce: array length %d exceeds bound %d", len(items), t.Max)
		}
		out := make([]Value, len(items))
		for i, it := range items {
			cv, err := Coerce(it, *t.Of)
			if err != nil {
				return None(), fmt.Errorf("coerce: array element %d: %w", i, err)
			}
			out[i] = cv
		}
		return Array(out), nil
	case TypeSet:
		items := v.AsArray()
		if v.Kind() != KindArray && v.Kind() != KindSet {
			return None(), fmt.Errorf("coerce: %s is not a set", v.Kind())
		}
		out := make([]Value, len(items))
		for i, it := range items {
			cv, err := Coerce(it, *t.Of)
			if err != nil {
				return None(), fmt.Errorf("coerce: set element %d: %w", i, err)
			}
			out[i] = cv
		}
		s := Set(out)
		if t.Max > 0 && len(s.AsArray()) > t.Max {
			return None(), fmt.Errorf("coerce: set length %d exceeds bound %d", len(s.AsArray()), t.Max)
		}
		return s, nil
	case TypeRecord:
		if v.Kind() != KindRecordID {
			return None(), fmt.Errorf("coerce: %s is not a record id", v.Kind())
		}
		if len(t.Tables) == 0 {
			return v, nil
		}
		rid := v.AsRecordID()
		for _, tb := range t.Tables {
			if tb == rid.Table {
				return v, nil
			}
		}
		return None(), fmt.Errorf("coerce: record table %q not in %v", rid.Table, t.Tables)
	case TypeGeometry:
		if v.Kind() != KindGeometry {
			return None(), fmt.Errorf("coerce: %s is not a geometry", v.Kind())
		}
		return v, nil
	case TypeRange:
		if v.Kind() != KindRange {
			return None(), fmt.Errorf("coerce: %s is not a range", v.Kind())
		}
		return v, nil
	case TypeFunction:
		return v, nil
	case TypePrimitive:
		return coercePrimitive(v, t.Prim)
	default:
		return None(), fmt.Errorf("coerce: unknown type kind")
	}
}

func coercePrimitive(v Value, k Kind) (Value, error) {
	if v.Kind() == k {
		return v, nil
	}
	switch k {
	case KindString:
		switch v.Kind() {
		case KindNumber:
			return Str(v.AsNumber().String()), nil
		case KindBool:
			return Str(v.String()), nil
		case KindUUID:
			return Str(v.AsUUID().String()), nil
		case KindDatetime:
			return Str(v.AsDatetime().Format(time.RFC3339Nano)), nil
		}
	case KindNumber:
		if v.Kind() == KindString {
			if i, err := strconv.ParseInt(v.AsString(), 10, 64); err == nil {
				return Int(i), nil
			}
			if f, err := strconv.ParseFloat(v.AsString(), 64); err == nil {
				return Float(f), nil
			}
			if d, err := parseDecimal(v.AsString()); err == nil {
				return Num(d), nil
			}
		}
		if v.Kind() == KindBool {
			if v.AsBool() {
				return Int(1), nil
			}
			return Int(0), nil
		}
	case KindBool:
		switch v.Kind() {
		case KindNumber:
			i, _ := v.AsNumber().AsInt64()
			return Bool(i != 0), nil
		case KindString:
			return Bool(v.AsString() != ""), nil
		}
	case KindDatetime:
		if v.Kind() == KindString {
			if t, err := time.Parse(time.RFC3339Nano, v.AsString()); err == nil {
				return Datetime(t), nil
			}
			if t, err := parseNaturalDatetime(v.AsString()); err == nil {
				return Datetime(t), nil
			}
		}
	case KindDuration:
		if v.Kind() == KindString {
			if d, err := time.ParseDuration(v.AsString()); err == nil {
				return Duration(d), nil
			}
		}
	case KindUUID:
		if v.Kind() == KindString {
			return None(), fmt.Errorf("coerce: invalid uuid string %q", v.AsString())
		}
	}
	return None(), fmt.Errorf("coerce: cannot coerce %s to %s", v.Kind(), k)
}

// parseNaturalDatetime resolves free-form duration/datetime literals such
// as "next monday" or "in 3 days" using the same natural-language parser
// approach the teacher uses for due-date parsing.
func parseNaturalDatetime(s string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("no natural-language match for %q", s)
	}
	return r.Time, nil
}
