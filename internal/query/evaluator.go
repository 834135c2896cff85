package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/surrealcore/coredb/internal/value"
)

// Matcher tests a document against a compiled condition. It is the shape
// internal/changefeed.Matcher and the QEP Filter operator both consume.
type Matcher func(doc value.Value) bool

// Compile parses a condition string and returns a Matcher over documents,
// resolving relative time values (7d, 24h) against now.
func Compile(condition string, now time.Time) (Matcher, error) {
	node, err := Parse(condition)
	if err != nil {
		return nil, fmt.Errorf("query: parse: %w", err)
	}
	e := &evaluator{now: now}
	return e.build(node)
}

type evaluator struct {
	now time.Time
}

func (e *evaluator) build(node Node) (Matcher, error) {
	switch n := node.(type) {
	case *ComparisonNode:
		return e.buildComparison(n)
	case *AndNode:
		left, err := e.build(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.build(n.Right)
		if err != nil {
			return nil, err
		}
		return func(doc value.Value) bool { return left(doc) && right(doc) }, nil
	case *OrNode:
		left, err := e.build(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.build(n.Right)
		if err != nil {
			return nil, err
		}
		return func(doc value.Value) bool { return left(doc) || right(doc) }, nil
	case *NotNode:
		operand, err := e.build(n.Operand)
		if err != nil {
			return nil, err
		}
		return func(doc value.Value) bool { return !operand(doc) }, nil
	default:
		return nil, fmt.Errorf("query: unexpected node type %T", node)
	}
}

// buildComparison compiles a single field comparison into a Matcher. The
// field supports dotted paths (address.city) resolved by repeated Gets,
// mirroring the teacher's metadata.<key> field convention generalized to
// every nesting level rather than just one.
func (e *evaluator) buildComparison(comp *ComparisonNode) (Matcher, error) {
	path := strings.Split(comp.Field, ".")
	literal, err := e.literal(comp)
	if err != nil {
		return nil, err
	}

	switch comp.Op {
	case OpEquals:
		return func(doc value.Value) bool { return value.Equal(resolve(doc, path), literal) }, nil
	case OpNotEquals:
		return func(doc value.Value) bool { return !value.Equal(resolve(doc, path), literal) }, nil
	case OpLess:
		return func(doc value.Value) bool { return value.Compare(resolve(doc, path), literal) < 0 }, nil
	case OpLessEq:
		return func(doc value.Value) bool { return value.Compare(resolve(doc, path), literal) <= 0 }, nil
	case OpGreater:
		return func(doc value.Value) bool { return value.Compare(resolve(doc, path), literal) > 0 }, nil
	case OpGreaterEq:
		return func(doc value.Value) bool { return value.Compare(resolve(doc, path), literal) >= 0 }, nil
	default:
		return nil, fmt.Errorf("query: unsupported operator %s", comp.Op.String())
	}
}

func resolve(doc value.Value, path []string) value.Value {
	cur := doc
	for _, seg := range path {
		cur = cur.Get(seg)
	}
	return cur
}

// literal coerces a comparison's raw token into a value.Value: numbers and
// durations become numeric/datetime values so ordered comparisons behave,
// true/false become Bool, none and null both become None, everything
// else is a string.
func (e *evaluator) literal(comp *ComparisonNode) (value.Value, error) {
	switch comp.ValueType {
	case TokenNumber:
		f, err := strconv.ParseFloat(comp.Value, 64)
		if err != nil {
			return value.None(), fmt.Errorf("query: invalid number %q: %w", comp.Value, err)
		}
		return value.Float(f), nil
	case TokenDuration:
		t, err := e.parseDurationAgo(comp.Value)
		if err != nil {
			return value.None(), err
		}
		return value.Datetime(t), nil
	case TokenIdent:
		switch strings.ToLower(comp.Value) {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		case "none", "null":
			return value.None(), nil
		}
		return value.Str(comp.Value), nil
	default:
		return value.Str(comp.Value), nil
	}
}

// parseDurationAgo turns a compact duration token (7d, 24h, 30m) into
// now minus that duration, for conditions like updated>7d.
func (e *evaluator) parseDurationAgo(s string) (time.Time, error) {
	s = strings.TrimPrefix(s, "+")
	if len(s) == 0 {
		return time.Time{}, fmt.Errorf("query: empty duration")
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]
	var mult time.Duration
	switch unit {
	case 'd':
		mult = 24 * time.Hour
	case 'h':
		mult = time.Hour
	case 'm':
		mult = time.Minute
	case 's':
		mult = time.Second
	case 'w':
		mult = 7 * 24 * time.Hour
	default:
		d, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("query: invalid duration %q: %w", s, err)
		}
		return e.now.Add(-d), nil
	}
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("query: invalid duration %q: %w", s, err)
	}
	return e.now.Add(-time.Duration(n * float64(mult))), nil
}
