package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealcore/coredb/internal/value"
)

func TestMergeNoneRemovesField(t *testing.T) {
	base := value.Object(map[string]value.Value{"a": value.Int(1), "b": value.Str("x")})
	patch := value.Object(map[string]value.Value{"b": value.None()})
	out := Merge(base, patch)
	assert.True(t, out.Get("b").IsNone())
	assert.Equal(t, int64(1), mustInt(out.Get("a")))
}

func TestMergeNestedObjectRecurses(t *testing.T) {
	base := value.Object(map[string]value.Value{
		"addr": value.Object(map[string]value.Value{"city": value.Str("Chiang Mai"), "zip": value.Str("50000")}),
	})
	patch := value.Object(map[string]value.Value{
		"addr": value.Object(map[string]value.Value{"zip": value.Str("50200")}),
	})
	out := Merge(base, patch)
	addr := out.Get("addr")
	assert.Equal(t, "Chiang Mai", addr.Get("city").AsString())
	assert.Equal(t, "50200", addr.Get("zip").AsString())
}

func TestMergeArrayReplacedWholesale(t *testing.T) {
	base := value.Object(map[string]value.Value{"tags": value.Array([]value.Value{value.Str("a")})})
	patch := value.Object(map[string]value.Value{"tags": value.Array([]value.Value{value.Str("b"), value.Str("c")})})
	out := Merge(base, patch)
	items := out.Get("tags").AsArray()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].AsString())
}

func TestIncrementNumber(t *testing.T) {
	out, err := Increment(value.Int(5), value.Int(3))
	require.NoError(t, err)
	assert.Equal(t, int64(8), mustInt(out))
}

func TestIncrementArrayAppends(t *testing.T) {
	out, err := Increment(value.Array([]value.Value{value.Int(1)}), value.Int(2))
	require.NoError(t, err)
	items := out.AsArray()
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), mustInt(items[1]))
}

func TestDecrementRemovesMatchingElement(t *testing.T) {
	out, err := Decrement(value.Array([]value.Value{value.Int(1), value.Int(2), value.Int(1)}), value.Int(1))
	require.NoError(t, err)
	items := out.AsArray()
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), mustInt(items[0]))
	assert.Equal(t, int64(1), mustInt(items[1]))
}

func TestDiffAndApplyDiffRoundTrip(t *testing.T) {
	before := value.Object(map[string]value.Value{"a": value.Int(1), "b": value.Str("x")})
	after := value.Object(map[string]value.Value{"a": value.Int(2)})
	ops, err := Diff(before, after)
	require.NoError(t, err)
	require.NotEmpty(t, ops)

	patched, err := ApplyDiff(before, ops)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mustInt(patched.Get("a")))
	assert.True(t, patched.Get("b").IsNone() || patched.Get("b").IsNull())
}

func mustInt(v value.Value) int64 {
	i, _ := v.AsNumber().AsInt64()
	return i
}
