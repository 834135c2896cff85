package value

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	raw := Encode(v)
	out, err := Decode(raw)
	require.NoError(t, err)
	return out
}

func TestEncodeDecodeIntBoundariesSurvive(t *testing.T) {
	for _, i := range []int64{math.MaxInt64, math.MinInt64, 0, -1, 3} {
		out := roundTrip(t, Int(i))
		assert.Equal(t, KindNumber, out.Kind())
		got, ok := out.AsNumber().AsInt64()
		require.True(t, ok)
		assert.Equal(t, i, got)
	}
}

func TestEncodeDecodePreservesIntFloatDistinction(t *testing.T) {
	out := roundTrip(t, Float(3.0))
	assert.Equal(t, NumberFloat, out.AsNumber().Kind())
	assert.Equal(t, 3.0, out.AsNumber().AsFloat64())

	out = roundTrip(t, Int(3))
	assert.Equal(t, NumberInt, out.AsNumber().Kind())
}

func TestEncodeDecodeDecimal(t *testing.T) {
	d := decimal.RequireFromString("12345678901234567890.123456789")
	out := roundTrip(t, Num(NewDecimal(d)))
	assert.Equal(t, NumberDecimal, out.AsNumber().Kind())
	assert.True(t, d.Equal(out.AsNumber().AsDecimal()))
}

func TestEncodeDecodeObjectArraySet(t *testing.T) {
	obj := Object(map[string]Value{
		"n":   Int(42),
		"arr": Array([]Value{Str("a"), Str("b")}),
		"set": Set([]Value{Int(1), Int(2), Int(1)}),
	})
	out := roundTrip(t, obj)
	assert.Equal(t, int64(42), mustInt(out.Get("n")))
	assert.Len(t, out.Get("arr").AsArray(), 2)
	assert.Len(t, out.Get("set").AsArray(), 2)
}

func TestEncodeDecodeRecordID(t *testing.T) {
	rid := RecordID{Table: "person", Key: RecordIDKey{Kind: RecordIDKeyString, Str: "tobie"}}
	out := roundTrip(t, Record(rid))
	require.Equal(t, KindRecordID, out.Kind())
	assert.Equal(t, "person", out.AsRecordID().Table)
	assert.Equal(t, "tobie", out.AsRecordID().Key.Str)
}

func TestEncodeDecodeUUIDBytesDatetimeDuration(t *testing.T) {
	u := uuid.New()
	assert.Equal(t, u, roundTrip(t, UUID(u)).AsUUID())

	b := []byte{0x01, 0x02, 0xff}
	assert.Equal(t, b, roundTrip(t, Bytes(b)).AsBytes())

	now := time.Now().UTC().Round(time.Nanosecond)
	assert.True(t, now.Equal(roundTrip(t, Datetime(now)).AsDatetime()))

	dur := 90 * time.Second
	assert.Equal(t, dur, roundTrip(t, Duration(dur)).AsDuration())
}

func TestEncodeDecodeNoneAndNull(t *testing.T) {
	assert.True(t, roundTrip(t, None()).IsNone())
	assert.True(t, roundTrip(t, Null()).IsNull())
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x01})
	require.Error(t, err)
	var corrupt *CorruptPayload
	assert.ErrorAs(t, err, &corrupt)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	raw := Encode(Str("hello world"))
	_, err := Decode(raw[:len(raw)-2])
	require.Error(t, err)
}
