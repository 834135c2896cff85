package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ToJSON projects a Value onto plain JSON. Decimals, bytes, uuids,
// datetimes, durations, sets, record ids and files are encoded as a
// single-field tagged object ($decimal, $bytes, ...). FromJSON restores
// all of these except $file, which comes back as a plain object; a
// record id comes back with a string key whatever its original key kind.
// Geometry and range values project to null, and an integral float comes
// back from FromJSON as an int. This
// projection is what the change-feed DIFF/JSON-Patch path (merge.Diff) and
// any external JSON export operate on.
func ToJSON(v Value) (string, error) {
	b, err := json.Marshal(toJSONAny(v))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toJSONAny(v Value) interface{} {
	switch v.kind {
	case KindNone, KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		switch v.num.kind {
		case NumberInt:
			return v.num.i
		case NumberFloat:
			return v.num.f
		default:
			return map[string]interface{}{"$decimal": v.num.d.String()}
		}
	case KindString:
		return v.str
	case KindBytes:
		return map[string]interface{}{"$bytes": base64.StdEncoding.EncodeToString(v.bytes)}
	case KindUUID:
		return map[string]interface{}{"$uuid": v.uid.String()}
	case KindDatetime:
		return map[string]interface{}{"$datetime": v.datetime.Format(time.RFC3339Nano)}
	case KindDuration:
		return map[string]interface{}{"$duration": v.duration.String()}
	case KindArray:
		out := make([]interface{}, len(v.array))
		for i, item := range v.array {
			out[i] = toJSONAny(item)
		}
		return out
	case KindSet:
		out := make([]interface{}, len(v.set))
		for i, item := range v.set {
			out[i] = toJSONAny(item)
		}
		return map[string]interface{}{"$set": out}
	case KindObject:
		out := make(map[string]interface{}, len(v.object))
		for k, fv := range v.object {
			out[k] = toJSONAny(fv)
		}
		return out
	case KindRecordID:
		return map[string]interface{}{"$record": v.recordID.String()}
	case KindFile:
		return map[string]interface{}{"$file": fmt.Sprintf("%s/%s", v.file.Bucket, v.file.Key)}
	default:
		return nil
	}
}

// FromJSON reverses ToJSON's projection, recognizing the tagged-object
// shapes it emits. Untagged JSON (plain numbers, strings, objects, arrays)
// maps onto the corresponding Value constructors directly.
func FromJSON(raw string) Value {
	var any interface{}
	if err := json.Unmarshal([]byte(raw), &any); err != nil {
		return None()
	}
	return fromJSONAny(any)
}

func fromJSONAny(a interface{}) Value {
	switch t := a.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return Float(t)
	case string:
		return Str(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = fromJSONAny(it)
		}
		return Array(items)
	case map[string]interface{}:
		if len(t) == 1 {
			if dv, ok := t["$decimal"].(string); ok {
				d, err := parseDecimal(dv)
				if err == nil {
					return Num(d)
				}
			}
			if bv, ok := t["$bytes"].(string); ok {
				b, err := base64.StdEncoding.DecodeString(bv)
				if err == nil {
					return Bytes(b)
				}
			}
			if uv, ok := t["$uuid"].(string); ok {
				u, err := uuid.Parse(uv)
				if err == nil {
					return UUID(u)
				}
			}
			if dv, ok := t["$datetime"].(string); ok {
				tm, err := time.Parse(time.RFC3339Nano, dv)
				if err == nil {
					return Datetime(tm)
				}
			}
			if dv, ok := t["$duration"].(string); ok {
				d, err := time.ParseDuration(dv)
				if err == nil {
					return Duration(d)
				}
			}
			if rv, ok := t["$record"].(string); ok {
				return Record(parseRecordIDString(rv))
			}
			if sv, ok := t["$set"].([]interface{}); ok {
				items := make([]Value, len(sv))
				for i, it := range sv {
					items[i] = fromJSONAny(it)
				}
				return Set(items)
			}
		}
		fields := make(map[string]Value, len(t))
		for k, fv := range t {
			fields[k] = fromJSONAny(fv)
		}
		return Object(fields)
	default:
		return None()
	}
}

func parseRecordIDString(s string) RecordID {
	for i, r := range s {
		if r == ':' {
			return RecordID{Table: s[:i], Key: RecordIDKey{Kind: RecordIDKeyString, Str: s[i+1:]}}
		}
	}
	return RecordID{Table: s}
}
