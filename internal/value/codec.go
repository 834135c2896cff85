package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CorruptPayload is returned by Decode when a byte string cannot be parsed
// back into a well-formed Value, mirroring keycodec.CorruptKey for the
// same class of "truncated or malformed wire data" failure, one layer up.
type CorruptPayload struct {
	Reason string
}

func (e *CorruptPayload) Error() string { return fmt.Sprintf("corrupt value payload: %s", e.Reason) }

// codecVersion is the leading byte of every Encode output. Bumping it is
// how a future wire-format change stays self-describing: Decode rejects
// any version it doesn't recognize rather than guessing.
const codecVersion byte = 1

// wireTag identifies the Value variant encoded next, independent of the
// Kind iota so that reordering Kind's constants never changes the wire
// format.
type wireTag byte

const (
	wireNone wireTag = iota + 1
	wireNull
	wireBool
	wireInt
	wireFloat
	wireDecimal
	wireString
	wireBytes
	wireUUID
	wireDatetime
	wireDuration
	wireObject
	wireArray
	wireSet
	wireRecordID
	wireGeometry
	wireFile
	wireRange
)

// recordKeyTag mirrors RecordIDKeyKind on the wire, for the same reason
// wireTag mirrors Kind.
type recordKeyTag byte

const (
	rkInt recordKeyTag = iota + 1
	rkString
	rkUUID
	rkArray
	rkObject
	rkRange
	rkRandom
)

// geometryTag mirrors GeometryKind on the wire.
type geometryTag byte

const (
	gtPoint geometryTag = iota + 1
	gtLine
	gtPolygon
	gtMultiPoint
	gtMultiLine
	gtMultiPolygon
	gtCollection
)

// encoder accumulates the binary payload. Every variable-length field is
// length-prefixed (uint32 big-endian) rather than terminated, matching
// keycodec's str/bytesRaw convention.
type encoder struct {
	buf []byte
}

func (e *encoder) byte(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) i64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) f64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) bool(v bool) {
	if v {
		e.byte(1)
	} else {
		e.byte(0)
	}
}

func (e *encoder) bytes(v []byte) {
	e.u32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) str(v string) { e.bytes([]byte(v)) }

// Encode serializes v into the self-describing, version-prefixed binary
// wire format used for on-disk record payloads: each stored struct leads
// with codecVersion so a future format change can be detected rather than
// silently misparsed. Every Value variant round-trips exactly, including
// the full int64 range and the Int/Float/Decimal distinction that the
// JSON projection in json.go cannot preserve.
func Encode(v Value) []byte {
	e := &encoder{buf: []byte{codecVersion}}
	e.value(v)
	return e.buf
}

func (e *encoder) value(v Value) {
	switch v.kind {
	case KindNone:
		e.byte(byte(wireNone))
	case KindNull:
		e.byte(byte(wireNull))
	case KindBool:
		e.byte(byte(wireBool))
		e.bool(v.b)
	case KindNumber:
		e.number(v.num)
	case KindString:
		e.byte(byte(wireString))
		e.str(v.str)
	case KindBytes:
		e.byte(byte(wireBytes))
		e.bytes(v.bytes)
	case KindUUID:
		e.byte(byte(wireUUID))
		b, _ := v.uid.MarshalBinary()
		e.buf = append(e.buf, b...)
	case KindDatetime:
		e.byte(byte(wireDatetime))
		e.i64(v.datetime.UnixNano())
	case KindDuration:
		e.byte(byte(wireDuration))
		e.i64(int64(v.duration))
	case KindObject:
		e.byte(byte(wireObject))
		keys := v.ObjectKeys()
		e.u32(uint32(len(keys)))
		for _, k := range keys {
			e.str(k)
			e.value(v.object[k])
		}
	case KindArray:
		e.byte(byte(wireArray))
		e.u32(uint32(len(v.array)))
		for _, item := range v.array {
			e.value(item)
		}
	case KindSet:
		e.byte(byte(wireSet))
		e.u32(uint32(len(v.set)))
		for _, item := range v.set {
			e.value(item)
		}
	case KindRecordID:
		e.byte(byte(wireRecordID))
		e.recordID(v.recordID)
	case KindGeometry:
		e.byte(byte(wireGeometry))
		e.geometry(v.geometry)
	case KindFile:
		e.byte(byte(wireFile))
		e.str(v.file.Bucket)
		e.str(v.file.Key)
	case KindRange:
		e.byte(byte(wireRange))
		e.rangeKey(v.rang)
	default:
		e.byte(byte(wireNone))
	}
}

func (e *encoder) number(n Number) {
	switch n.kind {
	case NumberInt:
		e.byte(byte(wireInt))
		e.i64(n.i)
	case NumberFloat:
		e.byte(byte(wireFloat))
		e.f64(n.f)
	default:
		e.byte(byte(wireDecimal))
		// decimal.Decimal.String() is an exact, lossless textual form of
		// the (value, exponent) pair it wraps; round-tripping through it
		// avoids depending on the library's internal gob layout.
		e.str(n.d.String())
	}
}

func (e *encoder) recordID(r RecordID) {
	e.str(r.Table)
	e.recordIDKey(r.Key)
}

func (e *encoder) recordIDKey(k RecordIDKey) {
	switch k.Kind {
	case RecordIDKeyInt:
		e.byte(byte(rkInt))
		e.i64(k.Int)
	case RecordIDKeyString:
		e.byte(byte(rkString))
		e.str(k.Str)
	case RecordIDKeyUUID:
		e.byte(byte(rkUUID))
		b, _ := k.UUID.MarshalBinary()
		e.buf = append(e.buf, b...)
	case RecordIDKeyArray:
		e.byte(byte(rkArray))
		e.u32(uint32(len(k.Array)))
		for _, item := range k.Array {
			e.value(item)
		}
	case RecordIDKeyObject:
		e.byte(byte(rkObject))
		keys := make([]string, 0, len(k.Object))
		for field := range k.Object {
			keys = append(keys, field)
		}
		e.u32(uint32(len(keys)))
		for _, field := range keys {
			e.str(field)
			e.value(k.Object[field])
		}
	case RecordIDKeyRange:
		e.byte(byte(rkRange))
		if k.Range != nil {
			e.rangeKey(*k.Range)
		} else {
			e.rangeKey(RangeKey{})
		}
	case RecordIDKeyRandom:
		e.byte(byte(rkRandom))
	default:
		e.byte(byte(rkString))
		e.str(k.String())
	}
}

func (e *encoder) rangeKey(r RangeKey) {
	e.optionalRecordIDKey(r.Begin)
	e.bool(r.BeginInclude)
	e.optionalRecordIDKey(r.End)
	e.bool(r.EndInclude)
}

func (e *encoder) optionalRecordIDKey(k *RecordIDKey) {
	if k == nil {
		e.bool(false)
		return
	}
	e.bool(true)
	e.recordIDKey(*k)
}

func (e *encoder) geometry(g Geometry) {
	e.byte(byte(geometryTagFor(g.Kind)))
	switch g.Kind {
	case GeometryPoint:
		e.f64(g.Point[0])
		e.f64(g.Point[1])
	case GeometryLine, GeometryMultiPoint:
		e.points(g.Points)
	case GeometryPolygon:
		e.rings(g.Rings)
	case GeometryMultiLine:
		e.rings(g.Rings)
	case GeometryMultiPolygon:
		e.u32(uint32(len(g.Polygons)))
		for _, poly := range g.Polygons {
			e.rings(poly)
		}
	case GeometryCollection:
		e.u32(uint32(len(g.Collection)))
		for _, item := range g.Collection {
			e.geometry(item)
		}
	}
}

func geometryTagFor(k GeometryKind) geometryTag {
	switch k {
	case GeometryPoint:
		return gtPoint
	case GeometryLine:
		return gtLine
	case GeometryPolygon:
		return gtPolygon
	case GeometryMultiPoint:
		return gtMultiPoint
	case GeometryMultiLine:
		return gtMultiLine
	case GeometryMultiPolygon:
		return gtMultiPolygon
	default:
		return gtCollection
	}
}

func (e *encoder) points(pts [][2]float64) {
	e.u32(uint32(len(pts)))
	for _, p := range pts {
		e.f64(p[0])
		e.f64(p[1])
	}
}

func (e *encoder) rings(rings [][][2]float64) {
	e.u32(uint32(len(rings)))
	for _, ring := range rings {
		e.points(ring)
	}
}

// decoder reads the format encoder writes, tracking pos for CorruptPayload
// error messages the same way keycodec.Decode tracks its own offset.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) byte() (byte, error) {
	if d.pos+1 > len(d.buf) {
		return 0, &CorruptPayload{Reason: "truncated tag byte"}
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, &CorruptPayload{Reason: "truncated length"}
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

func (d *decoder) i64() (int64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, &CorruptPayload{Reason: "truncated integer"}
	}
	v := int64(binary.BigEndian.Uint64(d.buf[d.pos : d.pos+8]))
	d.pos += 8
	return v, nil
}

func (d *decoder) f64() (float64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, &CorruptPayload{Reason: "truncated float"}
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(d.buf[d.pos : d.pos+8]))
	d.pos += 8
	return v, nil
}

func (d *decoder) fixed(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, &CorruptPayload{Reason: "truncated fixed field"}
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

func (d *decoder) boolV() (bool, error) {
	b, err := d.byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (d *decoder) bytesV() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	return d.fixed(int(n))
}

func (d *decoder) strV() (string, error) {
	b, err := d.bytesV()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode reverses Encode. An unrecognized codecVersion or a tag/length
// that runs past the end of raw returns a *CorruptPayload error rather
// than a partially-built Value.
func Decode(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return None(), &CorruptPayload{Reason: "empty payload"}
	}
	if raw[0] != codecVersion {
		return None(), &CorruptPayload{Reason: fmt.Sprintf("unsupported codec version %d", raw[0])}
	}
	d := &decoder{buf: raw, pos: 1}
	v, err := d.value()
	if err != nil {
		return None(), err
	}
	return v, nil
}

func (d *decoder) value() (Value, error) {
	tag, err := d.byte()
	if err != nil {
		return None(), err
	}
	switch wireTag(tag) {
	case wireNone:
		return None(), nil
	case wireNull:
		return Null(), nil
	case wireBool:
		b, err := d.boolV()
		if err != nil {
			return None(), err
		}
		return Bool(b), nil
	case wireInt:
		i, err := d.i64()
		if err != nil {
			return None(), err
		}
		return Int(i), nil
	case wireFloat:
		f, err := d.f64()
		if err != nil {
			return None(), err
		}
		return Float(f), nil
	case wireDecimal:
		s, err := d.strV()
		if err != nil {
			return None(), err
		}
		dec, err := decimal.NewFromString(s)
		if err != nil {
			return None(), &CorruptPayload{Reason: "malformed decimal: " + err.Error()}
		}
		return Num(NewDecimal(dec)), nil
	case wireString:
		s, err := d.strV()
		if err != nil {
			return None(), err
		}
		return Str(s), nil
	case wireBytes:
		b, err := d.bytesV()
		if err != nil {
			return None(), err
		}
		return Bytes(append([]byte(nil), b...)), nil
	case wireUUID:
		b, err := d.fixed(16)
		if err != nil {
			return None(), err
		}
		var u uuid.UUID
		if err := u.UnmarshalBinary(b); err != nil {
			return None(), &CorruptPayload{Reason: "malformed uuid: " + err.Error()}
		}
		return UUID(u), nil
	case wireDatetime:
		ns, err := d.i64()
		if err != nil {
			return None(), err
		}
		return Datetime(time.Unix(0, ns).UTC()), nil
	case wireDuration:
		ns, err := d.i64()
		if err != nil {
			return None(), err
		}
		return Duration(time.Duration(ns)), nil
	case wireObject:
		n, err := d.u32()
		if err != nil {
			return None(), err
		}
		fields := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			k, err := d.strV()
			if err != nil {
				return None(), err
			}
			v, err := d.value()
			if err != nil {
				return None(), err
			}
			fields[k] = v
		}
		return Object(fields), nil
	case wireArray:
		n, err := d.u32()
		if err != nil {
			return None(), err
		}
		items := make([]Value, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.value()
			if err != nil {
				return None(), err
			}
			items[i] = v
		}
		return Array(items), nil
	case wireSet:
		n, err := d.u32()
		if err != nil {
			return None(), err
		}
		items := make([]Value, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.value()
			if err != nil {
				return None(), err
			}
			items[i] = v
		}
		return Set(items), nil
	case wireRecordID:
		r, err := d.recordID()
		if err != nil {
			return None(), err
		}
		return Record(r), nil
	case wireGeometry:
		g, err := d.geometry()
		if err != nil {
			return None(), err
		}
		return GeometryValue(g), nil
	case wireFile:
		bucket, err := d.strV()
		if err != nil {
			return None(), err
		}
		key, err := d.strV()
		if err != nil {
			return None(), err
		}
		return FileValue(File{Bucket: bucket, Key: key}), nil
	case wireRange:
		r, err := d.rangeKey()
		if err != nil {
			return None(), err
		}
		return RangeValue(r), nil
	default:
		return None(), &CorruptPayload{Reason: fmt.Sprintf("unknown value tag %d", tag)}
	}
}

func (d *decoder) recordID() (RecordID, error) {
	tb, err := d.strV()
	if err != nil {
		return RecordID{}, err
	}
	k, err := d.recordIDKey()
	if err != nil {
		return RecordID{}, err
	}
	return RecordID{Table: tb, Key: k}, nil
}

func (d *decoder) recordIDKey() (RecordIDKey, error) {
	tag, err := d.byte()
	if err != nil {
		return RecordIDKey{}, err
	}
	switch recordKeyTag(tag) {
	case rkInt:
		i, err := d.i64()
		if err != nil {
			return RecordIDKey{}, err
		}
		return RecordIDKey{Kind: RecordIDKeyInt, Int: i}, nil
	case rkString:
		s, err := d.strV()
		if err != nil {
			return RecordIDKey{}, err
		}
		return RecordIDKey{Kind: RecordIDKeyString, Str: s}, nil
	case rkUUID:
		b, err := d.fixed(16)
		if err != nil {
			return RecordIDKey{}, err
		}
		var u uuid.UUID
		if err := u.UnmarshalBinary(b); err != nil {
			return RecordIDKey{}, &CorruptPayload{Reason: "malformed uuid key: " + err.Error()}
		}
		return RecordIDKey{Kind: RecordIDKeyUUID, UUID: u}, nil
	case rkArray:
		n, err := d.u32()
		if err != nil {
			return RecordIDKey{}, err
		}
		items := make([]Value, n)
		for i := uint32(0); i < n; i++ {
			v, err := d.value()
			if err != nil {
				return RecordIDKey{}, err
			}
			items[i] = v
		}
		return RecordIDKey{Kind: RecordIDKeyArray, Array: items}, nil
	case rkObject:
		n, err := d.u32()
		if err != nil {
			return RecordIDKey{}, err
		}
		fields := make(map[string]Value, n)
		for i := uint32(0); i < n; i++ {
			k, err := d.strV()
			if err != nil {
				return RecordIDKey{}, err
			}
			v, err := d.value()
			if err != nil {
				return RecordIDKey{}, err
			}
			fields[k] = v
		}
		return RecordIDKey{Kind: RecordIDKeyObject, Object: fields}, nil
	case rkRange:
		r, err := d.rangeKey()
		if err != nil {
			return RecordIDKey{}, err
		}
		return RecordIDKey{Kind: RecordIDKeyRange, Range: &r}, nil
	case rkRandom:
		return RecordIDKey{Kind: RecordIDKeyRandom}, nil
	default:
		return RecordIDKey{}, &CorruptPayload{Reason: fmt.Sprintf("unknown record key tag %d", tag)}
	}
}

func (d *decoder) rangeKey() (RangeKey, error) {
	var r RangeKey
	begin, err := d.optionalRecordIDKey()
	if err != nil {
		return RangeKey{}, err
	}
	r.Begin = begin
	if r.BeginInclude, err = d.boolV(); err != nil {
		return RangeKey{}, err
	}
	end, err := d.optionalRecordIDKey()
	if err != nil {
		return RangeKey{}, err
	}
	r.End = end
	if r.EndInclude, err = d.boolV(); err != nil {
		return RangeKey{}, err
	}
	return r, nil
}

func (d *decoder) optionalRecordIDKey() (*RecordIDKey, error) {
	has, err := d.boolV()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	k, err := d.recordIDKey()
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (d *decoder) geometry() (Geometry, error) {
	tag, err := d.byte()
	if err != nil {
		return Geometry{}, err
	}
	switch geometryTag(tag) {
	case gtPoint:
		x, err := d.f64()
		if err != nil {
			return Geometry{}, err
		}
		y, err := d.f64()
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Kind: GeometryPoint, Point: [2]float64{x, y}}, nil
	case gtLine, gtMultiPoint:
		pts, err := d.points()
		if err != nil {
			return Geometry{}, err
		}
		kind := GeometryLine
		if geometryTag(tag) == gtMultiPoint {
			kind = GeometryMultiPoint
		}
		return Geometry{Kind: kind, Points: pts}, nil
	case gtPolygon, gtMultiLine:
		rings, err := d.rings()
		if err != nil {
			return Geometry{}, err
		}
		kind := GeometryPolygon
		if geometryTag(tag) == gtMultiLine {
			kind = GeometryMultiLine
		}
		return Geometry{Kind: kind, Rings: rings}, nil
	case gtMultiPolygon:
		n, err := d.u32()
		if err != nil {
			return Geometry{}, err
		}
		polys := make([][][][2]float64, n)
		for i := uint32(0); i < n; i++ {
			rings, err := d.rings()
			if err != nil {
				return Geometry{}, err
			}
			polys[i] = rings
		}
		return Geometry{Kind: GeometryMultiPolygon, Polygons: polys}, nil
	case gtCollection:
		n, err := d.u32()
		if err != nil {
			return Geometry{}, err
		}
		items := make([]Geometry, n)
		for i := uint32(0); i < n; i++ {
			g, err := d.geometry()
			if err != nil {
				return Geometry{}, err
			}
			items[i] = g
		}
		return Geometry{Kind: GeometryCollection, Collection: items}, nil
	default:
		return Geometry{}, &CorruptPayload{Reason: fmt.Sprintf("unknown geometry tag %d", tag)}
	}
}

func (d *decoder) points() ([][2]float64, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	pts := make([][2]float64, n)
	for i := uint32(0); i < n; i++ {
		x, err := d.f64()
		if err != nil {
			return nil, err
		}
		y, err := d.f64()
		if err != nil {
			return nil, err
		}
		pts[i] = [2]float64{x, y}
	}
	return pts, nil
}

func (d *decoder) rings() ([][][2]float64, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	rings := make([][][2]float64, n)
	for i := uint32(0); i < n; i++ {
		pts, err := d.points()
		if err != nil {
			return nil, err
		}
		rings[i] = pts
	}
	return rings, nil
}
