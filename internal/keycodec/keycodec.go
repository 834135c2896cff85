// Package keycodec implements the deterministic, order-preserving binary
// key encoding (C1) that every higher layer addresses the ordered
// key-value backend through. Keys are built from typed segments so that
// byte-wise comparison of two encoded keys matches the natural ordering of
// the segments they were built from, which is what lets C2 range scans
// double as index range scans.
//
// Key layout mirrors the teacher's bucket/table key-prefix convention
// (see erigon-lib/kv/tables.go for the analogous fixed-prefix scheme) but
// is generalized here to the named key families described in spec.md §3
// and supplemented from original_source/core/src/key/*: root keys begin
// with '/', namespace keys with "/?", database and param keys with "/+",
// table/record keys with "/*"; the "!dh" document-head and "!ih"
// index-head families are nested under their owning table key, and the
// "!ml" model head under its owning database key.
package keycodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// CorruptKey is returned by Decode when a byte string cannot be parsed
// back into a well-formed Key, e.g. a truncated segment or invalid tag.
type CorruptKey struct {
	Reason string
}

func (e *CorruptKey) Error() string { return fmt.Sprintf("corrupt key: %s", e.Reason) }

// segTag identifies the wire type of one encoded segment so that Decode
// can recover a typed segment list from a raw byte string.
type segTag byte

const (
	tagBytes segTag = iota + 1 // separator/literal and raw byte segments, length-prefixed
	tagString
	tagUint64
	tagInt64
)

// Key is an ordered, length-prefixed sequence of encoded segments. Key
// values are immutable; use the With* helpers to derive new keys.
type Key struct {
	raw []byte
}

// Bytes returns the encoded wire representation.
func (k Key) Bytes() []byte { return k.raw }

func (k Key) String() string { return fmt.Sprintf("%x", k.raw) }

// Equal reports byte-for-byte equality.
func (k Key) Equal(o Key) bool { return bytes.Equal(k.raw, o.raw) }

// Compare orders two keys by their byte representation, which by
// construction matches the ordering of the segments that built them.
func (k Key) Compare(o Key) int { return bytes.Compare(k.raw, o.raw) }

// builder accumulates segments before sealing them into a Key.
type builder struct {
	buf bytes.Buffer
}

func newBuilder() *builder { return &builder{} }

// literal appends a fixed separator/tag string as a length-prefixed bytes
// segment, using the same wire shape as bytesRaw so Decode only needs one
// case for tagBytes.
func (b *builder) literal(s string) *builder {
	return b.bytesRaw([]byte(s))
}

// str appends a length-prefixed string segment. Length prefixing (rather
// than a terminator) is required because table/namespace/database names
// may contain arbitrary bytes once escaped at a higher layer; here we
// simply trust the caller passed a normalized identifier.
func (b *builder) str(s string) *builder {
	b.buf.WriteByte(byte(tagString))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	b.buf.Write(lenBuf[:])
	b.buf.WriteString(s)
	return b
}

// u64 appends a big-endian uint64 segment. Big-endian encoding makes
// numeric segments order-preserving under byte comparison.
func (b *builder) u64(v uint64) *builder {
	b.buf.WriteByte(byte(tagUint64))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	b.buf.Write(buf[:])
	return b
}

// i64 appends a signed 64-bit integer using the standard sign-flip trick
// so that byte-comparison preserves signed numeric order.
func (b *builder) i64(v int64) *builder {
	return b.u64(uint64(v) ^ (1 << 63))
}

func (b *builder) bytesRaw(v []byte) *builder {
	b.buf.WriteByte(byte(tagBytes))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
	b.buf.Write(lenBuf[:])
	b.buf.Write(v)
	return b
}

func (b *builder) seal() Key { return Key{raw: append([]byte(nil), b.buf.Bytes()...)} }

// --- root-level key family: "/?<ns>" ---------------------------------

// Namespace encodes the root namespace-definition key `/?<ns>`.
func Namespace(ns string) Key {
	return newBuilder().literal("/?").str(ns).seal()
}

// NamespacePrefix returns the prefix under which all namespace keys sort,
// for a full-namespace-table scan.
func NamespacePrefix() Key {
	return newBuilder().literal("/?").seal()
}

// --- namespace-level key family: "/+<ns>*<db>" -----------------------

// Database encodes the database-definition key `/+<ns>*<db>`.
func Database(ns, db string) Key {
	return newBuilder().literal("/+").str(ns).literal("*").str(db).seal()
}

func DatabasePrefix(ns string) Key {
	return newBuilder().literal("/+").str(ns).literal("*").seal()
}

// --- database-level key families: "/*<ns>*<db>*<tb>*..." -------------

// Table encodes the table-definition key.
func Table(ns, db, tb string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("!tb").seal()
}

func tablePrefixBuilder(ns, db, tb string) *builder {
	return newBuilder().literal("/*").str(ns).literal("*").str(db).literal("*").str(tb)
}

// Field encodes a field-definition key under a table.
func Field(ns, db, tb, field string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("!fd").str(field).seal()
}

// Index encodes an index-definition key under a table.
func Index(ns, db, tb, ix string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("!ix").str(ix).seal()
}

// Event encodes an event-definition key under a table.
func Event(ns, db, tb, ev string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("!ev").str(ev).seal()
}

// Param encodes a database-level parameter-definition key.
func Param(ns, db, param string) Key {
	return newBuilder().literal("/+").str(ns).literal("*").str(db).literal("!pa").str(param).seal()
}

// DocumentSequenceHead encodes the "!dh" auto-increment head counter for a
// table's record ids, consumed by the sequence allocator in C3.
func DocumentSequenceHead(ns, db, tb string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("!dh").seal()
}

// IndexSequenceHead encodes the "!ih" head counter an index uses for its
// own internal node/version numbering. Recovered from
// original_source/core/src/key/database/ih.rs: unlike the per-table
// document sequence, this one is keyed per (table, index).
func IndexSequenceHead(ns, db, tb, ix string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("!ih").str(ix).seal()
}

// ModelSequenceHead encodes the "!ml" head counter for machine-learning
// model version numbers, recovered from original_source/core/src/key/database/ml.rs.
func ModelSequenceHead(ns, db, model string) Key {
	return newBuilder().literal("/+").str(ns).literal("*").str(db).literal("!ml").str(model).seal()
}

// --- table-level key families: records, graph edges, index entries ---

// RecordKeyKind discriminates how a record-id key segment is encoded.
type RecordKeyKind byte

const (
	RecordKeyInt RecordKeyKind = iota
	RecordKeyString
	RecordKeyUUID
	RecordKeyArray
)

// Record encodes a document's primary key `/*<ns>*<db>*<tb>*<id>`.
func Record(ns, db, tb string, idKind RecordKeyKind, idBytes []byte) Key {
	b := tablePrefixBuilder(ns, db, tb).literal("*")
	b.buf.WriteByte(byte(idKind))
	b.bytesRaw(idBytes)
	return b.seal()
}

// RecordPrefix returns the prefix for a full table scan over all record
// keys, used by C9's TableScan operator.
func RecordPrefix(ns, db, tb string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("*").seal()
}

// DecodeRecordKey recovers the (idKind, idBytes) pair Record encoded,
// given the same (ns, db, tb) the key was built with. Used by C9's
// TableScan operator to turn a scanned key back into a record id without
// re-deriving the table prefix length by hand at every call site.
func DecodeRecordKey(ns, db, tb string, key []byte) (RecordKeyKind, []byte, error) {
	prefix := RecordPrefix(ns, db, tb).Bytes()
	if len(key) < len(prefix)+1 || !bytes.Equal(key[:len(prefix)], prefix) {
		return 0, nil, &CorruptKey{Reason: "key does not match record prefix"}
	}
	rest := key[len(prefix):]
	idKind := RecordKeyKind(rest[0])
	rest = rest[1:]
	if len(rest) < 5 || segTag(rest[0]) != tagBytes {
		return 0, nil, &CorruptKey{Reason: "malformed record id segment"}
	}
	n := binary.BigEndian.Uint32(rest[1:5])
	if uint32(len(rest)-5) < n {
		return 0, nil, &CorruptKey{Reason: "record id segment overruns key"}
	}
	idBytes := append([]byte(nil), rest[5:5+n]...)
	return idKind, idBytes, nil
}

// Edge encodes one of the four graph-edge pointer entries a relate
// creates (out->~in, out->in, in->~out, in->out), distinguished by dir.
func Edge(ns, db, tb string, idBytes []byte, dir byte, otherTable string, otherID []byte) Key {
	b := tablePrefixBuilder(ns, db, tb).literal("~")
	b.bytesRaw(idBytes)
	b.buf.WriteByte(dir)
	b.str(otherTable)
	b.bytesRaw(otherID)
	return b.seal()
}

// IndexEntry encodes a standard/unique secondary-index entry: the indexed
// value(s) followed by the owning record id, so that range scans over an
// index prefix yield matching records in value order.
func IndexEntry(ns, db, tb, ix string, valueBytes []byte, idBytes []byte) Key {
	b := tablePrefixBuilder(ns, db, tb).literal("+").str(ix)
	b.bytesRaw(valueBytes)
	b.bytesRaw(idBytes)
	return b.seal()
}

func IndexEntryPrefix(ns, db, tb, ix string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("+").str(ix).seal()
}

// IndexEntryValuePrefix seals a key after the value segment only,
// omitting the trailing record-id segment. Because the value segment is
// itself length-prefixed and therefore self-terminating, this is a true
// byte-prefix of every IndexEntry key sharing the same valueBytes
// regardless of how long the subsequent id segment is — unlike
// IndexEntry(ns,db,tb,ix,valueBytes,nil), whose zero-length id segment is
// not a byte-prefix of one with a non-empty id.
func IndexEntryValuePrefix(ns, db, tb, ix string, valueBytes []byte) Key {
	b := tablePrefixBuilder(ns, db, tb).literal("+").str(ix)
	b.bytesRaw(valueBytes)
	return b.seal()
}

func ixPrefixBuilder(ns, db, tb, ix string) *builder {
	return tablePrefixBuilder(ns, db, tb).literal("+").str(ix)
}

// FTSDocRegistry encodes the !bd docId<->record entry for a full-text index.
func FTSDocRegistry(ns, db, tb, ix string, docID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bd").u64(docID).seal()
}

func FTSDocRegistryPrefix(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bd").seal()
}

// FTSDocLength encodes the !bl per-document length entry used for BM25
// normalization.
func FTSDocLength(ns, db, tb, ix string, docID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bl").u64(docID).seal()
}

func FTSDocLengthPrefix(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bl").seal()
}

// FTSTermDict encodes one !bt term-dictionary entry (term -> termId, stats).
func FTSTermDict(ns, db, tb, ix, term string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bt").str(term).seal()
}

func FTSTermDictPrefix(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bt").seal()
}

// FTSPostings encodes one !bp postings entry for a term, keyed further by
// docId so the posting list sorts in docId order on range scan.
func FTSPostings(ns, db, tb, ix string, termID uint64, docID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bp").u64(termID).u64(docID).seal()
}

func FTSPostingsPrefix(ns, db, tb, ix string, termID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bp").u64(termID).seal()
}

// FTSOffsets encodes one !bo offsets entry, used only for highlighting.
func FTSOffsets(ns, db, tb, ix string, termID, docID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bo").u64(termID).u64(docID).seal()
}

// MTreeNode encodes one !vm M-Tree node, addressed by a sequence-allocated
// node id; nodeID 0 is reserved for the tree's root metadata record.
func MTreeNode(ns, db, tb, ix string, nodeID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!vm").u64(nodeID).seal()
}

func MTreeNodePrefix(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!vm").seal()
}

// HNSWMeta encodes the per-index HNSW metadata: entry point, max layer,
// and element count.
func HNSWMeta(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!hm").seal()
}

// HNSWDocMap encodes one !hd docId -> record entry.
func HNSWDocMap(ns, db, tb, ix string, docID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!hd").u64(docID).seal()
}

func HNSWDocMapPrefix(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!hd").seal()
}

// HNSWNode encodes one !hn<layer><elementId> node-edge-list entry.
func HNSWNode(ns, db, tb, ix string, layer int, elementID uint64) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!hn").u64(uint64(layer)).u64(elementID).seal()
}

func HNSWNodePrefix(ns, db, tb, ix string, layer int) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!hn").u64(uint64(layer)).seal()
}

// FTSDocByRecord encodes the !br reverse lookup (record id -> docId), used
// when a record is updated or deleted to find what to retract from the
// term postings without a forward scan.
func FTSDocByRecord(ns, db, tb, ix string, idBytes []byte) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!br").bytesRaw(idBytes).seal()
}

// FTSDocCounter and FTSTermCounter hold the monotonic id allocators for
// docIds and termIds respectively, analogous to C3's sequence heads but
// scoped to one FTS index.
func FTSDocCounter(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bc").literal("d").seal()
}

func FTSTermCounter(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bc").literal("t").seal()
}

// FTSStats holds the corpus-wide doc count and total token length used to
// compute BM25's average document length term.
func FTSStats(ns, db, tb, ix string) Key {
	return ixPrefixBuilder(ns, db, tb, ix).literal("!bs").seal()
}

// ChangeFeedEntry encodes a versionstamped table-mutation-log entry used
// by C8, ordered by the embedded versionstamp so a range scan from a
// watermark yields mutations in commit order.
func ChangeFeedEntry(ns, db, tb string, versionstamp [10]byte) Key {
	b := tablePrefixBuilder(ns, db, tb).literal("#")
	b.buf.Write(versionstamp[:])
	return b.seal()
}

func ChangeFeedPrefix(ns, db, tb string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("#").seal()
}

// ChangeFeedVersionstampCounter holds the database-wide monotonic counter
// backing versionstamp allocation, so versionstamps order commits across
// every table in one database consistently.
func ChangeFeedVersionstampCounter(ns, db string) Key {
	return newBuilder().literal("/?").str(ns).literal("*").str(db).literal("!cfc").seal()
}

// LiveQuery encodes a registered live-query definition key, and
// LiveQueryArchived its post-node-death archive location (see SPEC_FULL
// §6 C8 decision on reconnection semantics).
func LiveQuery(ns, db, tb string, lqID [16]byte) Key {
	b := tablePrefixBuilder(ns, db, tb).literal("!lq")
	b.buf.Write(lqID[:])
	return b.seal()
}

func LiveQueryPrefix(ns, db, tb string) Key {
	return tablePrefixBuilder(ns, db, tb).literal("!lq").seal()
}

// LiveQueryByNode encodes the node-scoped registration of an active live
// query, used by C10 to find and archive a node's live queries when its
// heartbeat expires.
func LiveQueryByNode(node string, lqID [16]byte) Key {
	b := newBuilder().literal("/!nd").str(node).literal("!lq")
	b.buf.Write(lqID[:])
	return b.seal()
}

func LiveQueryByNodePrefix(node string) Key {
	return newBuilder().literal("/!nd").str(node).literal("!lq").seal()
}

func LiveQueryArchived(node string, lqID [16]byte) Key {
	b := newBuilder().literal("/!nd").str(node).literal("!lq")
	b.buf.Write(lqID[:])
	b.literal("!archived")
	return b.seal()
}

// NodeHeartbeat encodes the C10 cluster membership heartbeat key for a
// node id, under a timestamp so a range scan can find expired nodes.
func NodeHeartbeat(node string, unixNano int64) Key {
	return newBuilder().literal("/!hb").i64(unixNano).literal("*").str(node).seal()
}

func NodeHeartbeatPrefix() Key {
	return newBuilder().literal("/!hb").seal()
}

// NodeHeartbeatBefore encodes the exclusive upper bound for a range scan
// over every heartbeat entry with a timestamp strictly less than
// unixNano, regardless of node id (the empty string sorts before every
// real node id within the same timestamp).
func NodeHeartbeatBefore(unixNano int64) Key {
	return newBuilder().literal("/!hb").i64(unixNano).literal("*").str("").seal()
}

// FloatOrderKey maps a float64 to a big-endian uint64 whose unsigned
// byte-order matches IEEE-754 numeric order, for embedding floats inside
// ordered keys (e.g. M-Tree/HNSW auxiliary indices keyed by distance).
func FloatOrderKey(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

// Decode validates that raw is a well-formed sequence of tagged segments
// and returns the number of segments found, or a *CorruptKey error
// identifying where parsing failed. Used by C2 backends that need to
// validate keys read back from untrusted storage.
func Decode(raw []byte) (int, error) {
	i := 0
	count := 0
	for i < len(raw) {
		tag := segTag(raw[i])
		i++
		switch tag {
		case tagBytes:
			// literal and raw byte segments: 4-byte big-endian length, then bytes
			if i+4 <= len(raw) {
				n := binary.BigEndian.Uint32(raw[i : i+4])
				i += 4
				if i+int(n) > len(raw) {
					return count, &CorruptKey{Reason: "bytes segment overruns key"}
				}
				i += int(n)
			} else {
				return count, &CorruptKey{Reason: "truncated bytes segment"}
			}
		case tagString:
			if i+4 > len(raw) {
				return count, &CorruptKey{Reason: "truncated string length"}
			}
			n := binary.BigEndian.Uint32(raw[i : i+4])
			i += 4
			if i+int(n) > len(raw) {
				return count, &CorruptKey{Reason: "string segment overruns key"}
			}
			i += int(n)
		case tagUint64, tagInt64:
			if i+8 > len(raw) {
				return count, &CorruptKey{Reason: "truncated integer segment"}
			}
			i += 8
		default:
			return count, &CorruptKey{Reason: fmt.Sprintf("unknown segment tag %d", tag)}
		}
		count++
	}
	return count, nil
}
