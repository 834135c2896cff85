package value

// kindOrder fixes the cross-variant total order required by §4.5: None <
// Null < Bool < Number < String < Bytes < UUID < Datetime < Duration <
// Array < Object < Set < RecordID < Geometry < File < Range.
func kindOrder(k Kind) int {
	switch k {
	case KindNone:
		return 0
	case KindNull:
		return 1
	case KindBool:
		return 2
	case KindNumber:
		return 3
	case KindString:
		return 4
	case KindBytes:
		return 5
	case KindUUID:
		return 6
	case KindDatetime:
		return 7
	case KindDuration:
		return 8
	case KindArray:
		return 9
	case KindObject:
		return 10
	case KindSet:
		return 11
	case KindRecordID:
		return 12
	case KindGeometry:
		return 13
	case KindFile:
		return 14
	case KindRange:
		return 15
	default:
		return -1
	}
}

// Compare establishes the total order over Value needed by ordered index
// ranges (C7) and ORDER BY (C9). Values of differing kinds order by
// kindOrder; values of the same kind order by their natural comparison.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		ao, bo := kindOrder(a.kind), kindOrder(b.kind)
		switch {
		case ao < bo:
			return -1
		case ao > bo:
			return 1
		default:
			return 0
		}
	}
	switch a.kind {
	case KindNone, KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindNumber:
		return a.num.Compare(b.num)
	case KindString:
		return compareStrings(a.str, b.str)
	case KindBytes:
		return compareBytes(a.bytes, b.bytes)
	case KindUUID:
		return compareBytes(a.uid[:], b.uid[:])
	case KindDatetime:
		switch {
		case a.datetime.Before(b.datetime):
			return -1
		case a.datetime.After(b.datetime):
			return 1
		default:
			return 0
		}
	case KindDuration:
		switch {
		case a.duration < b.duration:
			return -1
		case a.duration > b.duration:
			return 1
		default:
			return 0
		}
	case KindArray, KindSet:
		av, bv := a.AsArray(), b.AsArray()
		n := len(av)
		if len(bv) < n {
			n = len(bv)
		}
		for i := 0; i < n; i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return compareInt(len(av), len(bv))
	case KindObject:
		ak, bk := a.ObjectKeys(), b.ObjectKeys()
		n := len(ak)
		if len(bk) < n {
			n = len(bk)
		}
		for i := 0; i < n; i++ {
			if c := compareStrings(ak[i], bk[i]); c != 0 {
				return c
			}
			if c := Compare(a.object[ak[i]], b.object[bk[i]]); c != 0 {
				return c
			}
		}
		return compareInt(len(ak), len(bk))
	case KindRecordID:
		if c := compareStrings(a.recordID.Table, b.recordID.Table); c != 0 {
			return c
		}
		return compareRecordIDKey(a.recordID.Key, b.recordID.Key)
	default:
		return 0
	}
}

func compareRecordIDKey(a, b RecordIDKey) int {
	if a.Kind != b.Kind {
		return compareInt(int(a.Kind), int(b.Kind))
	}
	switch a.Kind {
	case RecordIDKeyInt:
		return compareInt64(a.Int, b.Int)
	case RecordIDKeyString:
		return compareStrings(a.Str, b.Str)
	case RecordIDKeyUUID:
		return compareBytes(a.UUID[:], b.UUID[:])
	default:
		return 0
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return compareInt(len(a), len(b))
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b are the same value under Compare's order.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}
