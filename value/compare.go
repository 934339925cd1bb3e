package value

import (
	"bytes"
	"math"
)

// Compare defines the total order across every Value variant required by
// §3.1/§8: different kinds compare by Kind first (None < Null < Bool <
// Int64 < Float64 < Decimal < String < Bytes < Duration < Datetime < Uuid <
// Array < Object < Geometry < RecordID < Range < File), then by content.
//
// NaN compares equal to NaN here (hashing/equality in keys, per §3.1); it is
// canonicalized to Null only when marshaled to JSON (see MarshalJSON).
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNone, KindNull:
		return 0
	case KindBool:
		return boolCompare(a.b, b.b)
	case KindInt64:
		return intCompare(a.i, b.i)
	case KindFloat64:
		return floatCompare(a.f, b.f)
	case KindDecimal:
		return a.dec.Cmp(b.dec)
	case KindString:
		return stringCompare(a.s, b.s)
	case KindBytes:
		return bytes.Compare(a.byts, b.byts)
	case KindDuration:
		return intCompare(int64(a.dur), int64(b.dur))
	case KindDatetime:
		if a.dt.Before(b.dt) {
			return -1
		} else if a.dt.After(b.dt) {
			return 1
		}
		return 0
	case KindUuid:
		return bytes.Compare(a.id[:], b.id[:])
	case KindArray:
		return arrayCompare(a.arr, b.arr)
	case KindObject:
		return objectCompare(a.obj, b.obj)
	case KindGeometry:
		return geometryCompare(a.geo, b.geo)
	case KindRecordID:
		return recordIDCompare(a.rid, b.rid)
	case KindRange:
		return rangeCompare(a.rng, b.rng)
	case KindFile:
		if c := stringCompare(a.file.Bucket, b.file.Bucket); c != 0 {
			return c
		}
		return stringCompare(a.file.Key, b.file.Key)
	default:
		return 0
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func intCompare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// floatCompare treats NaN as equal to NaN and greater than every other float,
// matching the key-codec requirement that the ordering be total.
func floatCompare(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func stringCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func arrayCompare(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return intCompare(int64(len(a)), int64(len(b)))
}

func objectCompare(a, b *Object) int {
	ak, bk := a.Keys(), b.Keys()
	n := len(ak)
	if len(bk) < n {
		n = len(bk)
	}
	for i := 0; i < n; i++ {
		if c := stringCompare(ak[i], bk[i]); c != 0 {
			return c
		}
		av, _ := a.Get(ak[i])
		bv, _ := b.Get(bk[i])
		if c := Compare(av, bv); c != 0 {
			return c
		}
	}
	return intCompare(int64(len(ak)), int64(len(bk)))
}

// Equal reports whether a and b compare equal under Compare (used for key
// equality and NaN-tolerant hashing).
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Less reports a < b under the total order.
func Less(a, b Value) bool { return Compare(a, b) < 0 }
