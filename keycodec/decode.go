package keycodec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/veltadb/veltadb/value"
)

// Decode parses one encoded Value from the front of b, returning the value
// and the remaining, unconsumed bytes. It is the inverse of Encode, modulo
// NaN canonicalization (a decoded NaN is a NaN, but -NaN and NaN with
// different payload bits both decode to the canonical math.NaN()).
func Decode(b []byte) (value.Value, []byte, error) {
	if len(b) == 0 {
		return value.Value{}, nil, fmt.Errorf("keycodec: empty input")
	}
	kind := value.Kind(b[0])
	rest := b[1:]
	switch kind {
	case value.KindNone:
		return value.None(), rest, nil
	case value.KindNull:
		return value.Null(), rest, nil
	case value.KindBool:
		if len(rest) < 1 {
			return value.Value{}, nil, fmt.Errorf("keycodec: truncated bool")
		}
		return value.Bool(rest[0] != 0), rest[1:], nil
	case value.KindInt64:
		n, rest, err := decodeInt64(rest)
		return value.Int(n), rest, err
	case value.KindFloat64:
		f, rest, err := decodeFloat64(rest)
		return value.Float(f), rest, err
	case value.KindDecimal:
		d, rest, err := decodeDecimalField(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		return value.Dec(d), rest, nil
	case value.KindString:
		s, rest, err := decodeEscaped(rest)
		return value.Str(string(s)), rest, err
	case value.KindBytes:
		bs, rest, err := decodeEscaped(rest)
		return value.Bytes(bs), rest, err
	case value.KindDuration:
		n, rest, err := decodeInt64(rest)
		return value.Dur(time.Duration(n)), rest, err
	case value.KindDatetime:
		sec, rest, err := decodeInt64(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		nsec, rest, err := decodeInt64(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		return value.Datetime(time.Unix(sec, nsec).UTC()), rest, nil
	case value.KindUuid:
		if len(rest) < 16 {
			return value.Value{}, nil, fmt.Errorf("keycodec: truncated uuid")
		}
		var id uuid.UUID
		copy(id[:], rest[:16])
		return value.Uid(id), rest[16:], nil
	case value.KindArray:
		var items []value.Value
		for {
			if len(rest) >= 2 && rest[0] == 0x00 && rest[1] == 0x00 {
				rest = rest[2:]
				break
			}
			var v value.Value
			var err error
			v, rest, err = Decode(rest)
			if err != nil {
				return value.Value{}, nil, err
			}
			items = append(items, v)
		}
		return value.Array(items...), rest, nil
	case value.KindObject:
		obj := value.NewObject()
		for {
			if len(rest) >= 2 && rest[0] == 0x00 && rest[1] == 0x00 {
				rest = rest[2:]
				break
			}
			var key []byte
			var err error
			key, rest, err = decodeEscaped(rest)
			if err != nil {
				return value.Value{}, nil, err
			}
			var v value.Value
			v, rest, err = Decode(rest)
			if err != nil {
				return value.Value{}, nil, err
			}
			obj.Set(string(key), v)
		}
		return value.Obj(obj), rest, nil
	case value.KindRecordID:
		tbl, rest, err := decodeEscaped(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		key, rest, err := Decode(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		return value.Rid(value.NewRecordID(string(tbl), key)), rest, nil
	case value.KindRange:
		start, rest, err := decodeBound(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		end, rest, err := decodeBound(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		return value.Rng(value.NewRange(start, end)), rest, nil
	case value.KindFile:
		bucket, rest, err := decodeEscaped(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		key, rest, err := decodeEscaped(rest)
		if err != nil {
			return value.Value{}, nil, err
		}
		return value.FileVal(string(bucket), string(key)), rest, nil
	default:
		return value.Value{}, nil, fmt.Errorf("keycodec: unsupported kind %d", kind)
	}
}

func decodeBound(b []byte) (value.Bound, []byte, error) {
	if len(b) < 1 {
		return value.Bound{}, nil, fmt.Errorf("keycodec: truncated bound")
	}
	k := value.BoundKind(b[0])
	rest := b[1:]
	if k == value.Unbounded {
		return value.Bound{Kind: k}, rest, nil
	}
	v, rest, err := Decode(rest)
	if err != nil {
		return value.Bound{}, nil, err
	}
	return value.Bound{Kind: k, Value: v}, rest, nil
}

func decodeInt64(b []byte) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("keycodec: truncated int64")
	}
	u := binary.BigEndian.Uint64(b[:8])
	return int64(u ^ (1 << 63)), b[8:], nil
}

func decodeFloat64(b []byte) (float64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("keycodec: truncated float64")
	}
	bits := binary.BigEndian.Uint64(b[:8])
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), b[8:], nil
}

// decodeEscaped is the inverse of encodeEscaped: it scans until the 0x00
// 0x00 terminator, unescaping 0x00 0xFF back to a single 0x00 byte.
func decodeEscaped(b []byte) ([]byte, []byte, error) {
	var out []byte
	i := 0
	for {
		if i >= len(b) {
			return nil, nil, fmt.Errorf("keycodec: unterminated escaped field")
		}
		if b[i] == 0x00 {
			if i+1 >= len(b) {
				return nil, nil, fmt.Errorf("keycodec: truncated escape sequence")
			}
			if b[i+1] == 0x00 {
				return out, b[i+2:], nil
			}
			if b[i+1] == 0xFF {
				out = append(out, 0x00)
				i += 2
				continue
			}
			return nil, nil, fmt.Errorf("keycodec: invalid escape sequence")
		}
		out = append(out, b[i])
		i++
	}
}
