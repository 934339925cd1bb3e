// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package keycodec implements the deterministic binary encoding for
// composite keys (§4.2): lexicographic byte order of the encoding must equal
// the logical order defined by value.Compare, so a byte-prefix of an
// encoded compound key is always a valid scan boundary.
//
// Two encoders exist, per the "endianness/float ordering" design note in §9:
// Encode is the production encoder (byte-packed, prefix-safe); CompareNaive
// (codec_naive.go) is a reference comparator used only by the property
// tests in codec_test.go to cross-check order preservation.
package keycodec

import (
	"encoding/binary"
	"math"

	"github.com/veltadb/veltadb/value"
)

// discriminant mirrors value.Kind's ordering so that encoded bytes sort the
// same way value.Compare does across variants.
func discriminant(k value.Kind) byte { return byte(k) }

// Encode appends the order-preserving encoding of v to dst and returns the
// extended slice.
func Encode(dst []byte, v value.Value) []byte {
	dst = append(dst, discriminant(v.Kind()))
	switch v.Kind() {
	case value.KindNone, value.KindNull:
		return dst
	case value.KindBool:
		b, _ := v.AsBool()
		if b {
			return append(dst, 1)
		}
		return append(dst, 0)
	case value.KindInt64:
		n, _ := v.AsInt()
		return encodeInt64(dst, n)
	case value.KindFloat64:
		f, _ := v.AsFloat()
		return encodeFloat64(dst, f)
	case value.KindDecimal:
		d, _ := v.AsDecimal()
		return encodeDecimalField(dst, d)
	case value.KindString:
		s, _ := v.AsString()
		return encodeEscaped(dst, []byte(s))
	case value.KindBytes:
		b, _ := v.AsBytes()
		return encodeEscaped(dst, b)
	case value.KindDuration:
		d, _ := v.AsDuration()
		return encodeInt64(dst, int64(d))
	case value.KindDatetime:
		t, _ := v.AsDatetime()
		dst = encodeInt64(dst, t.Unix())
		return encodeInt64(dst, int64(t.Nanosecond()))
	case value.KindUuid:
		id, _ := v.AsUUID()
		return append(dst, id[:]...)
	case value.KindArray:
		arr, _ := v.AsArray()
		for _, e := range arr {
			dst = Encode(dst, e)
		}
		return append(dst, 0x00, 0x00) // array terminator, see decode.go
	case value.KindObject:
		obj, _ := v.AsObject()
		for _, k := range obj.Keys() {
			dst = encodeEscaped(dst, []byte(k))
			val, _ := obj.Get(k)
			dst = Encode(dst, val)
		}
		return append(dst, 0x00, 0x00)
	case value.KindRecordID:
		rid, _ := v.AsRecordID()
		dst = encodeEscaped(dst, []byte(rid.Table))
		return Encode(dst, rid.Key)
	case value.KindRange:
		r, _ := v.AsRange()
		dst = encodeBound(dst, r.Start)
		return encodeBound(dst, r.End)
	case value.KindFile:
		f, _ := v.AsFile()
		dst = encodeEscaped(dst, []byte(f.Bucket))
		return encodeEscaped(dst, []byte(f.Key))
	default:
		// Geometry is not range-scanned as an index column; no stable byte
		// encoding is defined for it here.
		return dst
	}
}

func encodeBound(dst []byte, b value.Bound) []byte {
	dst = append(dst, byte(b.Kind))
	if b.Kind == value.Unbounded {
		return dst
	}
	return Encode(dst, b.Value)
}

// encodeInt64 flips the sign bit so negatives sort before positives in
// unsigned big-endian byte order (§4.2).
func encodeInt64(dst []byte, n int64) []byte {
	u := uint64(n) ^ (1 << 63)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], u)
	return append(dst, buf[:]...)
}

// encodeFloat64 applies the standard order-preserving float transform: for
// non-negative floats, flip the sign bit; for negative floats, flip every
// bit. This makes big-endian unsigned comparison match IEEE-754 ordering.
func encodeFloat64(dst []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	return append(dst, buf[:]...)
}

// encodeEscaped implements the "zero-terminated with 0x00-byte escaping"
// string rule from §4.2: every 0x00 byte in b becomes 0x00 0xFF, and the
// whole field ends with a 0x00 0x00 terminator. Because the terminator
// (0x00 0x00) sorts below any escaped-continuation byte (0x00 0xFF) or any
// plain byte (0x01-0xFF), this keeps lexicographic byte order equal to the
// logical order of b, including the "a prefix of a longer string sorts
// first" case, and keeps the encoding self-delimiting for prefix scans over
// compound keys.
func encodeEscaped(dst []byte, b []byte) []byte {
	for _, c := range b {
		if c == 0x00 {
			dst = append(dst, 0x00, 0xFF)
		} else {
			dst = append(dst, c)
		}
	}
	return append(dst, 0x00, 0x00)
}
