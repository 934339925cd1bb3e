// Copyright 2026 The veltadb Authors
// SPDX-License-Identifier: Apache-2.0

// Package value implements the engine-wide universal value: a tagged sum
// type with a total order across every variant, used by the key codec, the
// expression evaluator and the external response envelope alike.
package value

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the variant discriminant. Its numeric order IS the ordering
// priority between variants used by Compare and the key codec: two values of
// different Kind compare by Kind first.
type Kind uint8

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt64
	KindFloat64
	KindDecimal
	KindString
	KindBytes
	KindDuration
	KindDatetime
	KindUuid
	KindArray
	KindObject
	KindGeometry
	KindRecordID
	KindRange
	KindFile
)

// Value is the tagged sum. Only the field matching Kind is meaningful.
type Value struct {
	kind Kind

	b    bool
	i    int64
	f    float64
	dec  decimal.Decimal
	s    string
	byts []byte
	dur  time.Duration
	dt   time.Time
	id   uuid.UUID
	arr  []Value
	obj  *Object
	geo  Geometry
	rid  *RecordID
	rng  *Range
	file *File
}

// Object is an ordered map string -> Value. Keys are kept sorted so encoding
// and iteration are deterministic; insertion order is not semantically
// significant (§3.1).
type Object struct {
	keys []string
	vals map[string]Value
}

// File addresses a blob in an external bucket.
type File struct {
	Bucket string
	Key    string
}

func None() Value      { return Value{kind: KindNone} }
func Null() Value      { return Value{kind: KindNull} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Int(i int64) Value { return Value{kind: KindInt64, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat64, f: f} }
func Dec(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }
func Str(s string) Value  { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value { return Value{kind: KindBytes, byts: append([]byte(nil), b...)} }

// Duration wraps a non-negative nanosecond duration; negative durations are
// clamped to zero since the data model requires duration >= 0 (§3.1).
func Dur(d time.Duration) Value {
	if d < 0 {
		d = 0
	}
	return Value{kind: KindDuration, dur: d}
}

// Datetime normalizes to UTC, matching §3.1's "Datetime (UTC with nanosecond
// precision)".
func Datetime(t time.Time) Value { return Value{kind: KindDatetime, dt: t.UTC()} }

func Uid(u uuid.UUID) Value { return Value{kind: KindUuid, id: u} }

func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

func Obj(o *Object) Value { return Value{kind: KindObject, obj: o} }

func Geom(g Geometry) Value { return Value{kind: KindGeometry, geo: g} }

func Rid(r *RecordID) Value { return Value{kind: KindRecordID, rid: r} }

func Rng(r *Range) Value { return Value{kind: KindRange, rng: r} }

func FileVal(bucket, key string) Value { return Value{kind: KindFile, file: &File{Bucket: bucket, Key: key}} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) IsNullish() bool { return v.kind == KindNone || v.kind == KindNull }

func (v Value) AsBool() (bool, bool)             { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)             { return v.i, v.kind == KindInt64 }
func (v Value) AsFloat() (float64, bool)         { return v.f, v.kind == KindFloat64 }
func (v Value) AsDecimal() (decimal.Decimal, bool) { return v.dec, v.kind == KindDecimal }
func (v Value) AsString() (string, bool)         { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)          { return v.byts, v.kind == KindBytes }
func (v Value) AsDuration() (time.Duration, bool) { return v.dur, v.kind == KindDuration }
func (v Value) AsDatetime() (time.Time, bool)    { return v.dt, v.kind == KindDatetime }
func (v Value) AsUUID() (uuid.UUID, bool)        { return v.id, v.kind == KindUuid }
func (v Value) AsArray() ([]Value, bool)         { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (*Object, bool)        { return v.obj, v.kind == KindObject }
func (v Value) AsGeometry() (Geometry, bool)     { return v.geo, v.kind == KindGeometry }
func (v Value) AsRecordID() (*RecordID, bool)    { return v.rid, v.kind == KindRecordID }
func (v Value) AsRange() (*Range, bool)          { return v.rng, v.kind == KindRange }
func (v Value) AsFile() (*File, bool)            { return v.file, v.kind == KindFile }

// IsTruthy implements the coercion-to-bool rule used by Filter predicates:
// None/Null/false/0/""/empty-array/empty-object are falsy, everything else
// truthy.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindNone, KindNull:
		return false
	case KindBool:
		return v.b
	case KindInt64:
		return v.i != 0
	case KindFloat64:
		return v.f != 0 && !math.IsNaN(v.f)
	case KindDecimal:
		return !v.dec.IsZero()
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) > 0
	case KindObject:
		return v.obj != nil && v.obj.Len() > 0
	default:
		return true
	}
}

// NewObject returns an empty Object; fields are added with Set.
func NewObject() *Object { return &Object{vals: map[string]Value{}} }

func (o *Object) Set(key string, v Value) {
	if o.vals == nil {
		o.vals = map[string]Value{}
	}
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
		sort.Strings(o.keys)
	}
	o.vals[key] = v
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return None(), false
	}
	v, ok := o.vals[key]
	return v, ok
}

func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.vals[key]; !ok {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in canonical (sorted) order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

func (o *Object) Clone() *Object {
	n := NewObject()
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		n.Set(k, v)
	}
	return n
}

func (v Value) String() string {
	switch v.kind {
	case KindNone:
		return "NONE"
	case KindNull:
		return "NULL"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f)
	case KindDecimal:
		return v.dec.String()
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("b\"%x\"", v.byts)
	case KindDuration:
		return v.dur.String()
	case KindDatetime:
		return v.dt.Format(time.RFC3339Nano)
	case KindUuid:
		return v.id.String()
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindObject:
		return fmt.Sprintf("%v", v.obj.vals)
	case KindRecordID:
		return v.rid.String()
	case KindRange:
		return v.rng.String()
	case KindFile:
		return fmt.Sprintf("f:%s/%s", v.file.Bucket, v.file.Key)
	default:
		return "<geometry>"
	}
}
