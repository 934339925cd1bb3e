package value

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/veltadb/veltadb/veltaerr"
)

// CoerceTo casts v to the target Kind where a lossless or well-defined
// conversion exists, matching the Type/Coercion error kind in §7 when it
// doesn't. Record-id integer keys outside -2^63..2^63 degrade to string per
// §4.3; that degradation happens in the parser, not here.
func CoerceTo(v Value, target Kind) (Value, error) {
	if v.kind == target {
		return v, nil
	}
	switch target {
	case KindString:
		switch v.kind {
		case KindInt64:
			return Str(strconv.FormatInt(v.i, 10)), nil
		case KindFloat64:
			return Str(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
		case KindDecimal:
			return Str(v.dec.String()), nil
		case KindBool:
			return Str(strconv.FormatBool(v.b)), nil
		case KindUuid:
			return Str(v.id.String()), nil
		case KindNone, KindNull:
			return Str(""), nil
		}
	case KindInt64:
		switch v.kind {
		case KindFloat64:
			return Int(int64(v.f)), nil
		case KindDecimal:
			return Int(v.dec.IntPart()), nil
		case KindString:
			n, err := strconv.ParseInt(v.s, 10, 64)
			if err != nil {
				return Value{}, veltaerr.New(veltaerr.KindCoercion, "cannot cast %q to int", v.s)
			}
			return Int(n), nil
		case KindBool:
			if v.b {
				return Int(1), nil
			}
			return Int(0), nil
		}
	case KindFloat64:
		switch v.kind {
		case KindInt64:
			return Float(float64(v.i)), nil
		case KindDecimal:
			f, _ := v.dec.Float64()
			return Float(f), nil
		case KindString:
			f, err := strconv.ParseFloat(v.s, 64)
			if err != nil {
				return Value{}, veltaerr.New(veltaerr.KindCoercion, "cannot cast %q to float", v.s)
			}
			return Float(f), nil
		}
	case KindDecimal:
		switch v.kind {
		case KindInt64:
			return Dec(decimal.NewFromInt(v.i)), nil
		case KindFloat64:
			return Dec(decimal.NewFromFloat(v.f)), nil
		case KindString:
			d, err := decimal.NewFromString(v.s)
			if err != nil {
				return Value{}, veltaerr.New(veltaerr.KindCoercion, "cannot cast %q to decimal", v.s)
			}
			return Dec(d), nil
		}
	case KindBool:
		return Bool(v.IsTruthy()), nil
	}
	return Value{}, veltaerr.New(veltaerr.KindCoercion, "cannot cast %s to %v", v.kind, target)
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int"
	case KindFloat64:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDuration:
		return "duration"
	case KindDatetime:
		return "datetime"
	case KindUuid:
		return "uuid"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindGeometry:
		return "geometry"
	case KindRecordID:
		return "record"
	case KindRange:
		return "range"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}
