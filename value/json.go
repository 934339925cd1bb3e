package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
)

// MarshalJSON renders the value for the external response envelope (§6).
// NaN floats become JSON null, per §3.1's "NaN ... produces Null when
// flowing into JSON output."
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNone, KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt64:
		return json.Marshal(v.i)
	case KindFloat64:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.f)
	case KindDecimal:
		return json.Marshal(v.dec.String())
	case KindString:
		return json.Marshal(v.s)
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.byts))
	case KindDuration:
		return json.Marshal(v.dur.String())
	case KindDatetime:
		return json.Marshal(v.dt)
	case KindUuid:
		return json.Marshal(v.id.String())
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			val, _ := v.obj.Get(k)
			vb, err := val.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindRecordID:
		return json.Marshal(v.rid.String())
	case KindRange:
		return json.Marshal(v.rng.String())
	case KindFile:
		return json.Marshal(map[string]string{"bucket": v.file.Bucket, "key": v.file.Key})
	default:
		return json.Marshal(v.String())
	}
}
