package value

import "fmt"

// RecordID addresses a record by (table, key). Key may itself be a complex
// Value (integer, string, array, object, uuid, or a Range over keys), per
// §3.1/§3.2.
type RecordID struct {
	Table string
	Key   Value
}

func NewRecordID(table string, key Value) *RecordID {
	return &RecordID{Table: table, Key: key}
}

func (r *RecordID) String() string {
	if r == nil {
		return "NONE"
	}
	switch r.Key.Kind() {
	case KindInt64, KindUuid:
		return fmt.Sprintf("%s:%s", r.Table, r.Key.String())
	case KindString:
		s, _ := r.Key.AsString()
		return fmt.Sprintf("%s:%s", r.Table, s)
	default:
		return fmt.Sprintf("%s:%s", r.Table, r.Key.String())
	}
}

func recordIDCompare(a, b *RecordID) int {
	if c := stringCompare(a.Table, b.Table); c != 0 {
		return c
	}
	return Compare(a.Key, b.Key)
}

// Equal reports whether two record ids address the same record.
func (r *RecordID) Equal(o *RecordID) bool {
	if r == nil || o == nil {
		return r == o
	}
	return recordIDCompare(r, o) == 0
}
