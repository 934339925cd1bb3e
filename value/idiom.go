package value

import "strconv"

// Idiom is a parsed path expression navigating into a Value, e.g. `a.b[0].c`
// (GLOSSARY). Each Part is either a field name or an array index.
type Idiom []Part

// Part is one step of an Idiom: exactly one of Field set or Index >= 0.
type Part struct {
	Field string
	Index int // -1 when this part is a field access
}

func FieldPart(name string) Part { return Part{Field: name, Index: -1} }
func IndexPart(i int) Part       { return Part{Index: i} }

func ParseIdiom(path string) Idiom {
	var parts Idiom
	field := ""
	flush := func() {
		if field != "" {
			parts = append(parts, FieldPart(field))
			field = ""
		}
	}
	i := 0
	for i < len(path) {
		c := path[i]
		switch {
		case c == '.':
			flush()
			i++
		case c == '[':
			flush()
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if n, err := strconv.Atoi(path[i+1 : j]); err == nil {
				parts = append(parts, IndexPart(n))
			}
			i = j + 1
		default:
			field += string(c)
			i++
		}
	}
	flush()
	return parts
}

func (idiom Idiom) String() string {
	s := ""
	for i, p := range idiom {
		if p.Index >= 0 {
			s += "[" + strconv.Itoa(p.Index) + "]"
		} else {
			if i > 0 {
				s += "."
			}
			s += p.Field
		}
	}
	return s
}

// Get navigates v following the idiom, returning None() if any step is
// absent (expected-absence local recovery per §7's propagation policy).
func Get(v Value, idiom Idiom) Value {
	cur := v
	for _, p := range idiom {
		if p.Index >= 0 {
			arr, ok := cur.AsArray()
			if !ok || p.Index < 0 || p.Index >= len(arr) {
				return None()
			}
			cur = arr[p.Index]
			continue
		}
		obj, ok := cur.AsObject()
		if !ok {
			return None()
		}
		next, ok := obj.Get(p.Field)
		if !ok {
			return None()
		}
		cur = next
	}
	return cur
}

// Set writes value at the idiom path within root, creating intermediate
// objects as needed. Used by Project to build output-path trees (§4.4).
func Set(root *Object, idiom Idiom, v Value) {
	if len(idiom) == 0 {
		return
	}
	cur := root
	for i, p := range idiom {
		last := i == len(idiom)-1
		if p.Field == "" {
			continue // array indices mid-path are not supported for output trees
		}
		if last {
			cur.Set(p.Field, v)
			return
		}
		existing, ok := cur.Get(p.Field)
		if !ok || existing.Kind() != KindObject {
			child := NewObject()
			cur.Set(p.Field, Obj(child))
			cur = child
		} else {
			child, _ := existing.AsObject()
			cur = child
		}
	}
}
