package value

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVariantOrder(t *testing.T) {
	assert.True(t, Less(None(), Null()))
	assert.True(t, Less(Null(), Bool(false)))
	assert.True(t, Less(Bool(true), Int(0)))
	assert.True(t, Less(Int(5), Float(1.0)))
	assert.True(t, Less(Str("a"), Bytes([]byte("a"))))
}

func TestCompareWithinVariant(t *testing.T) {
	assert.True(t, Less(Int(1), Int(2)))
	assert.True(t, Less(Int(-5), Int(0)))
	assert.True(t, Less(Str("abc"), Str("abd")))
	assert.Equal(t, 0, Compare(Float(1.5), Float(1.5)))
}

func TestNaNEqualsNaNButSortsHigh(t *testing.T) {
	nan := Float(math.NaN())
	assert.True(t, Equal(nan, Float(math.NaN())))
	assert.True(t, Less(Float(1.0), nan))
}

func TestNaNJSONIsNull(t *testing.T) {
	b, err := Float(math.NaN()).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestObjectCanonicalKeyOrder(t *testing.T) {
	o := NewObject()
	o.Set("z", Int(1))
	o.Set("a", Int(2))
	o.Set("m", Int(3))
	assert.Equal(t, []string{"a", "m", "z"}, o.Keys())
}

func TestRecordIDString(t *testing.T) {
	rid := NewRecordID("person", Uid(uuid.Nil))
	assert.Equal(t, "person:00000000-0000-0000-0000-000000000000", rid.String())
}

func TestRangeContains(t *testing.T) {
	r := NewRange(Bound{Kind: Included, Value: Int(1)}, Bound{Kind: Excluded, Value: Int(10)})
	assert.True(t, r.Contains(Int(1)))
	assert.True(t, r.Contains(Int(9)))
	assert.False(t, r.Contains(Int(10)))
	assert.False(t, r.Contains(Int(0)))
}

func TestIdiomGetSet(t *testing.T) {
	root := NewObject()
	inner := NewObject()
	inner.Set("y", Int(42))
	root.Set("x", Obj(inner))

	got := Get(Obj(root), ParseIdiom("x.y"))
	n, ok := got.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(42), n)

	out := NewObject()
	Set(out, ParseIdiom("a.b"), Str("hi"))
	s, ok := Get(Obj(out), ParseIdiom("a.b")).AsString()
	require.True(t, ok)
	assert.Equal(t, "hi", s)
}

func TestGeometryValidate(t *testing.T) {
	poly := NewPolygon(Polygon{})
	assert.Error(t, poly.Validate())
	poly2 := NewPolygon(Polygon{Exterior: []Point{{0, 0}, {1, 0}, {1, 1}}})
	assert.NoError(t, poly2.Validate())
}
