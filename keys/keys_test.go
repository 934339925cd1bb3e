package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veltadb/veltadb/kv"
	"github.com/veltadb/veltadb/value"
)

func TestPrimaryKeyWithinTablePrefix(t *testing.T) {
	k := PrimaryKey("test", "test", "person", value.Int(42))
	assert.True(t, bytes.HasPrefix(k, TablePrefix("test", "test", "person")))
	assert.True(t, bytes.Compare(k, PrimaryKeyEnd("test", "test", "person")) < 0)
}

func TestDifferentTablesDoNotOverlap(t *testing.T) {
	p1 := TablePrefix("test", "test", "person")
	p2 := TablePrefix("test", "test", "pet")
	assert.False(t, bytes.HasPrefix(p2, p1))
	k1 := PrimaryKey("test", "test", "person", value.Int(1))
	assert.False(t, bytes.HasPrefix(k1, p2))
}

func TestIndexKeyUniqueOmitsIDSuffix(t *testing.T) {
	uniq := IndexKey("test", "test", "t", "i", []value.Value{value.Int(1)}, value.Int(5), true)
	nonUniq := IndexKey("test", "test", "t", "i", []value.Value{value.Int(1)}, value.Int(5), false)
	assert.True(t, bytes.HasPrefix(nonUniq, uniq))
	assert.NotEqual(t, uniq, nonUniq)
}

func TestCompoundIndexPrefixScan(t *testing.T) {
	row1 := IndexKey("t", "d", "tb", "i", []value.Value{value.Int(1), value.Int(10)}, value.Int(100), false)
	row2 := IndexKey("t", "d", "tb", "i", []value.Value{value.Int(1), value.Int(20)}, value.Int(101), false)
	row3 := IndexKey("t", "d", "tb", "i", []value.Value{value.Int(2), value.Int(5)}, value.Int(102), false)
	prefixA1 := IndexValuePrefix("t", "d", "tb", "i", []value.Value{value.Int(1)})
	assert.True(t, bytes.HasPrefix(row1, prefixA1))
	assert.True(t, bytes.HasPrefix(row2, prefixA1))
	assert.False(t, bytes.HasPrefix(row3, prefixA1))
}

func TestChangeFeedKeysIncreaseWithVersionstamp(t *testing.T) {
	k1 := ChangeFeedKey("t", "d", "tb", kv.VSFromUint64(1))
	k2 := ChangeFeedKey("t", "d", "tb", kv.VSFromUint64(2))
	assert.True(t, bytes.Compare(k1, k2) < 0)
}
