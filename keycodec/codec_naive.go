package keycodec

import (
	"fmt"
	"math/big"

	"github.com/veltadb/veltadb/value"
)

// CompareNaive is the "naive specification encoder" referenced by §9's
// design note: instead of producing bytes, it directly compares two values
// the obvious, unoptimized way (big.Float/big.Int arithmetic, plain string
// comparison) and is used only to cross-check Encode's byte-order output in
// codec_test.go's property tests. It intentionally does not handle every
// Kind — only the ones exercised by order-preservation property tests.
func CompareNaive(a, b value.Value) (int, error) {
	if a.Kind() != b.Kind() {
		return 0, fmt.Errorf("keycodec: CompareNaive requires equal kinds, got %v and %v", a.Kind(), b.Kind())
	}
	switch a.Kind() {
	case value.KindInt64:
		ai, _ := a.AsInt()
		bi, _ := b.AsInt()
		return big.NewInt(ai).Cmp(big.NewInt(bi)), nil
	case value.KindFloat64:
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return big.NewFloat(af).Cmp(big.NewFloat(bf)), nil
	case value.KindString:
		as, _ := a.AsString()
		bs, _ := b.AsString()
		if as < bs {
			return -1, nil
		}
		if as > bs {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("keycodec: CompareNaive does not support kind %v", a.Kind())
	}
}
