package keycodec

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimal key encoding. A decimal compares by (sign, magnitude, digits):
//   - sign bucket: 0 = negative, 1 = zero, 2 = positive — this alone gives
//     the correct neg < zero < pos ordering.
//   - for zero, no further bytes are written.
//   - otherwise, normalize to a non-zero-leading, non-zero-trailing digit
//     string plus "intDigits" (how many of those digits sit left of the
//     decimal point; can be <= 0 for numbers like 0.0056). For two decimals
//     with the same sign, bigger intDigits always means bigger magnitude, so
//     encoding intDigits as a sign-flipped big-endian int orders correctly;
//     at equal intDigits the digit string (escape-terminated so a prefix
//     sorts first) breaks the tie exactly like string comparison does.
//   - for the negative bucket, every magnitude byte is bitwise-complemented:
//     complementing is a monotonic-reversing bijection, so the branch that
//     would otherwise sort "biggest magnitude last" now sorts it first,
//     which is what "more negative" requires. Decoding reverses this by
//     XOR-ing the same bytes back before reading them.
const (
	decSignNeg  byte = 0
	decSignZero byte = 1
	decSignPos  byte = 2
)

func encodeDecimalField(dst []byte, d decimal.Decimal) []byte {
	if d.IsZero() {
		return append(dst, decSignZero)
	}
	neg := d.Sign() < 0
	digits, intDigits := normalizeDecimal(d.Abs())

	var mag []byte
	u := uint32(intDigits) ^ (1 << 31)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], u)
	mag = append(mag, buf[:]...)
	mag = encodeEscaped(mag, []byte(digits))

	if neg {
		dst = append(dst, decSignNeg)
		for _, c := range mag {
			dst = append(dst, ^c)
		}
		return dst
	}
	dst = append(dst, decSignPos)
	return append(dst, mag...)
}

// normalizeDecimal strips leading/trailing zero digits from the unscaled
// coefficient, returning the canonical digit string and the count of digits
// that sit at or left of the decimal point (can be <= 0).
func normalizeDecimal(abs decimal.Decimal) (digits string, intDigits int) {
	coeff := abs.Coefficient() // unscaled integer, no sign (abs already applied)
	exp := int(abs.Exponent())
	digits = coeff.String()
	for len(digits) > 1 && digits[len(digits)-1] == '0' {
		digits = digits[:len(digits)-1]
		exp++
	}
	intDigits = len(digits) + exp
	return digits, intDigits
}

func decodeDecimalField(b []byte) (decimal.Decimal, []byte, error) {
	if len(b) < 1 {
		return decimal.Decimal{}, nil, fmt.Errorf("keycodec: truncated decimal")
	}
	sign := b[0]
	rest := b[1:]
	if sign == decSignZero {
		return decimal.Zero, rest, nil
	}
	mask := byte(0x00)
	if sign == decSignNeg {
		mask = 0xFF
	}
	if len(rest) < 4 {
		return decimal.Decimal{}, nil, fmt.Errorf("keycodec: truncated decimal magnitude")
	}
	var ibuf [4]byte
	for i := 0; i < 4; i++ {
		ibuf[i] = rest[i] ^ mask
	}
	u := binary.BigEndian.Uint32(ibuf[:])
	intDigits := int(int32(u ^ (1 << 31)))
	rest = rest[4:]

	digitsRaw, rest, err := decodeEscapedMasked(rest, mask)
	if err != nil {
		return decimal.Decimal{}, nil, err
	}
	digits := string(digitsRaw)
	exp := intDigits - len(digits)
	coeff := new(big.Int)
	if _, ok := coeff.SetString(digits, 10); !ok {
		return decimal.Decimal{}, nil, fmt.Errorf("keycodec: invalid decimal digits %q", digits)
	}
	d := decimal.NewFromBigInt(coeff, int32(exp))
	if sign == decSignNeg {
		d = d.Neg()
	}
	return d, rest, nil
}

func decodeEscapedMasked(b []byte, mask byte) ([]byte, []byte, error) {
	var out []byte
	i := 0
	for {
		if i >= len(b) {
			return nil, nil, fmt.Errorf("keycodec: unterminated escaped decimal field")
		}
		c := b[i] ^ mask
		if c == 0x00 {
			if i+1 >= len(b) {
				return nil, nil, fmt.Errorf("keycodec: truncated escape sequence")
			}
			c2 := b[i+1] ^ mask
			if c2 == 0x00 {
				return out, b[i+2:], nil
			}
			if c2 == 0xFF {
				out = append(out, 0x00)
				i += 2
				continue
			}
			return nil, nil, fmt.Errorf("keycodec: invalid escape sequence")
		}
		out = append(out, c)
		i++
	}
}
