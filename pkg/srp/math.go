package srp

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/big"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)

	// ephemeralBound caps ephemeral secrets at 256 bits.
	ephemeralBound = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 256), bigOne)
)

// ModPow returns base^exp mod m.
func ModPow(base, exp, m *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, m)
}

// ModMul returns a*b mod m.
func ModMul(a, b, m *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, m)
}

// RandomBelow returns a uniformly distributed integer in [0, bound).
// Candidates are drawn with exactly bound.BitLen() random bits and rejected
// when they fall outside the range, so no modulo bias is introduced.
func RandomBelow(rand io.Reader, bound *big.Int) (*big.Int, error) {
	if bound == nil || bound.Sign() <= 0 {
		return nil, errors.New("srp: random bound must be positive")
	}

	bitLen := bound.BitLen()
	buf := make([]byte, (bitLen+7)/8)
	mask := byte(0xff >> uint(len(buf)*8-bitLen))

	for {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return nil, fmt.Errorf("srp: failed to read random bytes: %w", err)
		}
		buf[0] &= mask

		n := new(big.Int).SetBytes(buf)
		if n.Cmp(bound) < 0 {
			return n, nil
		}
	}
}

// ConstantTimeEqual reports whether a and b are equal. The comparison time
// depends only on the lengths, never on the position of the first difference.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Pad encodes x as big-endian bytes left-padded with zeros to width.
// x must be non-negative and fit in width bytes.
func Pad(x *big.Int, width int) []byte {
	return x.FillBytes(make([]byte, width))
}

// GenerateEphemeral draws a non-zero 256-bit ephemeral secret.
func GenerateEphemeral(rand io.Reader) (*big.Int, error) {
	for {
		n, err := RandomBelow(rand, ephemeralBound)
		if err != nil {
			return nil, err
		}
		if n.Sign() != 0 {
			return n, nil
		}
	}
}
