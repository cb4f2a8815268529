package srp

import (
	"encoding/base64"
	"fmt"
	"math/big"
)

// EncodeInt encodes a group element for the wire: standard base64 of the
// big-endian bytes padded to the group width.
func (g *Group) EncodeInt(x *big.Int) string {
	return base64.StdEncoding.EncodeToString(g.pad(x))
}

// DecodeInt parses a base64 wire integer. Range checks are left to the caller.
func (g *Group) DecodeInt(s string) (*big.Int, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid integer encoding: %w", err)
	}
	if len(raw) == 0 || len(raw) > g.size {
		return nil, fmt.Errorf("invalid integer length %d", len(raw))
	}
	return new(big.Int).SetBytes(raw), nil
}

// EncodeBytes encodes salts and proofs for the wire.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBytes parses a base64 salt or proof.
func DecodeBytes(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	return b, nil
}
