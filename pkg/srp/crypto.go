package srp

import (
	"fmt"
	"math/big"
)

// hash returns H(parts[0] | parts[1] | ...).
func (g *Group) hash(parts ...[]byte) []byte {
	h := g.Hash.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// pad encodes a group element at the fixed group width.
func (g *Group) pad(x *big.Int) []byte {
	return Pad(x, g.size)
}

// ComputeMultiplier computes k = H(N | PAD(g)).
func (g *Group) ComputeMultiplier() *big.Int {
	return new(big.Int).SetBytes(g.hash(g.pad(g.N), g.pad(g.G)))
}

// ComputeX derives the private key x = H(salt | H(identity | ":" | loginSubKey)).
// The login sub-key is the KDF output; the raw password never reaches this layer.
func (g *Group) ComputeX(identity string, loginSubKey, salt []byte) *big.Int {
	inner := g.hash([]byte(identity), []byte(":"), loginSubKey)
	return new(big.Int).SetBytes(g.hash(salt, inner))
}

// ComputeVerifier computes v = g^x mod N.
func (g *Group) ComputeVerifier(identity string, loginSubKey, salt []byte) *big.Int {
	return ModPow(g.G, g.ComputeX(identity, loginSubKey, salt), g.N)
}

// ValidatePublic rejects a peer public value that is out of range or
// congruent to zero modulo N.
func (g *Group) ValidatePublic(x *big.Int) error {
	if x == nil || x.Sign() <= 0 || x.Cmp(g.N) >= 0 {
		return fmt.Errorf("%w: value out of range", ErrInvalidEphemeral)
	}
	if new(big.Int).Mod(x, g.N).Sign() == 0 {
		return fmt.Errorf("%w: value mod N == 0", ErrInvalidEphemeral)
	}
	return nil
}

// ComputeServerPublic computes B = (k*v + g^b) mod N.
// A result of zero is degenerate; the caller must retry with a fresh b.
func (g *Group) ComputeServerPublic(v, b *big.Int) (*big.Int, error) {
	kv := ModMul(g.k, v, g.N)
	B := new(big.Int).Add(kv, ModPow(g.G, b, g.N))
	B.Mod(B, g.N)

	if B.Sign() == 0 {
		return nil, fmt.Errorf("%w: B mod N == 0", ErrInvalidEphemeral)
	}
	return B, nil
}

// ComputeClientPublic computes A = g^a mod N.
func (g *Group) ComputeClientPublic(a *big.Int) (*big.Int, error) {
	A := ModPow(g.G, a, g.N)
	if A.Sign() == 0 {
		return nil, fmt.Errorf("%w: A mod N == 0", ErrInvalidEphemeral)
	}
	return A, nil
}

// ComputeScrambler computes u = H(PAD(A) | PAD(B)).
//
//nolint:gocritic // A and B are capitalized per RFC 5054 SRP-6a specification
func (g *Group) ComputeScrambler(A, B *big.Int) (*big.Int, error) {
	u := new(big.Int).SetBytes(g.hash(g.pad(A), g.pad(B)))
	if u.Sign() == 0 {
		return nil, fmt.Errorf("%w: u == 0", ErrInvalidEphemeral)
	}
	return u, nil
}

// ComputeSessionKeyServer computes S = (A * v^u)^b mod N.
//
//nolint:gocritic // A is capitalized per RFC 5054 SRP-6a specification
func (g *Group) ComputeSessionKeyServer(A, v, u, b *big.Int) *big.Int {
	base := ModMul(A, ModPow(v, u, g.N), g.N)
	return ModPow(base, b, g.N)
}

// ComputeSessionKeyClient computes S = (B - k*g^x)^(a + u*x) mod N.
//
//nolint:gocritic // B is capitalized per RFC 5054 SRP-6a specification
func (g *Group) ComputeSessionKeyClient(B, x, a, u *big.Int) *big.Int {
	kgx := ModMul(g.k, ModPow(g.G, x, g.N), g.N)

	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, g.N)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)

	return ModPow(base, exp, g.N)
}

// SessionKey computes K = H(PAD(S)).
//
//nolint:gocritic // S is capitalized per RFC 5054 SRP-6a specification
func (g *Group) SessionKey(S *big.Int) []byte {
	return g.hash(g.pad(S))
}

// ComputeM1 computes the client proof
// M1 = H(H(N) XOR H(PAD(g)) | H(identity) | salt | PAD(A) | PAD(B) | K).
//
//nolint:gocritic // A, B, S are capitalized per RFC 5054 SRP-6a specification
func (g *Group) ComputeM1(identity string, salt []byte, A, B, S *big.Int) []byte {
	hN := g.hash(g.pad(g.N))
	hG := g.hash(g.pad(g.G))
	for i := range hN {
		hN[i] ^= hG[i]
	}

	return g.hash(
		hN,
		g.hash([]byte(identity)),
		salt,
		g.pad(A),
		g.pad(B),
		g.SessionKey(S),
	)
}

// ComputeM2 computes the server proof M2 = H(PAD(A) | M1 | K).
//
//nolint:gocritic // A, M1, S are capitalized per RFC 5054 SRP-6a specification
func (g *Group) ComputeM2(A *big.Int, M1 []byte, S *big.Int) []byte {
	return g.hash(g.pad(A), M1, g.SessionKey(S))
}
