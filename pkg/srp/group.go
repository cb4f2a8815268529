// Package srp provides the SRP-6a (Secure Remote Password) primitives shared by
// the srpgate server and its clients: group parameters, modular arithmetic,
// the RFC 5054 derivations and the client-side handshake.
package srp

import (
	"crypto"
	// Register the hash implementations selectable by name.
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// Group names accepted by LookupGroup.
const (
	Group2048 = "rfc5054-2048"
	Group4096 = "rfc5054-4096"
)

// MinGroupBits is the smallest modulus a deployment may configure.
const MinGroupBits = 2048

// RFC 5054 Appendix A moduli. Both sides MUST use identical values.
const (
	rfc5054N2048 = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
		"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
		"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
		"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
		"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
		"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
		"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
		"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

	rfc5054N4096 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
		"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
		"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
		"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33" +
		"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
		"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864" +
		"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2" +
		"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A92108011A723C12A787E6D7" +
		"88719A10BDBA5B2699C327186AF4E23C1A946834B6150BDA2583E9CA2AD44CE8" +
		"DBBBC2DB04DE8EF92E8EFC141FBECAA6287C59474E6BC05D99B2964FA090C3A2" +
		"233BA186515BE7ED1F612970CEE2D7AFB81BDD762170481CD0069127D5B05AA9" +
		"93B4EA988D8FDDC186FFB7DC90A6C08F4DF435C934063199FFFFFFFFFFFFFFFF"
)

// Group holds the SRP group parameters (N, g), the agreed hash and the
// derived multiplier k. A Group is immutable and safe for concurrent use.
type Group struct {
	Name string
	N    *big.Int
	G    *big.Int
	Hash crypto.Hash

	k    *big.Int
	size int // byte length of N; every integer is padded to this width
}

// NewGroup validates the parameters and returns a ready-to-use group.
// N must be a safe prime and g must lie in [2, N-1].
//
//nolint:gocritic // N is capitalized per RFC 5054 SRP-6a specification
func NewGroup(name string, N, g *big.Int, h crypto.Hash) (*Group, error) {
	if N == nil || g == nil {
		return nil, fmt.Errorf("%w: missing modulus or generator", ErrInvalidGroupParameter)
	}
	if !h.Available() {
		return nil, fmt.Errorf("%w: hash %v is not available", ErrInvalidGroupParameter, h)
	}
	if N.Sign() <= 0 || N.Bit(0) != 1 {
		return nil, fmt.Errorf("%w: N must be a positive odd integer", ErrInvalidGroupParameter)
	}
	if !N.ProbablyPrime(1) {
		return nil, fmt.Errorf("%w: N is not prime", ErrInvalidGroupParameter)
	}
	q := new(big.Int).Rsh(N, 1)
	if !q.ProbablyPrime(1) {
		return nil, fmt.Errorf("%w: N is not a safe prime", ErrInvalidGroupParameter)
	}
	if g.Cmp(big.NewInt(2)) < 0 || g.Cmp(new(big.Int).Sub(N, bigOne)) > 0 {
		return nil, fmt.Errorf("%w: g must be in [2, N-1]", ErrInvalidGroupParameter)
	}

	grp := &Group{
		Name: name,
		N:    new(big.Int).Set(N),
		G:    new(big.Int).Set(g),
		Hash: h,
		size: (N.BitLen() + 7) / 8,
	}
	grp.k = grp.ComputeMultiplier()
	return grp, nil
}

// ByteLen returns the fixed width used when encoding group elements.
func (g *Group) ByteLen() int {
	return g.size
}

// Bits returns the size of the modulus in bits.
func (g *Group) Bits() int {
	return g.N.BitLen()
}

// K returns the SRP-6a multiplier k = H(N | PAD(g)).
func (g *Group) K() *big.Int {
	return new(big.Int).Set(g.k)
}

type groupKey struct {
	name string
	hash crypto.Hash
}

var (
	groupsMu sync.Mutex
	groups   = map[groupKey]*Group{}
)

// LookupGroup returns one of the named RFC 5054 groups combined with the
// named hash ("sha256" or "sha512"). Groups are validated once and cached.
func LookupGroup(name, hashName string) (*Group, error) {
	h, err := ParseHash(hashName)
	if err != nil {
		return nil, err
	}

	var hexN string
	var gen int64
	switch name {
	case Group2048:
		hexN, gen = rfc5054N2048, 2
	case Group4096:
		hexN, gen = rfc5054N4096, 5
	default:
		return nil, fmt.Errorf("%w: unknown group %q", ErrInvalidGroupParameter, name)
	}

	groupsMu.Lock()
	defer groupsMu.Unlock()

	key := groupKey{name: name, hash: h}
	if grp, ok := groups[key]; ok {
		return grp, nil
	}

	N, ok := new(big.Int).SetString(hexN, 16)
	if !ok {
		return nil, fmt.Errorf("%w: malformed modulus for %s", ErrInvalidGroupParameter, name)
	}
	grp, err := NewGroup(name, N, big.NewInt(gen), h)
	if err != nil {
		return nil, err
	}
	groups[key] = grp
	return grp, nil
}

// ParseHash maps a configuration hash name to a crypto.Hash.
func ParseHash(name string) (crypto.Hash, error) {
	switch strings.ToLower(name) {
	case "", "sha256", "sha-256":
		return crypto.SHA256, nil
	case "sha512", "sha-512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: unsupported hash %q", ErrInvalidGroupParameter, name)
	}
}
