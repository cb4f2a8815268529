// Package kdf derives the key-encryption key and the SRP login sub-key from a
// user password. The server never runs these derivations; they belong to the
// client, which only ever hands the login sub-key to the SRP layer.
package kdf

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

const (
	// KeyLen is the length of the derived key-encryption key.
	KeyLen = 32

	// SaltLen is the length of a freshly generated kekSalt.
	SaltLen = 16

	// LoginSubKeyLen is the number of sub-key bytes fed into SRP.
	LoginSubKeyLen = 16

	loginContext  = "loginctx"
	loginSubKeyID = 1

	minMemLimit = 8 * 1024
)

// Presets mirror the usual argon2id cost levels. MemLimit is in bytes.
var (
	Interactive = Params{OpsLimit: 2, MemLimit: 64 * 1024 * 1024}
	Moderate    = Params{OpsLimit: 3, MemLimit: 256 * 1024 * 1024}
	Sensitive   = Params{OpsLimit: 4, MemLimit: 1024 * 1024 * 1024}
)

// ErrInvalidParams is returned for cost parameters argon2id cannot use.
var ErrInvalidParams = errors.New("kdf: invalid parameters")

// Params are the argon2id cost parameters published as SRP attributes.
type Params struct {
	OpsLimit uint32
	MemLimit uint32
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if p.OpsLimit < 1 {
		return fmt.Errorf("%w: opsLimit must be at least 1", ErrInvalidParams)
	}
	if p.MemLimit < minMemLimit {
		return fmt.Errorf("%w: memLimit must be at least %d bytes", ErrInvalidParams, minMemLimit)
	}
	return nil
}

// NewSalt returns a random kekSalt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKEK stretches password with argon2id into the key-encryption key.
func DeriveKEK(password, kekSalt []byte, p Params) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(kekSalt) == 0 {
		return nil, fmt.Errorf("%w: empty kekSalt", ErrInvalidParams)
	}
	return argon2.IDKey(password, kekSalt, p.OpsLimit, p.MemLimit/1024, 1, KeyLen), nil
}

// DeriveLoginSubKey derives the SRP login sub-key from the KEK with a keyed
// BLAKE2b over the login context and sub-key id.
func DeriveLoginSubKey(kek []byte) ([]byte, error) {
	h, err := blake2b.New(KeyLen, kek)
	if err != nil {
		return nil, fmt.Errorf("failed to init blake2b: %w", err)
	}

	var id [8]byte
	binary.LittleEndian.PutUint64(id[:], loginSubKeyID)
	h.Write(id[:])
	h.Write([]byte(loginContext))

	return h.Sum(nil)[:LoginSubKeyLen], nil
}

// LoginSubKey runs both derivations and wipes the intermediate KEK.
func LoginSubKey(password, kekSalt []byte, p Params) ([]byte, error) {
	kek, err := DeriveKEK(password, kekSalt, p)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range kek {
			kek[i] = 0
		}
	}()
	return DeriveLoginSubKey(kek)
}
