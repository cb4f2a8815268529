package tls_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	cliTLS "github.com/fzdarsky/srpgate/internal/cli/tls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFingerprint(t *testing.T) {
	cert := newCert(t, "auth.local")

	sum := sha256.Sum256(cert.Raw)
	want := "SHA256:" + base64.StdEncoding.EncodeToString(sum[:])
	assert.Equal(t, want, cliTLS.ComputeFingerprint(cert))
	assert.Equal(t, want, cliTLS.ComputeFingerprint(cert), "stable across calls")
}

func TestComputeFingerprint_SameNameDifferentKey(t *testing.T) {
	a := newCert(t, "auth.local")
	b := newCert(t, "auth.local")
	assert.NotEqual(t, cliTLS.ComputeFingerprint(a), cliTLS.ComputeFingerprint(b))
}

func TestFingerprintMatches(t *testing.T) {
	cert := newCert(t, "auth.local")
	other := newCert(t, "other.local")

	tests := []struct {
		name     string
		expected string
		want     bool
	}{
		{"own fingerprint", cliTLS.ComputeFingerprint(cert), true},
		{"other certificate", cliTLS.ComputeFingerprint(other), false},
		{"empty", "", false},
		{"missing prefix", cliTLS.ComputeFingerprint(cert)[len("SHA256:"):], false},
		{"wrong prefix", "MD5:abcdef123456", false},
		{"garbage", "SHA256:!!!invalid!!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cliTLS.FingerprintMatches(cert, tt.expected))
		})
	}
}

func newCert(t *testing.T, commonName string) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"srpgate test"}},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{commonName},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
