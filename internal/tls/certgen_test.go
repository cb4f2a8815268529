package tls

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestGenerateSelfSigned(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls", "server.crt")
	keyPath := filepath.Join(dir, "tls", "server.key")

	require.NoError(t, GenerateSelfSigned(certPath, keyPath, []string{"auth.example.com", "10.0.0.5", "localhost"}, time.Hour))

	cert := readCert(t, certPath)
	assert.Equal(t, "srpgate", cert.Subject.CommonName)
	assert.ElementsMatch(t, []string{"localhost", "auth.example.com"}, cert.DNSNames)
	assert.Len(t, cert.IPAddresses, 3)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cert.NotAfter, time.Minute)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = NewServerConfig(certPath, keyPath)
	assert.NoError(t, err)
}

func TestValidateCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")

	require.NoError(t, GenerateSelfSigned(certPath, keyPath, nil, 0))
	assert.NoError(t, ValidateCertificate(certPath))

	assert.Error(t, ValidateCertificate(filepath.Join(dir, "missing.crt")))

	bad := filepath.Join(dir, "bad.crt")
	require.NoError(t, os.WriteFile(bad, []byte("not pem"), 0o600))
	err := ValidateCertificate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode PEM block")
}

func TestEnsureCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")

	assert.False(t, CertificateExists(certPath, keyPath))

	created, err := EnsureCertificate(certPath, keyPath, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, CertificateExists(certPath, keyPath))

	first := readCert(t, certPath)

	created, err = EnsureCertificate(certPath, keyPath, nil)
	require.NoError(t, err)
	assert.False(t, created, "a valid pair is reused")
	assert.Equal(t, first.SerialNumber, readCert(t, certPath).SerialNumber)
}

func TestNewServerConfig_MissingFiles(t *testing.T) {
	_, err := NewServerConfig("/nonexistent/server.crt", "/nonexistent/server.key")
	assert.Error(t, err)
}
