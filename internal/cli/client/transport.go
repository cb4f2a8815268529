package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"

	cliTLS "github.com/fzdarsky/srpgate/internal/cli/tls"
)

// errCertificateRejected is returned by the handshake when the user
// declines an unknown certificate.
var errCertificateRejected = errors.New("certificate rejected by user")

// pinVerifier decides during the TLS handshake whether a server certificate
// is trusted, so no request bytes reach an unverified server.
type pinVerifier struct {
	address  string
	pins     *cliTLS.PinStore
	prompter *cliTLS.Prompter
}

func (v *pinVerifier) verify(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("no TLS certificate received from server")
	}
	cert := cs.PeerCertificates[0]

	known, err := v.pins.Check(v.address, cert)
	if err != nil || known {
		return err
	}

	if !v.prompter.AcceptCertificate(v.address, cert) {
		return errCertificateRejected
	}
	if err := v.pins.Add(v.address, cert); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	return nil
}

// NewTOFUTransport returns a transport for the server at address (host:port).
// With a CA bundle it verifies the chain as usual; without one it pins the
// server certificate on first use.
func NewTOFUTransport(address, caCertPath string, pins *cliTLS.PinStore, prompter *cliTLS.Prompter) (*http.Transport, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
	}

	if caCertPath != "" {
		caCert, err := os.ReadFile(caCertPath) // #nosec G304 - caCertPath is user-provided config
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	} else {
		v := &pinVerifier{address: address, pins: pins, prompter: prompter}
		// Chain verification is replaced by the pin check.
		tlsConfig.InsecureSkipVerify = true // #nosec G402
		tlsConfig.VerifyConnection = v.verify
	}

	return &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		TLSClientConfig:   tlsConfig,
		ForceAttemptHTTP2: true,
	}, nil
}
