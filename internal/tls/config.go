package tls

import (
	"crypto/tls"
	"fmt"
)

// NewServerConfig loads the key pair and returns a TLS 1.3-only server config.
func NewServerConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		// Session keys never outlive the process.
		SessionTicketsDisabled: true,
		ClientAuth:             tls.NoClientCert,
	}, nil
}
