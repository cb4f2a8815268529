package tls

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fzdarsky/srpgate/internal/cli/config"
)

const pinsFileName = "known_servers.yaml"

// ErrPinMismatch means a server presented a different certificate than the
// one pinned for its address.
var ErrPinMismatch = errors.New("certificate does not match pinned fingerprint")

// Pin is the trusted certificate fingerprint of one server address.
type Pin struct {
	Address     string    `yaml:"address"`
	Fingerprint string    `yaml:"fingerprint"`
	Subject     string    `yaml:"subject,omitempty"`
	PinnedAt    time.Time `yaml:"pinned_at"`
}

// PinStore is the srpctl list of trusted server certificates, kept as YAML
// in the user config directory.
type PinStore struct {
	mu   sync.Mutex
	path string
	pins map[string]Pin // key: host:port
	now  func() time.Time
}

// NewPinStore opens the pin file in the user config directory.
func NewPinStore() (*PinStore, error) {
	dir, err := config.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewPinStoreAt(dir)
}

// NewPinStoreAt opens the pin file in dir, creating dir if needed.
func NewPinStoreAt(dir string) (*PinStore, error) {
	if err := config.EnsureDir(dir); err != nil {
		return nil, err
	}

	s := &PinStore{
		path: filepath.Join(dir, pinsFileName),
		pins: make(map[string]Pin),
		now:  time.Now,
	}

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var list []Pin
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	for _, p := range list {
		s.pins[p.Address] = p
	}
	return s, nil
}

// Path returns the location of the pin file.
func (s *PinStore) Path() string {
	return s.path
}

// Lookup returns the pin for address.
func (s *PinStore) Lookup(address string) (Pin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pins[address]
	return p, ok
}

// Check compares cert with the pin for address. It reports false with a nil
// error when address has no pin yet.
func (s *PinStore) Check(address string, cert *x509.Certificate) (bool, error) {
	p, ok := s.Lookup(address)
	if !ok {
		return false, nil
	}
	if !FingerprintMatches(cert, p.Fingerprint) {
		return false, fmt.Errorf("%w for %s\n"+
			"Pinned: %s\n"+
			"Got:    %s\n"+
			"If the server certificate was rotated on purpose, remove its entry from %s",
			ErrPinMismatch, address, p.Fingerprint, ComputeFingerprint(cert), s.path)
	}
	return true, nil
}

// Add pins cert for address, replacing any previous pin, and saves the file.
func (s *PinStore) Add(address string, cert *x509.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pins[address] = Pin{
		Address:     address,
		Fingerprint: ComputeFingerprint(cert),
		Subject:     cert.Subject.String(),
		PinnedAt:    s.now().UTC(),
	}
	return s.saveLocked()
}

// Remove forgets the pin for address.
func (s *PinStore) Remove(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pins, address)
	return s.saveLocked()
}

func (s *PinStore) saveLocked() error {
	list := make([]Pin, 0, len(s.pins))
	for _, p := range s.pins {
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b Pin) int { return strings.Compare(a.Address, b.Address) })

	data, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal pins: %w", err)
	}

	// #nosec G306 - fingerprints are public
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}
