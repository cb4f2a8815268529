// Package session persists srpctl login sessions between invocations.
package session

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fzdarsky/srpgate/internal/cli/config"
)

const tokenFileMode = 0o600

// Session is a saved login for one server.
type Session struct {
	Identity string    `yaml:"srp_user_id"`
	Token    string    `yaml:"token"`
	SavedAt  time.Time `yaml:"saved_at"`
}

// Store keeps one session file per server in the user cache directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store in the OS cache directory.
func NewStore() (*Store, error) {
	cacheDir, err := config.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(cacheDir)
}

// NewStoreAt creates a store rooted at dir.
func NewStoreAt(dir string) (*Store, error) {
	if err := config.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Save stores the session for address (host:port), replacing any previous one.
func (s *Store) Save(address, identity, token string) error {
	data, err := yaml.Marshal(&Session{
		Identity: identity,
		Token:    token,
		SavedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.WriteFile(s.Path(address), data, tokenFileMode); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	return nil
}

// Load returns the saved session for address, or nil if there is none.
func (s *Store) Load(address string) (*Session, error) {
	data, err := os.ReadFile(s.Path(address)) // #nosec G304 - name is derived from a hash
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if sess.Token == "" {
		return nil, nil
	}
	return &sess, nil
}

// Delete removes the saved session for address. A missing file is not an error.
func (s *Store) Delete(address string) error {
	if err := os.Remove(s.Path(address)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// Path returns the session file for address: session-<first 8 bytes of
// SHA-256(address) in hex>.yaml.
func (s *Store) Path(address string) string {
	hash := sha256.Sum256([]byte(address))
	return filepath.Join(s.dir, fmt.Sprintf("session-%x.yaml", hash[:8]))
}
