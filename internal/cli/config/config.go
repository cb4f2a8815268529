package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/fzdarsky/srpgate/pkg/srp"
)

const (
	defaultPort    = 8443
	configFileName = "config.yaml"
	envHost        = "SRPCTL_HOST"
	envPort        = "SRPCTL_PORT"
	envCACert      = "SRPCTL_CA_CERT"
	envInsecure    = "SRPCTL_INSECURE"
	minPort        = 1
	maxPort        = 65535
)

// Config holds the configuration for the srpctl CLI tool.
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	CACert string `yaml:"ca_cert,omitempty"`

	// Insecure talks plain HTTP to a server started with an insecure
	// transport. Local development only.
	Insecure bool `yaml:"insecure,omitempty"`

	// Group and Hash must match the server's auth settings.
	Group string `yaml:"group"`
	Hash  string `yaml:"hash"`

	// AssumeYes answers yes to every prompt, including unknown TLS
	// certificates. Set by the global -y flag only.
	AssumeYes bool `yaml:"-"`
}

// Load reads the config file, then the environment, over the defaults.
// Command-line flags are applied afterwards with ApplyFlags.
func Load() (*Config, error) {
	cfg := &Config{
		Port:  defaultPort,
		Group: srp.Group4096,
		Hash:  "sha256",
	}

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configPath() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func (c *Config) loadFromFile() error {
	path, err := configPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is in the user config directory
	if err != nil {
		return err
	}

	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fileConfig.Host != "" {
		c.Host = fileConfig.Host
	}
	if fileConfig.Port != 0 {
		c.Port = fileConfig.Port
	}
	if fileConfig.CACert != "" {
		c.CACert = fileConfig.CACert
	}
	if fileConfig.Group != "" {
		c.Group = fileConfig.Group
	}
	if fileConfig.Hash != "" {
		c.Hash = fileConfig.Hash
	}
	c.Insecure = c.Insecure || fileConfig.Insecure

	return nil
}

func (c *Config) loadFromEnv() {
	if host := os.Getenv(envHost); host != "" {
		c.Host = host
	}
	if portStr := os.Getenv(envPort); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			c.Port = port
		}
	}
	if caCert := os.Getenv(envCACert); caCert != "" {
		c.CACert = caCert
	}
	if v := os.Getenv(envInsecure); v != "" {
		if insecure, err := strconv.ParseBool(v); err == nil {
			c.Insecure = insecure
		}
	}
}

// ApplyFlags applies command-line flag values; zero values are ignored.
func (c *Config) ApplyFlags(host string, port int, caCert string) {
	if host != "" {
		c.Host = host
	}
	if port != 0 {
		c.Port = port
	}
	if caCert != "" {
		c.CACert = caCert
	}
}

// Validate validates the configuration values. Host may be empty here;
// commands that talk to the server call RequireHost.
func (c *Config) Validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("invalid port %d: must be between %d and %d", c.Port, minPort, maxPort)
	}

	if c.CACert != "" {
		if _, err := os.Stat(c.CACert); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("CA certificate file not found: %s", c.CACert)
			}
			return fmt.Errorf("failed to access CA certificate file %s: %w", c.CACert, err)
		}
	}

	if _, err := srp.LookupGroup(c.Group, c.Hash); err != nil {
		return fmt.Errorf("invalid SRP group: %w", err)
	}

	return nil
}

// RequireHost returns a helpful error when no server host is configured.
func (c *Config) RequireHost() error {
	if c.Host == "" {
		return fmt.Errorf("srpgate server host not specified\n"+
			"Use --host flag, %s environment variable, or add 'host:' to config file:\n"+
			"  Config file location: <UserConfigDir>/srpctl/config.yaml\n"+
			"  Example: host: auth.example.com", envHost)
	}
	return nil
}

// Address returns host:port, bracketing IPv6 literals.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the server's base URL.
func (c *Config) BaseURL() string {
	scheme := "https"
	if c.Insecure {
		scheme = "http"
	}
	return scheme + "://" + c.Address()
}

// Save writes the connection settings to the config file so later commands
// can omit --host.
func (c *Config) Save() error {
	dir, err := UserConfigDir()
	if err != nil {
		return err
	}
	if err := EnsureDir(dir); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// #nosec G306 - no secrets in the CLI config
	if err := os.WriteFile(filepath.Join(dir, configFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
