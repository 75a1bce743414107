// Package config handles configuration loading for the AS4 engine.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so key passwords and
// paths can be injected at runtime.
//
// # Example Configuration
//
//	pmodes:
//	  journal: /var/lib/as4core/pmodes.xml
//	  default: standard-push
//
//	reliability:
//	  duplicateWindow: 48h
//
//	workers:
//	  count: 8
//
//	keystore:
//	  dir: /etc/as4core/keys
//	  alias: gateway
//	  password: ${KEY_PASSWORD}
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	PModes      PModeConfig       `yaml:"pmodes"`
	Reliability ReliabilityConfig `yaml:"reliability"`
	Workers     WorkerConfig      `yaml:"workers"`
	Keystore    KeystoreConfig    `yaml:"keystore"`
}

// PModeConfig holds the processing mode registry settings
type PModeConfig struct {
	// Journal is the path of the XML journal file backing the store
	Journal string `yaml:"journal"`
	// Default names the registry default used by fallback resolution
	Default string `yaml:"default"`
}

// ReliabilityConfig holds duplicate detection settings
type ReliabilityConfig struct {
	// DuplicateWindow is the disposal horizon for remembered message IDs
	DuplicateWindow time.Duration `yaml:"duplicateWindow"`
}

// WorkerConfig holds background worker pool settings
type WorkerConfig struct {
	// Count is the number of pool workers; 0 means 2×GOMAXPROCS
	Count int `yaml:"count"`
}

// KeystoreConfig holds key material settings
type KeystoreConfig struct {
	// Dir is the directory holding {alias}.key / {alias}.crt PEM files
	Dir string `yaml:"dir"`
	// Alias names the local key pair
	Alias string `yaml:"alias"`
	// Password decrypts the private key when it is PEM-encrypted
	Password string `yaml:"password"`
	// PartnerAlias names the partner certificate ({alias}.crt only)
	PartnerAlias string `yaml:"partnerAlias"`
}

// Load reads, expands, defaults and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PModes.Journal == "" {
		c.PModes.Journal = "pmodes.xml"
	}
	if c.Reliability.DuplicateWindow == 0 {
		c.Reliability.DuplicateWindow = 48 * time.Hour
	}
	if c.Keystore.Dir == "" {
		c.Keystore.Dir = "keys"
	}
}

func (c *Config) validate() error {
	if c.Reliability.DuplicateWindow < 0 {
		return fmt.Errorf("reliability.duplicateWindow must not be negative")
	}
	if c.Workers.Count < 0 {
		return fmt.Errorf("workers.count must not be negative")
	}
	if c.Keystore.Alias == "" {
		return fmt.Errorf("keystore.alias is required")
	}
	if dir := filepath.Dir(c.PModes.Journal); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("pmodes.journal directory: %w", err)
		}
	}
	return nil
}
