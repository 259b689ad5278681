package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCiphers is the cipher set applied when a channel has no explicit
// selection in the YAML file.
var DefaultCiphers = []string{
	"aes128-cbc", "aes192-cbc", "aes256-cbc",
	"aes128-ctr", "aes192-ctr", "aes256-ctr",
	"aes128-gcm", "aes256-gcm",
}

// supportedCiphers is the suite set PAN-OS firmware enumerates for the SSH
// mgmt/ha services; anything else would be rejected by the device anyway, so
// catch typos at load time.
var supportedCiphers = map[string]bool{
	"aes128-cbc": true,
	"aes192-cbc": true,
	"aes256-cbc": true,
	"aes128-ctr": true,
	"aes192-ctr": true,
	"aes256-ctr": true,
	"aes128-gcm": true,
	"aes256-gcm": true,
}

const (
	defaultTimeout      = 10  // seconds per API call
	defaultWaitInterval = 60  // seconds between reconnect attempts
	defaultWaitTimeout  = 900 // seconds before giving up on a restarting device
)

// FirewallConfig defines the connection settings for the target firewall
type FirewallConfig struct {
	Host         string `yaml:"host"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	APIKey       string `yaml:"api_key"`
	Timeout      int    `yaml:"timeout"`
	WaitInterval int    `yaml:"wait_interval"`
	WaitTimeout  int    `yaml:"wait_timeout"`
}

// CipherConfig defines the desired cipher suites per SSH service
type CipherConfig struct {
	Mgmt []string `yaml:"mgmt"`
	HA   []string `yaml:"ha"`
}

// Config defines the global configuration
type Config struct {
	Firewall FirewallConfig `yaml:"firewall"`
	Ciphers  CipherConfig   `yaml:"ciphers"`
	Sandbox  bool           `yaml:"-"`
}

// CiphersFor returns the desired cipher list for the given service
func (c *Config) CiphersFor(service string) []string {
	if service == "ha" {
		return c.Ciphers.HA
	}
	return c.Ciphers.Mgmt
}

func validateCiphers(ciphers []string, context string) error {
	for _, cipher := range ciphers {
		if !supportedCiphers[strings.ToLower(strings.TrimSpace(cipher))] {
			return fmt.Errorf("unsupported cipher %q in %s", cipher, context)
		}
	}
	return nil
}

// Load loads and validates configuration from a YAML file. A plain run
// applies changes; dryRun puts the run in sandbox mode.
func Load(yamlFile string, dryRun bool) (*Config, error) {
	data, err := os.ReadFile(yamlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %v", yamlFile, err)
	}
	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %v", err)
	}

	// Environment variables override file credentials
	if v := os.Getenv("PAN_USERNAME"); v != "" {
		cfg.Firewall.Username = v
	}
	if v := os.Getenv("PAN_PASSWORD"); v != "" {
		cfg.Firewall.Password = v
	}
	if v := os.Getenv("PAN_API_KEY"); v != "" {
		cfg.Firewall.APIKey = v
	}

	if cfg.Firewall.Host == "" {
		return nil, fmt.Errorf("firewall host is required in the YAML configuration")
	}

	if cfg.Firewall.APIKey == "" {
		if cfg.Firewall.Username == "" {
			return nil, fmt.Errorf("firewall username is required when api_key is not set")
		}
		if cfg.Firewall.Password == "" {
			return nil, fmt.Errorf("firewall password is required when api_key is not set")
		}
	}

	if cfg.Firewall.Timeout == 0 {
		cfg.Firewall.Timeout = defaultTimeout
	} else if cfg.Firewall.Timeout < 0 {
		return nil, fmt.Errorf("firewall timeout %d is invalid, must be positive", cfg.Firewall.Timeout)
	}

	if cfg.Firewall.WaitInterval == 0 {
		cfg.Firewall.WaitInterval = defaultWaitInterval
	} else if cfg.Firewall.WaitInterval < 0 {
		return nil, fmt.Errorf("firewall wait_interval %d is invalid, must be positive", cfg.Firewall.WaitInterval)
	}

	if cfg.Firewall.WaitTimeout == 0 {
		cfg.Firewall.WaitTimeout = defaultWaitTimeout
	} else if cfg.Firewall.WaitTimeout < 0 {
		return nil, fmt.Errorf("firewall wait_timeout %d is invalid, must be positive", cfg.Firewall.WaitTimeout)
	}

	if len(cfg.Ciphers.Mgmt) == 0 {
		cfg.Ciphers.Mgmt = DefaultCiphers
	}
	if len(cfg.Ciphers.HA) == 0 {
		cfg.Ciphers.HA = DefaultCiphers
	}
	if err := validateCiphers(cfg.Ciphers.Mgmt, "ciphers.mgmt"); err != nil {
		return nil, err
	}
	if err := validateCiphers(cfg.Ciphers.HA, "ciphers.ha"); err != nil {
		return nil, err
	}

	cfg.Sandbox = dryRun

	return &cfg, nil
}
