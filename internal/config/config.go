package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration of the RSSP service.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Verifier       VerifierConfig       `yaml:"verifier"`
	TrustedIssuers TrustedIssuersConfig `yaml:"trusted_issuers"`
	Revocation     RevocationConfig     `yaml:"revocation"`
	SessionToken   TokenConfig          `yaml:"session_token"`
	SAD            SADConfig            `yaml:"sad"`
}

type ServerConfig struct {
	// Addr is the listen address. Defaults to :8080.
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type VerifierConfig struct {
	// URL is the base of the verifier presentation API,
	// e.g. https://verifier.example/ui/presentations.
	URL string `yaml:"url"`

	// Address is the client_id the wallet deep link carries.
	Address      string        `yaml:"address"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

type TrustedIssuersConfig struct {
	Folder string `yaml:"folder"`
}

type RevocationConfig struct {
	// URL of the revocation status service. Empty disables revocation
	// checking.
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TokenConfig struct {
	Secret          string `yaml:"secret"`
	LifetimeMinutes int    `yaml:"lifetime_minutes"`
}

func (t TokenConfig) Lifetime() time.Duration {
	return time.Duration(t.LifetimeMinutes) * time.Minute
}

type SADConfig struct {
	TokenConfig `yaml:",inline"`
	Type        string `yaml:"type"`
}

const (
	defaultAddr                 = ":8080"
	defaultPollInterval         = time.Second
	defaultVerifierTimeout      = 60 * time.Second
	defaultRevocationTimeout    = 5 * time.Second
	defaultSessionLifetimeMins  = 60
	defaultSADLifetimeMins      = 5
	defaultSADType              = "SAD"
	defaultTrustedIssuersFolder = "trusted_issuers"
)

var envOverrides = []struct {
	name  string
	field func(*Config) *string
}{
	{"RSSP_JWT_SECRET", func(c *Config) *string { return &c.SessionToken.Secret }},
	{"RSSP_SAD_SECRET", func(c *Config) *string { return &c.SAD.Secret }},
	{"RSSP_VERIFIER_URL", func(c *Config) *string { return &c.Verifier.URL }},
	{"RSSP_VERIFIER_ADDRESS", func(c *Config) *string { return &c.Verifier.Address }},
	{"RSSP_REVOCATION_URL", func(c *Config) *string { return &c.Revocation.URL }},
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. An empty path starts from an empty
// configuration.
func Load(path string) (*Config, error) {
	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			*o.field(&config) = v
		}
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Verifier.PollInterval == 0 {
		c.Verifier.PollInterval = defaultPollInterval
	}
	if c.Verifier.Timeout == 0 {
		c.Verifier.Timeout = defaultVerifierTimeout
	}
	if c.Revocation.Timeout == 0 {
		c.Revocation.Timeout = defaultRevocationTimeout
	}
	if c.TrustedIssuers.Folder == "" {
		c.TrustedIssuers.Folder = defaultTrustedIssuersFolder
	}
	if c.SessionToken.LifetimeMinutes == 0 {
		c.SessionToken.LifetimeMinutes = defaultSessionLifetimeMins
	}
	if c.SAD.LifetimeMinutes == 0 {
		c.SAD.LifetimeMinutes = defaultSADLifetimeMins
	}
	if c.SAD.Type == "" {
		c.SAD.Type = defaultSADType
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Verifier.URL == "" {
		return fmt.Errorf("verifier.url is required")
	}
	if c.Verifier.Address == "" {
		return fmt.Errorf("verifier.address is required")
	}
	if c.Verifier.PollInterval < 0 || c.Verifier.Timeout < 0 {
		return fmt.Errorf("verifier.poll_interval and verifier.timeout must be positive")
	}
	if c.Verifier.PollInterval > c.Verifier.Timeout {
		return fmt.Errorf("verifier.poll_interval %v exceeds verifier.timeout %v", c.Verifier.PollInterval, c.Verifier.Timeout)
	}
	if c.SessionToken.Secret == "" {
		return fmt.Errorf("session_token.secret is required")
	}
	if c.SAD.Secret == "" {
		return fmt.Errorf("sad.secret is required")
	}
	if c.SessionToken.LifetimeMinutes < 0 {
		return fmt.Errorf("session_token.lifetime_minutes must be positive")
	}
	if c.SAD.LifetimeMinutes < 0 {
		return fmt.Errorf("sad.lifetime_minutes must be positive")
	}
	return nil
}
