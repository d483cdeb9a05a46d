package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Credential sources
const (
	SourcePrompt        = "prompt"
	SourceKeyring       = "keyring"
	SourceSecretManager = "secretmanager"
)

// Search methods
const (
	SearchGet  = "get"
	SearchPost = "post"
)

// Config represents the full groupcomments configuration
type Config struct {
	URL          string           `mapstructure:"url"`
	Username     string           `mapstructure:"username"`
	Group        string           `mapstructure:"group"`
	Project      string           `mapstructure:"project"`
	PageSize     int              `mapstructure:"page_size"`
	Timeout      string           `mapstructure:"timeout"`
	SearchMethod string           `mapstructure:"search_method"`
	Format       string           `mapstructure:"format"`
	LogFormat    string           `mapstructure:"log_format"`
	Verbose      bool             `mapstructure:"verbose"`
	Credential   CredentialConfig `mapstructure:"credential"`
}

// CredentialConfig selects where the password comes from. The password
// itself is never part of the configuration.
type CredentialConfig struct {
	Source string `mapstructure:"source"`
	// Secret is the Secret Manager path when Source is secretmanager.
	Secret string `mapstructure:"secret"`
	// CredentialsFile is an optional GCP service account key file.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// Load loads configuration from the global viper instance (file, env and
// bound flags).
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.PageSize == 0 {
		cfg.PageSize = 1000
	}

	if cfg.Timeout == "" {
		cfg.Timeout = "30s"
	}

	if cfg.SearchMethod == "" {
		cfg.SearchMethod = SearchGet
	}

	if cfg.Format == "" {
		cfg.Format = "text"
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	if cfg.Credential.Source == "" {
		cfg.Credential.Source = SourcePrompt
	}
}

// TimeoutDuration returns the parsed per-request timeout. Call Validate
// first; an unparseable value yields zero.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Validate checks the connection settings and every enumerated option
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("JIRA URL is required")
	}

	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url: %s (must be an absolute http or https URL)", c.URL)
	}
	if u.User != nil {
		return fmt.Errorf("invalid url: credentials must not be embedded in the URL")
	}

	if c.Username == "" {
		return fmt.Errorf("username is required")
	}

	if c.PageSize < 1 {
		return fmt.Errorf("invalid page_size: %d (must be positive)", c.PageSize)
	}

	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid timeout: %s (must be positive)", c.Timeout)
	}

	validMethods := map[string]bool{SearchGet: true, SearchPost: true}
	if !validMethods[c.SearchMethod] {
		return fmt.Errorf("invalid search_method: %s (must be get or post)", c.SearchMethod)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("invalid format: %s (must be text or json)", c.Format)
	}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", c.LogFormat)
	}

	switch c.Credential.Source {
	case SourcePrompt, SourceKeyring:
	case SourceSecretManager:
		if c.Credential.Secret == "" {
			return fmt.Errorf("credential.secret is required when credential.source is secretmanager")
		}
	default:
		return fmt.Errorf("invalid credential.source: %s (must be prompt, keyring, or secretmanager)", c.Credential.Source)
	}

	return nil
}

// ValidateForScan performs the additional validation a project scan needs
func (c *Config) ValidateForScan() error {
	if err := c.ValidateForIssue(); err != nil {
		return err
	}

	if c.Project == "" {
		return fmt.Errorf("project key is required")
	}

	return nil
}

// ValidateForIssue performs the additional validation a single-issue scan needs
func (c *Config) ValidateForIssue() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Group == "" {
		return fmt.Errorf("group name is required")
	}

	return nil
}
