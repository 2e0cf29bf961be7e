package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the file or environment leaves a value unset.
const (
	DefaultPageSize                = 500
	DefaultMaxPages                = 100
	DefaultMaxConcurrentExtractors = 4
	DefaultMaxConcurrentRequests   = 8
	DefaultHTTPTimeoutSeconds      = 60
	DefaultSOAPTimeoutSeconds      = 120
	DefaultOutputDir               = "./output"
)

// AuthConfig holds the client-credentials grant inputs. AccountID is the
// business unit MID the token is scoped to.
type AuthConfig struct {
	Subdomain    string `yaml:"subdomain"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccountID    int    `yaml:"account_id"`
}

// HTTPConfig holds transport tuning.
type HTTPConfig struct {
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	SOAPTimeoutSeconds int    `yaml:"soap_timeout_seconds"`
	MetricsAddr        string `yaml:"metrics_addr"`
}

// ExtractConfig selects and tunes extractors.
type ExtractConfig struct {
	PageSize                int      `yaml:"page_size"`
	MaxPages                int      `yaml:"max_pages"`
	MaxConcurrentExtractors int      `yaml:"max_concurrent_extractors"`
	MaxConcurrentRequests   int      `yaml:"max_concurrent_requests"`
	SkipDetails             bool     `yaml:"skip_details"`
	Extractors              []string `yaml:"extractors"`
	Preset                  string   `yaml:"preset"`
}

// OutputConfig controls where snapshots are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Config is the full tool configuration.
type Config struct {
	Auth    AuthConfig    `yaml:"auth"`
	HTTP    HTTPConfig    `yaml:"http"`
	Extract ExtractConfig `yaml:"extract"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
}

// Load reads the YAML file at path (when non-empty), overlays SFMC_*
// environment variables, applies defaults and validates. Environment
// variables win over file values.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SFMC_SUBDOMAIN"); v != "" {
		c.Auth.Subdomain = v
	}
	if v := os.Getenv("SFMC_CLIENT_ID"); v != "" {
		c.Auth.ClientID = v
	}
	if v := os.Getenv("SFMC_CLIENT_SECRET"); v != "" {
		c.Auth.ClientSecret = v
	}
	if v := os.Getenv("SFMC_ACCOUNT_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.Auth.AccountID = id
		}
	}
	if v := os.Getenv("SFMC_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("SFMC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SFMC_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func (c *Config) applyDefaults() {
	if c.Extract.PageSize == 0 {
		c.Extract.PageSize = DefaultPageSize
	}
	if c.Extract.MaxPages == 0 {
		c.Extract.MaxPages = DefaultMaxPages
	}
	if c.Extract.MaxConcurrentExtractors == 0 {
		c.Extract.MaxConcurrentExtractors = DefaultMaxConcurrentExtractors
	}
	if c.Extract.MaxConcurrentRequests == 0 {
		c.Extract.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if c.HTTP.SOAPTimeoutSeconds == 0 {
		c.HTTP.SOAPTimeoutSeconds = DefaultSOAPTimeoutSeconds
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Auth.Subdomain == "" {
		return fmt.Errorf("auth.subdomain is required (or SFMC_SUBDOMAIN)")
	}
	if strings.ContainsAny(c.Auth.Subdomain, "./:") {
		return fmt.Errorf("auth.subdomain must be the bare tenant subdomain, got %q", c.Auth.Subdomain)
	}
	if c.Auth.ClientID == "" {
		return fmt.Errorf("auth.client_id is required (or SFMC_CLIENT_ID)")
	}
	if c.Auth.ClientSecret == "" {
		return fmt.Errorf("auth.client_secret is required (or SFMC_CLIENT_SECRET)")
	}
	if c.Extract.PageSize < 1 || c.Extract.PageSize > 2500 {
		return fmt.Errorf("extract.page_size must be between 1 and 2500, got %d", c.Extract.PageSize)
	}
	if c.Extract.MaxPages < 1 {
		return fmt.Errorf("extract.max_pages must be positive, got %d", c.Extract.MaxPages)
	}
	if c.Extract.MaxConcurrentExtractors < 1 {
		return fmt.Errorf("extract.max_concurrent_extractors must be positive")
	}
	if c.Extract.MaxConcurrentRequests < 1 {
		return fmt.Errorf("extract.max_concurrent_requests must be positive")
	}
	return nil
}

// AuthBaseURL returns the tenant-specific auth endpoint base.
func (c *Config) AuthBaseURL() string {
	return fmt.Sprintf("https://%s.auth.marketingcloudapis.com", c.Auth.Subdomain)
}

// RestBaseURL returns the tenant-specific REST endpoint base.
func (c *Config) RestBaseURL() string {
	return fmt.Sprintf("https://%s.rest.marketingcloudapis.com", c.Auth.Subdomain)
}

// SOAPEndpoint returns the tenant-specific SOAP service endpoint.
func (c *Config) SOAPEndpoint() string {
	return fmt.Sprintf("https://%s.soap.marketingcloudapis.com/Service.asmx", c.Auth.Subdomain)
}
