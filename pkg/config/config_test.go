package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  subdomain: mc123
  client_id: abc
  client_secret: shh
  account_id: 7001234
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPageSize, cfg.Extract.PageSize)
	assert.Equal(t, DefaultMaxPages, cfg.Extract.MaxPages)
	assert.Equal(t, DefaultMaxConcurrentExtractors, cfg.Extract.MaxConcurrentExtractors)
	assert.Equal(t, DefaultMaxConcurrentRequests, cfg.Extract.MaxConcurrentRequests)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  subdomain: fromfile
  client_id: file-id
  client_secret: file-secret
`)

	t.Setenv("SFMC_SUBDOMAIN", "fromenv")
	t.Setenv("SFMC_ACCOUNT_ID", "9001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fromenv", cfg.Auth.Subdomain)
	assert.Equal(t, "file-id", cfg.Auth.ClientID)
	assert.Equal(t, 9001, cfg.Auth.AccountID)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Auth = AuthConfig{Subdomain: "mc123", ClientID: "id", ClientSecret: "secret"}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing subdomain",
			mutate:  func(c *Config) { c.Auth.Subdomain = "" },
			wantErr: "subdomain",
		},
		{
			name:    "subdomain with host characters",
			mutate:  func(c *Config) { c.Auth.Subdomain = "mc123.rest.marketingcloudapis.com" },
			wantErr: "bare tenant subdomain",
		},
		{
			name:    "missing client secret",
			mutate:  func(c *Config) { c.Auth.ClientSecret = "" },
			wantErr: "client_secret",
		},
		{
			name:    "page size out of range",
			mutate:  func(c *Config) { c.Extract.PageSize = 5000 },
			wantErr: "page_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDerivedURLs(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Subdomain: "mc123"}}

	assert.Equal(t, "https://mc123.auth.marketingcloudapis.com", cfg.AuthBaseURL())
	assert.Equal(t, "https://mc123.rest.marketingcloudapis.com", cfg.RestBaseURL())
	assert.Equal(t, "https://mc123.soap.marketingcloudapis.com/Service.asmx", cfg.SOAPEndpoint())
}
