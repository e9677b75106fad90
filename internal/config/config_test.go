package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Providers = []ProviderProfile{
		{ID: "primary", Provider: "openai", APIKey: "test-key", Priority: 1},
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no providers", func(c *Config) { c.Providers = nil }, "no model credentials"},
		{"missing profile id", func(c *Config) { c.Providers[0].ID = "" }, "ID is required"},
		{"missing api key", func(c *Config) { c.Providers[0].APIKey = "" }, "api_key is required"},
		{"bad provider", func(c *Config) { c.Providers[0].Provider = "bedrock" }, "invalid provider"},
		{"bad port", func(c *Config) { c.Server.Port = -1 }, "invalid server port"},
		{"bad cache expiry", func(c *Config) { c.Cache.ExpiryHours = 0 }, "expiry_hours"},
		{"bad page chars", func(c *Config) { c.Browse.MaxPageChars = 0 }, "max_page_chars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
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

func TestLoaderDefaultsWhenFileMissing(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.WorkflowsDir)
	assert.NotEmpty(t, cfg.Cache.Path)
}

func TestLoaderEnvOverlayWithoutFile(t *testing.T) {
	t.Setenv("RESEARCH_SERVER_PORT", "9292")
	t.Setenv("RESEARCH_SEARCH_API_KEY", "env-serper-key")
	t.Setenv("RESEARCH_BROWSE_ENABLED", "false")

	loader := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 9292, cfg.Server.Port)
	assert.Equal(t, "env-serper-key", cfg.Search.APIKey)
	assert.False(t, cfg.Browse.Enabled)
}

func TestLoaderEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0600))

	t.Setenv("RESEARCH_SERVER_PORT", "9393")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9393, cfg.Server.Port)
}

func TestLoaderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	body := `
server:
  port: 9191
workflows_dir: ` + dir + `
providers:
  - id: primary
    provider: anthropic
    api_key: test-key
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, dir, cfg.WorkflowsDir)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "anthropic", cfg.Providers[0].Provider)
	assert.NoError(t, cfg.Validate())
}
