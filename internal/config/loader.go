package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envKeys are the config paths reachable through the RESEARCH_ env overlay.
// Provider profiles are a list and stay file-only.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.shared_secret",
	"server.max_concurrent_sessions",
	"workflows_dir",
	"data_dir",
	"search.provider",
	"search.api_key",
	"search.domain_filter",
	"search.max_results",
	"browse.enabled",
	"browse.headless",
	"browse.max_page_chars",
	"cache.enabled",
	"cache.path",
	"cache.expiry_hours",
	"logging.level",
	"logging.file",
	"logging.redaction",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file, overlaying RESEARCH_ env vars.
// The overlay applies with or without a config file on disk.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".deepresearch", "server.yaml")
	}

	v := viper.New()
	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only consults keys viper already knows, so each env-reachable
	// key is bound explicitly.
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env key %s: %w", key, err)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".deepresearch")
	}

	if cfg.WorkflowsDir == "" {
		cfg.WorkflowsDir = filepath.Join(cfg.DataDir, "workflows")
	}

	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(cfg.DataDir, "toolcache.db")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "server.log")
	}

	return cfg, nil
}
