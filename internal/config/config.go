package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the server configuration
type Config struct {
	// Server holds the HTTP listener settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// WorkflowsDir is the directory holding workflow documents
	WorkflowsDir string `json:"workflows_dir" mapstructure:"workflows_dir"`

	// Providers are model provider credentials, tried in priority order
	Providers []ProviderProfile `json:"providers" mapstructure:"providers"`

	// Search holds search collaborator settings
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Browse holds browse collaborator settings
	Browse BrowseConfig `json:"browse" mapstructure:"browse"`

	// Cache holds tool-result cache settings
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// DataDir is the base directory for server state
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`

	// MaxConcurrentSessions bounds simultaneously running research sessions.
	// Zero selects the manager's default bound.
	MaxConcurrentSessions int `json:"max_concurrent_sessions" mapstructure:"max_concurrent_sessions"`
}

// ProviderProfile represents model provider credentials
type ProviderProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// SearchConfig holds search provider settings. Credentials are supplied here,
// out of band of the research request.
type SearchConfig struct {
	Provider     string `json:"provider" mapstructure:"provider"`
	APIKey       string `json:"api_key" mapstructure:"api_key"`
	DomainFilter string `json:"domain_filter" mapstructure:"domain_filter"`
	MaxResults   int    `json:"max_results" mapstructure:"max_results"`
}

// BrowseConfig holds browse-agent settings
type BrowseConfig struct {
	Enabled  bool `json:"enabled" mapstructure:"enabled"`
	Headless bool `json:"headless" mapstructure:"headless"`

	// MaxPageChars truncates extracted page text
	MaxPageChars int `json:"max_page_chars" mapstructure:"max_page_chars"`
}

// CacheConfig holds tool-result cache settings
type CacheConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	Path        string  `json:"path" mapstructure:"path"`
	ExpiryHours float64 `json:"expiry_hours" mapstructure:"expiry_hours"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8080,
			MaxConcurrentSessions: 0,
		},
		Search: SearchConfig{
			Provider:   "serper",
			MaxResults: 10,
		},
		Browse: BrowseConfig{
			Enabled:      true,
			Headless:     true,
			MaxPageChars: 20000,
		},
		Cache: CacheConfig{
			Enabled:     true,
			ExpiryHours: 24,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("no model credentials configured: at least one provider profile is required")
	}

	for i, profile := range c.Providers {
		if profile.ID == "" {
			return fmt.Errorf("provider profile %d: ID is required", i)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("provider profile %s: api_key is required", profile.ID)
		}
		switch profile.Provider {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("provider profile %s: invalid provider %s (must be: openai, anthropic)", profile.ID, profile.Provider)
		}
	}

	if c.Cache.Enabled && c.Cache.ExpiryHours <= 0 {
		return fmt.Errorf("cache expiry_hours must be positive, got %v", c.Cache.ExpiryHours)
	}

	if c.Browse.Enabled && c.Browse.MaxPageChars <= 0 {
		return fmt.Errorf("browse max_page_chars must be positive, got %d", c.Browse.MaxPageChars)
	}

	return nil
}
