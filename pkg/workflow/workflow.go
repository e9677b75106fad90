package workflow

import (
	"fmt"
	"time"
)

// Config is a fully resolved workflow configuration. It is resolved once per
// request, before the session is created, and treated as immutable afterwards.
type Config struct {
	Workflow      string `json:"workflow"`
	PromptVersion string `json:"prompt_version"`

	// Model parameters
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`

	// Budgets
	MaxTokens    int `json:"max_tokens"`
	MaxToolCalls int `json:"max_tool_calls"`

	// Browse agent
	UseBrowseAgent       bool    `json:"use_browse_agent"`
	BrowseBudgetFraction float64 `json:"browse_budget_fraction"`

	// Search provider settings (opaque to the core)
	SearchProvider     string `json:"search_provider,omitempty"`
	SearchDomainFilter string `json:"search_domain_filter,omitempty"`

	// Timeouts
	ToolTimeout    time.Duration `json:"tool_timeout"`
	SessionTimeout time.Duration `json:"session_timeout"`

	// Model retry
	MaxRetries int `json:"max_retries"`

	// Dispatch concurrency within one tool batch
	ToolConcurrency int `json:"tool_concurrency"`
}

// Document is a named workflow profile as loaded from disk. Nil fields fall
// through to the built-in defaults during resolution.
type Document struct {
	Name          string `json:"name" mapstructure:"name"`
	PromptVersion string `json:"prompt_version" mapstructure:"prompt_version"`

	Provider string `json:"provider" mapstructure:"provider"`
	Model    string `json:"model" mapstructure:"model"`

	Temperature  *float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens    *int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxToolCalls *int     `json:"max_tool_calls" mapstructure:"max_tool_calls"`

	UseBrowseAgent       *bool    `json:"use_browse_agent" mapstructure:"use_browse_agent"`
	BrowseBudgetFraction *float64 `json:"browse_budget_fraction" mapstructure:"browse_budget_fraction"`

	SearchProvider     string `json:"search_provider" mapstructure:"search_provider"`
	SearchDomainFilter string `json:"search_domain_filter" mapstructure:"search_domain_filter"`

	ToolTimeoutSeconds    *int `json:"tool_timeout_seconds" mapstructure:"tool_timeout_seconds"`
	SessionTimeoutSeconds *int `json:"session_timeout_seconds" mapstructure:"session_timeout_seconds"`

	MaxRetries      *int `json:"max_retries" mapstructure:"max_retries"`
	ToolConcurrency *int `json:"tool_concurrency" mapstructure:"tool_concurrency"`
}

// DefaultConfig returns the built-in defaults, the lowest precedence layer
func DefaultConfig() Config {
	return Config{
		Workflow:             "default",
		PromptVersion:        "v20250824",
		Temperature:          0.7,
		MaxTokens:            32768,
		MaxToolCalls:         10,
		UseBrowseAgent:       false,
		BrowseBudgetFraction: 0.5,
		ToolTimeout:          30 * time.Second,
		SessionTimeout:       10 * time.Minute,
		MaxRetries:           3,
		ToolConcurrency:      4,
	}
}

// ConfigError reports an invalid workflow document or override. It is raised
// before any session is created.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config error: %s", e.Reason)
	}
	return fmt.Sprintf("config error: key %q: %s", e.Key, e.Reason)
}

func configErrorf(key, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}
