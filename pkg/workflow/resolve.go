package workflow

import (
	"strconv"
	"time"
)

// Override keys accepted on a research request. Anything else rejects the
// request before a session exists.
const (
	KeyPromptVersion      = "prompt_version"
	KeyTemperature        = "search_agent_temperature"
	KeyMaxTokens          = "search_agent_max_tokens"
	KeyMaxToolCalls       = "search_agent_max_tool_calls"
	KeyUseBrowseAgent     = "use_browse_agent"
	KeySearchProvider     = "search_provider"
	KeySearchDomainFilter = "search_domain_filter"
)

// Resolve merges a workflow document and request overrides onto the built-in
// defaults. Precedence: override > document > default. The result is complete
// and validated; callers treat it as immutable.
func Resolve(doc *Document, overrides map[string]string) (Config, error) {
	cfg := DefaultConfig()

	if doc != nil {
		applyDocument(&cfg, doc)
	}

	for key, raw := range overrides {
		if err := applyOverride(&cfg, key, raw); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func applyDocument(cfg *Config, doc *Document) {
	if doc.Name != "" {
		cfg.Workflow = doc.Name
	}
	if doc.PromptVersion != "" {
		cfg.PromptVersion = doc.PromptVersion
	}
	if doc.Provider != "" {
		cfg.Provider = doc.Provider
	}
	if doc.Model != "" {
		cfg.Model = doc.Model
	}
	if doc.Temperature != nil {
		cfg.Temperature = *doc.Temperature
	}
	if doc.MaxTokens != nil {
		cfg.MaxTokens = *doc.MaxTokens
	}
	if doc.MaxToolCalls != nil {
		cfg.MaxToolCalls = *doc.MaxToolCalls
	}
	if doc.UseBrowseAgent != nil {
		cfg.UseBrowseAgent = *doc.UseBrowseAgent
	}
	if doc.BrowseBudgetFraction != nil {
		cfg.BrowseBudgetFraction = *doc.BrowseBudgetFraction
	}
	if doc.SearchProvider != "" {
		cfg.SearchProvider = doc.SearchProvider
	}
	if doc.SearchDomainFilter != "" {
		cfg.SearchDomainFilter = doc.SearchDomainFilter
	}
	if doc.ToolTimeoutSeconds != nil {
		cfg.ToolTimeout = time.Duration(*doc.ToolTimeoutSeconds) * time.Second
	}
	if doc.SessionTimeoutSeconds != nil {
		cfg.SessionTimeout = time.Duration(*doc.SessionTimeoutSeconds) * time.Second
	}
	if doc.MaxRetries != nil {
		cfg.MaxRetries = *doc.MaxRetries
	}
	if doc.ToolConcurrency != nil {
		cfg.ToolConcurrency = *doc.ToolConcurrency
	}
}

func applyOverride(cfg *Config, key, raw string) error {
	switch key {
	case KeyPromptVersion:
		if raw == "" {
			return configErrorf(key, "must not be empty")
		}
		cfg.PromptVersion = raw

	case KeyTemperature:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return configErrorf(key, "not a float: %q", raw)
		}
		if f < 0 || f > 2 {
			return configErrorf(key, "must be in [0,2], got %v", f)
		}
		cfg.Temperature = f

	case KeyMaxTokens:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return configErrorf(key, "not an integer: %q", raw)
		}
		if n <= 0 {
			return configErrorf(key, "must be positive, got %d", n)
		}
		cfg.MaxTokens = n

	case KeyMaxToolCalls:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return configErrorf(key, "not an integer: %q", raw)
		}
		if n < 0 {
			return configErrorf(key, "must not be negative, got %d", n)
		}
		cfg.MaxToolCalls = n

	case KeyUseBrowseAgent:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return configErrorf(key, "not a boolean: %q", raw)
		}
		cfg.UseBrowseAgent = b

	case KeySearchProvider:
		cfg.SearchProvider = raw

	case KeySearchDomainFilter:
		cfg.SearchDomainFilter = raw

	default:
		return configErrorf(key, "unknown override key")
	}

	return nil
}
