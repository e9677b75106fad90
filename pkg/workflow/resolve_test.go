package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultsOnly(t *testing.T) {
	cfg, err := Resolve(nil, nil)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def, cfg)
	assert.Equal(t, 10, cfg.MaxToolCalls)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
}

func TestResolveDocumentBeatsDefault(t *testing.T) {
	temp := 0.2
	calls := 4
	browse := true
	doc := &Document{
		Name:           "cloud-cost",
		PromptVersion:  "v2",
		Temperature:    &temp,
		MaxToolCalls:   &calls,
		UseBrowseAgent: &browse,
		SearchProvider: "serper",
	}

	cfg, err := Resolve(doc, nil)
	require.NoError(t, err)

	assert.Equal(t, "cloud-cost", cfg.Workflow)
	assert.Equal(t, "v2", cfg.PromptVersion)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 4, cfg.MaxToolCalls)
	assert.True(t, cfg.UseBrowseAgent)
	assert.Equal(t, "serper", cfg.SearchProvider)
}

func TestResolveOverrideBeatsDocument(t *testing.T) {
	temp := 0.2
	calls := 4
	doc := &Document{Name: "wf", Temperature: &temp, MaxToolCalls: &calls}

	cfg, err := Resolve(doc, map[string]string{
		KeyTemperature:  "1.5",
		KeyMaxToolCalls: "2",
		KeyMaxTokens:    "1024",
	})
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Temperature)
	assert.Equal(t, 2, cfg.MaxToolCalls)
	assert.Equal(t, 1024, cfg.MaxTokens)
}

func TestResolveCoercion(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		wantErr   string
	}{
		{"unknown key", map[string]string{"max_depth": "3"}, "unknown override key"},
		{"bad float", map[string]string{KeyTemperature: "warm"}, "not a float"},
		{"temp out of range", map[string]string{KeyTemperature: "2.5"}, "must be in [0,2]"},
		{"bad int", map[string]string{KeyMaxTokens: "lots"}, "not an integer"},
		{"zero max tokens", map[string]string{KeyMaxTokens: "0"}, "must be positive"},
		{"negative tool calls", map[string]string{KeyMaxToolCalls: "-1"}, "must not be negative"},
		{"bad bool", map[string]string{KeyUseBrowseAgent: "maybe"}, "not a boolean"},
		{"empty prompt version", map[string]string{KeyPromptVersion: ""}, "must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(nil, tt.overrides)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveBoolAndStringOverrides(t *testing.T) {
	cfg, err := Resolve(nil, map[string]string{
		KeyUseBrowseAgent:     "true",
		KeySearchProvider:     "brave",
		KeySearchDomainFilter: "docs.aws.amazon.com",
		KeyPromptVersion:      "v20250824",
	})
	require.NoError(t, err)

	assert.True(t, cfg.UseBrowseAgent)
	assert.Equal(t, "brave", cfg.SearchProvider)
	assert.Equal(t, "docs.aws.amazon.com", cfg.SearchDomainFilter)
	assert.Equal(t, "v20250824", cfg.PromptVersion)
}
