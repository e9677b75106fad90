package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := GetRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "deepresearch", cmd.Use)
	assert.Equal(t, version, cmd.Version)
}

func TestServeCommandRegistered(t *testing.T) {
	names := []string{}
	for _, c := range GetRootCmd().Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
}

func TestGlobalFlags(t *testing.T) {
	flags := GetRootCmd().PersistentFlags()
	assert.NotNil(t, flags.Lookup("config"))
	assert.NotNil(t, flags.Lookup("log-level"))
}
