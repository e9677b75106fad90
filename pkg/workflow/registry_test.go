package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestRegistryEmptyDirMissing(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "none"), testLogger())
	require.NoError(t, err)
	defer r.Close()

	assert.Nil(t, r.Get("anything"))
	assert.Empty(t, r.Names())
}

func TestRegistryLoadsDocuments(t *testing.T) {
	dir := t.TempDir()
	doc := `
name: cloud-cost
prompt_version: v2
max_tool_calls: 2
use_browse_agent: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cloud-cost.yaml"), []byte(doc), 0600))
	// A document without an explicit name keys by file basename.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "general.yaml"), []byte("prompt_version: v1\n"), 0600))
	// Non-config files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0600))

	r, err := NewRegistry(dir, testLogger())
	require.NoError(t, err)
	defer r.Close()

	got := r.Get("cloud-cost")
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.PromptVersion)
	require.NotNil(t, got.MaxToolCalls)
	assert.Equal(t, 2, *got.MaxToolCalls)

	fallback := r.Get("general")
	require.NotNil(t, fallback)
	assert.Equal(t, "general", fallback.Name)

	assert.Len(t, r.Names(), 2)
}

func TestRegistrySkipsInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(":\n:::"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.yaml"), []byte("name: ok\n"), 0600))

	r, err := NewRegistry(dir, testLogger())
	require.NoError(t, err)
	defer r.Close()

	assert.Nil(t, r.Get("broken"))
	assert.NotNil(t, r.Get("ok"))
}
