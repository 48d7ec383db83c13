package suggest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowcart/optimizer-cli/internal/model"
)

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	assert.Equal(t, 255, limits.For(model.TypeTitle))
	assert.Equal(t, 65535, limits.For(model.TypeDescription))
	assert.Equal(t, 32, limits.For(model.TypePricing))
	assert.Equal(t, 255, limits.For(model.TypeKeywords))
}

func TestLoadLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suggest.yaml")
	yaml := `
suggest:
  limits:
    title: 80
    keywords: 120
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	limits, err := LoadLimits(path)
	require.NoError(t, err)

	assert.Equal(t, 80, limits.Title)
	assert.Equal(t, 120, limits.Keywords)
	// Unset fields take defaults.
	assert.Equal(t, 65535, limits.Description)
	assert.Equal(t, 32, limits.Pricing)
}

func TestLoadLimits_MissingFile(t *testing.T) {
	_, err := LoadLimits(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadLimits_BadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suggest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("suggest: ["), 0644))

	_, err := LoadLimits(path)
	assert.Error(t, err)
}
