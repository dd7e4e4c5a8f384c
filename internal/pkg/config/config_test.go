package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.env")
	content := "GEMINI_KEY_2=second\nGEMINI_KEY_1=first\nEMPTY=\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	keys, err := readKeyFile(path)
	require.NoError(t, err)
	// sorted by variable name, empties dropped
	assert.Equal(t, []string{"first", "second"}, keys)
}

func TestReadKeyFileMissing(t *testing.T) {
	_, err := readKeyFile(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestGenerateBatchConfigDefaults(t *testing.T) {
	inputDir := t.TempDir()
	config = &Config{
		InputDir: inputDir,
		Provider: "gemini",
		APIKeys:  []string{"k1"},
	}

	require.NoError(t, GenerateBatchConfig())
	assert.Equal(t, filepath.Join(inputDir, "output"), config.OutputDir)
	assert.NotEmpty(t, config.Job)
	assert.Equal(t, 1, config.WorkersCount)
	assert.Equal(t, 49, config.KeywordCount)
	assert.Equal(t, 3, config.FrameCount)
	assert.Equal(t, 120, config.FileTimeoutSecs)
	assert.Equal(t, "Detailed", config.Priority)
}

func TestGenerateBatchConfigRequiresKeys(t *testing.T) {
	config = &Config{InputDir: t.TempDir(), Provider: "gemini"}
	assert.Error(t, GenerateBatchConfig())
}

func TestGenerateBatchConfigRequiresInput(t *testing.T) {
	config = &Config{APIKeys: []string{"k"}}
	assert.Error(t, GenerateBatchConfig())
}
