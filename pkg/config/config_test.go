package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_UsesDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, 8080, cfg.Transport.Port)
	assert.Equal(t, 300, cfg.Sandbox.TimeoutSeconds)
}

func TestInitialize_MergesUserYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	content := []byte("transport:\n  port: 9090\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Transport.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
}

func TestInitialize_ExpandsEnvVars(t *testing.T) {
	t.Setenv("SANDBOXRUNNER_TEST_KEY_ENV", "MY_GEMINI_KEY")
	dir := t.TempDir()
	content := []byte("llm:\n  api_key_env: ${SANDBOXRUNNER_TEST_KEY_ENV}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := Initialize(dir)
	require.NoError(t, err)
	assert.Equal(t, "MY_GEMINI_KEY", cfg.LLM.APIKeyEnv)
}

func TestInitialize_RejectsInvalidPort(t *testing.T) {
	dir := t.TempDir()
	content := []byte("transport:\n  port: 99999\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	_, err := Initialize(dir)
	require.Error(t, err)
}

func TestConfig_APIKeyReadsFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret-value")
	cfg := &Config{LLM: LLMConfig{APIKeyEnv: "GEMINI_API_KEY"}}
	assert.Equal(t, "secret-value", cfg.APIKey())
}
