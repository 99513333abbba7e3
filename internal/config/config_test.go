package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setKey sets a viper key for the duration of one test and restores the
// default afterwards, since viper state is package-global.
func setKey(t *testing.T, key string, value interface{}) {
	t.Helper()
	prev := viper.Get(key)
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, prev) })
}

func TestLoadDefaults(t *testing.T) {
	setKey(t, KeyDataDir, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "ollama", cfg.GenerationProvider)
	assert.Equal(t, DefaultModel, cfg.GenerationModel)
	assert.Equal(t, DefaultOllamaURL, cfg.OllamaBaseURL)
	assert.Equal(t, DefaultIndexURL, cfg.IndexBaseURL)
	assert.Equal(t, "rag_safety", cfg.DefaultMode)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, DefaultHistoryCap, cfg.HistoryCap)
	assert.Equal(t, DefaultRetrievalK, cfg.RetrievalK)
	assert.Equal(t, DefaultRetrievalKeep, cfg.RetrievalKeep)
	assert.InDelta(t, DefaultThreshold, cfg.GroundingThreshold, 1e-9)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.APIKeys, "auth is open unless keys are configured")
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	setKey(t, KeyDataDir, dir)
	setKey(t, KeyPort, 9090)
	setKey(t, KeyDefaultMode, "rag")
	setKey(t, KeyAPIKeys, "key-a, key-b,")
	setKey(t, KeyTrustedOrgs, "WHO,NHS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "rag", cfg.DefaultMode)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.APIKeys)
	assert.Equal(t, []string{"WHO", "NHS"}, cfg.TrustedOrgs)
	assert.Equal(t, filepath.Join(dir, "resources.db"), cfg.ResourcesDBPath())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   interface{}
		wantErr string
	}{
		{"bad provider", KeyGenerationProvider, "llamacpp", "generation_provider"},
		{"openai without key", KeyGenerationProvider, "openai", "openai_api_key"},
		{"bad mode", KeyDefaultMode, "turbo", "default_mode"},
		{"bad port", KeyPort, 0, "port"},
		{"bad retrieval k", KeyRetrievalK, -1, "retrieval_k"},
		{"bad threshold", KeyGroundingThreshold, 0.0, "grounding_threshold"},
		{"bad history cap", KeyHistoryCap, 0, "history_cap"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setKey(t, KeyDataDir, t.TempDir())
			setKey(t, tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestOpenAIProviderWithKey(t *testing.T) {
	setKey(t, KeyDataDir, t.TempDir())
	setKey(t, KeyGenerationProvider, "openai")
	setKey(t, KeyOpenAIAPIKey, "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.GenerationProvider)
}
