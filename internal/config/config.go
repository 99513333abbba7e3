// Package config holds operator-level configuration for a deployment: where
// the collaborator services live, retrieval tuning, session lifecycle, and
// server settings. Set via env vars (HEALTHASSIST_*) or a config file
// (healthassist.config.yaml). Conversation content is never configured or
// persisted here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Viper keys. Each maps to an env var with the HEALTHASSIST_ prefix
// (e.g. "ollama_base_url" -> HEALTHASSIST_OLLAMA_BASE_URL) and to a YAML
// field in healthassist.config.yaml.
const (
	KeyDataDir            = "data_dir"
	KeyPort               = "port"
	KeyGenerationProvider = "generation_provider"
	KeyGenerationModel    = "generation_model"
	KeyOllamaBaseURL      = "ollama_base_url"
	KeyOpenAIAPIKey       = "openai_api_key"
	KeyIndexBaseURL       = "index_base_url"
	KeyRetrievalK         = "retrieval_k"
	KeyRetrievalKeep      = "retrieval_keep"
	KeyGroundingThreshold = "grounding_threshold"
	KeyTrustedOrgs        = "trusted_orgs"
	KeyDefaultMode        = "default_mode"
	KeySessionTTLMinutes  = "session_ttl_minutes"
	KeyHistoryCap         = "history_cap"
	KeyCORSOrigins        = "cors_origins"
	KeyAPIKeys            = "api_keys"
	KeyGlobalRPM          = "global_rpm"
	KeyPerClientRPM       = "per_client_rpm"
)

// Defaults.
const (
	DefaultPort          = 8080
	DefaultProvider      = "ollama"
	DefaultModel         = "qwen2.5:7b-instruct"
	DefaultOllamaURL     = "http://localhost:11434"
	DefaultIndexURL      = "http://localhost:8091"
	DefaultMode          = "rag_safety"
	DefaultTTLMinutes    = 30
	DefaultHistoryCap    = 10
	DefaultGlobalRPM     = 600
	DefaultPerClientRPM  = 60
	DefaultRetrievalK    = 8
	DefaultRetrievalKeep = 5
	DefaultThreshold     = 0.72
)

// Config holds resolved operator-level configuration for a process.
type Config struct {
	DataDir            string
	Port               int
	GenerationProvider string // "ollama" or "openai"
	GenerationModel    string
	OllamaBaseURL      string
	OpenAIAPIKey       string
	IndexBaseURL       string
	RetrievalK         int
	RetrievalKeep      int
	GroundingThreshold float64
	TrustedOrgs        []string
	DefaultMode        string
	SessionTTL         time.Duration
	HistoryCap         int
	CORSOrigins        []string
	APIKeys            []string
	GlobalRPM          int
	PerClientRPM       int
}

// ResourcesDBPath returns the full path to the curated facility directory DB.
func (c *Config) ResourcesDBPath() string {
	return filepath.Join(c.DataDir, "resources.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
	viper.SetEnvPrefix("HEALTHASSIST")
	viper.AutomaticEnv()
	viper.SetDefault(KeyPort, DefaultPort)
	viper.SetDefault(KeyGenerationProvider, DefaultProvider)
	viper.SetDefault(KeyGenerationModel, DefaultModel)
	viper.SetDefault(KeyOllamaBaseURL, DefaultOllamaURL)
	viper.SetDefault(KeyIndexBaseURL, DefaultIndexURL)
	viper.SetDefault(KeyDefaultMode, DefaultMode)
	viper.SetDefault(KeySessionTTLMinutes, DefaultTTLMinutes)
	viper.SetDefault(KeyHistoryCap, DefaultHistoryCap)
	viper.SetDefault(KeyGlobalRPM, DefaultGlobalRPM)
	viper.SetDefault(KeyPerClientRPM, DefaultPerClientRPM)
	viper.SetDefault(KeyRetrievalK, DefaultRetrievalK)
	viper.SetDefault(KeyRetrievalKeep, DefaultRetrievalKeep)
	viper.SetDefault(KeyGroundingThreshold, DefaultThreshold)
	viper.SetDefault(KeyCORSOrigins, "*")
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:            resolveDataDir(),
		Port:               viper.GetInt(KeyPort),
		GenerationProvider: viper.GetString(KeyGenerationProvider),
		GenerationModel:    viper.GetString(KeyGenerationModel),
		OllamaBaseURL:      viper.GetString(KeyOllamaBaseURL),
		OpenAIAPIKey:       viper.GetString(KeyOpenAIAPIKey),
		IndexBaseURL:       viper.GetString(KeyIndexBaseURL),
		RetrievalK:         viper.GetInt(KeyRetrievalK),
		RetrievalKeep:      viper.GetInt(KeyRetrievalKeep),
		GroundingThreshold: viper.GetFloat64(KeyGroundingThreshold),
		TrustedOrgs:        splitList(viper.GetString(KeyTrustedOrgs)),
		DefaultMode:        viper.GetString(KeyDefaultMode),
		SessionTTL:         time.Duration(viper.GetInt(KeySessionTTLMinutes)) * time.Minute,
		HistoryCap:         viper.GetInt(KeyHistoryCap),
		CORSOrigins:        splitList(viper.GetString(KeyCORSOrigins)),
		APIKeys:            splitList(viper.GetString(KeyAPIKeys)),
		GlobalRPM:          viper.GetInt(KeyGlobalRPM),
		PerClientRPM:       viper.GetInt(KeyPerClientRPM),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".healthassist"
	}
	return filepath.Join(home, ".healthassist")
}

func (c *Config) validate() error {
	switch c.GenerationProvider {
	case "ollama":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("generation_provider openai requires openai_api_key; set HEALTHASSIST_OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown generation_provider %q (want ollama or openai)", c.GenerationProvider)
	}
	switch c.DefaultMode {
	case "baseline", "rag", "rag_safety":
	default:
		return fmt.Errorf("unknown default_mode %q (want baseline, rag, or rag_safety)", c.DefaultMode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}
	if c.RetrievalK <= 0 || c.RetrievalKeep <= 0 {
		return fmt.Errorf("retrieval_k and retrieval_keep must be positive")
	}
	if c.GroundingThreshold <= 0 {
		return fmt.Errorf("grounding_threshold must be positive")
	}
	if c.HistoryCap <= 0 {
		return fmt.Errorf("history_cap must be positive")
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
