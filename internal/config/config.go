// Package config loads hostkb settings from .hostkb.yml and HOSTKB_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/llm"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = ".hostkb.yml"

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: HOSTKB_RETRIEVAL__TOP_K sets retrieval.top_k.
const EnvPrefix = "HOSTKB_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps HOSTKB_ORCHESTRATOR__DELEGATE_TIMEOUT to
// orchestrator.delegate_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validLLMProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderOpenRouter: true,
	ProviderGoogle:     true,
	ProviderOllama:     true,
}

var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

var validSearchTypes = map[string]bool{"text": true, "vector": true, "hybrid": true}

var validScopes = map[string]bool{"property": true, "owner": true, "global": true}

// Validate checks that the configuration contains valid values. Every
// failure is a ConfigurationError naming the offending key.
func (c *Config) Validate() error {
	if !validLLMProviders[c.LLM.Provider] {
		return apperr.Configuration("llm.provider", "invalid provider %q: must be one of anthropic, openai, openrouter, google, ollama", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return apperr.Configuration("llm.model", "is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.AgentTemperature < 0 {
		return apperr.Configuration("llm.temperature", "must be non-negative")
	}

	if !validEmbeddingProviders[c.Embedding.Provider] {
		return apperr.Configuration("embedding.provider", "invalid provider %q: must be openai or ollama", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return apperr.Configuration("embedding.model", "is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return apperr.Configuration("embedding.dimensions", "must be positive")
	}

	switch c.Search.Engine {
	case EngineLocal:
	case EngineElasticsearch:
		if len(c.Search.Addresses) == 0 {
			return apperr.Configuration("search.addresses", "at least one address is required for elasticsearch")
		}
	default:
		return apperr.Configuration("search.engine", "invalid engine %q: must be elasticsearch or local", c.Search.Engine)
	}

	if c.Chunker.MaxTokens <= 0 {
		return apperr.Configuration("chunker.max_tokens", "must be positive")
	}

	r := c.Retrieval
	if r.TopK <= 0 {
		return apperr.Configuration("retrieval.top_k", "must be positive")
	}
	if r.MinScore < 0 {
		return apperr.Configuration("retrieval.min_score", "must be non-negative")
	}
	if !validSearchTypes[r.SearchType] {
		return apperr.Configuration("retrieval.search_type", "invalid search type %q: must be text, vector or hybrid", r.SearchType)
	}
	if !validScopes[r.KBScope] {
		return apperr.Configuration("retrieval.kb_scope", "invalid scope %q", r.KBScope)
	}
	if r.MaxBoost < 0 || r.BoostPerTerm < 0 {
		return apperr.Configuration("retrieval.max_boost", "boosts must be non-negative")
	}

	o := c.Orchestrator
	if o.MaxConcurrent <= 0 {
		return apperr.Configuration("orchestrator.max_concurrent", "must be positive")
	}
	if o.DelegateTimeout <= 0 {
		return apperr.Configuration("orchestrator.delegate_timeout", "must be positive")
	}
	if o.HistoryWindow <= 0 {
		return apperr.Configuration("orchestrator.history_window", "must be positive")
	}
	if o.SessionTTL < 0 {
		return apperr.Configuration("orchestrator.session_ttl", "must be non-negative")
	}

	for key, v := range map[string]string{
		"prompts.system":    c.Prompts.System,
		"prompts.agent":     c.Prompts.Agent,
		"prompts.synthesis": c.Prompts.Synthesis,
		"prompts.wrap":      c.Prompts.Wrap,
	} {
		if strings.TrimSpace(v) == "" {
			return apperr.Configuration(key, "must not be empty")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperr.Configuration("server.port", "invalid port %d", c.Server.Port)
	}
	if c.DataDir == "" {
		return apperr.Configuration("data_dir", "is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return apperr.Configuration("log.format", "invalid format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// RequireCredentials fails when a configured provider needs an API key
// environment variable that is unset.
func RequireCredentials(c *Config) error {
	if env := llm.APIKeyEnv(string(c.LLM.Provider)); env != "" && os.Getenv(env) == "" {
		return apperr.Configuration("llm.provider", "%s must be set for provider %s", env, c.LLM.Provider)
	}
	if c.Embedding.Provider == ProviderOpenAI && os.Getenv("OPENAI_API_KEY") == "" {
		return apperr.Configuration("embedding.provider", "OPENAI_API_KEY must be set for openai embeddings")
	}
	return nil
}

// DBPath is the sqlite database location under DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "hostkb.db")
}

// LocalIndexDir is where the local search engine persists its collection.
func (c *Config) LocalIndexDir() string {
	if c.Search.LocalDir != "" {
		return c.Search.LocalDir
	}
	return filepath.Join(c.DataDir, "index")
}

// WebSearchKey returns the web search API key from the configured variable.
func (c *Config) WebSearchKey() string {
	if c.Tools.WebSearchKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Tools.WebSearchKeyEnv)
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, apperr.Configuration("log.level", "invalid level %q", s)
}
