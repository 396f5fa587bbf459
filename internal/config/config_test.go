package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.MinScore != 0.7 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
	if cfg.Orchestrator.MaxConcurrent != 5 {
		t.Errorf("expected default max_concurrent 5, got %d", cfg.Orchestrator.MaxConcurrent)
	}
	if cfg.Orchestrator.DelegateTimeout != 30*time.Second {
		t.Errorf("expected default delegate_timeout 30s, got %s", cfg.Orchestrator.DelegateTimeout)
	}
	if cfg.Orchestrator.HistoryWindow != 6 {
		t.Errorf("expected default history_window 6, got %d", cfg.Orchestrator.HistoryWindow)
	}
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected 384 dimensions, got %d", cfg.Embedding.Dimensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.hostkb.yml")

	original := DefaultConfig()
	original.LLM.Provider = ProviderAnthropic
	original.LLM.Model = "claude-haiku-4-5-20251001"
	original.Search.Engine = EngineElasticsearch
	original.Search.Addresses = []string{"http://es1:9200", "http://es2:9200"}
	original.Search.Password = "secret"
	original.Orchestrator.DelegateTimeout = 12 * time.Second
	original.Retrieval.MinScore = 0.55

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.Provider != original.LLM.Provider {
		t.Errorf("provider: got %q, want %q", loaded.LLM.Provider, original.LLM.Provider)
	}
	if loaded.LLM.Model != original.LLM.Model {
		t.Errorf("model: got %q, want %q", loaded.LLM.Model, original.LLM.Model)
	}
	if loaded.Orchestrator.DelegateTimeout != 12*time.Second {
		t.Errorf("delegate_timeout: got %s", loaded.Orchestrator.DelegateTimeout)
	}
	if loaded.Retrieval.MinScore != 0.55 {
		t.Errorf("min_score: got %f", loaded.Retrieval.MinScore)
	}
	if strings.Join(loaded.Search.Addresses, ",") != "http://es1:9200,http://es2:9200" {
		t.Errorf("addresses: got %v", loaded.Search.Addresses)
	}
	if loaded.Search.Password != "" {
		t.Error("password must not be written to the config file")
	}
	if loaded.Prompts != original.Prompts {
		t.Error("prompts did not round-trip")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.LLM.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("HOSTKB_LLM__PROVIDER", "ollama")
	t.Setenv("HOSTKB_RETRIEVAL__TOP_K", "9")
	t.Setenv("HOSTKB_ORCHESTRATOR__DELEGATE_TIMEOUT", "45s")
	t.Setenv("HOSTKB_SEARCH__PASSWORD", "from-env")
	t.Setenv("HOSTKB_DATA_DIR", "/var/lib/hostkb")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.Provider != ProviderOllama {
		t.Errorf("env override failed: got %q", loaded.LLM.Provider)
	}
	if loaded.Retrieval.TopK != 9 {
		t.Errorf("top_k: got %d, want 9", loaded.Retrieval.TopK)
	}
	if loaded.Orchestrator.DelegateTimeout != 45*time.Second {
		t.Errorf("delegate_timeout: got %s", loaded.Orchestrator.DelegateTimeout)
	}
	if loaded.Search.Password != "from-env" {
		t.Errorf("password: got %q", loaded.Search.Password)
	}
	if loaded.DataDir != "/var/lib/hostkb" {
		t.Errorf("data_dir: got %q", loaded.DataDir)
	}
	if loaded.Retrieval.SearchType != "hybrid" {
		t.Errorf("untouched defaults should survive, got search_type %q", loaded.Retrieval.SearchType)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		key    string
		mutate func(*Config)
	}{
		{"llm.provider", func(c *Config) { c.LLM.Provider = "invalid" }},
		{"llm.model", func(c *Config) { c.LLM.Model = "" }},
		{"embedding.provider", func(c *Config) { c.Embedding.Provider = ProviderAnthropic }},
		{"embedding.dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"search.engine", func(c *Config) { c.Search.Engine = "solr" }},
		{"search.addresses", func(c *Config) { c.Search.Engine = EngineElasticsearch; c.Search.Addresses = nil }},
		{"retrieval.search_type", func(c *Config) { c.Retrieval.SearchType = "fuzzy" }},
		{"retrieval.kb_scope", func(c *Config) { c.Retrieval.KBScope = "tenant" }},
		{"retrieval.min_score", func(c *Config) { c.Retrieval.MinScore = -1 }},
		{"orchestrator.max_concurrent", func(c *Config) { c.Orchestrator.MaxConcurrent = 0 }},
		{"orchestrator.delegate_timeout", func(c *Config) { c.Orchestrator.DelegateTimeout = 0 }},
		{"prompts.agent", func(c *Config) { c.Prompts.Agent = "  " }},
		{"server.port", func(c *Config) { c.Server.Port = 70000 }},
		{"log.level", func(c *Config) { c.Log.Level = "loud" }},
		{"log.format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperr.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			var ce *apperr.ConfigurationError
			if !errors.As(err, &ce) || ce.Key != tt.key {
				t.Errorf("error key = %v, want %q", err, tt.key)
			}
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := DefaultConfig()
	if err := RequireCredentials(cfg); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected configuration error without OPENAI_API_KEY, got %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	if err := RequireCredentials(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.LLM.Provider = ProviderAnthropic
	if err := RequireCredentials(cfg); err == nil || !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Errorf("expected ANTHROPIC_API_KEY error, got %v", err)
	}

	cfg.LLM.Provider = ProviderOllama
	cfg.Embedding.Provider = ProviderOllama
	t.Setenv("OPENAI_API_KEY", "")
	if err := RequireCredentials(cfg); err != nil {
		t.Errorf("ollama needs no credentials, got %v", err)
	}
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data"
	if got := cfg.DBPath(); got != filepath.Join("/data", "hostkb.db") {
		t.Errorf("DBPath = %q", got)
	}
	if got := cfg.LocalIndexDir(); got != filepath.Join("/data", "index") {
		t.Errorf("LocalIndexDir = %q", got)
	}
	cfg.Search.LocalDir = "/idx"
	if got := cfg.LocalIndexDir(); got != "/idx" {
		t.Errorf("LocalIndexDir = %q", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"http://es:9200", []string{"http://es:9200"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
