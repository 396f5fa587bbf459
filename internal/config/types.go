package config

import "time"

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
)

// SearchEngine selects the chunk index backend.
type SearchEngine string

const (
	EngineElasticsearch SearchEngine = "elasticsearch"
	EngineLocal         SearchEngine = "local"
)

// Config is the top-level hostkb configuration, corresponding to .hostkb.yml.
type Config struct {
	LLM          LLMConfig          `yaml:"llm" koanf:"llm"`
	Embedding    EmbeddingConfig    `yaml:"embedding" koanf:"embedding"`
	Search       SearchConfig       `yaml:"search" koanf:"search"`
	Chunker      ChunkerConfig      `yaml:"chunker" koanf:"chunker"`
	Retrieval    RetrievalConfig    `yaml:"retrieval" koanf:"retrieval"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" koanf:"orchestrator"`
	Prompts      PromptsConfig      `yaml:"prompts" koanf:"prompts"`
	Server       ServerConfig       `yaml:"server" koanf:"server"`
	Tools        ToolsConfig        `yaml:"tools" koanf:"tools"`
	DataDir      string             `yaml:"data_dir" koanf:"data_dir"`
	Log          LogConfig          `yaml:"log" koanf:"log"`
}

// LLMConfig selects the conversational and agent models.
type LLMConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	BaseURL           string       `yaml:"base_url,omitempty" koanf:"base_url"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	AgentModel        string       `yaml:"agent_model,omitempty" koanf:"agent_model"`
	AgentTemperature  float64      `yaml:"agent_temperature" koanf:"agent_temperature"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	Dimensions        int          `yaml:"dimensions" koanf:"dimensions"`
	BaseURL           string       `yaml:"base_url,omitempty" koanf:"base_url"`
	BatchSize         int          `yaml:"batch_size" koanf:"batch_size"`
	Concurrency       int          `yaml:"concurrency" koanf:"concurrency"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// SearchConfig selects and addresses the chunk index. Credentials are read
// from the environment and never written back by Save.
type SearchConfig struct {
	Engine    SearchEngine `yaml:"engine" koanf:"engine"`
	Addresses []string     `yaml:"addresses,omitempty" koanf:"addresses"`
	Index     string       `yaml:"index" koanf:"index"`
	Username  string       `yaml:"-" koanf:"username"`
	Password  string       `yaml:"-" koanf:"password"`
	LocalDir  string       `yaml:"local_dir,omitempty" koanf:"local_dir"`
}

type ChunkerConfig struct {
	MaxTokens        int     `yaml:"max_tokens" koanf:"max_tokens"`
	CaptureWarnRatio float64 `yaml:"capture_warn_ratio" koanf:"capture_warn_ratio"`
}

// RetrievalConfig holds the default retrieval options.
type RetrievalConfig struct {
	TopK         int     `yaml:"top_k" koanf:"top_k"`
	MinScore     float64 `yaml:"min_score" koanf:"min_score"`
	SearchType   string  `yaml:"search_type" koanf:"search_type"`
	Rerank       bool    `yaml:"rerank" koanf:"rerank"`
	KBScope      string  `yaml:"kb_scope" koanf:"kb_scope"`
	MaxBoost     float64 `yaml:"max_boost" koanf:"max_boost"`
	BoostPerTerm float64 `yaml:"boost_per_term" koanf:"boost_per_term"`
}

type OrchestratorConfig struct {
	MaxConcurrent   int           `yaml:"max_concurrent" koanf:"max_concurrent"`
	DelegateTimeout time.Duration `yaml:"delegate_timeout" koanf:"delegate_timeout"`
	MaxIterations   int           `yaml:"max_iterations" koanf:"max_iterations"`
	HistoryWindow   int           `yaml:"history_window" koanf:"history_window"`
	SessionTTL      time.Duration `yaml:"session_ttl" koanf:"session_ttl"`
	FriendlyWrap    bool          `yaml:"friendly_wrap" koanf:"friendly_wrap"`
}

// PromptsConfig holds the model instructions. All four are required.
type PromptsConfig struct {
	System    string `yaml:"system" koanf:"system"`
	Agent     string `yaml:"agent" koanf:"agent"`
	Synthesis string `yaml:"synthesis" koanf:"synthesis"`
	Wrap      string `yaml:"wrap" koanf:"wrap"`
}

type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// ToolsConfig configures the optional tools.
type ToolsConfig struct {
	WebSearchURL     string        `yaml:"web_search_url,omitempty" koanf:"web_search_url"`
	WebSearchKeyEnv  string        `yaml:"web_search_key_env" koanf:"web_search_key_env"`
	WebSearchTimeout time.Duration `yaml:"web_search_timeout" koanf:"web_search_timeout"`
	PropertiesFile   string        `yaml:"properties_file,omitempty" koanf:"properties_file"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
