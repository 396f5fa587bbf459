package config

import (
	"time"

	"github.com/ziadkadry99/hostkb/internal/llm"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:          ProviderOpenAI,
			Model:             llm.DefaultModel(string(ProviderOpenAI)),
			Temperature:       0.7,
			AgentTemperature:  0.1,
			RequestsPerMinute: 60,
		},
		Embedding: EmbeddingConfig{
			Provider:    ProviderOpenAI,
			Model:       "text-embedding-3-small",
			Dimensions:  384,
			BatchSize:   32,
			Concurrency: 4,
		},
		Search: SearchConfig{
			Engine:    EngineLocal,
			Addresses: []string{"http://localhost:9200"},
			Index:     "kb_chunks",
		},
		Chunker: ChunkerConfig{
			MaxTokens:        512,
			CaptureWarnRatio: 0.9,
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			MinScore:     0.7,
			SearchType:   "hybrid",
			Rerank:       true,
			KBScope:      "property",
			MaxBoost:     0.5,
			BoostPerTerm: 0.1,
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrent:   5,
			DelegateTimeout: 30 * time.Second,
			MaxIterations:   4,
			HistoryWindow:   6,
			FriendlyWrap:    true,
		},
		Prompts: DefaultPrompts(),
		Server: ServerConfig{
			Port: 8080,
		},
		Tools: ToolsConfig{
			WebSearchKeyEnv:  "HOSTKB_WEB_SEARCH_KEY",
			WebSearchTimeout: 10 * time.Second,
		},
		DataDir: ".hostkb",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPrompts returns the built-in prompt templates.
func DefaultPrompts() PromptsConfig {
	return PromptsConfig{
		System: `You are the virtual concierge of a short-term rental. You chat with guests and property owners.
Be warm, brief and precise. Never invent facts about the property: if you do not know something, say so
and offer to pass the question to the host. Answer in the language of the guest.`,

		Agent: `You answer questions about short-term rental properties using tools.
Always call knowledge_search before answering questions about a property, its rules, prices,
amenities, check-in or the neighbourhood. Use property_lookup for structured facts such as
address, capacity or nightly rate, and distance for "how far" questions.
Only state facts found in tool results. If the tools return nothing relevant, say that the
information is not available. Reply with the final answer only, without mentioning tools.`,

		Synthesis: `You have run out of tool calls. Using only the tool results above, write the best
answer you can to the guest's question. If the results are insufficient, say which information is missing.`,

		Wrap: `Rewrite the answer below for the guest in a friendly, conversational tone.
Keep every fact, number, time, price and address exactly as given. Do not add information.
Keep it short and use the language of the guest question.`,
	}
}
