package llm

import (
	"os"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// APIKeyEnv returns the environment variable holding the API key for a
// provider type, or "" when the provider needs none.
func APIKeyEnv(providerType string) string {
	switch providerType {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	}
	return ""
}

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "anthropic", "openai", "openrouter", "google", "ollama".
// baseURL overrides the endpoint of OpenAI-compatible and Ollama providers.
func NewProvider(providerType, model, baseURL string) (Provider, error) {
	if env := APIKeyEnv(providerType); env != "" && os.Getenv(env) == "" {
		return nil, apperr.Configuration("llm.provider", "%s environment variable is not set", env)
	}

	switch providerType {
	case "anthropic":
		return NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY"), model), nil

	case "openai":
		return NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), model, baseURL), nil

	case "openrouter":
		if baseURL == "" {
			baseURL = openRouterBaseURL
		}
		return newOpenAICompatible("openrouter", os.Getenv("OPENROUTER_API_KEY"), model, baseURL), nil

	case "google":
		return NewGoogleProvider(os.Getenv("GOOGLE_API_KEY"), model), nil

	case "ollama":
		host := baseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, apperr.Configuration("llm.provider", "unsupported provider type: %s", providerType)
	}
}

// DefaultModel returns a reasonable model name for a provider type.
func DefaultModel(providerType string) string {
	switch providerType {
	case "anthropic":
		return "claude-haiku-4-5-20251001"
	case "openai":
		return "gpt-4o-mini"
	case "openrouter":
		return "openai/gpt-4o-mini"
	case "google":
		return "gemini-2.0-flash"
	case "ollama":
		return "llama3.1"
	}
	return ""
}
