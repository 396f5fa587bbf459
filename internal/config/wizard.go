package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/ziadkadry99/hostkb/internal/llm"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to hostkb! Let's set up your knowledge base.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Chat model provider.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "anthropic", "google", "openrouter", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.LLM.Provider = ProviderType(providerStr)

	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: llm.DefaultModel(providerStr),
	}
	if cfg.LLM.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 2. Embeddings.
	cfg.Embedding.Provider = embeddingProviderFor(cfg.LLM.Provider)
	if cfg.Embedding.Provider == ProviderOllama {
		cfg.Embedding.Model = "nomic-embed-text"
	}

	// 3. Search engine.
	enginePrompt := promptui.Select{
		Label: "Where should chunks be indexed?",
		Items: []string{
			"local         - embedded store under the data directory",
			"elasticsearch - an Elasticsearch 8 cluster",
		},
	}
	engineIdx, _, err := enginePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("engine selection: %w", err)
	}
	if engineIdx == 1 {
		cfg.Search.Engine = EngineElasticsearch
		addrPrompt := promptui.Prompt{
			Label:   "Elasticsearch addresses (comma-separated)",
			Default: strings.Join(cfg.Search.Addresses, ","),
		}
		addrs, err := addrPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("addresses: %w", err)
		}
		cfg.Search.Addresses = splitAndTrim(addrs)
	}

	// 4. Storage and server.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	if cfg.DataDir, err = dataPrompt.Run(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, envVar := range []string{llm.APIKeyEnv(providerStr), embeddingKeyEnv(cfg.Embedding.Provider)} {
		if envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running hostkb serve.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// embeddingProviderFor returns the default embedding provider for a given
// LLM provider. OpenAI embeddings are used for all cloud providers.
func embeddingProviderFor(p ProviderType) ProviderType {
	if p == ProviderOllama {
		return ProviderOllama
	}
	return ProviderOpenAI
}

func embeddingKeyEnv(p ProviderType) string {
	if p == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return ""
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("enter a port between 1 and 65535")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and drops empty items.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
