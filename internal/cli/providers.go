package cli

import (
	"fmt"
	"os"

	"ragengine/config"
	"ragengine/internal/adapter/embedding"
	"ragengine/internal/adapter/llm"
	"ragengine/internal/adapter/store"
	"ragengine/internal/port"
)

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "openai":
		if e.BaseURL != "" {
			return embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.Dimension)
		}
		return embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model)
	case "ollama":
		return embedding.NewOllamaEmbedder(e.Model, e.BaseURL)
	case "mock":
		return embedding.NewMockEmbedder(e.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
}

func newLLM(cfg *config.Config) (port.LLM, error) {
	g := cfg.Generation
	switch g.Provider {
	case "openai":
		if g.BaseURL != "" {
			return llm.NewOpenAICompatibleLLM(g.APIKeyEnv, g.Model, g.BaseURL)
		}
		return llm.NewOpenAILLM(g.APIKeyEnv, g.Model)
	case "ollama":
		return llm.NewOllamaLLM(g.Model, g.BaseURL)
	case "mock":
		return llm.NewMockLLM(), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", g.Provider)
	}
}

// openIndex creates a vector index and loads the snapshot under the
// data directory, if one exists.
func openIndex(cfg *config.Config, dir string) (*store.VectorIndex, string, error) {
	idx := store.NewVectorIndex(cfg.Retrieval.OverFetchFactor, logger)

	path := config.SnapshotPath(dir)
	if _, err := os.Stat(path); err == nil {
		if err := idx.Load(path); err != nil {
			return nil, "", fmt.Errorf("failed to load index snapshot: %w", err)
		}
	}
	return idx, path, nil
}
