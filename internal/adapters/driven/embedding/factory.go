// Package embedding provides a factory for embedding service adapters.
package embedding

import (
	"fmt"
	"time"

	"github.com/crosslink-labs/chunkgraph/internal/adapters/driven/embedding/ollama"
	"github.com/crosslink-labs/chunkgraph/internal/adapters/driven/embedding/openai"
	"github.com/crosslink-labs/chunkgraph/internal/config"
	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driven"
)

// New creates the embedding service named by cfg.Provider. An empty
// provider returns (nil, nil): the similarity service then reports
// domain.ErrBackendUnavailable on first embedding use.
func New(cfg config.Embedding) (driven.EmbeddingService, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case "":
		return nil, nil
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Timeout:           timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	case "openai":
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Timeout:           timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q: %w",
			cfg.Provider, domain.ErrBackendUnavailable)
	}
}
