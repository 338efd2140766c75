// Package config defines the TOML configuration surface for the chunk
// relationship core: similarity thresholds, cache sizing, enrichment
// toggles and the embedding backend.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
)

// Default configuration values.
const (
	DefaultSimilarityThreshold = 0.8
	DefaultMaxSimilarChunks    = 5
	DefaultMinContextScore     = 0.6
	DefaultCacheMaxSize        = 1024
	DefaultMinChunksForTopics  = 3
	DefaultNumTopics           = 5
)

// Similarity configures the similarity engine. Validated at construction;
// out-of-range values fail immediately.
type Similarity struct {
	// SimilarityThreshold is the minimum cosine score for two chunks to be
	// considered strongly related. Must be in [0, 1].
	SimilarityThreshold float64 `toml:"similarity_threshold"`

	// MaxSimilarChunks caps the ranked similar-chunk list. Must be >= 1.
	MaxSimilarChunks int `toml:"max_similar_chunks"`

	// MinContextScore is the lower bound of the context tier. Must be in
	// [0, 1].
	MinContextScore float64 `toml:"min_context_score"`

	// Model identifies the embedding backend (e.g. "nomic-embed-text").
	Model string `toml:"model"`

	// CacheEmbeddings controls the per-instance id -> vector cache.
	CacheEmbeddings bool `toml:"cache_embeddings"`
}

// Validate checks the ranges the similarity engine requires.
func (s Similarity) Validate() error {
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold %v out of [0,1]: %w",
			s.SimilarityThreshold, domain.ErrInvalidConfig)
	}
	if s.MaxSimilarChunks < 1 {
		return fmt.Errorf("max_similar_chunks %d must be >= 1: %w",
			s.MaxSimilarChunks, domain.ErrInvalidConfig)
	}
	if s.MinContextScore < 0 || s.MinContextScore > 1 {
		return fmt.Errorf("min_context_score %v out of [0,1]: %w",
			s.MinContextScore, domain.ErrInvalidConfig)
	}
	return nil
}

// Cache configures the reference cache.
type Cache struct {
	// MaxSize bounds the number of cached references. Must be >= 1.
	MaxSize int `toml:"max_size"`
}

// Enrichment configures the orchestrator.
type Enrichment struct {
	// EnableClustering attaches topic labels to enriched records.
	EnableClustering bool `toml:"enable_clustering"`

	// MinChunksForClustering is the minimum chunk count before a
	// clustering pass runs.
	MinChunksForClustering int `toml:"min_chunks_for_clustering"`

	// NumTopics is the requested topic count, clamped to the number of
	// resolvable chunks.
	NumTopics int `toml:"num_topics"`

	// EnableSimilarity attaches similar-chunk and per-type relationship
	// lists to enriched records.
	EnableSimilarity bool `toml:"enable_similarity"`
}

// Embedding selects and configures the embedding provider adapter.
type Embedding struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// APIKey authenticates hosted providers.
	APIKey string `toml:"api_key"`

	// TimeoutSeconds is the per-request timeout.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// RequestsPerSecond throttles outbound embedding calls. Zero disables
	// throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Config is the root configuration document.
type Config struct {
	Similarity Similarity `toml:"similarity"`
	Cache      Cache      `toml:"cache"`
	Enrichment Enrichment `toml:"enrichment"`
	Embedding  Embedding  `toml:"embedding"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Similarity: Similarity{
			SimilarityThreshold: DefaultSimilarityThreshold,
			MaxSimilarChunks:    DefaultMaxSimilarChunks,
			MinContextScore:     DefaultMinContextScore,
			CacheEmbeddings:     true,
		},
		Cache: Cache{
			MaxSize: DefaultCacheMaxSize,
		},
		Enrichment: Enrichment{
			EnableClustering:       true,
			MinChunksForClustering: DefaultMinChunksForTopics,
			NumTopics:              DefaultNumTopics,
			EnableSimilarity:       true,
		},
	}
}

// Load reads a TOML config file, fills unset numeric fields with defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Similarity.Validate(); err != nil {
		return err
	}
	if c.Cache.MaxSize < 1 {
		return fmt.Errorf("cache max_size %d must be >= 1: %w",
			c.Cache.MaxSize, domain.ErrInvalidConfig)
	}
	if c.Enrichment.NumTopics < 1 {
		return fmt.Errorf("enrichment num_topics %d must be >= 1: %w",
			c.Enrichment.NumTopics, domain.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = DefaultCacheMaxSize
	}
	if c.Similarity.MaxSimilarChunks == 0 {
		c.Similarity.MaxSimilarChunks = DefaultMaxSimilarChunks
	}
	if c.Enrichment.MinChunksForClustering == 0 {
		c.Enrichment.MinChunksForClustering = DefaultMinChunksForTopics
	}
	if c.Enrichment.NumTopics == 0 {
		c.Enrichment.NumTopics = DefaultNumTopics
	}
}
