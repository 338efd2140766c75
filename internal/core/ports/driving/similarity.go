package driving

import (
	"context"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
)

// SimilarityService detects and persists semantic relationships between
// chunks already registered in the graph.
type SimilarityService interface {
	// ChunkEmbedding returns the embedding vector for a chunk's content.
	ChunkEmbedding(ctx context.Context, chunkID string) ([]float32, error)

	// ComputeSimilarity returns the cosine similarity of two chunks,
	// in [-1, 1]. Symmetric in its arguments.
	ComputeSimilarity(ctx context.Context, a, b string) (float64, error)

	// FindSimilarChunks ranks every other chunk against chunkID, keeps
	// scores at or above the similarity threshold, and truncates to the
	// configured maximum. Results are ordered by descending score.
	FindSimilarChunks(ctx context.Context, chunkID string) ([]domain.ScoredChunk, error)

	// DetectSemanticRelationships buckets the candidates from
	// FindSimilarChunks into similar/context/related tiers.
	DetectSemanticRelationships(ctx context.Context, chunkID string) (map[domain.ReferenceType][]domain.ScoredChunk, error)

	// CreateSemanticReferences persists every detected relationship into
	// the graph as a bidirectional reference and reports what was created.
	CreateSemanticReferences(ctx context.Context, chunkID string) ([]domain.CreatedReference, error)

	// AnalyzeTopicRelationships clusters the given chunks into at most
	// numTopics labelled topic groups. Chunks without a resolvable
	// embedding are skipped; an empty resolvable set yields an empty map.
	AnalyzeTopicRelationships(ctx context.Context, chunkIDs []string, numTopics int) (map[string][]string, error)

	// ClearEmbeddingCache drops all cached embeddings.
	ClearEmbeddingCache()
}
