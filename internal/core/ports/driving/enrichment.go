package driving

import (
	"context"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
)

// EnrichmentService drives raw text through chunking, similarity detection
// and topic clustering, emitting enriched chunk records.
type EnrichmentService interface {
	// ProcessText chunks a single text, registers the chunks in the graph
	// and returns one enriched record per chunk.
	ProcessText(ctx context.Context, text string) ([]domain.EnrichedChunk, error)

	// BatchProcessTexts processes several texts with a single global topic
	// clustering pass, preserving per-text grouping and order.
	BatchProcessTexts(ctx context.Context, texts []string) ([][]domain.EnrichedChunk, error)
}
