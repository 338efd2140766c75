package driven

import (
	"context"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
)

// Chunker splits raw document text into chunks.
// Implementations assign each chunk a unique id and record position info in
// the chunk metadata.
type Chunker interface {
	// Name returns the chunker name for logging and configuration.
	Name() string

	// Chunk splits text into ordered chunks. Empty or whitespace-only text
	// produces no chunks and no error.
	Chunk(ctx context.Context, text string) ([]domain.Chunk, error)
}
