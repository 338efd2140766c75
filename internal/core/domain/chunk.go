package domain

// Chunk represents a unit of document text produced by the base chunker.
// Content is immutable after creation; Metadata may be appended by
// enrichment passes.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Content is the text content of this chunk.
	Content string

	// Metadata contains chunk-specific key-value pairs (position info from
	// the chunker, topic labels and similarity data from enrichment).
	Metadata map[string]any
}

// EnrichedChunk is the record the enrichment orchestrator emits for each
// chunk of a processed text. Metadata carries the optional "topic",
// "similar_chunks" and "related_<type>" keys when the corresponding
// enrichment feature is enabled.
type EnrichedChunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// ScoredChunk pairs a chunk id with a similarity score against some query
// chunk. Slices of ScoredChunk are always ordered by descending score.
type ScoredChunk struct {
	ID    string
	Score float64
}

// CreatedReference reports a semantic reference persisted into the graph.
type CreatedReference struct {
	TargetID string
	Type     ReferenceType
	Score    float64
}
