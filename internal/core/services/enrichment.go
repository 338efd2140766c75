package services

import (
	"context"
	"fmt"
	"maps"

	"go.uber.org/zap"

	"github.com/crosslink-labs/chunkgraph/internal/config"
	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driven"
	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driving"
	"github.com/crosslink-labs/chunkgraph/internal/graph"
)

// Ensure EnrichmentService implements the interface.
var _ driving.EnrichmentService = (*EnrichmentService)(nil)

// Metadata keys attached to enriched records.
const (
	// MetaTopic holds the topic label from the clustering pass.
	MetaTopic = "topic"
	// MetaSimilarChunks holds the ranked []domain.ScoredChunk list.
	MetaSimilarChunks = "similar_chunks"
	// MetaRelatedPrefix prefixes the per-relationship-type lists, e.g.
	// "related_similar", "related_context".
	MetaRelatedPrefix = "related_"
)

// EnrichmentService drives raw text through the base chunker, registers
// the chunks in the graph and enriches the emitted records with topic and
// similarity metadata.
//
// Enrichment failures on individual chunks degrade that chunk's record
// rather than aborting the batch; graph registration failures propagate.
type EnrichmentService struct {
	cfg     config.Enrichment
	chunker driven.Chunker
	sim     driving.SimilarityService
	graph   *graph.Graph
	log     *zap.Logger
}

// NewEnrichmentService creates an orchestrator. The similarity service is
// optional; without it records stay minimal regardless of configuration.
func NewEnrichmentService(
	cfg config.Enrichment,
	chunker driven.Chunker,
	sim driving.SimilarityService,
	g *graph.Graph,
	log *zap.Logger,
) (*EnrichmentService, error) {
	if chunker == nil {
		return nil, fmt.Errorf("enrichment service requires a chunker: %w", domain.ErrInvalidConfig)
	}
	if g == nil {
		return nil, fmt.Errorf("enrichment service requires a graph: %w", domain.ErrInvalidConfig)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrichmentService{
		cfg:     cfg,
		chunker: chunker,
		sim:     sim,
		graph:   g,
		log:     log,
	}, nil
}

// ProcessText chunks a single text, registers every chunk in the graph and
// returns one enriched record per chunk. Topic labels are attached when
// clustering is enabled and the chunk count meets the configured minimum;
// similarity metadata is attached when enabled.
func (e *EnrichmentService) ProcessText(ctx context.Context, text string) ([]domain.EnrichedChunk, error) {
	ids, err := e.registerChunks(ctx, text)
	if err != nil {
		return nil, err
	}

	topicByChunk := map[string]string{}
	if e.clusteringActive(len(ids)) {
		topicByChunk = e.topicsFor(ctx, ids)
	}

	records := make([]domain.EnrichedChunk, 0, len(ids))
	for _, id := range ids {
		records = append(records, e.enrichChunk(ctx, id, topicByChunk))
	}
	e.log.Info("text processed",
		zap.Int("chunks", len(records)),
		zap.Bool("clustering", e.clusteringActive(len(ids))),
		zap.Bool("similarity", e.similarityActive()))
	return records, nil
}

// BatchProcessTexts chunks every text first, then runs a single global
// clustering pass over the union of all chunks before reconstructing each
// text's records in original order. When clustering is disabled or the
// global chunk count is below the minimum, every chunk falls back to a
// minimal record.
func (e *EnrichmentService) BatchProcessTexts(ctx context.Context, texts []string) ([][]domain.EnrichedChunk, error) {
	groups := make([][]string, len(texts))
	var all []string
	for i, text := range texts {
		ids, err := e.registerChunks(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch text %d: %w", i, err)
		}
		groups[i] = ids
		all = append(all, ids...)
	}

	if !e.clusteringActive(len(all)) {
		out := make([][]domain.EnrichedChunk, len(groups))
		for i, ids := range groups {
			out[i] = e.minimalRecords(ids)
		}
		e.log.Info("batch processed minimally",
			zap.Int("texts", len(texts)), zap.Int("chunks", len(all)))
		return out, nil
	}

	// One global pass gives better cluster coherence than clustering each
	// text on its own.
	topicByChunk := e.topicsFor(ctx, all)

	out := make([][]domain.EnrichedChunk, len(groups))
	for i, ids := range groups {
		records := make([]domain.EnrichedChunk, 0, len(ids))
		for _, id := range ids {
			records = append(records, e.enrichChunk(ctx, id, topicByChunk))
		}
		out[i] = records
	}
	e.log.Info("batch processed",
		zap.Int("texts", len(texts)),
		zap.Int("chunks", len(all)),
		zap.Int("topics", countTopics(topicByChunk)))
	return out, nil
}

// registerChunks runs the base chunker and registers each chunk in the
// graph, carrying chunker metadata (position info) over.
func (e *EnrichmentService) registerChunks(ctx context.Context, text string) ([]string, error) {
	chunks, err := e.chunker.Chunk(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("chunk text: %w", err)
	}
	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		id, err := e.graph.AddChunk(chunk.Content, chunk.ID)
		if err != nil {
			return nil, err
		}
		if len(chunk.Metadata) > 0 {
			if err := e.graph.AppendChunkMetadata(id, chunk.Metadata); err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// enrichChunk builds the record for one chunk, attaching whatever
// enrichment succeeded. Similarity failures degrade the record, they do
// not abort processing.
func (e *EnrichmentService) enrichChunk(ctx context.Context, id string, topicByChunk map[string]string) domain.EnrichedChunk {
	rec := e.minimalRecord(id)

	if label, ok := topicByChunk[id]; ok {
		rec.Metadata[MetaTopic] = label
		if err := e.graph.AppendChunkMetadata(id, map[string]any{MetaTopic: label}); err != nil {
			e.log.Warn("failed to persist topic label",
				zap.String("chunk_id", id), zap.Error(err))
		}
	}

	if !e.similarityActive() {
		return rec
	}

	similar, err := e.sim.FindSimilarChunks(ctx, id)
	if err != nil {
		e.log.Warn("similarity ranking failed",
			zap.String("chunk_id", id), zap.Error(err))
		return rec
	}
	rec.Metadata[MetaSimilarChunks] = similar

	related, err := e.sim.DetectSemanticRelationships(ctx, id)
	if err != nil {
		e.log.Warn("relationship detection failed",
			zap.String("chunk_id", id), zap.Error(err))
		return rec
	}
	for typ, list := range related {
		rec.Metadata[MetaRelatedPrefix+string(typ)] = list
	}
	return rec
}

// topicsFor runs topic analysis over ids and inverts the result to a
// chunk -> label mapping. Failures degrade to no topics.
func (e *EnrichmentService) topicsFor(ctx context.Context, ids []string) map[string]string {
	topics, err := e.sim.AnalyzeTopicRelationships(ctx, ids, e.cfg.NumTopics)
	if err != nil {
		e.log.Warn("topic analysis failed", zap.Error(err))
		return map[string]string{}
	}
	byChunk := make(map[string]string)
	for label, members := range topics {
		for _, id := range members {
			byChunk[id] = label
		}
	}
	return byChunk
}

func (e *EnrichmentService) minimalRecords(ids []string) []domain.EnrichedChunk {
	records := make([]domain.EnrichedChunk, 0, len(ids))
	for _, id := range ids {
		records = append(records, e.minimalRecord(id))
	}
	return records
}

func (e *EnrichmentService) minimalRecord(id string) domain.EnrichedChunk {
	rec := domain.EnrichedChunk{ID: id, Metadata: make(map[string]any)}
	if chunk, ok := e.graph.Chunk(id); ok {
		rec.Content = chunk.Content
		maps.Copy(rec.Metadata, chunk.Metadata)
	}
	return rec
}

func (e *EnrichmentService) clusteringActive(chunkCount int) bool {
	return e.cfg.EnableClustering && e.sim != nil && chunkCount >= e.cfg.MinChunksForClustering
}

func (e *EnrichmentService) similarityActive() bool {
	return e.cfg.EnableSimilarity && e.sim != nil
}

func countTopics(topicByChunk map[string]string) int {
	labels := make(map[string]struct{})
	for _, label := range topicByChunk {
		labels[label] = struct{}{}
	}
	return len(labels)
}
