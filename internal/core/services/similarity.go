package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/crosslink-labs/chunkgraph/internal/config"
	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driven"
	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driving"
	"github.com/crosslink-labs/chunkgraph/internal/graph"
)

// Ensure SimilarityService implements the interface.
var _ driving.SimilarityService = (*SimilarityService)(nil)

// topicTermCount is the number of distinguishing terms in a topic label.
const topicTermCount = 3

// SimilarityService computes embeddings, ranks chunk similarity and
// persists detected semantic relationships into the graph.
//
// The embedding cache is unbounded and lives as long as the service
// instance; ClearEmbeddingCache drops it explicitly.
type SimilarityService struct {
	cfg      config.Similarity
	graph    *graph.Graph
	refCache *graph.ReferenceCache

	embedder  driven.EmbeddingService
	clusterer driven.VectorClusterer
	terms     driven.TermExtractor

	embeddings map[string][]float32

	log *zap.Logger
}

// NewSimilarityService creates a similarity service over g. The refCache,
// clusterer and terms extractor are optional; embedder may be nil, in which
// case embedding operations fail with domain.ErrBackendUnavailable on
// first use. Configuration is validated here and invalid values fail
// immediately.
func NewSimilarityService(
	cfg config.Similarity,
	g *graph.Graph,
	refCache *graph.ReferenceCache,
	embedder driven.EmbeddingService,
	clusterer driven.VectorClusterer,
	terms driven.TermExtractor,
	log *zap.Logger,
) (*SimilarityService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("similarity service requires a graph: %w", domain.ErrInvalidConfig)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SimilarityService{
		cfg:        cfg,
		graph:      g,
		refCache:   refCache,
		embedder:   embedder,
		clusterer:  clusterer,
		terms:      terms,
		embeddings: make(map[string][]float32),
		log:        log,
	}, nil
}

// ChunkEmbedding returns the embedding for the chunk's content, served
// from the per-instance cache when enabled.
func (s *SimilarityService) ChunkEmbedding(ctx context.Context, chunkID string) ([]float32, error) {
	chunk, ok := s.graph.Chunk(chunkID)
	if !ok {
		return nil, fmt.Errorf("embedding for chunk %q: %w", chunkID, domain.ErrNotFound)
	}
	if s.cfg.CacheEmbeddings {
		if vec, ok := s.embeddings[chunkID]; ok {
			return vec, nil
		}
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("embedding for chunk %q: no provider configured: %w",
			chunkID, domain.ErrBackendUnavailable)
	}
	vec, err := s.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return nil, fmt.Errorf("embedding for chunk %q: %w: %w",
			chunkID, domain.ErrBackendUnavailable, err)
	}
	if s.cfg.CacheEmbeddings {
		s.embeddings[chunkID] = vec
	}
	return vec, nil
}

// ComputeSimilarity returns the cosine similarity of two chunks' embeddings
// in [-1, 1]. Symmetric by construction.
func (s *SimilarityService) ComputeSimilarity(ctx context.Context, a, b string) (float64, error) {
	va, err := s.ChunkEmbedding(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := s.ChunkEmbedding(ctx, b)
	if err != nil {
		return 0, err
	}
	return cosine(va, vb), nil
}

// FindSimilarChunks scores every other known chunk against chunkID, keeps
// candidates at or above the similarity threshold and returns the top
// MaxSimilarChunks ordered by descending score. Candidates whose embedding
// cannot be resolved are skipped.
func (s *SimilarityService) FindSimilarChunks(ctx context.Context, chunkID string) ([]domain.ScoredChunk, error) {
	query, err := s.ChunkEmbedding(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	var candidates []domain.ScoredChunk
	for _, other := range s.graph.ChunkIDs() {
		if other == chunkID {
			continue
		}
		vec, err := s.ChunkEmbedding(ctx, other)
		if err != nil {
			s.log.Debug("skipping candidate without embedding",
				zap.String("chunk_id", other), zap.Error(err))
			continue
		}
		score := cosine(query, vec)
		if score >= s.cfg.SimilarityThreshold {
			candidates = append(candidates, domain.ScoredChunk{ID: other, Score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > s.cfg.MaxSimilarChunks {
		candidates = candidates[:s.cfg.MaxSimilarChunks]
	}
	return candidates, nil
}

// DetectSemanticRelationships buckets the threshold-filtered candidate
// pool from FindSimilarChunks into three ordered bands: similar at or
// above the similarity threshold, context at or above the minimum context
// score, related below both.
func (s *SimilarityService) DetectSemanticRelationships(ctx context.Context, chunkID string) (map[domain.ReferenceType][]domain.ScoredChunk, error) {
	candidates, err := s.FindSimilarChunks(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.ReferenceType][]domain.ScoredChunk)
	for _, cand := range candidates {
		var typ domain.ReferenceType
		switch {
		case cand.Score >= s.cfg.SimilarityThreshold:
			typ = domain.RefSimilar
		case cand.Score >= s.cfg.MinContextScore:
			typ = domain.RefContext
		default:
			typ = domain.RefRelated
		}
		out[typ] = append(out[typ], cand)
	}
	return out, nil
}

// CreateSemanticReferences persists every detected relationship as a
// bidirectional reference carrying the score as metadata, writes through
// the reference cache when one is attached, and reports what was created.
func (s *SimilarityService) CreateSemanticReferences(ctx context.Context, chunkID string) ([]domain.CreatedReference, error) {
	detected, err := s.DetectSemanticRelationships(ctx, chunkID)
	if err != nil {
		return nil, err
	}

	var created []domain.CreatedReference
	for _, typ := range []domain.ReferenceType{domain.RefSimilar, domain.RefContext, domain.RefRelated} {
		for _, cand := range detected[typ] {
			md := map[string]any{"score": cand.Score}
			if err := s.graph.AddReference(chunkID, cand.ID, typ, md, true); err != nil {
				return created, fmt.Errorf("persist %s reference %q -> %q: %w",
					typ, chunkID, cand.ID, err)
			}
			if s.refCache != nil {
				if ref, ok := s.graph.Edge(chunkID, cand.ID); ok {
					s.refCache.CacheReference(chunkID, cand.ID, ref)
				}
			}
			created = append(created, domain.CreatedReference{
				TargetID: cand.ID,
				Type:     typ,
				Score:    cand.Score,
			})
		}
	}
	s.log.Debug("semantic references created",
		zap.String("chunk_id", chunkID), zap.Int("count", len(created)))
	return created, nil
}

// AnalyzeTopicRelationships clusters the given chunks into labelled topic
// groups. Chunks that cannot be resolved to an embedding are skipped; an
// empty resolvable set yields an empty map. The cluster count is
// min(numTopics, resolvable chunks). Labels have the form
// "Topic N: term1, term2, term3" with terms ranked by the extractor.
func (s *SimilarityService) AnalyzeTopicRelationships(ctx context.Context, chunkIDs []string, numTopics int) (map[string][]string, error) {
	ids, vectors, texts := s.resolveEmbeddings(ctx, chunkIDs)
	out := make(map[string][]string)
	if len(ids) == 0 {
		return out, nil
	}

	k := numTopics
	if k < 1 {
		k = 1
	}
	if k > len(ids) {
		k = len(ids)
	}

	if s.clusterer == nil {
		return nil, fmt.Errorf("topic analysis: no clusterer configured: %w", domain.ErrBackendUnavailable)
	}
	assignments, err := s.clusterer.Cluster(ctx, vectors, k)
	if err != nil {
		return nil, fmt.Errorf("topic analysis: %w: %w", domain.ErrBackendUnavailable, err)
	}

	members := make([][]string, k)
	groupTexts := make([][]string, k)
	for i, cluster := range assignments {
		if cluster < 0 || cluster >= k {
			continue
		}
		members[cluster] = append(members[cluster], ids[i])
		groupTexts[cluster] = append(groupTexts[cluster], texts[i])
	}

	for cluster := 0; cluster < k; cluster++ {
		if len(members[cluster]) == 0 {
			continue
		}
		label := fmt.Sprintf("Topic %d", cluster+1)
		if s.terms != nil {
			if top := s.terms.TopTerms(groupTexts[cluster], texts, topicTermCount); len(top) > 0 {
				label += ": " + strings.Join(top, ", ")
			}
		}
		sort.Strings(members[cluster])
		out[label] = members[cluster]
	}

	s.log.Debug("topics analysed",
		zap.Int("chunks", len(ids)), zap.Int("topics", len(out)))
	return out, nil
}

// ClearEmbeddingCache drops all cached embeddings.
func (s *SimilarityService) ClearEmbeddingCache() {
	s.embeddings = make(map[string][]float32)
}

// resolveEmbeddings returns the subset of chunkIDs with a resolvable
// embedding, preserving input order and dropping duplicates. Missing
// embeddings are fetched in one provider round-trip where possible.
func (s *SimilarityService) resolveEmbeddings(ctx context.Context, chunkIDs []string) (ids []string, vectors [][]float32, texts []string) {
	seen := make(map[string]struct{}, len(chunkIDs))
	unique := make([]string, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	s.prefetchEmbeddings(ctx, unique)

	for _, id := range unique {
		chunk, ok := s.graph.Chunk(id)
		if !ok {
			s.log.Debug("skipping unknown chunk", zap.String("chunk_id", id))
			continue
		}
		vec, err := s.ChunkEmbedding(ctx, id)
		if err != nil {
			s.log.Debug("skipping chunk without embedding",
				zap.String("chunk_id", id), zap.Error(err))
			continue
		}
		ids = append(ids, id)
		vectors = append(vectors, vec)
		texts = append(texts, chunk.Content)
	}
	return ids, vectors, texts
}

// prefetchEmbeddings batch-fetches embeddings for cached-miss ids. Failures
// are ignored; per-id fetching in ChunkEmbedding remains the fallback.
func (s *SimilarityService) prefetchEmbeddings(ctx context.Context, chunkIDs []string) {
	if s.embedder == nil || !s.cfg.CacheEmbeddings {
		return
	}
	var missing []string
	var contents []string
	for _, id := range chunkIDs {
		if _, ok := s.embeddings[id]; ok {
			continue
		}
		chunk, ok := s.graph.Chunk(id)
		if !ok {
			continue
		}
		missing = append(missing, id)
		contents = append(contents, chunk.Content)
	}
	if len(missing) < 2 {
		return
	}
	vecs, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil || len(vecs) != len(missing) {
		s.log.Debug("batch embedding failed, falling back to per-chunk calls", zap.Error(err))
		return
	}
	for i, id := range missing {
		s.embeddings[id] = vecs[i]
	}
}

// cosine returns the cosine similarity of two vectors, 0 when either has
// zero norm or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
