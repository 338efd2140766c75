package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslink-labs/chunkgraph/internal/adapters/driven/clustering/kmeans"
	"github.com/crosslink-labs/chunkgraph/internal/adapters/driven/terms/tfidf"
	"github.com/crosslink-labs/chunkgraph/internal/config"
	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
	"github.com/crosslink-labs/chunkgraph/internal/graph"
)

// stubEmbedder serves fixed vectors keyed by text content.
type stubEmbedder struct {
	vectors    map[string][]float32
	embedCalls int
	batchCalls int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.embedCalls++
	vec, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("no vector for text")
	}
	return vec, nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.batchCalls++
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, ok := s.vectors[text]
		if !ok {
			return nil, errors.New("no vector for text")
		}
		out = append(out, vec)
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int              { return 3 }
func (s *stubEmbedder) ModelName() string            { return "stub" }
func (s *stubEmbedder) Ping(_ context.Context) error { return nil }
func (s *stubEmbedder) Close() error                 { return nil }

func testSimilarityConfig() config.Similarity {
	return config.Similarity{
		SimilarityThreshold: 0.8,
		MaxSimilarChunks:    5,
		MinContextScore:     0.6,
		Model:               "stub",
		CacheEmbeddings:     true,
	}
}

// newSimilarityFixture builds a graph with the given id -> content chunks
// and a similarity service backed by a stub embedder.
func newSimilarityFixture(t *testing.T, cfg config.Similarity, chunks map[string]string, vectors map[string][]float32) (*graph.Graph, *SimilarityService, *stubEmbedder) {
	t.Helper()
	g := graph.NewGraph(nil)
	for id, content := range chunks {
		_, err := g.AddChunk(content, id)
		require.NoError(t, err)
	}
	embedder := &stubEmbedder{vectors: vectors}
	svc, err := NewSimilarityService(cfg, g, nil, embedder, kmeans.New(), tfidf.New(), nil)
	require.NoError(t, err)
	return g, svc, embedder
}

func TestNewSimilarityService_InvalidConfig(t *testing.T) {
	g := graph.NewGraph(nil)

	bad := []config.Similarity{
		{SimilarityThreshold: -0.1, MaxSimilarChunks: 5, MinContextScore: 0.5},
		{SimilarityThreshold: 1.1, MaxSimilarChunks: 5, MinContextScore: 0.5},
		{SimilarityThreshold: 0.8, MaxSimilarChunks: 0, MinContextScore: 0.5},
		{SimilarityThreshold: 0.8, MaxSimilarChunks: 5, MinContextScore: 1.5},
	}
	for _, cfg := range bad {
		_, err := NewSimilarityService(cfg, g, nil, nil, nil, nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	}

	_, err := NewSimilarityService(testSimilarityConfig(), nil, nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSimilarityService_ChunkEmbedding_UnknownChunk(t *testing.T) {
	_, svc, _ := newSimilarityFixture(t, testSimilarityConfig(), nil, nil)

	_, err := svc.ChunkEmbedding(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSimilarityService_ChunkEmbedding_NoProvider(t *testing.T) {
	g := graph.NewGraph(nil)
	_, err := g.AddChunk("text", "a")
	require.NoError(t, err)

	svc, err := NewSimilarityService(testSimilarityConfig(), g, nil, nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.ChunkEmbedding(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestSimilarityService_ChunkEmbedding_Caches(t *testing.T) {
	_, svc, embedder := newSimilarityFixture(t, testSimilarityConfig(),
		map[string]string{"a": "alpha"},
		map[string][]float32{"alpha": {1, 0, 0}})

	ctx := context.Background()
	_, err := svc.ChunkEmbedding(ctx, "a")
	require.NoError(t, err)
	_, err = svc.ChunkEmbedding(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.embedCalls)

	svc.ClearEmbeddingCache()
	_, err = svc.ChunkEmbedding(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.embedCalls)
}

func TestSimilarityService_ChunkEmbedding_CachingDisabled(t *testing.T) {
	cfg := testSimilarityConfig()
	cfg.CacheEmbeddings = false
	_, svc, embedder := newSimilarityFixture(t, cfg,
		map[string]string{"a": "alpha"},
		map[string][]float32{"alpha": {1, 0, 0}})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.ChunkEmbedding(ctx, "a")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, embedder.embedCalls)
}

func TestSimilarityService_ComputeSimilarity_Symmetric(t *testing.T) {
	_, svc, _ := newSimilarityFixture(t, testSimilarityConfig(),
		map[string]string{"a": "alpha", "b": "beta"},
		map[string][]float32{
			"alpha": {1, 0, 0},
			"beta":  {0.5, 0.5, 0},
		})

	ctx := context.Background()
	ab, err := svc.ComputeSimilarity(ctx, "a", "b")
	require.NoError(t, err)
	ba, err := svc.ComputeSimilarity(ctx, "b", "a")
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.InDelta(t, 0.7071, ab, 0.001)
}

func TestSimilarityService_FindSimilarChunks_RanksAndTruncates(t *testing.T) {
	cfg := testSimilarityConfig()
	cfg.MaxSimilarChunks = 2
	_, svc, _ := newSimilarityFixture(t, cfg,
		map[string]string{"q": "query", "a": "alpha", "b": "beta", "c": "gamma", "d": "delta"},
		map[string][]float32{
			"query": {1, 0, 0},
			"alpha": {0.99, 0.1, 0},  // high similarity
			"beta":  {0.95, 0.3, 0},  // above threshold
			"gamma": {0.9, 0.43, 0},  // above threshold but ranked third
			"delta": {0, 1, 0},       // orthogonal, filtered out
		})

	got, err := svc.FindSimilarChunks(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, got, 2, "truncated to max_similar_chunks")
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Greater(t, got[0].Score, got[1].Score)
	for _, sc := range got {
		assert.GreaterOrEqual(t, sc.Score, cfg.SimilarityThreshold)
	}
}

func TestSimilarityService_FindSimilarChunks_SkipsUnresolvableCandidates(t *testing.T) {
	_, svc, _ := newSimilarityFixture(t, testSimilarityConfig(),
		map[string]string{"q": "query", "a": "alpha", "x": "no-vector"},
		map[string][]float32{
			"query": {1, 0, 0},
			"alpha": {1, 0.05, 0},
		})

	got, err := svc.FindSimilarChunks(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestSimilarityService_DetectSemanticRelationships_SimilarBand(t *testing.T) {
	_, svc, _ := newSimilarityFixture(t, testSimilarityConfig(),
		map[string]string{"q": "query", "a": "alpha", "b": "beta"},
		map[string][]float32{
			"query": {1, 0, 0},
			"alpha": {0.99, 0.1, 0},
			"beta":  {0, 1, 0},
		})

	got, err := svc.DetectSemanticRelationships(context.Background(), "q")
	require.NoError(t, err)

	// The candidate pool is already threshold-filtered, so every member
	// lands in the similar band; the lower bands stay empty.
	require.Len(t, got[domain.RefSimilar], 1)
	assert.Equal(t, "a", got[domain.RefSimilar][0].ID)
	assert.Empty(t, got[domain.RefContext])
	assert.Empty(t, got[domain.RefRelated])
}

func TestSimilarityService_CreateSemanticReferences_PersistsBidirectional(t *testing.T) {
	g := graph.NewGraph(nil)
	for id, content := range map[string]string{"q": "query", "a": "alpha"} {
		_, err := g.AddChunk(content, id)
		require.NoError(t, err)
	}
	refCache, err := graph.NewReferenceCache(g, 16, nil)
	require.NoError(t, err)

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
		"alpha": {0.99, 0.1, 0},
	}}
	svc, err := NewSimilarityService(testSimilarityConfig(), g, refCache, embedder, nil, nil, nil)
	require.NoError(t, err)

	created, err := svc.CreateSemanticReferences(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "a", created[0].TargetID)
	assert.Equal(t, domain.RefSimilar, created[0].Type)

	// Forward edge carries the score; similar is self-inverse, so the
	// reverse edge holds the same type.
	fwd, ok := g.Edge("q", "a")
	require.True(t, ok)
	assert.True(t, fwd.Bidirectional)
	assert.InDelta(t, created[0].Score, fwd.Metadata["score"].(float64), 1e-9)

	rev, ok := g.Edge("a", "q")
	require.True(t, ok)
	assert.Equal(t, domain.RefSimilar, rev.Type)

	// Write-through: the new edge is already cached.
	_, ok = refCache.GetReference("q", "a")
	require.True(t, ok)
	assert.Equal(t, uint64(1), refCache.Stats().Hits)

	assert.Empty(t, g.ValidateReferences())
}

func TestSimilarityService_AnalyzeTopicRelationships_TwoClusters(t *testing.T) {
	chunks := map[string]string{
		"s1": "solar panels convert sunlight into energy",
		"s2": "solar energy output depends on sunlight",
		"s3": "panels track sunlight to maximise solar energy",
		"s4": "energy storage buffers solar panel output",
		"p1": "simmer the tomato sauce for the pasta",
		"p2": "fresh pasta cooks faster than dried pasta",
		"p3": "season the tomato sauce before serving pasta",
		"p4": "drain the pasta and fold in the sauce",
	}
	vectors := map[string][]float32{}
	for id, content := range chunks {
		if strings.HasPrefix(id, "s") {
			vectors[content] = []float32{1, float32(len(content)%7) * 0.01, 0}
		} else {
			vectors[content] = []float32{0, 1, float32(len(content)%5) * 0.01}
		}
	}
	_, svc, _ := newSimilarityFixture(t, testSimilarityConfig(), chunks, vectors)

	ids := []string{"s1", "s2", "s3", "s4", "p1", "p2", "p3", "p4"}
	topics, err := svc.AnalyzeTopicRelationships(context.Background(), ids, 2)
	require.NoError(t, err)
	require.Len(t, topics, 2)

	seen := map[string]int{}
	for label, members := range topics {
		assert.Regexp(t, `^Topic \d+: `, label)
		assert.NotEmpty(t, members)
		for _, id := range members {
			seen[id]++
		}
	}
	// Every chunk appears exactly once across the two disjoint clusters.
	require.Len(t, seen, 8)
	for id, count := range seen {
		assert.Equal(t, 1, count, "chunk %s", id)
	}
}

func TestSimilarityService_AnalyzeTopicRelationships_SkipsUnresolvable(t *testing.T) {
	_, svc, _ := newSimilarityFixture(t, testSimilarityConfig(),
		map[string]string{"a": "alpha", "x": "no-vector"},
		map[string][]float32{"alpha": {1, 0, 0}})

	topics, err := svc.AnalyzeTopicRelationships(context.Background(), []string{"a", "x", "ghost"}, 2)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	for _, members := range topics {
		assert.Equal(t, []string{"a"}, members)
	}
}

func TestSimilarityService_AnalyzeTopicRelationships_EmptyResolvableSet(t *testing.T) {
	_, svc, _ := newSimilarityFixture(t, testSimilarityConfig(), nil, nil)

	topics, err := svc.AnalyzeTopicRelationships(context.Background(), []string{"ghost1", "ghost2"}, 3)
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func TestSimilarityService_AnalyzeTopicRelationships_PrefetchesBatch(t *testing.T) {
	chunks := map[string]string{"a": "alpha", "b": "beta", "c": "gamma"}
	vectors := map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0.9, 0.1, 0},
		"gamma": {0, 1, 0},
	}
	_, svc, embedder := newSimilarityFixture(t, testSimilarityConfig(), chunks, vectors)

	_, err := svc.AnalyzeTopicRelationships(context.Background(), []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.batchCalls)
	assert.Equal(t, 0, embedder.embedCalls, "cache was warmed by the batch call")
}

func TestCosine_EdgeCases(t *testing.T) {
	assert.Equal(t, float64(0), cosine(nil, []float32{1}))
	assert.Equal(t, float64(0), cosine([]float32{1, 0}, []float32{1}))
	assert.Equal(t, float64(0), cosine([]float32{0, 0}, []float32{1, 0}))
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-3, 0}), 1e-9)
}
