package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
)

func newTestCache(t *testing.T, maxSize int) (*Graph, *ReferenceCache) {
	t.Helper()
	g := NewGraph(nil)
	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := g.AddChunk("content of "+id, id)
		require.NoError(t, err)
	}
	cache, err := NewReferenceCache(g, maxSize, nil)
	require.NoError(t, err)
	return g, cache
}

func TestNewReferenceCache_InvalidSize(t *testing.T) {
	_, err := NewReferenceCache(NewGraph(nil), 0, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewReferenceCache(NewGraph(nil), -3, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestReferenceCache_GetReference_FallsBackToGraph(t *testing.T) {
	g, cache := newTestCache(t, 8)
	require.NoError(t, g.AddReference("a", "b", domain.RefLink, nil, false))

	// First lookup misses the cache and repopulates from the graph.
	ref, ok := cache.GetReference("a", "b")
	require.True(t, ok)
	assert.Equal(t, domain.RefLink, ref.Type)
	assert.Equal(t, uint64(0), cache.Stats().Hits)
	assert.Equal(t, uint64(1), cache.Stats().Misses)

	// Second lookup hits.
	_, ok = cache.GetReference("a", "b")
	require.True(t, ok)
	assert.Equal(t, uint64(1), cache.Stats().Hits)
	assert.Equal(t, uint64(1), cache.Stats().Misses)
}

func TestReferenceCache_GetReference_AbsentEdge(t *testing.T) {
	_, cache := newTestCache(t, 8)

	_, ok := cache.GetReference("a", "b")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), cache.Stats().Misses)
	assert.Equal(t, 0, cache.Len())
}

func TestReferenceCache_LRUEviction(t *testing.T) {
	_, cache := newTestCache(t, 2)

	k1 := &domain.Reference{SourceID: "a", TargetID: "b", Type: domain.RefLink}
	k2 := &domain.Reference{SourceID: "b", TargetID: "c", Type: domain.RefLink}
	k3 := &domain.Reference{SourceID: "c", TargetID: "d", Type: domain.RefLink}

	cache.CacheReference("a", "b", k1)
	cache.CacheReference("b", "c", k2)
	cache.CacheReference("c", "d", k3)

	// Exactly one entry, the least recently used, was evicted.
	assert.Equal(t, 2, cache.Len())

	// The evicted pair is gone from the cache and, with no matching graph
	// edge, the lookup is a miss.
	_, ok := cache.GetReference("a", "b")
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, float64(0), stats.HitRate)
}

func TestReferenceCache_GetPromotesEntry(t *testing.T) {
	_, cache := newTestCache(t, 2)

	k1 := &domain.Reference{SourceID: "a", TargetID: "b", Type: domain.RefLink}
	k2 := &domain.Reference{SourceID: "b", TargetID: "c", Type: domain.RefLink}
	k3 := &domain.Reference{SourceID: "c", TargetID: "d", Type: domain.RefLink}

	cache.CacheReference("a", "b", k1)
	cache.CacheReference("b", "c", k2)

	// Touch (a, b) so (b, c) becomes least recently used.
	_, ok := cache.GetReference("a", "b")
	require.True(t, ok)

	cache.CacheReference("c", "d", k3)

	_, ok = cache.GetReference("a", "b")
	assert.True(t, ok, "promoted entry must survive the eviction")
}

func TestReferenceCache_BidirectionalCachesReverse(t *testing.T) {
	g, cache := newTestCache(t, 8)
	require.NoError(t, g.AddReference("a", "b", domain.RefParent, nil, true))

	ref, ok := g.Edge("a", "b")
	require.True(t, ok)
	cache.CacheReference("a", "b", ref)

	// Both directions are now cached; the reverse lookup is a hit.
	assert.Equal(t, 2, cache.Len())
	rev, ok := cache.GetReference("b", "a")
	require.True(t, ok)
	assert.Equal(t, domain.RefChild, rev.Type)
	assert.Equal(t, uint64(1), cache.Stats().Hits)
	assert.Equal(t, uint64(0), cache.Stats().Misses)
}

func TestReferenceCache_InvalidateReference(t *testing.T) {
	g, cache := newTestCache(t, 8)
	require.NoError(t, g.AddReference("a", "b", domain.RefLink, nil, false))

	_, ok := cache.GetReference("a", "b")
	require.True(t, ok)

	cache.InvalidateReference("a", "b")
	assert.Equal(t, uint64(1), cache.Stats().Invalidations)
	assert.Equal(t, 0, cache.Len())

	// Absent entries are a no-op.
	cache.InvalidateReference("a", "b")
	assert.Equal(t, uint64(1), cache.Stats().Invalidations)
}

func TestReferenceCache_InvalidateChunkReferences(t *testing.T) {
	_, cache := newTestCache(t, 8)

	cache.CacheReference("a", "b", &domain.Reference{SourceID: "a", TargetID: "b", Type: domain.RefLink})
	cache.CacheReference("c", "a", &domain.Reference{SourceID: "c", TargetID: "a", Type: domain.RefCitation})
	cache.CacheReference("b", "c", &domain.Reference{SourceID: "b", TargetID: "c", Type: domain.RefLink})

	cache.InvalidateChunkReferences("a")

	// Pairs touching a are gone from cache and indices; the graph itself
	// holds no such edges, so lookups come back empty.
	assert.Empty(t, cache.GetChunkReferences("a"))
	assert.Equal(t, uint64(2), cache.Stats().Invalidations)

	// The unrelated pair survives.
	_, ok := cache.GetReference("b", "c")
	assert.True(t, ok)
}

func TestReferenceCache_GetChunkReferences_MergesBothDirections(t *testing.T) {
	g, cache := newTestCache(t, 8)
	require.NoError(t, g.AddReference("a", "b", domain.RefLink, nil, false))
	require.NoError(t, g.AddReference("c", "a", domain.RefCitation, nil, false))

	_, ok := cache.GetReference("a", "b")
	require.True(t, ok)
	_, ok = cache.GetReference("c", "a")
	require.True(t, ok)

	refs := cache.GetChunkReferences("a")
	require.Len(t, refs, 2)
	assert.Equal(t, domain.RefLink, refs["b"].Type)
	assert.Equal(t, domain.RefCitation, refs["c"].Type)

	// Re-fetching went through GetReference, so the hits moved.
	assert.Equal(t, uint64(2), cache.Stats().Hits)
}

func TestReferenceCache_Stats_HitRate(t *testing.T) {
	g, cache := newTestCache(t, 8)
	require.NoError(t, g.AddReference("a", "b", domain.RefLink, nil, false))

	assert.Equal(t, float64(0), cache.Stats().HitRate)

	cache.GetReference("a", "b") // miss + repopulate
	cache.GetReference("a", "b") // hit
	cache.GetReference("a", "b") // hit

	stats := cache.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 66.6, stats.HitRate, 0.1)
	assert.Contains(t, stats.String(), "hits=2")
}
