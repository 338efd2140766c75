package graph

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
)

// CacheStats reports reference cache effectiveness.
type CacheStats struct {
	Hits          uint64
	Misses        uint64
	Invalidations uint64

	// HitRate is hits / (hits + misses) as a percentage, 0 when no
	// lookups have occurred.
	HitRate float64
}

// String renders the stats for logging.
func (s CacheStats) String() string {
	return fmt.Sprintf("hits=%d misses=%d invalidations=%d hit_rate=%.1f%%",
		s.Hits, s.Misses, s.Invalidations, s.HitRate)
}

// ReferenceCache is an LRU accelerator over the graph's edge table, keyed
// by the ordered (source, target) pair. Forward and reverse indices track
// which cached pairs a chunk participates in, so per-chunk invalidation
// avoids a full scan.
//
// The cache never returns errors: any inconsistency degrades to a miss and
// the graph remains the source of truth. Entries go stale if the graph is
// mutated without going through the cache; mutate through the cache layer
// to keep it authoritative.
type ReferenceCache struct {
	graph   *Graph
	entries *lru.LRU[EdgeKey, *domain.Reference]

	forward map[string]map[string]struct{} // source -> cached targets
	reverse map[string]map[string]struct{} // target -> cached sources

	hits          uint64
	misses        uint64
	invalidations uint64

	log *zap.Logger
}

// NewReferenceCache creates a cache of at most maxSize entries over g.
// Returns domain.ErrInvalidConfig when maxSize < 1.
func NewReferenceCache(g *Graph, maxSize int, log *zap.Logger) (*ReferenceCache, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("cache max size %d: %w", maxSize, domain.ErrInvalidConfig)
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &ReferenceCache{
		graph:   g,
		forward: make(map[string]map[string]struct{}),
		reverse: make(map[string]map[string]struct{}),
		log:     log,
	}
	// The eviction callback keeps the indices coherent for every path an
	// entry can leave the cache: capacity eviction, Remove, Purge.
	entries, err := lru.NewLRU(maxSize, func(key EdgeKey, _ *domain.Reference) {
		c.unindex(key.Source, key.Target)
	})
	if err != nil {
		return nil, fmt.Errorf("cache max size %d: %w", maxSize, domain.ErrInvalidConfig)
	}
	c.entries = entries
	return c, nil
}

// GetReference returns the reference for the ordered pair, consulting the
// cache first and falling back to the graph's edge table on a miss. A
// graph hit repopulates the cache. Every successful cache lookup promotes
// the entry to most-recently-used.
func (c *ReferenceCache) GetReference(source, target string) (*domain.Reference, bool) {
	key := EdgeKey{Source: source, Target: target}
	if ref, ok := c.entries.Get(key); ok {
		c.hits++
		return ref, true
	}
	c.misses++
	if c.graph == nil {
		return nil, false
	}
	ref, ok := c.graph.Edge(source, target)
	if !ok {
		return nil, false
	}
	c.CacheReference(source, target, ref)
	return ref, true
}

// CacheReference inserts or refreshes the entry for the ordered pair and
// records it in both indices. For bidirectional references the reverse
// edge is looked up in the graph and cached alongside when present.
func (c *ReferenceCache) CacheReference(source, target string, ref *domain.Reference) {
	if ref == nil {
		return
	}
	c.entries.Add(EdgeKey{Source: source, Target: target}, ref)
	c.index(source, target)

	if ref.Bidirectional && c.graph != nil {
		revKey := EdgeKey{Source: target, Target: source}
		if c.entries.Contains(revKey) {
			return
		}
		if rev, ok := c.graph.Edge(target, source); ok {
			c.entries.Add(revKey, rev)
			c.index(target, source)
		}
	}
}

// InvalidateReference drops the cache entry for the ordered pair and
// removes it from both indices. Absent entries are a no-op and do not
// count as invalidations.
func (c *ReferenceCache) InvalidateReference(source, target string) {
	if c.entries.Remove(EdgeKey{Source: source, Target: target}) {
		c.invalidations++
	}
}

// InvalidateChunkReferences drops every cached pair in which the chunk
// appears as source or target, then clears the chunk's index entries.
func (c *ReferenceCache) InvalidateChunkReferences(chunkID string) {
	for _, target := range setKeys(c.forward[chunkID]) {
		c.InvalidateReference(chunkID, target)
	}
	for _, source := range setKeys(c.reverse[chunkID]) {
		c.InvalidateReference(source, chunkID)
	}
	delete(c.forward, chunkID)
	delete(c.reverse, chunkID)
	c.log.Debug("chunk references invalidated", zap.String("chunk_id", chunkID))
}

// GetChunkReferences returns every cached reference the chunk participates
// in, keyed by the other chunk's id. Entries are re-fetched through
// GetReference so the hit/miss statistics stay accurate. When the chunk is
// both source and target of cached pairs with the same neighbour, the
// outgoing reference wins.
func (c *ReferenceCache) GetChunkReferences(chunkID string) map[string]*domain.Reference {
	// Snapshot the index sets first: repopulation inside GetReference can
	// evict entries and mutate the indices mid-iteration.
	targets := setKeys(c.forward[chunkID])
	sources := setKeys(c.reverse[chunkID])

	out := make(map[string]*domain.Reference)
	for _, target := range targets {
		if ref, ok := c.GetReference(chunkID, target); ok {
			out[target] = ref
		}
	}
	for _, source := range sources {
		if _, seen := out[source]; seen {
			continue
		}
		if ref, ok := c.GetReference(source, chunkID); ok {
			out[source] = ref
		}
	}
	return out
}

// Stats returns a snapshot of the lookup counters.
func (c *ReferenceCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:          c.hits,
		Misses:        c.misses,
		Invalidations: c.invalidations,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total) * 100
	}
	return stats
}

// Len returns the number of cached entries.
func (c *ReferenceCache) Len() int { return c.entries.Len() }

func (c *ReferenceCache) index(source, target string) {
	targets, ok := c.forward[source]
	if !ok {
		targets = make(map[string]struct{})
		c.forward[source] = targets
	}
	targets[target] = struct{}{}

	sources, ok := c.reverse[target]
	if !ok {
		sources = make(map[string]struct{})
		c.reverse[target] = sources
	}
	sources[source] = struct{}{}
}

func (c *ReferenceCache) unindex(source, target string) {
	if targets, ok := c.forward[source]; ok {
		delete(targets, target)
		if len(targets) == 0 {
			delete(c.forward, source)
		}
	}
	if sources, ok := c.reverse[target]; ok {
		delete(sources, source)
		if len(sources) == 0 {
			delete(c.reverse, target)
		}
	}
}

func setKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	return keys
}
