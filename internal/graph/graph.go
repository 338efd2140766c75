package graph

import (
	"fmt"
	"maps"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
)

// EdgeKey identifies a reference by its ordered (source, target) pair.
// The central edge table holds at most one reference per key; a later
// AddReference for the same pair overwrites the earlier one.
type EdgeKey struct {
	Source string
	Target string
}

// Graph stores chunks and the references between them.
type Graph struct {
	chunks map[string]*domain.Chunk
	edges  map[EdgeKey]*domain.Reference

	// typed indexes, per source chunk and reference type, the set of
	// target ids reachable by that type. Entries are only pruned by
	// explicit removal, never rebuilt from the edge table.
	typed map[string]map[domain.ReferenceType]map[string]struct{}

	log *zap.Logger
}

// NewGraph creates an empty graph. A nil logger disables logging.
func NewGraph(log *zap.Logger) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	return &Graph{
		chunks: make(map[string]*domain.Chunk),
		edges:  make(map[EdgeKey]*domain.Reference),
		typed:  make(map[string]map[domain.ReferenceType]map[string]struct{}),
		log:    log,
	}
}

// AddChunk registers a chunk with the given content. If id is empty a new
// uuid is generated. Returns domain.ErrDuplicateID if the id is taken.
func (g *Graph) AddChunk(content, id string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if _, exists := g.chunks[id]; exists {
		return "", fmt.Errorf("add chunk %q: %w", id, domain.ErrDuplicateID)
	}
	g.chunks[id] = &domain.Chunk{
		ID:       id,
		Content:  content,
		Metadata: make(map[string]any),
	}
	g.log.Debug("chunk added", zap.String("chunk_id", id), zap.Int("content_len", len(content)))
	return id, nil
}

// Chunk retrieves a chunk by id. The returned struct is a copy; use
// AppendChunkMetadata to mutate stored metadata.
func (g *Graph) Chunk(id string) (*domain.Chunk, bool) {
	c, ok := g.chunks[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// ChunkIDs returns all chunk ids in lexicographic order.
func (g *Graph) ChunkIDs() []string {
	ids := make([]string, 0, len(g.chunks))
	for id := range g.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NumChunks returns the number of registered chunks.
func (g *Graph) NumChunks() int { return len(g.chunks) }

// NumEdges returns the number of entries in the central edge table.
func (g *Graph) NumEdges() int { return len(g.edges) }

// AppendChunkMetadata merges md into the chunk's metadata. Existing keys
// are overwritten. Content remains immutable.
func (g *Graph) AppendChunkMetadata(id string, md map[string]any) error {
	c, ok := g.chunks[id]
	if !ok {
		return fmt.Errorf("append metadata to chunk %q: %w", id, domain.ErrNotFound)
	}
	maps.Copy(c.Metadata, md)
	return nil
}

// AddReference records a typed edge from source to target. If bidirectional,
// the mirror edge with the reverse type is recorded as well. The operation
// validates everything before the first write: it either fully succeeds on
// both sides or fails without touching the graph.
func (g *Graph) AddReference(source, target string, typ domain.ReferenceType, metadata map[string]any, bidirectional bool) error {
	if source == target {
		return fmt.Errorf("reference %q -> %q: %w", source, target, domain.ErrSelfReference)
	}
	if _, ok := g.chunks[source]; !ok {
		return fmt.Errorf("reference source %q: %w", source, domain.ErrNotFound)
	}
	if _, ok := g.chunks[target]; !ok {
		return fmt.Errorf("reference target %q: %w", target, domain.ErrNotFound)
	}

	g.putEdge(&domain.Reference{
		SourceID:      source,
		TargetID:      target,
		Type:          typ,
		Metadata:      cloneMetadata(metadata),
		Bidirectional: bidirectional,
	})
	if bidirectional {
		g.putEdge(&domain.Reference{
			SourceID:      target,
			TargetID:      source,
			Type:          typ.Reverse(),
			Metadata:      cloneMetadata(metadata),
			Bidirectional: true,
		})
	}
	g.log.Debug("reference added",
		zap.String("source", source),
		zap.String("target", target),
		zap.String("type", string(typ)),
		zap.Bool("bidirectional", bidirectional))
	return nil
}

// putEdge writes ref into the central edge table and the source chunk's
// per-type target set.
func (g *Graph) putEdge(ref *domain.Reference) {
	g.edges[EdgeKey{Source: ref.SourceID, Target: ref.TargetID}] = ref

	byType, ok := g.typed[ref.SourceID]
	if !ok {
		byType = make(map[domain.ReferenceType]map[string]struct{})
		g.typed[ref.SourceID] = byType
	}
	targets, ok := byType[ref.Type]
	if !ok {
		targets = make(map[string]struct{})
		byType[ref.Type] = targets
	}
	targets[ref.TargetID] = struct{}{}
}

// Edge looks up the stored reference for the ordered (source, target) pair.
// The returned struct is a copy of the stored edge.
func (g *Graph) Edge(source, target string) (*domain.Reference, bool) {
	ref, ok := g.edges[EdgeKey{Source: source, Target: target}]
	if !ok {
		return nil, false
	}
	cp := *ref
	return &cp, true
}

// References returns the set of ids the chunk references, restricted to a
// single type when filter is not RefAny. Returns domain.ErrNotFound if the
// chunk does not exist.
func (g *Graph) References(chunkID string, filter domain.ReferenceType) (map[string]struct{}, error) {
	if _, ok := g.chunks[chunkID]; !ok {
		return nil, fmt.Errorf("references of chunk %q: %w", chunkID, domain.ErrNotFound)
	}
	out := make(map[string]struct{})
	for typ, targets := range g.typed[chunkID] {
		if filter != domain.RefAny && typ != filter {
			continue
		}
		for id := range targets {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// RemoveReference deletes the edge for the ordered (source, target) pair.
// A non-RefAny filter must match the stored edge type or the removal fails
// with domain.ErrTypeMismatch. If the stored edge is bidirectional, the
// reverse edge is removed too, using the reverse edge's own stored type.
func (g *Graph) RemoveReference(source, target string, filter domain.ReferenceType) error {
	key := EdgeKey{Source: source, Target: target}
	ref, ok := g.edges[key]
	if !ok {
		return fmt.Errorf("reference %q -> %q: %w", source, target, domain.ErrNotFound)
	}
	if filter != domain.RefAny && filter != ref.Type {
		return fmt.Errorf("reference %q -> %q has type %q, not %q: %w",
			source, target, ref.Type, filter, domain.ErrTypeMismatch)
	}

	g.deleteEdge(key, ref)
	if ref.Bidirectional {
		revKey := EdgeKey{Source: target, Target: source}
		if rev, ok := g.edges[revKey]; ok {
			g.deleteEdge(revKey, rev)
		}
	}
	g.log.Debug("reference removed",
		zap.String("source", source),
		zap.String("target", target),
		zap.String("type", string(ref.Type)))
	return nil
}

// deleteEdge removes ref from the central table and from the source chunk's
// per-type target set, pruning emptied sets.
func (g *Graph) deleteEdge(key EdgeKey, ref *domain.Reference) {
	delete(g.edges, key)
	if byType, ok := g.typed[key.Source]; ok {
		if targets, ok := byType[ref.Type]; ok {
			delete(targets, key.Target)
			if len(targets) == 0 {
				delete(byType, ref.Type)
			}
		}
		if len(byType) == 0 {
			delete(g.typed, key.Source)
		}
	}
}

// ValidateReferences scans the edge table for inconsistencies: edges whose
// source or target chunk no longer exists, and bidirectional edges missing
// their reverse counterpart. It never fails; findings are returned as
// human-readable descriptions, ordered by edge key.
func (g *Graph) ValidateReferences() []string {
	keys := make([]EdgeKey, 0, len(g.edges))
	for key := range g.edges {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Source != keys[j].Source {
			return keys[i].Source < keys[j].Source
		}
		return keys[i].Target < keys[j].Target
	})

	var issues []string
	for _, key := range keys {
		ref := g.edges[key]
		if _, ok := g.chunks[key.Source]; !ok {
			issues = append(issues, fmt.Sprintf(
				"reference %s -> %s: source chunk does not exist", key.Source, key.Target))
		}
		if _, ok := g.chunks[key.Target]; !ok {
			issues = append(issues, fmt.Sprintf(
				"reference %s -> %s: target chunk does not exist", key.Source, key.Target))
		}
		if ref.Bidirectional {
			if _, ok := g.edges[EdgeKey{Source: key.Target, Target: key.Source}]; !ok {
				issues = append(issues, fmt.Sprintf(
					"reference %s -> %s: missing reverse reference", key.Source, key.Target))
			}
		}
	}
	return issues
}

func cloneMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	maps.Copy(out, md)
	return out
}
