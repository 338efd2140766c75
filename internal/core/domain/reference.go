package domain

// ReferenceType classifies a directed edge between two chunks.
type ReferenceType string

const (
	// RefAny is the zero value used as a "no filter" marker in lookups and
	// removals. It is never stored on an edge.
	RefAny ReferenceType = ""

	// RefParent links a chunk to its structural parent.
	RefParent ReferenceType = "parent"
	// RefChild links a chunk to a structural child.
	RefChild ReferenceType = "child"
	// RefNext links a chunk to the following chunk in reading order.
	RefNext ReferenceType = "next"
	// RefPrevious links a chunk to the preceding chunk in reading order.
	RefPrevious ReferenceType = "previous"
	// RefCitation links a chunk to a chunk it cites.
	RefCitation ReferenceType = "citation"
	// RefContinuation links a chunk to the chunk it continues.
	RefContinuation ReferenceType = "continuation"
	// RefLink is an explicit in-document link between chunks.
	RefLink ReferenceType = "link"
	// RefRelated marks a weak semantic relationship.
	RefRelated ReferenceType = "related"
	// RefSimilar marks a strong semantic relationship.
	RefSimilar ReferenceType = "similar"
	// RefContext marks a mid-strength contextual relationship.
	RefContext ReferenceType = "context"
	// RefTOC links a table-of-contents chunk to a section chunk.
	RefTOC ReferenceType = "toc"
)

// Reverse returns the semantic inverse of the type, used when storing the
// mirror edge of a bidirectional reference. Parent/child and next/previous
// invert each other; every other type is explicitly self-inverse.
func (t ReferenceType) Reverse() ReferenceType {
	switch t {
	case RefParent:
		return RefChild
	case RefChild:
		return RefParent
	case RefNext:
		return RefPrevious
	case RefPrevious:
		return RefNext
	case RefCitation, RefContinuation, RefLink, RefRelated, RefSimilar, RefContext, RefTOC:
		return t
	default:
		return t
	}
}

// Valid reports whether t is a known reference type.
func (t ReferenceType) Valid() bool {
	switch t {
	case RefParent, RefChild, RefNext, RefPrevious, RefCitation,
		RefContinuation, RefLink, RefRelated, RefSimilar, RefContext, RefTOC:
		return true
	default:
		return false
	}
}

// Reference is a directed, typed edge between two chunks.
type Reference struct {
	// SourceID is the chunk the edge originates from.
	SourceID string

	// TargetID is the chunk the edge points to.
	TargetID string

	// Type classifies the relationship.
	Type ReferenceType

	// Metadata contains arbitrary key-value pairs (e.g. a similarity score).
	Metadata map[string]any

	// Bidirectional indicates the graph also holds the mirror edge with the
	// reverse type.
	Bidirectional bool
}
