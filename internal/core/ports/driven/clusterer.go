package driven

import "context"

// VectorClusterer assigns embedding vectors to k clusters.
type VectorClusterer interface {
	// Cluster returns a per-vector cluster assignment in [0, k).
	// The result has the same length as vectors. k is clamped to
	// len(vectors) by the implementation.
	Cluster(ctx context.Context, vectors [][]float32, k int) ([]int, error)
}
