// Package kmeans provides a cosine k-means vector clusterer.
package kmeans

import (
	"context"
	"fmt"
	"math"

	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driven"
)

// Ensure Clusterer implements the interface.
var _ driven.VectorClusterer = (*Clusterer)(nil)

// DefaultIterations is the default Lloyd iteration cap.
const DefaultIterations = 8

// Clusterer assigns vectors to k clusters by cosine similarity. Seeding is
// farthest-first from the first vector, so results are deterministic for a
// given input order.
type Clusterer struct {
	iterations int
}

// Option configures the clusterer.
type Option func(*Clusterer)

// WithIterations sets the iteration cap.
func WithIterations(n int) Option {
	return func(c *Clusterer) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// New creates a clusterer with the given options.
func New(opts ...Option) *Clusterer {
	c := &Clusterer{iterations: DefaultIterations}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cluster returns a per-vector cluster assignment in [0, k). k is clamped
// to len(vectors); k <= 1 assigns everything to cluster 0.
func (c *Clusterer) Cluster(ctx context.Context, vectors [][]float32, k int) ([]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vec), dim)
		}
	}
	if k > n {
		k = n
	}
	assign := make([]int, n)
	if k <= 1 {
		return assign, nil
	}

	centers := c.seed(vectors, k)

	for iter := 0; iter < c.iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed := false
		for i := 0; i < n; i++ {
			best := 0
			bestSim := math.Inf(-1)
			for j := 0; j < k; j++ {
				if sim := cosine(vectors[i], centers[j]); sim > bestSim {
					bestSim = sim
					best = j
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		// Recompute centers as member means. Empty clusters keep their
		// previous center.
		counts := make([]int, k)
		next := make([][]float32, k)
		for j := 0; j < k; j++ {
			next[j] = make([]float32, dim)
		}
		for i := 0; i < n; i++ {
			j := assign[i]
			counts[j]++
			for d := 0; d < dim; d++ {
				next[j][d] += vectors[i][d]
			}
		}
		for j := 0; j < k; j++ {
			if counts[j] == 0 {
				continue
			}
			inv := 1 / float32(counts[j])
			for d := 0; d < dim; d++ {
				next[j][d] *= inv
			}
			centers[j] = next[j]
		}

		if !changed {
			break
		}
	}
	return assign, nil
}

// seed picks k initial centers: the first vector, then repeatedly the
// vector farthest (least similar) from all chosen centers.
func (c *Clusterer) seed(vectors [][]float32, k int) [][]float32 {
	centers := make([][]float32, 0, k)
	centers = append(centers, vectors[0])
	for len(centers) < k {
		bestIdx := 0
		bestDist := -1.0
		for i, vec := range vectors {
			minSim := 1.0
			for _, center := range centers {
				if sim := cosine(vec, center); sim < minSim {
					minSim = sim
				}
			}
			if dist := 1 - minSim; dist > bestDist {
				bestDist = dist
				bestIdx = i
			}
		}
		centers = append(centers, vectors[bestIdx])
	}
	return centers
}

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
