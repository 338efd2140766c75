// Package sentence provides a sentence-based text chunker.
package sentence

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/crosslink-labs/chunkgraph/internal/core/domain"
	"github.com/crosslink-labs/chunkgraph/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// DefaultSentencesPerChunk is the default chunk granularity.
const DefaultSentencesPerChunk = 5

// DefaultOverlapSentences is the default overlap between adjacent chunks.
const DefaultOverlapSentences = 1

// Chunker splits text into chunks of whole sentences with overlap, so a
// sentence cut off at a chunk boundary still appears with its context in
// the next chunk.
type Chunker struct {
	sentencesPerChunk int
	overlap           int
	splitter          *regexp.Regexp
}

// Option configures the chunker.
type Option func(*Chunker)

// WithSentencesPerChunk sets how many sentences each chunk holds.
func WithSentencesPerChunk(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.sentencesPerChunk = n
		}
	}
}

// WithOverlap sets how many trailing sentences repeat in the next chunk.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// New creates a sentence chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		sentencesPerChunk: DefaultSentencesPerChunk,
		overlap:           DefaultOverlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.sentencesPerChunk {
		c.overlap = c.sentencesPerChunk - 1
	}
	return c
}

// Name returns the chunker name.
func (c *Chunker) Name() string {
	return "sentence"
}

// Chunk splits text into ordered chunks. Each chunk gets a generated uuid
// and a "position" metadata entry with its ordinal.
func (c *Chunker) Chunk(_ context.Context, text string) ([]domain.Chunk, error) {
	sentences := c.splitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var chunks []domain.Chunk
	position := 0
	for start := 0; start < len(sentences); {
		end := start + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, domain.Chunk{
			ID:      uuid.New().String(),
			Content: strings.Join(sentences[start:end], " "),
			Metadata: map[string]any{
				"position": position,
			},
		})
		position++
		if end == len(sentences) {
			break
		}
		start = end - c.overlap
	}
	return chunks, nil
}
