// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Chunker: Splits raw document text into chunks
//   - EmbeddingService: Generates vector embeddings for chunk text
//   - VectorClusterer: Assigns embedding vectors to clusters
//   - TermExtractor: Ranks distinguishing terms for topic labelling
//
// EmbeddingService may be nil at wiring time; the similarity service then
// reports domain.ErrBackendUnavailable on first use instead of degrading
// silently.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
