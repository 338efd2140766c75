// Package domain contains the core types for chunk relationship modelling:
// chunks, typed references with their reverse mapping, enrichment records,
// and the domain error taxonomy.
//
// The package has no dependencies outside the standard library and is
// imported by every other package in the module.
package domain
