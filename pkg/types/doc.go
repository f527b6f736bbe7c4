// Package types defines the shared data model for trama: documents,
// similarity links, ranked oracle output, and fused search results.
package types
