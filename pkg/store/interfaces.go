// Package store persists documents and similarity links. Interfaces are
// segregated by concern so engines depend only on the operations they use.
package store

import (
	"context"
	"encoding/json"

	"github.com/soundprediction/trama/pkg/types"
)

// DocumentStore provides document persistence.
type DocumentStore interface {
	// UpsertDocument creates or replaces a document by id.
	UpsertDocument(ctx context.Context, doc *types.Document) error
	// GetDocument retrieves a document by id.
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	// DeleteDocument removes a document and cascades its links.
	DeleteDocument(ctx context.Context, id string) error
	// ListDocuments returns all documents.
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	// CountDocuments returns the corpus size.
	CountDocuments(ctx context.Context) (int, error)
}

// LinkStore provides similarity link persistence. Pair operations MUST be
// atomic: both directions are written or removed together, never leaving
// one side behind.
type LinkStore interface {
	// UpsertPair writes link and its reverse as one atomic unit, keyed by
	// (from, to, kind).
	UpsertPair(ctx context.Context, link *types.Link) error
	// DeletePair removes both directions of a link as one atomic unit.
	DeletePair(ctx context.Context, fromID, toID string, kind types.LinkKind) error
	// UpsertLink writes a single direction, used for non-mutual fallback
	// edges.
	UpsertLink(ctx context.Context, link *types.Link) error
	// DeleteLink removes a single direction.
	DeleteLink(ctx context.Context, fromID, toID string, kind types.LinkKind) error
	// ListOutgoing returns the outgoing links of a document, optionally
	// filtered by kind.
	ListOutgoing(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error)
	// ListIncoming returns the incoming links of a document, optionally
	// filtered by kind.
	ListIncoming(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error)
}

// GraphReader provides whole-graph reads for community detection and
// topology statistics.
type GraphReader interface {
	// AllLinks returns every link, optionally filtered by kind.
	AllLinks(ctx context.Context, kinds ...types.LinkKind) ([]*types.Link, error)
}

// Store combines all persistence concerns.
type Store interface {
	DocumentStore
	LinkStore
	GraphReader
	// Close releases backend resources.
	Close(ctx context.Context) error
}

// Compile-time implementation checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*Neo4jStore)(nil)
	_ Store = (*LadybugStore)(nil)
)

func kindAllowed(kind types.LinkKind, kinds []types.LinkKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// metadataJSON serializes document metadata for backends that store it as
// a flat string column. Empty metadata serializes to "".
func metadataJSON(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func metadataFromJSON(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
