package store

import (
	"context"
	"sync"
	"time"

	"github.com/soundprediction/trama/pkg/types"
)

// MemoryStore is an in-memory Store. It is the reference implementation of
// the atomic pair contract and the default backend for tests and small
// corpora.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*types.Document
	links map[types.LinkKey]*types.Link
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*types.Document),
		links: make(map[types.LinkKey]*types.Link),
	}
}

// UpsertDocument creates or replaces a document by id.
func (s *MemoryStore) UpsertDocument(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *doc
	now := time.Now().UTC()
	if existing, ok := s.docs[doc.ID]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	s.docs[doc.ID] = &copied
	return nil
}

// GetDocument retrieves a document by id.
func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

// DeleteDocument removes a document and cascades its links.
func (s *MemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return types.ErrDocumentNotFound
	}
	delete(s.docs, id)

	for key := range s.links {
		if key.FromID == id || key.ToID == id {
			delete(s.links, key)
		}
	}
	return nil
}

// ListDocuments returns all documents.
func (s *MemoryStore) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		copied := *doc
		out = append(out, &copied)
	}
	return out, nil
}

// CountDocuments returns the corpus size.
func (s *MemoryStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// UpsertPair writes both directions of a link under one lock acquisition.
func (s *MemoryStore) UpsertPair(ctx context.Context, link *types.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(link)
	s.upsertLocked(link.Reverse())
	return nil
}

// DeletePair removes both directions of a link under one lock acquisition.
func (s *MemoryStore) DeletePair(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links, types.LinkKey{FromID: fromID, ToID: toID, Kind: kind})
	delete(s.links, types.LinkKey{FromID: toID, ToID: fromID, Kind: kind})
	return nil
}

// UpsertLink writes a single direction.
func (s *MemoryStore) UpsertLink(ctx context.Context, link *types.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(link)
	return nil
}

// DeleteLink removes a single direction.
func (s *MemoryStore) DeleteLink(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := types.LinkKey{FromID: fromID, ToID: toID, Kind: kind}
	if _, ok := s.links[key]; !ok {
		return types.ErrLinkNotFound
	}
	delete(s.links, key)
	return nil
}

// ListOutgoing returns the outgoing links of a document.
func (s *MemoryStore) ListOutgoing(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Link
	for key, link := range s.links {
		if key.FromID == docID && kindAllowed(key.Kind, kinds) {
			copied := *link
			out = append(out, &copied)
		}
	}
	return out, nil
}

// ListIncoming returns the incoming links of a document.
func (s *MemoryStore) ListIncoming(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Link
	for key, link := range s.links {
		if key.ToID == docID && kindAllowed(key.Kind, kinds) {
			copied := *link
			out = append(out, &copied)
		}
	}
	return out, nil
}

// AllLinks returns every link, optionally filtered by kind.
func (s *MemoryStore) AllLinks(ctx context.Context, kinds ...types.LinkKind) ([]*types.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Link
	for key, link := range s.links {
		if kindAllowed(key.Kind, kinds) {
			copied := *link
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// upsertLocked inserts or updates one direction. Caller holds the write
// lock.
func (s *MemoryStore) upsertLocked(link *types.Link) {
	key := link.Key()
	now := time.Now().UTC()

	copied := *link
	if existing, ok := s.links[key]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else if copied.CreatedAt.IsZero() {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	s.links[key] = &copied
}
