//go:build !cgo

package store

import (
	"context"
	"errors"

	"github.com/soundprediction/trama/pkg/types"
)

// ErrCGORequired is returned when the embedded Ladybug backend is used in a
// binary built without cgo.
var ErrCGORequired = errors.New("ladybug store requires cgo; build with CGO_ENABLED=1")

// LadybugStore is a stub when cgo is disabled. The constructor fails and
// every operation returns ErrCGORequired.
type LadybugStore struct{}

// NewLadybugStore returns ErrCGORequired when cgo is disabled.
func NewLadybugStore(dbPath string) (*LadybugStore, error) {
	return nil, ErrCGORequired
}

func (s *LadybugStore) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return ErrCGORequired
}

func (s *LadybugStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	return nil, ErrCGORequired
}

func (s *LadybugStore) DeleteDocument(ctx context.Context, id string) error {
	return ErrCGORequired
}

func (s *LadybugStore) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	return nil, ErrCGORequired
}

func (s *LadybugStore) CountDocuments(ctx context.Context) (int, error) {
	return 0, ErrCGORequired
}

func (s *LadybugStore) UpsertPair(ctx context.Context, link *types.Link) error {
	return ErrCGORequired
}

func (s *LadybugStore) DeletePair(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	return ErrCGORequired
}

func (s *LadybugStore) UpsertLink(ctx context.Context, link *types.Link) error {
	return ErrCGORequired
}

func (s *LadybugStore) DeleteLink(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	return ErrCGORequired
}

func (s *LadybugStore) ListOutgoing(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	return nil, ErrCGORequired
}

func (s *LadybugStore) ListIncoming(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	return nil, ErrCGORequired
}

func (s *LadybugStore) AllLinks(ctx context.Context, kinds ...types.LinkKind) ([]*types.Link, error) {
	return nil, ErrCGORequired
}

func (s *LadybugStore) Close(ctx context.Context) error {
	return nil
}
