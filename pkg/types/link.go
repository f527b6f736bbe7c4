package types

import (
	"errors"
	"time"
)

// Link errors
var (
	ErrSelfLink        = errors.New("link endpoints must differ")
	ErrUnknownLinkKind = errors.New("unknown link kind")
)

// LinkKind tags how a link came to exist.
type LinkKind string

const (
	// LinkKindSemantic links are produced by the topology engine from
	// similarity between embeddings.
	LinkKindSemantic LinkKind = "semantic"
	// LinkKindBridge links are sparse below-threshold connections added
	// between communities by the bridge job.
	LinkKindBridge LinkKind = "bridge"
	// LinkKindExplicit links are created by users or external systems and
	// are never touched by automatic maintenance.
	LinkKindExplicit LinkKind = "explicit"
)

// Valid reports whether k is a known link kind.
func (k LinkKind) Valid() bool {
	switch k {
	case LinkKindSemantic, LinkKindBridge, LinkKindExplicit:
		return true
	}
	return false
}

// Link is a directed edge in the similarity graph. A mutual semantic link
// always has a reverse twin; the two directions are written and removed as
// one atomic unit by the store.
type Link struct {
	FromID    string    `json:"from_id" mapstructure:"from_id"`
	ToID      string    `json:"to_id" mapstructure:"to_id"`
	Kind      LinkKind  `json:"kind" mapstructure:"kind"`
	Weight    float64   `json:"weight" mapstructure:"weight"`
	Mutual    bool      `json:"mutual" mapstructure:"mutual"`
	Metadata  string    `json:"metadata,omitempty" mapstructure:"metadata"` // JSON blob
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`
}

// Validate checks the link's endpoints and kind.
func (l *Link) Validate() error {
	if l.FromID == "" || l.ToID == "" {
		return ErrEmptyID
	}
	if l.FromID == l.ToID {
		return ErrSelfLink
	}
	if !l.Kind.Valid() {
		return ErrUnknownLinkKind
	}
	return nil
}

// Reverse returns the opposite direction of the link with the same kind,
// weight and flags.
func (l *Link) Reverse() *Link {
	r := *l
	r.FromID, r.ToID = l.ToID, l.FromID
	return &r
}

// Key identifies a link for upsert purposes: one logical link per
// (from, to, kind) triple.
func (l *Link) Key() LinkKey {
	return LinkKey{FromID: l.FromID, ToID: l.ToID, Kind: l.Kind}
}

// LinkKey is the upsert identity of a link.
type LinkKey struct {
	FromID string
	ToID   string
	Kind   LinkKind
}
