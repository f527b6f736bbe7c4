package types

import (
	"errors"
	"time"
)

// Validation errors
var (
	ErrEmptyID          = errors.New("id cannot be empty")
	ErrEmptyQuery       = errors.New("query cannot be empty")
	ErrInvalidLimit     = errors.New("limit must be positive")
	ErrDocumentNotFound = errors.New("document not found")
	ErrLinkNotFound     = errors.New("link not found")
)

// ContextKey is the type used for values trama stores in a context.
type ContextKey string

const (
	ContextKeyUserID        ContextKey = "user_id"
	ContextKeySessionID     ContextKey = "session_id"
	ContextKeyRequestSource ContextKey = "request_source"
)

// Document is a handle into the external store: an identifier plus its
// embedding. Content and title are carried for lexical ranking and
// import/export but are owned by the store.
type Document struct {
	ID        string            `json:"id" mapstructure:"id"`
	Title     string            `json:"title,omitempty" mapstructure:"title"`
	Content   string            `json:"content,omitempty" mapstructure:"content"`
	Embedding []float32         `json:"embedding,omitempty" mapstructure:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty" mapstructure:"metadata"`
	CreatedAt time.Time         `json:"created_at" mapstructure:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" mapstructure:"updated_at"`
}

// Validate checks if the Document has all required fields set.
func (d *Document) Validate() error {
	if d.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// RankedHit is one entry of an oracle's ranked output.
type RankedHit struct {
	DocID    string  `json:"doc_id"`
	Rank     int     `json:"rank"` // 1-based
	RawScore float64 `json:"raw_score"`
}

// RankedList is one oracle's ordered output: descending by score, unique
// doc ids. ListID identifies the producing oracle in provenance.
type RankedList struct {
	ListID string      `json:"list_id"`
	Hits   []RankedHit `json:"hits"`
}

// ListProvenance records where a fused document appeared in one input list.
type ListProvenance struct {
	Rank     int     `json:"rank"`
	RawScore float64 `json:"raw_score"`
}

// FusedResult is one deduplicated entry of fused search output.
type FusedResult struct {
	DocID      string                    `json:"doc_id"`
	FusedScore float64                   `json:"fused_score"`
	Provenance map[string]ListProvenance `json:"provenance,omitempty"` // list_id -> position
}

// QueryFeatures are derived purely from the query text.
type QueryFeatures struct {
	TokenCount      int     `json:"token_count"`
	AvgTokenLength  float64 `json:"avg_token_length"`
	HasQuotedPhrase bool    `json:"has_quoted_phrase"`
	IsKeywordStyle  bool    `json:"is_keyword_style"`
}

// FusionWeights are the per-source weights used by relative score fusion.
// They must sum to 1.0; validation is the caller's responsibility and is
// never repaired by renormalizing.
type FusionWeights struct {
	Lexical  float64 `json:"lexical" mapstructure:"lexical"`
	Semantic float64 `json:"semantic" mapstructure:"semantic"`
}

// Sum returns the total weight.
func (w FusionWeights) Sum() float64 {
	return w.Lexical + w.Semantic
}

// TopologyStats summarizes the shape of the similarity graph.
type TopologyStats struct {
	TotalDocuments        int         `json:"total_documents"`
	TotalLinks            int         `json:"total_links"`
	AvgDegree             float64     `json:"avg_degree"`
	MaxDegree             int         `json:"max_degree"`
	MedianDegree          float64     `json:"median_degree"`
	IsolatedDocuments     int         `json:"isolated_documents"`
	ConnectedComponents   int         `json:"connected_components"`
	ClusteringCoefficient float64     `json:"clustering_coefficient"`
	DegreeDistribution    map[int]int `json:"degree_distribution"`
	LinkStrategy          string      `json:"link_strategy"`
	EffectiveK            int         `json:"effective_k"`
}
