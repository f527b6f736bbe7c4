package dto

import (
	"errors"
	"strings"
	"time"

	"github.com/soundprediction/trama/pkg/types"
)

// MaxQueryLength bounds accepted query text. Longer queries are rejected
// rather than truncated so callers notice.
const MaxQueryLength = 4096

// ErrQueryTooLong is returned when a search query exceeds MaxQueryLength.
var ErrQueryTooLong = errors.New("query exceeds maximum length")

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}

// Validate checks the search request fields.
func (r *SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if len(r.Query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if r.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	return nil
}

// SearchResponse carries fused hybrid search results.
type SearchResponse struct {
	Query   string              `json:"query"`
	Results []types.FusedResult `json:"results"`
	Total   int                 `json:"total"`
}

// DocumentRequest is the body of POST /api/v1/documents.
type DocumentRequest struct {
	ID        string            `json:"id" binding:"required"`
	Title     string            `json:"title,omitempty"`
	Content   string            `json:"content,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToDocument converts the request to a domain document.
func (r *DocumentRequest) ToDocument() *types.Document {
	return &types.Document{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Embedding: r.Embedding,
		Metadata:  r.Metadata,
	}
}

// DocumentResponse wraps a stored document.
type DocumentResponse struct {
	Document *types.Document `json:"document"`
}

// RelinkResponse acknowledges a synchronous relink.
type RelinkResponse struct {
	DocID      string    `json:"doc_id"`
	RelinkedAt time.Time `json:"relinked_at"`
}

// BridgeRequest is the body of POST /api/v1/jobs/community-bridge.
type BridgeRequest struct {
	Force bool `json:"force,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
