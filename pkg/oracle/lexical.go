package oracle

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/soundprediction/trama/pkg/types"
	"github.com/soundprediction/trama/pkg/utils"
)

// BM25 free parameters, standard Okapi values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// IndexLexicalRanker is an in-memory inverted index scored with Okapi BM25.
// It is kept current by the ingestion path through Index and Remove and is
// safe for concurrent use.
type IndexLexicalRanker struct {
	mu       sync.RWMutex
	postings map[string]map[string]int // term -> docID -> tf
	docTerms map[string]map[string]int // docID -> term -> tf
	lengths  map[string]int
	totalLen int
}

// NewIndexLexicalRanker creates an empty lexical index.
func NewIndexLexicalRanker() *IndexLexicalRanker {
	return &IndexLexicalRanker{
		postings: make(map[string]map[string]int),
		docTerms: make(map[string]map[string]int),
		lengths:  make(map[string]int),
	}
}

// ListID implements Ranker.
func (r *IndexLexicalRanker) ListID() string { return "lexical" }

// Index adds or replaces a document in the index.
func (r *IndexLexicalRanker) Index(doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	tokens := Tokenize(doc.Title + " " + doc.Content)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(doc.ID)

	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}
	for term, tf := range freqs {
		posting, ok := r.postings[term]
		if !ok {
			posting = make(map[string]int)
			r.postings[term] = posting
		}
		posting[doc.ID] = tf
	}
	r.docTerms[doc.ID] = freqs
	r.lengths[doc.ID] = len(tokens)
	r.totalLen += len(tokens)
	return nil
}

// Remove deletes a document from the index. Removing an unknown id is a
// no-op.
func (r *IndexLexicalRanker) Remove(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(docID)
}

func (r *IndexLexicalRanker) removeLocked(docID string) {
	freqs, ok := r.docTerms[docID]
	if !ok {
		return
	}
	for term := range freqs {
		posting := r.postings[term]
		delete(posting, docID)
		if len(posting) == 0 {
			delete(r.postings, term)
		}
	}
	r.totalLen -= r.lengths[docID]
	delete(r.docTerms, docID)
	delete(r.lengths, docID)
}

// Rank scores every document containing at least one query term and returns
// the top limit best-first. Breadth is ignored: the index scores its full
// posting lists.
func (r *IndexLexicalRanker) Rank(ctx context.Context, query string, limit, breadth int) (types.RankedList, error) {
	list := types.RankedList{ListID: r.ListID()}
	if query == "" {
		return list, types.ErrEmptyQuery
	}
	if limit <= 0 {
		return list, types.ErrInvalidLimit
	}

	terms := Tokenize(query)
	if len(terms) == 0 {
		return list, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.docTerms)
	if n == 0 {
		return list, nil
	}
	avgLen := float64(r.totalLen) / float64(n)

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := r.postings[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(len(posting))+0.5)/(float64(len(posting))+0.5))
		for docID, tf := range posting {
			norm := 1 - bm25B + bm25B*float64(r.lengths[docID])/avgLen
			scores[docID] += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
	}

	scored := make([]utils.ScoredItem[string], 0, len(scores))
	for docID, score := range scores {
		scored = append(scored, utils.ScoredItem[string]{Item: docID, Score: score})
	}
	top := utils.TopKByScore(scored, limit)
	for i, item := range top {
		list.Hits = append(list.Hits, types.RankedHit{
			DocID:    item.Item,
			Rank:     i + 1,
			RawScore: item.Score,
		})
	}
	return list, nil
}

// Tokenize lowercases the text and splits it on non-alphanumeric runes.
// Quotes and punctuation never reach the index.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
