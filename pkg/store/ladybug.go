//go:build cgo

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	ladybug "github.com/LadybugDB/go-ladybug"

	"github.com/soundprediction/trama/pkg/types"
)

// ladybugSchema defines the embedded database schema. Ladybug requires an
// explicit schema for node and rel tables.
const ladybugSchema = `
    CREATE NODE TABLE IF NOT EXISTS Document (
        id STRING PRIMARY KEY,
        title STRING,
        content STRING,
        embedding FLOAT[],
        metadata STRING,
        created_at TIMESTAMP,
        updated_at TIMESTAMP
    );
    CREATE REL TABLE IF NOT EXISTS LINKS (
        FROM Document TO Document,
        kind STRING,
        weight DOUBLE,
        mutual BOOLEAN,
        metadata STRING,
        created_at TIMESTAMP,
        updated_at TIMESTAMP
    );
`

// LadybugStore implements Store on an embedded Ladybug database. The
// underlying C++ library is not thread-safe, so every operation runs under
// one mutex; pair writes issue both directions inside a single critical
// section, which serializes them against all other store access.
type LadybugStore struct {
	db   *ladybug.Database
	conn *ladybug.Connection
	mu   sync.Mutex
}

// NewLadybugStore opens (or creates) an embedded database at dbPath and
// initializes the schema.
func NewLadybugStore(dbPath string) (*LadybugStore, error) {
	systemConfig := ladybug.SystemConfig{
		BufferPoolSize:    256 * 1024 * 1024,
		MaxNumThreads:     4,
		EnableCompression: true,
		ReadOnly:          false,
	}

	db, err := ladybug.OpenDatabase(dbPath, systemConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open ladybug database: %w", err)
	}

	conn, err := ladybug.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open ladybug connection: %w", err)
	}

	s := &LadybugStore{db: db, conn: conn}
	if _, err := conn.Query(ladybugSchema); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create ladybug schema: %w", err)
	}
	return s, nil
}

// UpsertDocument creates or replaces a document by id.
func (s *LadybugStore) UpsertDocument(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	return s.execLocked(`
		MERGE (d:Document {id: $id})
		ON CREATE SET d.created_at = $now
		SET d.title = $title, d.content = $content,
		    d.embedding = $embedding, d.metadata = $metadata,
		    d.updated_at = $now
	`, map[string]any{
		"id":        doc.ID,
		"title":     doc.Title,
		"content":   doc.Content,
		"embedding": doc.Embedding,
		"metadata":  metadataJSON(doc.Metadata),
		"now":       now,
	})
}

// GetDocument retrieves a document by id.
func (s *LadybugStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.queryLocked(`
		MATCH (d:Document {id: $id})
		RETURN d.id, d.title, d.content, d.embedding, d.metadata, d.created_at, d.updated_at
	`, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrDocumentNotFound
	}
	return documentFromRow(rows[0]), nil
}

// DeleteDocument removes a document and cascades its links.
func (s *LadybugStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execLocked(`
		MATCH (d:Document {id: $id})
		DETACH DELETE d
	`, map[string]any{"id": id})
}

// ListDocuments returns all documents.
func (s *LadybugStore) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.queryLocked(`
		MATCH (d:Document)
		RETURN d.id, d.title, d.content, d.embedding, d.metadata, d.created_at, d.updated_at
	`, nil)
	if err != nil {
		return nil, err
	}

	docs := make([]*types.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, documentFromRow(row))
	}
	return docs, nil
}

// CountDocuments returns the corpus size.
func (s *LadybugStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.queryLocked(`MATCH (d:Document) RETURN count(d)`, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return int(anyToFloat64(rows[0][0])), nil
}

// UpsertPair writes both directions inside one critical section.
func (s *LadybugStore) UpsertPair(ctx context.Context, link *types.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.upsertLinkLocked(link); err != nil {
		return err
	}
	return s.upsertLinkLocked(link.Reverse())
}

// DeletePair removes both directions inside one critical section.
func (s *LadybugStore) DeletePair(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deleteLinkLocked(fromID, toID, kind); err != nil {
		return err
	}
	return s.deleteLinkLocked(toID, fromID, kind)
}

// UpsertLink writes a single direction.
func (s *LadybugStore) UpsertLink(ctx context.Context, link *types.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLinkLocked(link)
}

// DeleteLink removes a single direction.
func (s *LadybugStore) DeleteLink(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLinkLocked(fromID, toID, kind)
}

// ListOutgoing returns the outgoing links of a document.
func (s *LadybugStore) ListOutgoing(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.queryLocked(`
		MATCH (a:Document {id: $id})-[r:LINKS]->(b:Document)
		RETURN a.id, b.id, r.kind, r.weight, r.mutual, r.metadata, r.created_at, r.updated_at
		ORDER BY r.weight DESC
	`, map[string]any{"id": docID})
	if err != nil {
		return nil, err
	}
	return filterLinkRows(rows, kinds), nil
}

// ListIncoming returns the incoming links of a document.
func (s *LadybugStore) ListIncoming(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.queryLocked(`
		MATCH (a:Document)-[r:LINKS]->(b:Document {id: $id})
		RETURN a.id, b.id, r.kind, r.weight, r.mutual, r.metadata, r.created_at, r.updated_at
		ORDER BY r.weight DESC
	`, map[string]any{"id": docID})
	if err != nil {
		return nil, err
	}
	return filterLinkRows(rows, kinds), nil
}

// AllLinks returns every link, optionally filtered by kind.
func (s *LadybugStore) AllLinks(ctx context.Context, kinds ...types.LinkKind) ([]*types.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.queryLocked(`
		MATCH (a:Document)-[r:LINKS]->(b:Document)
		RETURN a.id, b.id, r.kind, r.weight, r.mutual, r.metadata, r.created_at, r.updated_at
	`, nil)
	if err != nil {
		return nil, err
	}
	return filterLinkRows(rows, kinds), nil
}

// Close releases the connection and database.
func (s *LadybugStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

func (s *LadybugStore) upsertLinkLocked(link *types.Link) error {
	now := time.Now().UTC()
	return s.execLocked(`
		MATCH (a:Document {id: $from}), (b:Document {id: $to})
		MERGE (a)-[r:LINKS {kind: $kind}]->(b)
		ON CREATE SET r.created_at = $now
		SET r.weight = $weight, r.mutual = $mutual,
		    r.metadata = $metadata, r.updated_at = $now
	`, map[string]any{
		"from":     link.FromID,
		"to":       link.ToID,
		"kind":     string(link.Kind),
		"weight":   link.Weight,
		"mutual":   link.Mutual,
		"metadata": link.Metadata,
		"now":      now,
	})
}

func (s *LadybugStore) deleteLinkLocked(fromID, toID string, kind types.LinkKind) error {
	return s.execLocked(`
		MATCH (a:Document {id: $from})-[r:LINKS {kind: $kind}]->(b:Document {id: $to})
		DELETE r
	`, map[string]any{"from": fromID, "to": toID, "kind": string(kind)})
}

// execLocked runs a write statement. Caller holds the mutex.
func (s *LadybugStore) execLocked(query string, params map[string]any) error {
	rows, err := s.runLocked(query, params)
	_ = rows
	return err
}

// queryLocked runs a read statement and collects rows. Caller holds the
// mutex.
func (s *LadybugStore) queryLocked(query string, params map[string]any) ([][]any, error) {
	return s.runLocked(query, params)
}

func (s *LadybugStore) runLocked(query string, params map[string]any) ([][]any, error) {
	var results *ladybug.QueryResult
	var err error

	if len(params) > 0 {
		stmt, prepErr := s.conn.Prepare(query)
		if prepErr != nil {
			return nil, fmt.Errorf("failed to prepare ladybug query: %w", prepErr)
		}
		results, err = s.conn.Execute(stmt, params)
	} else {
		results, err = s.conn.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("ladybug query failed: %w", err)
	}
	defer results.Close()

	var rows [][]any
	for results.HasNext() {
		row, err := results.Next()
		if err != nil {
			continue
		}
		values, err := row.GetAsSlice()
		if err != nil {
			continue
		}
		rows = append(rows, values)
	}
	return rows, nil
}

func documentFromRow(row []any) *types.Document {
	doc := &types.Document{}
	if len(row) > 0 {
		doc.ID, _ = row[0].(string)
	}
	if len(row) > 1 {
		doc.Title, _ = row[1].(string)
	}
	if len(row) > 2 {
		doc.Content, _ = row[2].(string)
	}
	if len(row) > 3 {
		doc.Embedding = anyToFloat32s(row[3])
	}
	if len(row) > 4 {
		if s, ok := row[4].(string); ok {
			doc.Metadata = metadataFromJSON(s)
		}
	}
	if len(row) > 5 {
		doc.CreatedAt = anyToTime(row[5])
	}
	if len(row) > 6 {
		doc.UpdatedAt = anyToTime(row[6])
	}
	return doc
}

func linkFromRow(row []any) *types.Link {
	link := &types.Link{}
	if len(row) > 0 {
		link.FromID, _ = row[0].(string)
	}
	if len(row) > 1 {
		link.ToID, _ = row[1].(string)
	}
	if len(row) > 2 {
		if s, ok := row[2].(string); ok {
			link.Kind = types.LinkKind(s)
		}
	}
	if len(row) > 3 {
		link.Weight = anyToFloat64(row[3])
	}
	if len(row) > 4 {
		link.Mutual, _ = row[4].(bool)
	}
	if len(row) > 5 {
		link.Metadata, _ = row[5].(string)
	}
	if len(row) > 6 {
		link.CreatedAt = anyToTime(row[6])
	}
	if len(row) > 7 {
		link.UpdatedAt = anyToTime(row[7])
	}
	return link
}

func filterLinkRows(rows [][]any, kinds []types.LinkKind) []*types.Link {
	links := make([]*types.Link, 0, len(rows))
	for _, row := range rows {
		link := linkFromRow(row)
		if kindAllowed(link.Kind, kinds) {
			links = append(links, link)
		}
	}
	return links
}
