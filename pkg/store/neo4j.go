package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/soundprediction/trama/pkg/types"
)

// Neo4jStore implements Store on a Neo4j database. Pair operations run
// both directions inside one managed write transaction, which satisfies
// the atomic bidirectional contract.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore creates a new Neo4j store instance.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jStore{client: driver, database: database}, nil
}

// CreateIndices creates the uniqueness constraint used by document merges.
func (s *Neo4jStore) CreateIndices(ctx context.Context) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			CREATE CONSTRAINT document_id IF NOT EXISTS
			FOR (d:Document) REQUIRE d.id IS UNIQUE
		`, nil)
		return nil, err
	})
	return err
}

// UpsertDocument creates or replaces a document by id.
func (s *Neo4jStore) UpsertDocument(ctx context.Context, doc *types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (d:Document {id: $id})
			ON CREATE SET d.created_at = $now
			SET d.title = $title,
			    d.content = $content,
			    d.embedding = $embedding,
			    d.metadata = $metadata,
			    d.updated_at = $now
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":        doc.ID,
			"title":     doc.Title,
			"content":   doc.Content,
			"embedding": float32sToAny(doc.Embedding),
			"metadata":  metadataJSON(doc.Metadata),
			"now":       time.Now().UTC(),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument retrieves a document by id.
func (s *Neo4jStore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})
			RETURN d.id AS id, d.title AS title, d.content AS content,
			       d.embedding AS embedding, d.metadata AS metadata,
			       d.created_at AS created_at,
			       d.updated_at AS updated_at
		`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		if strings.Contains(err.Error(), "no more records") {
			return nil, types.ErrDocumentNotFound
		}
		return nil, err
	}

	return documentFromRecord(result.(*db.Record)), nil
}

// DeleteDocument removes a document and cascades its links.
func (s *Neo4jStore) DeleteDocument(ctx context.Context, id string) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})
			DETACH DELETE d
		`, map[string]any{"id": id})
		return nil, err
	})
	return err
}

// ListDocuments returns all documents.
func (s *Neo4jStore) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Document)
			RETURN d.id AS id, d.title AS title, d.content AS content,
			       d.embedding AS embedding, d.metadata AS metadata,
			       d.created_at AS created_at,
			       d.updated_at AS updated_at
		`, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	docs := make([]*types.Document, 0, len(records))
	for _, record := range records {
		docs = append(docs, documentFromRecord(record))
	}
	return docs, nil
}

// CountDocuments returns the corpus size.
func (s *Neo4jStore) CountDocuments(ctx context.Context) (int, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (d:Document) RETURN count(d) AS n`, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := record.Get("n")
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return int(result.(int64)), nil
}

// UpsertPair writes both directions inside one write transaction.
func (s *Neo4jStore) UpsertPair(ctx context.Context, link *types.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:Document {id: $from}), (b:Document {id: $to})
			MERGE (a)-[r1:LINKS {kind: $kind}]->(b)
			ON CREATE SET r1.created_at = $now
			SET r1.weight = $weight, r1.mutual = $mutual,
			    r1.metadata = $metadata, r1.updated_at = $now
			MERGE (b)-[r2:LINKS {kind: $kind}]->(a)
			ON CREATE SET r2.created_at = $now
			SET r2.weight = $weight, r2.mutual = $mutual,
			    r2.metadata = $metadata, r2.updated_at = $now
		`
		_, err := tx.Run(ctx, query, linkParams(link))
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert link pair %s<->%s: %w", link.FromID, link.ToID, err)
	}
	return nil
}

// DeletePair removes both directions inside one write transaction.
func (s *Neo4jStore) DeletePair(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (a:Document {id: $from})-[r1:LINKS {kind: $kind}]->(b:Document {id: $to})
			DELETE r1
			WITH a, b
			MATCH (b)-[r2:LINKS {kind: $kind}]->(a)
			DELETE r2
		`, map[string]any{"from": fromID, "to": toID, "kind": string(kind)})
		return nil, err
	})
	return err
}

// UpsertLink writes a single direction.
func (s *Neo4jStore) UpsertLink(ctx context.Context, link *types.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}

	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:Document {id: $from}), (b:Document {id: $to})
			MERGE (a)-[r:LINKS {kind: $kind}]->(b)
			ON CREATE SET r.created_at = $now
			SET r.weight = $weight, r.mutual = $mutual,
			    r.metadata = $metadata, r.updated_at = $now
		`
		_, err := tx.Run(ctx, query, linkParams(link))
		return nil, err
	})
	return err
}

// DeleteLink removes a single direction.
func (s *Neo4jStore) DeleteLink(ctx context.Context, fromID, toID string, kind types.LinkKind) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (a:Document {id: $from})-[r:LINKS {kind: $kind}]->(b:Document {id: $to})
			DELETE r
		`, map[string]any{"from": fromID, "to": toID, "kind": string(kind)})
		return nil, err
	})
	return err
}

// ListOutgoing returns the outgoing links of a document.
func (s *Neo4jStore) ListOutgoing(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	return s.listLinks(ctx, `
		MATCH (a:Document {id: $id})-[r:LINKS]->(b:Document)
		WHERE size($kinds) = 0 OR r.kind IN $kinds
		RETURN a.id AS from_id, b.id AS to_id, r.kind AS kind, r.weight AS weight,
		       r.mutual AS mutual, r.metadata AS metadata,
		       r.created_at AS created_at, r.updated_at AS updated_at
		ORDER BY r.weight DESC
	`, docID, kinds)
}

// ListIncoming returns the incoming links of a document.
func (s *Neo4jStore) ListIncoming(ctx context.Context, docID string, kinds ...types.LinkKind) ([]*types.Link, error) {
	return s.listLinks(ctx, `
		MATCH (a:Document)-[r:LINKS]->(b:Document {id: $id})
		WHERE size($kinds) = 0 OR r.kind IN $kinds
		RETURN a.id AS from_id, b.id AS to_id, r.kind AS kind, r.weight AS weight,
		       r.mutual AS mutual, r.metadata AS metadata,
		       r.created_at AS created_at, r.updated_at AS updated_at
		ORDER BY r.weight DESC
	`, docID, kinds)
}

// AllLinks returns every link, optionally filtered by kind.
func (s *Neo4jStore) AllLinks(ctx context.Context, kinds ...types.LinkKind) ([]*types.Link, error) {
	return s.listLinks(ctx, `
		MATCH (a:Document)-[r:LINKS]->(b:Document)
		WHERE size($kinds) = 0 OR r.kind IN $kinds
		RETURN a.id AS from_id, b.id AS to_id, r.kind AS kind, r.weight AS weight,
		       r.mutual AS mutual, r.metadata AS metadata,
		       r.created_at AS created_at, r.updated_at AS updated_at
	`, "", kinds)
}

// Close implements Store.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *Neo4jStore) listLinks(ctx context.Context, query, docID string, kinds []types.LinkKind) ([]*types.Link, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	kindStrs := make([]string, len(kinds))
	for i, k := range kinds {
		kindStrs[i] = string(k)
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": docID, "kinds": kindStrs})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records := result.([]*db.Record)
	links := make([]*types.Link, 0, len(records))
	for _, record := range records {
		links = append(links, linkFromRecord(record))
	}
	return links, nil
}

func linkParams(link *types.Link) map[string]any {
	return map[string]any{
		"from":     link.FromID,
		"to":       link.ToID,
		"kind":     string(link.Kind),
		"weight":   link.Weight,
		"mutual":   link.Mutual,
		"metadata": link.Metadata,
		"now":      time.Now().UTC(),
	}
}

func documentFromRecord(record *db.Record) *types.Document {
	doc := &types.Document{}
	if v, ok := record.Get("id"); ok {
		doc.ID, _ = v.(string)
	}
	if v, ok := record.Get("title"); ok {
		doc.Title, _ = v.(string)
	}
	if v, ok := record.Get("content"); ok {
		doc.Content, _ = v.(string)
	}
	if v, ok := record.Get("embedding"); ok {
		doc.Embedding = anyToFloat32s(v)
	}
	if v, ok := record.Get("metadata"); ok {
		if s, isStr := v.(string); isStr {
			doc.Metadata = metadataFromJSON(s)
		}
	}
	if v, ok := record.Get("created_at"); ok {
		doc.CreatedAt = anyToTime(v)
	}
	if v, ok := record.Get("updated_at"); ok {
		doc.UpdatedAt = anyToTime(v)
	}
	return doc
}

func linkFromRecord(record *db.Record) *types.Link {
	link := &types.Link{}
	if v, ok := record.Get("from_id"); ok {
		link.FromID, _ = v.(string)
	}
	if v, ok := record.Get("to_id"); ok {
		link.ToID, _ = v.(string)
	}
	if v, ok := record.Get("kind"); ok {
		if s, isStr := v.(string); isStr {
			link.Kind = types.LinkKind(s)
		}
	}
	if v, ok := record.Get("weight"); ok {
		link.Weight = anyToFloat64(v)
	}
	if v, ok := record.Get("mutual"); ok {
		link.Mutual, _ = v.(bool)
	}
	if v, ok := record.Get("metadata"); ok {
		link.Metadata, _ = v.(string)
	}
	if v, ok := record.Get("created_at"); ok {
		link.CreatedAt = anyToTime(v)
	}
	if v, ok := record.Get("updated_at"); ok {
		link.UpdatedAt = anyToTime(v)
	}
	return link
}

func float32sToAny(v []float32) []any {
	out := make([]any, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func anyToFloat32s(v any) []float32 {
	switch arr := v.(type) {
	case []float32:
		return arr
	case []float64:
		out := make([]float32, len(arr))
		for i, x := range arr {
			out[i] = float32(x)
		}
		return out
	case []any:
		out := make([]float32, 0, len(arr))
		for _, x := range arr {
			out = append(out, float32(anyToFloat64(x)))
		}
		return out
	}
	return nil
}

func anyToFloat64(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return 0
}

func anyToTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case string:
		t, err := time.Parse(time.RFC3339, x)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}
