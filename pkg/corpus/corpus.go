// Package corpus packages documents for bulk movement in and out of the
// store as Parquet files.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/trama/pkg/store"
	"github.com/soundprediction/trama/pkg/types"
	"github.com/soundprediction/trama/pkg/utils"
)

// documentRecord is the Parquet row shape for a document. Metadata travels
// as a JSON string column.
type documentRecord struct {
	ID        string    `parquet:"id"`
	Title     string    `parquet:"title"`
	Content   string    `parquet:"content"`
	Embedding []float32 `parquet:"embedding,list"`
	Metadata  string    `parquet:"metadata"`
	CreatedAt time.Time `parquet:"created_at"`
	UpdatedAt time.Time `parquet:"updated_at"`
}

// Import reads documents from a Parquet file and upserts them into the
// store. Malformed metadata JSON is repaired where possible and dropped
// with a warning where not; a bad metadata column never rejects the row.
func Import(ctx context.Context, path string, docs store.DocumentStore, logger *slog.Logger) (imported int, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	// parquet decoding of a corrupt file can panic; surface it as an error.
	defer utils.RecoverAsError(&err)

	records, err := parquet.ReadFile[documentRecord](path)
	if err != nil {
		return 0, fmt.Errorf("failed to read corpus file %s: %w", path, err)
	}

	for _, rec := range records {
		doc := &types.Document{
			ID:        rec.ID,
			Title:     rec.Title,
			Content:   rec.Content,
			Embedding: rec.Embedding,
			Metadata:  decodeMetadata(rec.ID, rec.Metadata, logger),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
		if err := docs.UpsertDocument(ctx, doc); err != nil {
			return imported, fmt.Errorf("failed to import document %s: %w", rec.ID, err)
		}
		imported++
	}

	logger.Info("corpus imported", "path", path, "documents", imported)
	return imported, nil
}

// Export writes every document in the store to a Parquet file, ordered by
// id for reproducible output.
func Export(ctx context.Context, path string, docs store.DocumentStore, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	all, err := docs.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	records := make([]documentRecord, 0, len(all))
	for _, doc := range all {
		metadata := ""
		if len(doc.Metadata) > 0 {
			data, err := json.Marshal(doc.Metadata)
			if err != nil {
				return 0, fmt.Errorf("failed to encode metadata for %s: %w", doc.ID, err)
			}
			metadata = string(data)
		}
		records = append(records, documentRecord{
			ID:        doc.ID,
			Title:     doc.Title,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  metadata,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}

	if err := parquet.WriteFile(path, records); err != nil {
		return 0, fmt.Errorf("failed to write corpus file %s: %w", path, err)
	}

	logger.Info("corpus exported", "path", path, "documents", len(records))
	return len(records), nil
}

// decodeMetadata parses the metadata column, falling back to JSON repair
// for rows written by sloppy producers.
func decodeMetadata(docID, raw string, logger *slog.Logger) map[string]string {
	if logger == nil {
		logger = slog.Default()
	}
	if raw == "" {
		return nil
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw), &metadata); err == nil {
		return metadata
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err == nil && json.Unmarshal([]byte(repaired), &metadata) == nil {
		logger.Warn("repaired malformed document metadata", "doc_id", docID)
		return metadata
	}

	logger.Warn("dropped unparseable document metadata", "doc_id", docID)
	return nil
}
