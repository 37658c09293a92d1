package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"newsdesk/internal/core"

	sq "github.com/Masterminds/squirrel"
)

// Backend names accepted by the vector.backend setting.
const (
	BackendSQLite   = "sqlite"
	BackendPgVector = "pgvector"
)

// ErrEmptyEmbedding is returned when a record without a vector is upserted.
var ErrEmptyEmbedding = errors.New("record has no embedding")

// Index hands out named collections of vector records.
type Index interface {
	// GetOrCreateCollection returns the collection, creating it when absent.
	GetOrCreateCollection(ctx context.Context, name string) (Collection, error)
}

// Collection is one named set of records, one per news-day.
type Collection interface {
	Name() string

	// Upsert writes records keyed by ID. All records in one call are written
	// in a single transaction.
	Upsert(ctx context.Context, records []core.VectorRecord) error

	// Get returns every record with its embedding, ordered by ID.
	Get(ctx context.Context) ([]core.VectorRecord, error)

	Count(ctx context.Context) (int, error)

	// IDs returns the record IDs in ascending order.
	IDs(ctx context.Context) ([]string, error)

	// Delete removes the records with the given IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
}

// SQLIndex stores collections in the vector_collections and vector_records
// tables. Embeddings travel as "[x,y,...]" literals, which both pgvector and a
// JSON text column accept.
type SQLIndex struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	// embeddingExpr is the select expression that yields the literal form.
	embeddingExpr string
}

var _ Index = (*SQLIndex)(nil)

// GetOrCreateCollection implements Index.
func (x *SQLIndex) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	query, args, err := x.builder.Insert("vector_collections").
		Columns("name", "created_at").
		Values(name, time.Now().UTC()).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := x.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	return &sqlCollection{index: x, name: name}, nil
}

type sqlCollection struct {
	index *SQLIndex
	name  string
}

func (c *sqlCollection) Name() string { return c.name }

func (c *sqlCollection) Upsert(ctx context.Context, records []core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	insert := c.index.builder.Insert("vector_records").
		Columns("collection", "id", "embedding", "document", "metadata", "updated_at")
	for _, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyEmbedding, r.ID)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", r.ID, err)
		}
		insert = insert.Values(c.name, r.ID, formatVector(r.Embedding), r.Document, string(meta), now)
	}

	query, args, err := insert.Suffix(`ON CONFLICT (collection, id) DO UPDATE SET
		embedding = excluded.embedding,
		document = excluded.document,
		metadata = excluded.metadata,
		updated_at = excluded.updated_at`).ToSql()
	if err != nil {
		return err
	}

	tx, err := c.index.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to upsert vectors into %s: %w", c.name, err)
	}
	return tx.Commit()
}

func (c *sqlCollection) Get(ctx context.Context) ([]core.VectorRecord, error) {
	query, args, err := c.index.builder.
		Select("id", c.index.embeddingExpr, "document", "metadata").
		From("vector_records").
		Where(sq.Eq{"collection": c.name}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := c.index.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", c.name, err)
	}
	defer rows.Close()

	var records []core.VectorRecord
	for rows.Next() {
		var r core.VectorRecord
		var embedding, meta string
		if err := rows.Scan(&r.ID, &embedding, &r.Document, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if r.Embedding, err = parseVector(embedding); err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("record %s: failed to decode metadata: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

func (c *sqlCollection) Count(ctx context.Context) (int, error) {
	query, args, err := c.index.builder.Select("COUNT(*)").From("vector_records").
		Where(sq.Eq{"collection": c.name}).ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := c.index.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.name, err)
	}
	return n, nil
}

func (c *sqlCollection) IDs(ctx context.Context) ([]string, error) {
	query, args, err := c.index.builder.Select("id").From("vector_records").
		Where(sq.Eq{"collection": c.name}).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := c.index.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids in %s: %w", c.name, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *sqlCollection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := c.index.builder.Delete("vector_records").
		Where(sq.Eq{"collection": c.name, "id": ids}).ToSql()
	if err != nil {
		return err
	}
	if _, err := c.index.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete vectors from %s: %w", c.name, err)
	}
	return nil
}

// formatVector converts an embedding to vector literal format
// Example: [0.1, 0.2, 0.3] -> "[0.1,0.2,0.3]"
func formatVector(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, val := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVector(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid vector literal: %w", err)
	}
	return v, nil
}
