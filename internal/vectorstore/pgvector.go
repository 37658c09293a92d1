package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// NewPgVectorIndex creates an index over PostgreSQL with the pgvector
// extension. The tables come from the vector_records migration.
func NewPgVectorIndex(db *sql.DB) *SQLIndex {
	return &SQLIndex{
		db:            db,
		builder:       sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		embeddingExpr: "embedding::text",
	}
}

// CreateIndex creates an HNSW index for cosine distance queries.
// Should be called after bulk inserts
func CreateIndex(ctx context.Context, db *sql.DB) error {
	var exists bool
	checkQuery := `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE tablename = 'vector_records'
			AND indexname = 'idx_vector_records_embedding_hnsw'
		)
	`
	if err := db.QueryRowContext(ctx, checkQuery).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	if exists {
		return nil
	}

	// HNSW needs a fixed dimension, which the column leaves open, so the
	// index is built per dimension actually present.
	var dims int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(vector_dims(embedding)), 0) FROM vector_records`).Scan(&dims)
	if err != nil {
		return fmt.Errorf("failed to read embedding dimensions: %w", err)
	}
	if dims == 0 {
		return nil
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX idx_vector_records_embedding_hnsw
		ON vector_records
		USING hnsw ((embedding::vector(%d)) vector_cosine_ops)
		WITH (m = 16, ef_construction = 64)
	`, dims)
	if _, err := db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}
