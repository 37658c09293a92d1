package vectorstore

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// NewSQLiteIndex creates an index over the local SQLite store. Embeddings
// are kept as JSON arrays.
func NewSQLiteIndex(db *sql.DB) *SQLIndex {
	return &SQLIndex{
		db:            db,
		builder:       sq.StatementBuilder.PlaceholderFormat(sq.Question),
		embeddingExpr: "embedding",
	}
}
