// Package persistence provides database abstraction interfaces for storing
// articles, analysis results and per-article critiques
package persistence

import (
	"context"
	"fmt"

	"newsdesk/internal/core"
)

// ArticleRepository handles article persistence operations
type ArticleRepository interface {
	// Upsert inserts or updates the article keyed by
	// (source, collection_date, sequence_order). It reports whether a new
	// row was created and fills in ID and timestamps.
	Upsert(ctx context.Context, article *core.Article) (bool, error)

	// Get retrieves an article by ID
	Get(ctx context.Context, id string) (*core.Article, error)

	// List retrieves articles newest news-day first
	List(ctx context.Context, filter ArticleFilter) ([]core.Article, error)

	// ListByDate retrieves one collection in source and broadcast order
	ListByDate(ctx context.Context, collectionDate string) ([]core.Article, error)
}

// AnalysisRepository handles analysis result persistence operations
type AnalysisRepository interface {
	// Exists reports whether a collection has already been analyzed
	Exists(ctx context.Context, collectionDate string) (bool, error)

	// Get retrieves the analysis for a collection
	Get(ctx context.Context, collectionDate string) (*core.AnalysisResult, error)

	// List retrieves analyses newest first
	List(ctx context.Context, opts ListOptions) ([]core.AnalysisResult, error)

	// Create stores the result and its topics. A second result for the same
	// collection fails with core.ErrAlreadyAnalyzed.
	Create(ctx context.Context, result *core.AnalysisResult) error
}

// CritiqueRepository handles per-article critique persistence operations
type CritiqueRepository interface {
	// Get retrieves the critique for an article
	Get(ctx context.Context, articleID string) (*core.ArticleCritique, error)

	// Create stores a critique. A second critique for the same article fails
	// with core.ErrAlreadyAnalyzed.
	Create(ctx context.Context, critique *core.ArticleCritique) error
}

// ArticleFilter narrows an article listing
type ArticleFilter struct {
	CollectionDate string      // Exact news-day, empty for all
	Source         core.Source // Exact broadcaster, empty for all
	Limit          int         // Maximum number of results (0 for no limit)
	Offset         int         // Number of results to skip
}

// ListOptions provides common pagination options
type ListOptions struct {
	Limit  int // Maximum number of results (0 for no limit)
	Offset int // Number of results to skip
}

// Database represents the main database interface that aggregates all repositories
type Database interface {
	// Articles returns the article repository
	Articles() ArticleRepository

	// Analyses returns the analysis repository
	Analyses() AnalysisRepository

	// Critiques returns the critique repository
	Critiques() CritiqueRepository

	// Close closes the database connection
	Close() error

	// Ping verifies the database connection
	Ping(ctx context.Context) error

	// BeginTx starts a new transaction
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Articles returns the article repository within this transaction
	Articles() ArticleRepository

	// Analyses returns the analysis repository within this transaction
	Analyses() AnalysisRepository

	// Critiques returns the critique repository within this transaction
	Critiques() CritiqueRepository
}

// InTransaction runs fn inside a transaction, committing when fn returns nil.
func InTransaction(ctx context.Context, db Database, fn func(tx Transaction) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
