package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// Dialect captures what differs between the supported SQL engines.
type Dialect struct {
	Name              string
	Placeholder       sq.PlaceholderFormat
	IsUniqueViolation func(err error) bool
}

// PostgresDialect is the dialect for lib/pq connections.
var PostgresDialect = Dialect{
	Name:        "postgres",
	Placeholder: sq.Dollar,
	IsUniqueViolation: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	},
}

func (d Dialect) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// conn is shared by every repository: the pool, an optional open
// transaction and the dialect.
type conn struct {
	db      *sql.DB
	tx      *sql.Tx
	dialect Dialect
}

func (c conn) query() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// atomic runs fn in the open transaction or in a new one.
func (c conn) atomic(ctx context.Context, fn func(c conn) error) error {
	if c.tx != nil {
		return fn(c)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(conn{db: c.db, tx: tx, dialect: c.dialect}); err != nil {
		return err
	}
	return tx.Commit()
}

// SQLDatabase implements Database over database/sql for any Dialect.
type SQLDatabase struct {
	db      *sql.DB
	dialect Dialect

	articles  ArticleRepository
	analyses  AnalysisRepository
	critiques CritiqueRepository
}

// NewSQLDatabase wraps an open pool. The schema must already exist.
func NewSQLDatabase(db *sql.DB, dialect Dialect) *SQLDatabase {
	c := conn{db: db, dialect: dialect}
	return &SQLDatabase{
		db:        db,
		dialect:   dialect,
		articles:  &articleRepo{conn: c},
		analyses:  &analysisRepo{conn: c},
		critiques: &critiqueRepo{conn: c},
	}
}

func (s *SQLDatabase) Articles() ArticleRepository   { return s.articles }
func (s *SQLDatabase) Analyses() AnalysisRepository  { return s.analyses }
func (s *SQLDatabase) Critiques() CritiqueRepository { return s.critiques }

// DB exposes the pool for components that share the connection, such as
// the vector index.
func (s *SQLDatabase) DB() *sql.DB { return s.db }

// Dialect returns the engine dialect.
func (s *SQLDatabase) Dialect() Dialect { return s.dialect }

func (s *SQLDatabase) Close() error {
	return s.db.Close()
}

func (s *SQLDatabase) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLDatabase) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	c := conn{db: s.db, tx: tx, dialect: s.dialect}
	return &sqlTx{
		tx:        tx,
		articles:  &articleRepo{conn: c},
		analyses:  &analysisRepo{conn: c},
		critiques: &critiqueRepo{conn: c},
	}, nil
}

// sqlTx implements Transaction interface
type sqlTx struct {
	tx        *sql.Tx
	articles  ArticleRepository
	analyses  AnalysisRepository
	critiques CritiqueRepository
}

func (t *sqlTx) Commit() error                  { return t.tx.Commit() }
func (t *sqlTx) Rollback() error                { return t.tx.Rollback() }
func (t *sqlTx) Articles() ArticleRepository   { return t.articles }
func (t *sqlTx) Analyses() AnalysisRepository  { return t.analyses }
func (t *sqlTx) Critiques() CritiqueRepository { return t.critiques }

var (
	_ Database    = (*SQLDatabase)(nil)
	_ Transaction = (*sqlTx)(nil)
)
