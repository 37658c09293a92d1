package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"newsdesk/internal/persistence"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
)

// DatabaseFile is the SQLite file created under the data directory.
const DatabaseFile = "newsdesk.db"

// Dialect is the persistence dialect for go-sqlite3 connections.
var Dialect = persistence.Dialect{
	Name:        "sqlite",
	Placeholder: sq.Question,
	IsUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	},
}

// Store represents the SQLite-backed local database
type Store struct {
	*persistence.SQLDatabase
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; repositories never hold a cursor across queries.
	db.SetMaxOpenConns(1)

	store := &Store{
		SQLDatabase: persistence.NewSQLDatabase(db, Dialect),
		path:        dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		collection_date TEXT NOT NULL,
		sequence_order INTEGER NOT NULL,
		title TEXT NOT NULL,
		source_url TEXT NOT NULL,
		script_text TEXT NOT NULL,
		identity TEXT NOT NULL,
		scraped_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (source, collection_date, sequence_order)
	);`

	articlesIndex := `CREATE INDEX IF NOT EXISTS idx_articles_collection_date ON articles (collection_date);`

	analysesTable := `
	CREATE TABLE IF NOT EXISTS analysis_results (
		id TEXT PRIMARY KEY,
		collection_date TEXT NOT NULL UNIQUE,
		headline_analysis TEXT NOT NULL,
		editorial_critique TEXT NOT NULL DEFAULT '',
		notable_elements TEXT NOT NULL,
		unique_topics TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`

	topicsTable := `
	CREATE TABLE IF NOT EXISTS analysis_topics (
		analysis_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		total_items INTEGER NOT NULL,
		source_contribution TEXT NOT NULL,
		items TEXT NOT NULL,
		PRIMARY KEY (analysis_id, position),
		FOREIGN KEY (analysis_id) REFERENCES analysis_results (id) ON DELETE CASCADE
	);`

	critiquesTable := `
	CREATE TABLE IF NOT EXISTS article_critiques (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL UNIQUE,
		headline_analysis TEXT NOT NULL DEFAULT '',
		key_agenda_items TEXT NOT NULL,
		editorial_critique TEXT NOT NULL DEFAULT '',
		notable_elements TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (article_id) REFERENCES articles (id) ON DELETE CASCADE
	);`

	collectionsTable := `
	CREATE TABLE IF NOT EXISTS vector_collections (
		name TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL
	);`

	vectorsTable := `
	CREATE TABLE IF NOT EXISTS vector_records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		embedding TEXT NOT NULL,
		document TEXT NOT NULL,
		metadata TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES vector_collections (name) ON DELETE CASCADE
	);`

	tables := []string{
		articlesTable, articlesIndex, analysesTable, topicsTable,
		critiquesTable, collectionsTable, vectorsTable,
	}
	for _, table := range tables {
		if _, err := s.DB().Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
