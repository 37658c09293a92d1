package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/fetch"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
	"newsdesk/internal/newsday"
	"newsdesk/internal/persistence"
	"newsdesk/internal/sources"
	"newsdesk/internal/store"
	"newsdesk/internal/vectorstore"
)

// backend bundles the relational store and vector index selected by config.
type backend struct {
	db      persistence.Database
	sqlDB   *sql.DB
	index   vectorstore.Index
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// isPgVector reports whether vectors live in PostgreSQL.
func (b *backend) isPgVector() bool {
	return config.Get().Vector.Backend == vectorstore.BackendPgVector
}

// openDatabase connects to the configured relational store.
func openDatabase() (persistence.Database, *sql.DB, error) {
	cfg := config.Get()

	switch cfg.Database.Driver {
	case "postgres":
		pg, err := persistence.NewPostgresDB(cfg.Database.ConnectionString, persistence.PostgresOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			PingTimeout:  config.Duration(cfg.Database.Timeout, 5*time.Second),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w\n\n"+
				"Make sure PostgreSQL is running and run 'newsdesk migrate up' to initialize the schema.", err)
		}
		return pg, pg.DB(), nil
	default:
		st, err := store.NewStore(cfg.App.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local store: %w", err)
		}
		logger.Debug("Opened local store", "path", st.Path())
		return st, st.DB(), nil
	}
}

// openBackend opens the relational store and the vector index.
func openBackend() (*backend, error) {
	cfg := config.Get()

	db, sqlDB, err := openDatabase()
	if err != nil {
		return nil, err
	}
	b := &backend{db: db, sqlDB: sqlDB, closers: []func() error{db.Close}}

	switch {
	case cfg.Vector.Backend == vectorstore.BackendPgVector:
		b.index = vectorstore.NewPgVectorIndex(sqlDB)
	case cfg.Database.Driver == "postgres":
		// Relational data on the server, vectors in the local file.
		local, err := store.NewStore(cfg.App.DataDir)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to open local vector store: %w", err)
		}
		b.closers = append(b.closers, local.Close)
		b.index = vectorstore.NewSQLiteIndex(local.DB())
	default:
		b.index = vectorstore.NewSQLiteIndex(sqlDB)
	}

	return b, nil
}

// newLLMClient creates the Gemini client used for embeddings and generation.
func newLLMClient(ctx context.Context) (*llm.Client, error) {
	cfg := config.Get()
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, llm.OptionsFromConfig(cfg.AI.Gemini))
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// newSourceManager builds the collector for the configured broadcasters.
// The returned func stops the browser.
func newSourceManager(ctx context.Context, names []string) (*sources.Manager, []sources.Adapter, func(), error) {
	cfg := config.Get().Scrape

	registry := sources.DefaultRegistry()
	if len(names) == 0 {
		names = cfg.Sources
	}
	adapters, err := registry.Resolve(names)
	if err != nil {
		return nil, nil, nil, err
	}

	renderer := fetch.NewRenderer(ctx, fetch.RendererOptions{
		Wait:      config.Duration(cfg.RenderWait, fetch.DefaultRenderWait),
		UserAgent: cfg.UserAgent,
		Headless:  cfg.Headless,
	})
	timeout := config.Duration(cfg.Timeout, fetch.DefaultTimeout)
	details := fetch.NewHTTPFetcher(timeout, cfg.UserAgent)

	opts := sources.DefaultCollectOptions()
	opts.MaxConcurrency = cfg.Concurrency
	opts.RateLimit = config.Duration(cfg.RateLimit, opts.RateLimit)
	opts.Timeout = timeout

	return sources.NewManager(registry, renderer, details, opts), adapters, renderer.Close, nil
}

// resolveDate returns the news-day for a --date flag; empty means the
// current news-day.
func resolveDate(value string) (time.Time, error) {
	if value == "" {
		return newsday.Today(newsday.SystemClock{}), nil
	}
	day, err := newsday.Parse(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", value, err)
	}
	return day, nil
}
