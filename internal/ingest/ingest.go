// Package ingest writes a news-day's articles to the relational store and the
// vector index, idempotently and under a per-date file lock.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/identity"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
	"newsdesk/internal/persistence"
	"newsdesk/internal/vectorstore"

	"github.com/gofrs/flock"
)

const (
	DefaultBatchSize   = 64
	DefaultLockTimeout = 30 * time.Second
	lockRetryDelay     = 100 * time.Millisecond
)

// ErrIngestLocked means another ingestion holds the lock for the same date.
var ErrIngestLocked = errors.New("ingestion already running for this date")

// Report summarizes one ingestion call.
type Report struct {
	Collection string `json:"collection"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Vectors    int    `json:"vectors"`
	Pruned     int    `json:"pruned"`
	Batches    int    `json:"batches"`
}

// Options tunes an Ingester.
type Options struct {
	BatchSize   int
	LockTimeout time.Duration
}

// Ingester upserts articles and their embeddings.
type Ingester struct {
	db       persistence.Database
	index    vectorstore.Index
	embedder llm.Embedder
	lockDir  string
	opts     Options
	log      *slog.Logger
}

// New creates an Ingester. Lock files live under dataDir/locks.
func New(db persistence.Database, index vectorstore.Index, embedder llm.Embedder, dataDir string, opts Options) *Ingester {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	return &Ingester{
		db:       db,
		index:    index,
		embedder: embedder,
		lockDir:  filepath.Join(dataDir, "locks"),
		opts:     opts,
		log:      logger.Get(),
	}
}

// LockPath returns the lock file guarding ingestion for a collection date.
func LockPath(lockDir, collectionDate string) string {
	return filepath.Join(lockDir, "ingest-"+collectionDate+".lock")
}

// Ingest stores articles for collectionDate into the named vector collection.
// Each batch is embedded before anything from it is written; an embedding
// failure aborts the call and the caller retries it as a whole. Afterwards the
// collection holds exactly one record per stored article of the date.
func (i *Ingester) Ingest(ctx context.Context, articles []core.Article, collection, collectionDate string) (Report, error) {
	report := Report{Collection: collection}

	unlock, err := i.lock(ctx, collectionDate)
	if err != nil {
		return report, err
	}
	defer unlock()

	coll, err := i.index.GetOrCreateCollection(ctx, collection)
	if err != nil {
		return report, fmt.Errorf("failed to open collection: %w", err)
	}

	for start := 0; start < len(articles); start += i.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := min(start+i.opts.BatchSize, len(articles))
		batch := make([]core.Article, end-start)
		copy(batch, articles[start:end])

		created, updated, err := i.ingestBatch(ctx, coll, batch, collectionDate)
		if err != nil {
			return report, fmt.Errorf("batch %d: %w", report.Batches+1, err)
		}

		report.Batches++
		report.Created += created
		report.Updated += updated
		report.Vectors += len(batch)

		i.log.Debug("Ingested batch",
			"collection", collection,
			"batch", report.Batches,
			"size", len(batch))
	}

	pruned, err := i.prune(ctx, coll, collectionDate)
	if err != nil {
		return report, err
	}
	report.Pruned = pruned

	i.log.Info("Ingestion complete",
		"collection", collection,
		"created", report.Created,
		"updated", report.Updated,
		"vectors", report.Vectors,
		"pruned", report.Pruned)

	return report, nil
}

func (i *Ingester) ingestBatch(ctx context.Context, coll vectorstore.Collection, batch []core.Article, collectionDate string) (int, int, error) {
	documents := make([]string, len(batch))
	for n := range batch {
		batch[n].CollectionDate = collectionDate
		batch[n].Identity = identity.Of(batch[n], collectionDate)
		documents[n] = batch[n].ScriptText
	}

	embeddings, err := i.embedder.EmbedTexts(ctx, documents)
	if err != nil {
		if errors.Is(err, core.ErrProviderFailure) {
			return 0, 0, err
		}
		return 0, 0, fmt.Errorf("%w: %v", core.ErrProviderFailure, err)
	}
	if len(embeddings) != len(batch) {
		return 0, 0, fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrProviderFailure, len(batch), len(embeddings))
	}
	for n, e := range embeddings {
		if len(e) == 0 {
			return 0, 0, fmt.Errorf("%w: empty embedding for %s #%d", core.ErrProviderFailure, batch[n].Source, batch[n].SequenceOrder)
		}
	}

	var created, updated int
	err = persistence.InTransaction(ctx, i.db, func(tx persistence.Transaction) error {
		for n := range batch {
			wasCreated, err := tx.Articles().Upsert(ctx, &batch[n])
			if err != nil {
				return fmt.Errorf("failed to upsert %s #%d: %w", batch[n].Source, batch[n].SequenceOrder, err)
			}
			if wasCreated {
				created++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	records := make([]core.VectorRecord, len(batch))
	for n, a := range batch {
		records[n] = core.VectorRecord{
			ID:        a.Identity,
			Embedding: embeddings[n],
			Document:  a.ScriptText,
			Metadata: core.RecordMetadata{
				Source: a.Source,
				Date:   collectionDate,
				Order:  a.SequenceOrder,
				Title:  a.Title,
			},
		}
	}
	if err := coll.Upsert(ctx, records); err != nil {
		return 0, 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	return created, updated, nil
}

// prune drops records whose identity no stored article carries any more. An
// upsert on (source, date, order) replaces the identity when a title or URL
// changes, which leaves the old record behind.
func (i *Ingester) prune(ctx context.Context, coll vectorstore.Collection, collectionDate string) (int, error) {
	stored, err := i.db.Articles().ListByDate(ctx, collectionDate)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored articles: %w", err)
	}
	live := make(map[string]struct{}, len(stored))
	for _, a := range stored {
		live[a.Identity] = struct{}{}
	}

	ids, err := coll.IDs(ctx)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, id := range ids {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := coll.Delete(ctx, stale); err != nil {
		return 0, err
	}
	i.log.Info("Pruned superseded vectors", "collection", coll.Name(), "count", len(stale))
	return len(stale), nil
}

// lock acquires the per-date file lock, waiting up to the lock timeout.
func (i *Ingester) lock(ctx context.Context, collectionDate string) (func(), error) {
	if err := os.MkdirAll(i.lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := LockPath(i.lockDir, collectionDate)
	fileLock := flock.New(path)

	lockCtx, cancel := context.WithTimeout(ctx, i.opts.LockTimeout)
	defer cancel()

	ok, err := fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrIngestLocked, collectionDate)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIngestLocked, collectionDate)
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			i.log.Warn("Failed to release ingestion lock", "path", path, "error", err)
		}
	}, nil
}
