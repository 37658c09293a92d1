package handlers

import (
	"context"
	"fmt"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/identity"
	"newsdesk/internal/ingest"
	"newsdesk/internal/logger"
	"newsdesk/internal/newsday"
	"newsdesk/internal/render"
	"newsdesk/internal/vectorstore"

	"github.com/spf13/cobra"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	var (
		date        string
		sourceNames []string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Collect the evening programs, store and embed them",
		Long: `Collect the evening programs like 'newsdesk scrape', then embed every
transcript and write it to the day's vector collection (broadcasts_YYYY_MM_DD).

Embeddings are requested in batches of vector.batch_size. A batch is only
written once all of its embeddings succeeded; on failure re-run the command,
re-ingesting the same day is idempotent.

Only one ingestion per day runs at a time; a second one waits up to
scrape.lock_timeout and then gives up.

Examples:
  newsdesk ingest
  newsdesk ingest --date 2025-03-07`,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDate(date)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), day, sourceNames)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "News-day to collect, YYYY-MM-DD (default: current news-day)")
	cmd.Flags().StringSliceVar(&sourceNames, "source", nil, "Broadcasters to collect (default from config: kbs,mbc,sbs)")

	return cmd
}

func runIngest(ctx context.Context, day time.Time, sourceNames []string) error {
	log := logger.Get()
	cfg := config.Get()

	client, err := newLLMClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := collect(ctx, day, sourceNames)
	if err != nil {
		return err
	}

	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	collectionDate := newsday.Format(day)
	collection := identity.CollectionName(collectionDate)

	ingester := ingest.New(b.db, b.index, client, cfg.App.DataDir, ingest.Options{
		BatchSize:   cfg.Vector.BatchSize,
		LockTimeout: config.Duration(cfg.Scrape.LockTimeout, ingest.DefaultLockTimeout),
	})
	report, err := ingester.Ingest(ctx, result.Articles, collection, collectionDate)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if b.isPgVector() {
		if err := vectorstore.CreateIndex(ctx, b.sqlDB); err != nil {
			log.Warn("Failed to create vector index", "error", err)
		}
	}

	fmt.Print(render.Counts(collectionDate, result.Counts))
	fmt.Printf("  created %d, updated %d, vectors %d, pruned %d in %s\n",
		report.Created, report.Updated, report.Vectors, report.Pruned, report.Collection)

	return result.Err()
}
