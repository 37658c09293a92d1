package handlers

import (
	"context"
	"fmt"
	"time"

	"newsdesk/internal/identity"
	"newsdesk/internal/logger"
	"newsdesk/internal/newsday"
	"newsdesk/internal/persistence"
	"newsdesk/internal/render"
	"newsdesk/internal/sources"

	"github.com/spf13/cobra"
)

// NewScrapeCmd creates the scrape command
func NewScrapeCmd() *cobra.Command {
	var (
		date        string
		sourceNames []string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect the evening programs and store their articles",
		Long: `Render each broadcaster's evening program page, read its news items in
broadcast order and store every item's transcript.

Articles are keyed by (source, date, order), so running scrape again for the
same day updates the stored articles in place. No embeddings are written;
use 'newsdesk ingest' for that.

Examples:
  # Collect the current news-day from every configured broadcaster
  newsdesk scrape

  # Collect one broadcaster for a given day
  newsdesk scrape --date 2025-03-07 --source kbs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDate(date)
			if err != nil {
				return err
			}
			return runScrape(cmd.Context(), day, sourceNames)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "News-day to collect, YYYY-MM-DD (default: current news-day)")
	cmd.Flags().StringSliceVar(&sourceNames, "source", nil, "Broadcasters to collect (default from config: kbs,mbc,sbs)")

	return cmd
}

func runScrape(ctx context.Context, day time.Time, sourceNames []string) error {
	log := logger.Get()

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
	var created, updated int
	err = persistence.InTransaction(ctx, b.db, func(tx persistence.Transaction) error {
		for i := range result.Articles {
			a := &result.Articles[i]
			a.Identity = identity.Of(*a, collectionDate)
			wasCreated, err := tx.Articles().Upsert(ctx, a)
			if err != nil {
				return err
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
		return fmt.Errorf("failed to store articles: %w", err)
	}

	log.Info("Stored articles", "date", collectionDate, "created", created, "updated", updated)
	fmt.Print(render.Counts(collectionDate, result.Counts))
	fmt.Printf("  created %d, updated %d\n", created, updated)
	return result.Err()
}

// collect aggregates the requested broadcasters for day. Failing sources are
// reported only after the others have been collected.
func collect(ctx context.Context, day time.Time, sourceNames []string) (*sources.AggregateResult, error) {
	mgr, adapters, stop, err := newSourceManager(ctx, sourceNames)
	if err != nil {
		return nil, err
	}
	defer stop()

	result, err := mgr.Aggregate(ctx, adapters, day)
	if err != nil {
		return nil, err
	}
	if len(result.Articles) == 0 {
		if failed := result.Err(); failed != nil {
			return nil, fmt.Errorf("no articles collected for %s: %w", newsday.Format(day), failed)
		}
		return nil, fmt.Errorf("no articles collected for %s", newsday.Format(day))
	}
	return result, nil
}
