package handlers

import (
	"context"
	"fmt"

	"newsdesk/internal/core"
	"newsdesk/internal/critique"
	"newsdesk/internal/logger"
	"newsdesk/internal/newsday"
	"newsdesk/internal/render"

	"github.com/spf13/cobra"
)

// NewCritiqueCmd creates the critique command
func NewCritiqueCmd() *cobra.Command {
	var (
		date   string
		source string
	)

	cmd := &cobra.Command{
		Use:   "critique [article-id...]",
		Short: "Write editorial critiques of single broadcast items",
		Long: `Ask the model for an editorial critique (in Korean) of individual articles:
how the item frames its headline, which agenda items it carries and what it
may leave out.

Pass article ids, or --date to critique every article of a news-day. An
article is critiqued once; already critiqued articles are skipped.

Examples:
  newsdesk critique 5f0c7c1e-...
  newsdesk critique --date 2025-03-07 --source mbc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && date == "" {
				return fmt.Errorf("pass article ids or --date")
			}
			return runCritique(cmd.Context(), args, date, core.Source(source))
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Critique every article of this news-day, YYYY-MM-DD")
	cmd.Flags().StringVar(&source, "source", "", "With --date, only this broadcaster")

	return cmd
}

func runCritique(ctx context.Context, ids []string, date string, source core.Source) error {
	log := logger.Get()

	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	var articles []core.Article
	for _, id := range ids {
		a, err := b.db.Articles().Get(ctx, id)
		if err != nil {
			return err
		}
		articles = append(articles, *a)
	}
	if date != "" {
		day, err := resolveDate(date)
		if err != nil {
			return err
		}
		byDate, err := b.db.Articles().ListByDate(ctx, newsday.Format(day))
		if err != nil {
			return err
		}
		for _, a := range byDate {
			if source == "" || a.Source == source {
				articles = append(articles, a)
			}
		}
	}
	if len(articles) == 0 {
		return fmt.Errorf("no articles to critique")
	}

	client, err := newLLMClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	critic := critique.NewCritic(client, b.db.Critiques(), client.GetModelName())

	var written, skipped, failed int
	for i := range articles {
		a := &articles[i]
		c, wasSkipped, err := critic.Critique(ctx, a)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Failed to critique article", err, "article_id", a.ID, "source", a.Source)
			failed++
			continue
		}
		if wasSkipped {
			skipped++
		} else {
			written++
		}
		if len(ids) > 0 {
			fmt.Print(render.CritiqueMarkdown(a, c))
		}
	}

	log.Info("Critiques finished", "written", written, "skipped", skipped, "failed", failed)
	fmt.Printf("critiques: %d written, %d already present, %d failed\n", written, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d critiques failed", failed, len(articles))
	}
	return nil
}
