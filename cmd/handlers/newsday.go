package handlers

import (
	"fmt"
	"time"

	"newsdesk/internal/identity"
	"newsdesk/internal/newsday"

	"github.com/spf13/cobra"
)

// NewNewsdayCmd creates the newsday command
func NewNewsdayCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "newsday",
		Short: "Print the news-day a run would collect",
		Long: fmt.Sprintf(`Print the news-day for now (or --at) and its vector collection name.

The current calendar date becomes the news-day at %02d:00 local time; before
then the previous day's programs are the latest complete ones.

Examples:
  newsdesk newsday
  newsdesk newsday --at 2025-03-07T21:30:00+09:00`, newsday.CutoffHour),
		RunE: func(cmd *cobra.Command, args []string) error {
			var clock newsday.Clock = newsday.SystemClock{}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q (want RFC3339): %w", at, err)
				}
				clock = newsday.FixedClock(t)
			}

			day := newsday.Today(clock)
			date := newsday.Format(day)
			fmt.Printf("%s\t%s\t%s\n", date, newsday.Compact(day), identity.CollectionName(date))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Instant to evaluate, RFC3339 (default: now)")

	return cmd
}
