package handlers

import (
	"context"
	"fmt"
	"os"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/labeling"
	"newsdesk/internal/newsday"
	"newsdesk/internal/pipeline"
	"newsdesk/internal/render"

	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	var (
		date      string
		outputDir string
		report    bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Cluster, label and compare a news-day's coverage",
		Long: `Run the analysis pipeline for one news-day:

  1. Cluster the day's embeddings (DBSCAN, cosine distance)
  2. Label every cluster with a short topic title
  3. Ask the model to compare the broadcasters' agendas
  4. Store the result

A day is analyzed once. Running analyze again for an analyzed day is a no-op
and makes no model calls.

Examples:
  newsdesk analyze
  newsdesk analyze --date 2025-03-07 --output reports
  newsdesk analyze --report   # print the run report as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := resolveDate(date)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), day, outputDir, report)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "News-day to analyze, YYYY-MM-DD (default: current news-day)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Also write a markdown report to this directory")
	cmd.Flags().BoolVar(&report, "report", false, "Print the run report as JSON instead of the analysis")

	return cmd
}

func runAnalyze(ctx context.Context, day time.Time, outputDir string, printReport bool) error {
	cfg := config.Get()

	client, err := newLLMClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := pipeline.NewBuilder().
		WithDatabase(b.db).
		WithIndex(b.index).
		WithGenerator(client, client.GetModelName()).
		WithClustering(cfg.Clustering.Eps, cfg.Clustering.MinSamples).
		WithLabeling(labeling.Options{
			Concurrency: cfg.Labeling.Concurrency,
			Timeout:     config.Duration(cfg.Labeling.Timeout, labeling.DefaultTimeout),
		}).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	collectionDate := newsday.Format(day)
	runReport, runErr := p.Run(ctx, collectionDate)

	if printReport {
		if err := render.Encode(os.Stdout, render.FormatJSON, runReport); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return fmt.Errorf("analysis of %s failed at %s: %w", collectionDate, runReport.FailedStage, runErr)
	}

	if runReport.State == pipeline.StateSkippedAlreadyAnalyzed {
		fmt.Printf("%s is already analyzed. Use 'newsdesk show --date %s' to read it.\n", collectionDate, collectionDate)
		return nil
	}

	fmt.Print(render.Terminal(runReport.Result))
	if len(runReport.LabelFailures) > 0 {
		fmt.Printf("\n%d of %d clusters could not be labeled\n", len(runReport.LabelFailures), runReport.Clusters)
	}

	if outputDir != "" {
		path, err := render.WriteMarkdown(runReport.Result, outputDir)
		if err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", path)
	}
	return nil
}
