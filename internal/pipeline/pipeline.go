package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/identity"
	"newsdesk/internal/labeling"
	"newsdesk/internal/persistence"
	"newsdesk/internal/vectorstore"

	"github.com/google/uuid"
)

// State is a step of an analysis run.
type State string

const (
	StatePending                State = "pending"
	StateClustering             State = "clustering"
	StateLabeling               State = "labeling"
	StateComparativeAnalysis    State = "comparative_analysis"
	StateSaved                  State = "saved"
	StateSkippedAlreadyAnalyzed State = "skipped_already_analyzed"
	StateFailed                 State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSaved || s == StateSkippedAlreadyAnalyzed || s == StateFailed
}

// RunReport describes one analysis run.
type RunReport struct {
	RunID          string                       `json:"run_id"`
	CollectionDate string                       `json:"collection_date"`
	Collection     string                       `json:"collection"`
	State          State                        `json:"state"`
	FailedStage    core.Stage                   `json:"failed_stage,omitempty"`
	Err            error                        `json:"-"`
	Error          string                       `json:"error,omitempty"`
	Clusters       int                          `json:"clusters"`
	Topics         []core.LabeledTopic          `json:"topics,omitempty"`
	LabelFailures  []labeling.LabelFailure      `json:"label_failures,omitempty"`
	Durations      map[core.Stage]time.Duration `json:"durations"`
	Result         *core.AnalysisResult         `json:"result,omitempty"`
	StartedAt      time.Time                    `json:"started_at"`
	FinishedAt     time.Time                    `json:"finished_at"`
}

// Pipeline sequences clustering, labeling and comparison for one news-day
// and persists the result once.
type Pipeline struct {
	db        persistence.Database
	index     vectorstore.Index
	clusterer CollectionClusterer
	labeler   TopicLabeler
	analyzer  ComparativeAnalyzer
	model     string
	log       *slog.Logger
}

// Run analyzes the collection for collectionDate. The returned error is nil
// for a saved or skipped run and carries a *core.StageError for a failed one.
func (p *Pipeline) Run(ctx context.Context, collectionDate string) (*RunReport, error) {
	report := &RunReport{
		RunID:          uuid.NewString(),
		CollectionDate: collectionDate,
		Collection:     identity.CollectionName(collectionDate),
		State:          StatePending,
		Durations:      make(map[core.Stage]time.Duration),
		StartedAt:      time.Now().UTC(),
	}
	log := p.log.With("run_id", report.RunID, "date", collectionDate)
	log.Info("Analysis run started", "collection", report.Collection)

	exists, err := p.db.Analyses().Exists(ctx, collectionDate)
	if err != nil {
		return p.fail(log, report, core.StageClustering, fmt.Errorf("failed to check existing analysis: %w", err))
	}
	if exists {
		return p.skip(log, report)
	}

	// Clustering
	if err := p.enter(ctx, log, report, StateClustering); err != nil {
		return p.fail(log, report, core.StageClustering, err)
	}
	start := time.Now()
	collection, err := p.index.GetOrCreateCollection(ctx, report.Collection)
	if err != nil {
		return p.fail(log, report, core.StageClustering, err)
	}
	clusters, err := p.clusterer.Cluster(ctx, collection)
	report.Durations[core.StageClustering] = time.Since(start)
	if err != nil {
		return p.fail(log, report, core.StageClustering, err)
	}
	if len(clusters) == 0 {
		return p.fail(log, report, core.StageClustering, fmt.Errorf("%w: no clusters formed", core.ErrDataUnavailable))
	}
	report.Clusters = len(clusters)

	// Labeling
	if err := p.enter(ctx, log, report, StateLabeling); err != nil {
		return p.fail(log, report, core.StageLabeling, err)
	}
	start = time.Now()
	topics, failures, err := p.labeler.Label(ctx, clusters)
	report.Durations[core.StageLabeling] = time.Since(start)
	report.LabelFailures = failures
	if err != nil {
		return p.fail(log, report, core.StageLabeling, err)
	}
	if len(topics) == 0 {
		return p.fail(log, report, core.StageLabeling, fmt.Errorf("no cluster could be labeled (%d failures)", len(failures)))
	}
	report.Topics = topics

	// Comparative analysis
	if err := p.enter(ctx, log, report, StateComparativeAnalysis); err != nil {
		return p.fail(log, report, core.StageComparativeAnalysis, err)
	}
	start = time.Now()
	cmp, err := p.analyzer.Compare(ctx, topics, collectionDate)
	report.Durations[core.StageComparativeAnalysis] = time.Since(start)
	if err != nil {
		return p.fail(log, report, core.StageComparativeAnalysis, err)
	}

	// Save
	if err := ctx.Err(); err != nil {
		return p.fail(log, report, core.StageSave, err)
	}
	start = time.Now()
	result := core.NewAnalysisResult(collectionDate, cmp, topics)
	result.Model = p.model
	err = persistence.InTransaction(ctx, p.db, func(tx persistence.Transaction) error {
		return tx.Analyses().Create(ctx, &result)
	})
	report.Durations[core.StageSave] = time.Since(start)
	if errors.Is(err, core.ErrAlreadyAnalyzed) {
		return p.skip(log, report)
	}
	if err != nil {
		return p.fail(log, report, core.StageSave, err)
	}

	report.Result = &result
	p.transition(log, report, StateSaved)
	report.FinishedAt = time.Now().UTC()
	log.Info("Analysis run saved",
		"analysis_id", result.ID,
		"clusters", report.Clusters,
		"topics", len(topics),
		"label_failures", len(failures))
	return report, nil
}

// enter checks for cancellation and moves the run to the next state.
func (p *Pipeline) enter(ctx context.Context, log *slog.Logger, report *RunReport, next State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.transition(log, report, next)
	return nil
}

func (p *Pipeline) transition(log *slog.Logger, report *RunReport, next State) {
	log.Debug("Run state changed", "from", report.State, "to", next)
	report.State = next
}

func (p *Pipeline) skip(log *slog.Logger, report *RunReport) (*RunReport, error) {
	p.transition(log, report, StateSkippedAlreadyAnalyzed)
	report.FinishedAt = time.Now().UTC()
	log.Info("Collection already analyzed, skipping")
	return report, nil
}

func (p *Pipeline) fail(log *slog.Logger, report *RunReport, stage core.Stage, err error) (*RunReport, error) {
	stageErr := &core.StageError{Stage: stage, Err: err}
	p.transition(log, report, StateFailed)
	report.FailedStage = stage
	report.Err = stageErr
	report.Error = stageErr.Error()
	report.FinishedAt = time.Now().UTC()
	log.Error("Analysis run failed", "stage", stage, "error", err)
	return report, stageErr
}
