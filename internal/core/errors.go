package core

import (
	"errors"
	"fmt"
)

// Error conditions shared by the pipeline stages. Callers match them with errors.Is.
var (
	// ErrExtractionFailure means a single item could not be turned into an article.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrDataUnavailable means a collection has no embeddings to cluster.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrProviderFailure wraps embedding and generation provider errors.
	ErrProviderFailure = errors.New("provider failure")
	// ErrSchemaMismatch means a structured model response did not parse.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrAlreadyAnalyzed is a normal skip outcome, not a failure.
	ErrAlreadyAnalyzed = errors.New("already analyzed")
	// ErrNotFound is returned by stores for missing records.
	ErrNotFound = errors.New("not found")
	// ErrNoTopics means there is nothing to compare.
	ErrNoTopics = errors.New("no labeled topics")
)

// Stage names a phase of an analysis run.
type Stage string

const (
	StageClustering          Stage = "clustering"
	StageLabeling            Stage = "labeling"
	StageComparativeAnalysis Stage = "comparative_analysis"
	StageSave                Stage = "save"
)

// StageError records which stage of a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage carried by err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
