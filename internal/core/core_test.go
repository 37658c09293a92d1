package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestLabeledTopicSources(t *testing.T) {
	topic := LabeledTopic{
		Label:      "Heavy rain in the south",
		TotalItems: 3,
		SourceContribution: map[Source]int{
			SourceSBS: 1,
			SourceKBS: 2,
		},
	}

	sources := topic.Sources()
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0] != SourceKBS || sources[1] != SourceSBS {
		t.Errorf("Expected [kbs sbs], got %v", sources)
	}
}

func TestNewAnalysisResult(t *testing.T) {
	cmp := Comparison{
		PrimaryNarrative:   "Election aftermath",
		SourceFocus:        []SourceFocus{{Source: "kbs", Focus: "policy"}},
		UniqueTopics:       []UniqueTopic{{Source: "mbc", Topic: "local fire"}},
		PotentialOmissions: []Omission{{Topic: "strike", CoveredBy: []string{"sbs"}, MissingFrom: []string{"kbs"}}},
		EditorialCritique:  "Measured coverage",
		ExclusivesClaimed:  []string{"leaked memo"},
	}
	topics := []LabeledTopic{{Label: "Election aftermath", TotalItems: 1}}

	result := NewAnalysisResult("2024-06-01", cmp, topics)

	if result.CollectionDate != "2024-06-01" {
		t.Errorf("Expected collection date 2024-06-01, got %s", result.CollectionDate)
	}
	if result.HeadlineAnalysis.PrimaryNarrative != cmp.PrimaryNarrative {
		t.Errorf("Primary narrative not carried over: %q", result.HeadlineAnalysis.PrimaryNarrative)
	}
	if len(result.NotableElements.PotentialOmissions) != 1 {
		t.Errorf("Expected 1 omission, got %d", len(result.NotableElements.PotentialOmissions))
	}
	if len(result.NotableElements.ExclusivesClaimed) != 1 {
		t.Errorf("Expected 1 exclusive, got %d", len(result.NotableElements.ExclusivesClaimed))
	}
	if len(result.Topics) != 1 {
		t.Errorf("Expected 1 topic, got %d", len(result.Topics))
	}
}

func TestStageError(t *testing.T) {
	err := fmt.Errorf("run: %w", &StageError{Stage: StageClustering, Err: ErrDataUnavailable})

	if !errors.Is(err, ErrDataUnavailable) {
		t.Error("Expected StageError to unwrap to ErrDataUnavailable")
	}

	stage, ok := FailedStage(err)
	if !ok {
		t.Fatal("Expected a failed stage")
	}
	if stage != StageClustering {
		t.Errorf("Expected stage clustering, got %s", stage)
	}

	if _, ok := FailedStage(errors.New("plain")); ok {
		t.Error("Plain errors should not carry a stage")
	}
}
