package pipeline

import (
	"fmt"

	"newsdesk/internal/clustering"
	"newsdesk/internal/comparison"
	"newsdesk/internal/labeling"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
	"newsdesk/internal/persistence"
	"newsdesk/internal/vectorstore"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	db         persistence.Database
	index      vectorstore.Index
	generator  llm.TextGenerator
	model      string
	eps        float64
	minSamples int
	labeling   labeling.Options

	clusterer CollectionClusterer
	labeler   TopicLabeler
	analyzer  ComparativeAnalyzer
}

// NewBuilder creates a new pipeline builder with default settings
func NewBuilder() *Builder {
	return &Builder{
		eps:        clustering.DefaultEps,
		minSamples: clustering.DefaultMinSamples,
	}
}

// WithDatabase sets the relational store
func (b *Builder) WithDatabase(db persistence.Database) *Builder {
	b.db = db
	return b
}

// WithIndex sets the vector index
func (b *Builder) WithIndex(index vectorstore.Index) *Builder {
	b.index = index
	return b
}

// WithGenerator sets the text generator used for labeling and comparison
func (b *Builder) WithGenerator(generator llm.TextGenerator, model string) *Builder {
	b.generator = generator
	b.model = model
	return b
}

// WithClustering sets the DBSCAN parameters
func (b *Builder) WithClustering(eps float64, minSamples int) *Builder {
	b.eps = eps
	b.minSamples = minSamples
	return b
}

// WithLabeling sets labeler concurrency and timeout
func (b *Builder) WithLabeling(opts labeling.Options) *Builder {
	b.labeling = opts
	return b
}

// WithClusterer replaces the default DBSCAN clusterer
func (b *Builder) WithClusterer(c CollectionClusterer) *Builder {
	b.clusterer = c
	return b
}

// WithLabeler replaces the default labeler
func (b *Builder) WithLabeler(l TopicLabeler) *Builder {
	b.labeler = l
	return b
}

// WithAnalyzer replaces the default comparative analyzer
func (b *Builder) WithAnalyzer(a ComparativeAnalyzer) *Builder {
	b.analyzer = a
	return b
}

// Build constructs a fully configured Pipeline
func (b *Builder) Build() (*Pipeline, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if b.index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if b.generator == nil && (b.labeler == nil || b.analyzer == nil) {
		return nil, fmt.Errorf("text generator is required")
	}

	clusterer := b.clusterer
	if clusterer == nil {
		clusterer = clustering.NewDBSCANClusterer().WithEps(b.eps).WithMinSamples(b.minSamples)
	}
	labeler := b.labeler
	if labeler == nil {
		labeler = labeling.NewLabeler(b.generator, b.labeling)
	}
	analyzer := b.analyzer
	if analyzer == nil {
		analyzer = comparison.NewAnalyzer(b.generator)
	}

	return &Pipeline{
		db:        b.db,
		index:     b.index,
		clusterer: clusterer,
		labeler:   labeler,
		analyzer:  analyzer,
		model:     b.model,
		log:       logger.Get().With("component", "pipeline"),
	}, nil
}
