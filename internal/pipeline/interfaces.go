package pipeline

import (
	"context"

	"newsdesk/internal/core"
	"newsdesk/internal/labeling"
	"newsdesk/internal/vectorstore"
)

// CollectionClusterer groups the records of one vector collection
type CollectionClusterer interface {
	// Cluster returns non-empty clusters, or core.ErrDataUnavailable when
	// the collection holds no embeddings
	Cluster(ctx context.Context, collection vectorstore.Collection) ([]core.Cluster, error)
}

// TopicLabeler names clusters
type TopicLabeler interface {
	// Label returns topics in cluster order and the clusters it skipped.
	// An error is returned only when ctx is done.
	Label(ctx context.Context, clusters []core.Cluster) ([]core.LabeledTopic, []labeling.LabelFailure, error)
}

// ComparativeAnalyzer compares broadcaster coverage for one day
type ComparativeAnalyzer interface {
	Compare(ctx context.Context, topics []core.LabeledTopic, analysisDate string) (core.Comparison, error)
}
