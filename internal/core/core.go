package core

import (
	"sort"
	"time"
)

// Source identifies a broadcaster.
type Source string

// Known broadcasters. The adapter registry may add more.
const (
	SourceKBS Source = "kbs"
	SourceMBC Source = "mbc"
	SourceSBS Source = "sbs"
)

// UnknownTitle is stored when a program page gives no usable title.
const UnknownTitle = "N/A"

// Article represents one broadcast news item for a news-day.
type Article struct {
	ID             string    `json:"id"`              // Store primary key
	Source         Source    `json:"source"`          // Originating broadcaster
	CollectionDate string    `json:"collection_date"` // News-day, YYYY-MM-DD
	SequenceOrder  int       `json:"sequence_order"`  // 1-based position in the program
	Title          string    `json:"title"`           // Display title
	SourceURL      string    `json:"source_url"`      // Absolute detail page URL
	ScriptText     string    `json:"script_text"`     // Normalized transcript
	Identity       string    `json:"identity"`        // Deterministic identity hash
	ScrapedAt      time.Time `json:"scraped_at"`      // First insert
	UpdatedAt      time.Time `json:"updated_at"`      // Last upsert
}

// RawItem is what a source adapter reads off a program page.
type RawItem struct {
	Title     string `json:"title"`
	DetailURL string `json:"detail_url"`
}

// VectorRecord is one entry of a vector index collection.
type VectorRecord struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding,omitempty"`
	Document  string         `json:"document"`
	Metadata  RecordMetadata `json:"metadata"`
}

// RecordMetadata is stored next to each vector.
type RecordMetadata struct {
	Source Source `json:"source"`
	Date   string `json:"date"`
	Order  int    `json:"order"`
	Title  string `json:"title"`
}

// Cluster is a non-empty group of records from one collection.
type Cluster struct {
	Items []VectorRecord `json:"items"`
}

// Size returns the number of items in the cluster.
func (c Cluster) Size() int { return len(c.Items) }

// TopicItem is the part of a clustered record kept with a labeled topic.
type TopicItem struct {
	ID     string `json:"id"`
	Source Source `json:"source"`
	Order  int    `json:"order"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// LabeledTopic is a cluster with a short label and per-source counts.
type LabeledTopic struct {
	Label              string         `json:"topic_label"`
	TotalItems         int            `json:"total_items"`
	SourceContribution map[Source]int `json:"source_contribution"`
	Items              []TopicItem    `json:"items"`
}

// Sources returns the contributing sources in ascending order.
func (t LabeledTopic) Sources() []Source {
	out := make([]Source, 0, len(t.SourceContribution))
	for s := range t.SourceContribution {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SourceFocus describes what one broadcaster emphasized.
type SourceFocus struct {
	Source string `json:"source"`
	Focus  string `json:"focus"`
}

// UniqueTopic is a topic only one broadcaster covered.
type UniqueTopic struct {
	Source string `json:"source"`
	Topic  string `json:"topic"`
}

// Omission is a topic some broadcasters covered and others did not.
type Omission struct {
	Topic       string   `json:"topic"`
	CoveredBy   []string `json:"covered_by"`
	MissingFrom []string `json:"missing_from"`
}

// Comparison is the structured day-level comparison returned by the model.
type Comparison struct {
	PrimaryNarrative   string        `json:"primary_narrative"`
	SourceFocus        []SourceFocus `json:"source_focus"`
	UniqueTopics       []UniqueTopic `json:"unique_topics"`
	PotentialOmissions []Omission    `json:"potential_omissions"`
	EditorialCritique  string        `json:"editorial_critique"`
	ExclusivesClaimed  []string      `json:"exclusives_claimed"`
}

// HeadlineAnalysis holds the headline part of an analysis.
type HeadlineAnalysis struct {
	PrimaryNarrative string        `json:"primary_narrative"`
	SourceFocus      []SourceFocus `json:"source_focus"`
}

// NotableElements lists claimed exclusives and likely omissions.
type NotableElements struct {
	ExclusivesClaimed  []string   `json:"exclusives_claimed"`
	PotentialOmissions []Omission `json:"potential_omissions"`
}

// AnalysisResult is the persisted outcome of one analysis run for a collection.
type AnalysisResult struct {
	ID                string           `json:"id"`
	CollectionDate    string           `json:"collection_date"`
	HeadlineAnalysis  HeadlineAnalysis `json:"headline_analysis"`
	EditorialCritique string           `json:"editorial_critique"`
	NotableElements   NotableElements  `json:"notable_elements"`
	UniqueTopics      []UniqueTopic    `json:"unique_topics"`
	Topics            []LabeledTopic   `json:"topics"`
	Model             string           `json:"model"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewAnalysisResult folds a comparison and its topics into a result.
func NewAnalysisResult(date string, cmp Comparison, topics []LabeledTopic) AnalysisResult {
	return AnalysisResult{
		CollectionDate: date,
		HeadlineAnalysis: HeadlineAnalysis{
			PrimaryNarrative: cmp.PrimaryNarrative,
			SourceFocus:      cmp.SourceFocus,
		},
		EditorialCritique: cmp.EditorialCritique,
		NotableElements: NotableElements{
			ExclusivesClaimed:  cmp.ExclusivesClaimed,
			PotentialOmissions: cmp.PotentialOmissions,
		},
		UniqueTopics: cmp.UniqueTopics,
		Topics:       topics,
	}
}

// AgendaItem is one news block in a per-article critique.
type AgendaItem struct {
	Topic     string `json:"topic"`
	Placement string `json:"placement"`
	Comment   string `json:"comment"`
}

// ArticleCritique is the editorial critique of a single article.
type ArticleCritique struct {
	ID                string          `json:"id"`
	ArticleID         string          `json:"article_id"`
	HeadlineAnalysis  string          `json:"headline_analysis"`
	KeyAgendaItems    []AgendaItem    `json:"key_agenda_items"`
	EditorialCritique string          `json:"editorial_critique"`
	NotableElements   NotableElements `json:"notable_elements"`
	Model             string          `json:"model"`
	CreatedAt         time.Time       `json:"created_at"`
}
