package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"newsdesk/internal/core"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var analysisColumns = []string{
	"id", "collection_date", "headline_analysis", "editorial_critique",
	"notable_elements", "unique_topics", "model", "created_at", "updated_at",
}

// analysisRepo implements AnalysisRepository
type analysisRepo struct {
	conn
}

func (r *analysisRepo) Exists(ctx context.Context, collectionDate string) (bool, error) {
	query, args, err := r.dialect.builder().Select("1").From("analysis_results").
		Where(sq.Eq{"collection_date": collectionDate}).Limit(1).ToSql()
	if err != nil {
		return false, err
	}

	var one int
	err = r.query().QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check analysis for %s: %w", collectionDate, err)
	}
	return true, nil
}

func (r *analysisRepo) Create(ctx context.Context, result *core.AnalysisResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now

	err := r.atomic(ctx, func(c conn) error {
		return insertAnalysis(ctx, c, result)
	})
	if err != nil {
		if r.dialect.IsUniqueViolation != nil && r.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", core.ErrAlreadyAnalyzed, result.CollectionDate)
		}
		return fmt.Errorf("failed to create analysis for %s: %w", result.CollectionDate, err)
	}
	return nil
}

func insertAnalysis(ctx context.Context, c conn, result *core.AnalysisResult) error {
	headline, err := encodeJSON(result.HeadlineAnalysis)
	if err != nil {
		return err
	}
	notable, err := encodeJSON(result.NotableElements)
	if err != nil {
		return err
	}
	unique, err := encodeJSON(nonNil(result.UniqueTopics))
	if err != nil {
		return err
	}

	b := c.dialect.builder()
	query, args, err := b.Insert("analysis_results").Columns(analysisColumns...).Values(
		result.ID, result.CollectionDate, headline, result.EditorialCritique,
		notable, unique, result.Model, result.CreatedAt, result.UpdatedAt,
	).ToSql()
	if err != nil {
		return err
	}
	if _, err := c.query().ExecContext(ctx, query, args...); err != nil {
		return err
	}

	for i, topic := range result.Topics {
		contribution, err := encodeJSON(topic.SourceContribution)
		if err != nil {
			return err
		}
		items, err := encodeJSON(nonNil(topic.Items))
		if err != nil {
			return err
		}

		query, args, err := b.Insert("analysis_topics").
			Columns("analysis_id", "position", "label", "total_items", "source_contribution", "items").
			Values(result.ID, i, topic.Label, topic.TotalItems, contribution, items).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := c.query().ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert topic %d: %w", i, err)
		}
	}
	return nil
}

func (r *analysisRepo) Get(ctx context.Context, collectionDate string) (*core.AnalysisResult, error) {
	query, args, err := r.dialect.builder().Select(analysisColumns...).From("analysis_results").
		Where(sq.Eq{"collection_date": collectionDate}).ToSql()
	if err != nil {
		return nil, err
	}

	result, err := scanAnalysis(r.query().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: analysis for %s", core.ErrNotFound, collectionDate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	if result.Topics, err = r.topics(ctx, result.ID); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *analysisRepo) List(ctx context.Context, opts ListOptions) ([]core.AnalysisResult, error) {
	q := r.dialect.builder().Select(analysisColumns...).From("analysis_results").
		OrderBy("collection_date DESC")
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	var results []core.AnalysisResult
	for rows.Next() {
		result, err := scanAnalysis(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range results {
		if results[i].Topics, err = r.topics(ctx, results[i].ID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (r *analysisRepo) topics(ctx context.Context, analysisID string) ([]core.LabeledTopic, error) {
	query, args, err := r.dialect.builder().
		Select("label", "total_items", "source_contribution", "items").
		From("analysis_topics").
		Where(sq.Eq{"analysis_id": analysisID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}
	defer rows.Close()

	var topics []core.LabeledTopic
	for rows.Next() {
		var t core.LabeledTopic
		var contribution, items []byte
		if err := rows.Scan(&t.Label, &t.TotalItems, &contribution, &items); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		if err := json.Unmarshal(contribution, &t.SourceContribution); err != nil {
			return nil, fmt.Errorf("failed to decode source contribution: %w", err)
		}
		if err := json.Unmarshal(items, &t.Items); err != nil {
			return nil, fmt.Errorf("failed to decode topic items: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func scanAnalysis(row rowScanner) (*core.AnalysisResult, error) {
	var r core.AnalysisResult
	var headline, notable, unique []byte
	err := row.Scan(
		&r.ID, &r.CollectionDate, &headline, &r.EditorialCritique,
		&notable, &unique, &r.Model, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(headline, &r.HeadlineAnalysis); err != nil {
		return nil, fmt.Errorf("failed to decode headline analysis: %w", err)
	}
	if err := json.Unmarshal(notable, &r.NotableElements); err != nil {
		return nil, fmt.Errorf("failed to decode notable elements: %w", err)
	}
	if err := json.Unmarshal(unique, &r.UniqueTopics); err != nil {
		return nil, fmt.Errorf("failed to decode unique topics: %w", err)
	}
	return &r, nil
}

// encodeJSON returns a string so both JSONB and TEXT columns accept it.
func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	return string(data), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
