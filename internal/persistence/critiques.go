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

var critiqueColumns = []string{
	"id", "article_id", "headline_analysis", "key_agenda_items",
	"editorial_critique", "notable_elements", "model", "created_at",
}

// critiqueRepo implements CritiqueRepository
type critiqueRepo struct {
	conn
}

func (r *critiqueRepo) Get(ctx context.Context, articleID string) (*core.ArticleCritique, error) {
	query, args, err := r.dialect.builder().Select(critiqueColumns...).From("article_critiques").
		Where(sq.Eq{"article_id": articleID}).ToSql()
	if err != nil {
		return nil, err
	}

	var c core.ArticleCritique
	var agenda, notable []byte
	err = r.query().QueryRowContext(ctx, query, args...).Scan(
		&c.ID, &c.ArticleID, &c.HeadlineAnalysis, &agenda,
		&c.EditorialCritique, &notable, &c.Model, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: critique for article %s", core.ErrNotFound, articleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get critique: %w", err)
	}

	if err := json.Unmarshal(agenda, &c.KeyAgendaItems); err != nil {
		return nil, fmt.Errorf("failed to decode agenda items: %w", err)
	}
	if err := json.Unmarshal(notable, &c.NotableElements); err != nil {
		return nil, fmt.Errorf("failed to decode notable elements: %w", err)
	}
	return &c, nil
}

func (r *critiqueRepo) Create(ctx context.Context, critique *core.ArticleCritique) error {
	if critique.ID == "" {
		critique.ID = uuid.NewString()
	}
	critique.CreatedAt = time.Now().UTC()

	agenda, err := encodeJSON(nonNil(critique.KeyAgendaItems))
	if err != nil {
		return err
	}
	notable, err := encodeJSON(critique.NotableElements)
	if err != nil {
		return err
	}

	query, args, err := r.dialect.builder().Insert("article_critiques").Columns(critiqueColumns...).Values(
		critique.ID, critique.ArticleID, critique.HeadlineAnalysis, agenda,
		critique.EditorialCritique, notable, critique.Model, critique.CreatedAt,
	).ToSql()
	if err != nil {
		return err
	}

	if _, err := r.query().ExecContext(ctx, query, args...); err != nil {
		if r.dialect.IsUniqueViolation != nil && r.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%w: article %s", core.ErrAlreadyAnalyzed, critique.ArticleID)
		}
		return fmt.Errorf("failed to create critique: %w", err)
	}
	return nil
}
