package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"newsdesk/internal/core"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var articleColumns = []string{
	"id", "source", "collection_date", "sequence_order", "title",
	"source_url", "script_text", "identity", "scraped_at", "updated_at",
}

// articleRepo implements ArticleRepository
type articleRepo struct {
	conn
}

func (r *articleRepo) Upsert(ctx context.Context, article *core.Article) (bool, error) {
	var created bool
	err := r.atomic(ctx, func(c conn) error {
		var err error
		created, err = upsertArticle(ctx, c, article)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert article %s/%s/%d: %w",
			article.Source, article.CollectionDate, article.SequenceOrder, err)
	}
	return created, nil
}

func upsertArticle(ctx context.Context, c conn, article *core.Article) (bool, error) {
	b := c.dialect.builder()
	now := time.Now().UTC()

	query, args, err := b.Select("id", "scraped_at").From("articles").Where(sq.Eq{
		"source":          string(article.Source),
		"collection_date": article.CollectionDate,
		"sequence_order":  article.SequenceOrder,
	}).ToSql()
	if err != nil {
		return false, err
	}

	var existingID string
	var scrapedAt time.Time
	err = c.query().QueryRowContext(ctx, query, args...).Scan(&existingID, &scrapedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if article.ID == "" {
			article.ID = uuid.NewString()
		}
		article.ScrapedAt = now
		article.UpdatedAt = now

		query, args, err = b.Insert("articles").Columns(articleColumns...).Values(
			article.ID, string(article.Source), article.CollectionDate, article.SequenceOrder,
			article.Title, article.SourceURL, article.ScriptText, article.Identity,
			article.ScrapedAt, article.UpdatedAt,
		).ToSql()
		if err != nil {
			return false, err
		}
		if _, err := c.query().ExecContext(ctx, query, args...); err != nil {
			return false, err
		}
		return true, nil

	case err != nil:
		return false, err
	}

	article.ID = existingID
	article.ScrapedAt = scrapedAt
	article.UpdatedAt = now

	query, args, err = b.Update("articles").SetMap(map[string]interface{}{
		"title":       article.Title,
		"source_url":  article.SourceURL,
		"script_text": article.ScriptText,
		"identity":    article.Identity,
		"updated_at":  article.UpdatedAt,
	}).Where(sq.Eq{"id": existingID}).ToSql()
	if err != nil {
		return false, err
	}
	if _, err := c.query().ExecContext(ctx, query, args...); err != nil {
		return false, err
	}
	return false, nil
}

func (r *articleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	query, args, err := r.dialect.builder().Select(articleColumns...).From("articles").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	article, err := scanArticle(r.query().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: article %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

func (r *articleRepo) List(ctx context.Context, filter ArticleFilter) ([]core.Article, error) {
	query, args, err := buildArticleList(r.dialect.builder(), filter).ToSql()
	if err != nil {
		return nil, err
	}
	return r.list(ctx, query, args)
}

func (r *articleRepo) ListByDate(ctx context.Context, collectionDate string) ([]core.Article, error) {
	return r.List(ctx, ArticleFilter{CollectionDate: collectionDate})
}

// buildArticleList orders newest news-day first, then by source and
// broadcast order.
func buildArticleList(b sq.StatementBuilderType, filter ArticleFilter) sq.SelectBuilder {
	q := b.Select(articleColumns...).From("articles")
	if filter.CollectionDate != "" {
		q = q.Where(sq.Eq{"collection_date": filter.CollectionDate})
	}
	if filter.Source != "" {
		q = q.Where(sq.Eq{"source": string(filter.Source)})
	}
	q = q.OrderBy("collection_date DESC", "source ASC", "sequence_order ASC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

func (r *articleRepo) list(ctx context.Context, query string, args []interface{}) ([]core.Article, error) {
	rows, err := r.query().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var a core.Article
	var source string
	err := row.Scan(
		&a.ID, &source, &a.CollectionDate, &a.SequenceOrder, &a.Title,
		&a.SourceURL, &a.ScriptText, &a.Identity, &a.ScrapedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Source = core.Source(source)
	return &a, nil
}
