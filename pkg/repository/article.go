package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/newsclass/pkg/domain"
)

// ArticleRepository stores classified articles, one per source url
type ArticleRepository struct {
	db *sqlx.DB
}

// articleSQL represents an article for SQL operations
type articleSQL struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	PubDate   time.Time `db:"pub_date"`
	SourceURL string    `db:"source_url"`
	Category  string    `db:"category"`
	FeedURL   string    `db:"feed_url"`
	CreatedAt time.Time `db:"created_at"`
}

var articleColumns = []string{"id", "title", "content", "pub_date", "source_url", "category", "feed_url", "created_at"}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// Reset deletes all articles and restarts id sequence, returns number of deleted articles
func (r *ArticleRepository) Reset(ctx context.Context) (int64, error) {
	var deleted int64
	err := retryOnLock(ctx, func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		res, err := tx.ExecContext(ctx, "DELETE FROM articles")
		if err != nil {
			return fmt.Errorf("delete articles: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("get deleted count: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = 'articles'"); err != nil {
			return fmt.Errorf("reset id sequence: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("reset articles: %w", err)
	}
	return deleted, nil
}

// ExistsByKey checks if an article with the given source url is stored
func (r *ArticleRepository) ExistsByKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM articles WHERE source_url = ?)", key)
	if err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	return exists, nil
}

// Insert adds the article unless one with the same source url is already stored.
// Check and insert are a single statement, so concurrent inserts of the same key
// can't both succeed. Returns true and sets article ID if the row was added.
func (r *ArticleRepository) Insert(ctx context.Context, article *domain.Article) (bool, error) {
	rec := articleSQL{
		Title:     article.Title,
		Content:   article.Content,
		PubDate:   article.PublishedAt.UTC(),
		SourceURL: article.SourceURL,
		Category:  string(article.Category),
		FeedURL:   article.FeedURL,
	}

	query := `
		INSERT INTO articles (title, content, pub_date, source_url, category, feed_url)
		VALUES (:title, :content, :pub_date, :source_url, :category, :feed_url)
		ON CONFLICT(source_url) DO NOTHING
	`

	var inserted bool
	err := retryOnLock(ctx, func() error {
		res, err := r.db.NamedExecContext(ctx, query, rec)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get affected rows: %w", err)
		}
		if affected == 0 {
			inserted = false
			return nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("get insert id: %w", err)
		}
		article.ID = id
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	return inserted, nil
}

// All returns a snapshot of all stored articles ordered by id
func (r *ArticleRepository) All(ctx context.Context) ([]domain.Article, error) {
	query, args, err := sq.Select(articleColumns...).From("articles").OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.selectArticles(ctx, query, args...)
}

// Count returns the number of stored articles
func (r *ArticleRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM articles"); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

// CountByCategory returns number of articles per category, categories without articles are omitted
func (r *ArticleRepository) CountByCategory(ctx context.Context) (map[domain.Category]int, error) {
	query, args, err := sq.Select("category", "COUNT(*) AS cnt").From("articles").GroupBy("category").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"cnt"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}

	res := make(map[domain.Category]int, len(rows))
	for _, row := range rows {
		cat, err := domain.ParseCategory(row.Category)
		if err != nil {
			return nil, fmt.Errorf("count by category: %w", err)
		}
		res[cat] = row.Count
	}
	return res, nil
}

func (r *ArticleRepository) selectArticles(ctx context.Context, query string, args ...interface{}) ([]domain.Article, error) {
	var rows []articleSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}

	res := make([]domain.Article, 0, len(rows))
	for i := range rows {
		article, err := r.toDomain(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("convert article %d: %w", rows[i].ID, err)
		}
		res = append(res, article)
	}
	return res, nil
}

// toDomain converts articleSQL to domain.Article, unknown category names are rejected
func (r *ArticleRepository) toDomain(rec *articleSQL) (domain.Article, error) {
	cat, err := domain.ParseCategory(rec.Category)
	if err != nil {
		return domain.Article{}, err
	}
	return domain.Article{
		ID:          rec.ID,
		Title:       rec.Title,
		Content:     rec.Content,
		PublishedAt: rec.PubDate.UTC(),
		SourceURL:   rec.SourceURL,
		Category:    cat,
		FeedURL:     rec.FeedURL,
		CreatedAt:   rec.CreatedAt,
	}, nil
}
