package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newsclass/pkg/domain"
)

func setupTestDB(t *testing.T) *Repositories {
	t.Helper()

	cfg := Config{
		DSN:          "file:" + filepath.Join(t.TempDir(), "test.db") + "?mode=rwc&_txlock=immediate",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	repos, err := NewRepositories(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	return repos
}

func testArticle(url string, cat domain.Category) *domain.Article {
	return &domain.Article{
		Title:       "title " + url,
		Content:     "content " + url,
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SourceURL:   url,
		Category:    cat,
		FeedURL:     "https://example.com/feed",
	}
}

func TestRepositories_InitSchema(t *testing.T) {
	repos := setupTestDB(t)

	var count int
	err := repos.DB.Get(&count, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = 'articles'`)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repos.Ping(context.Background()))
}

func TestRepositories_SchemaIsReentrant(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "reopen.db") + "?mode=rwc"
	ctx := context.Background()

	repos, err := NewRepositories(ctx, Config{DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	inserted, err := repos.Article.Insert(ctx, testArticle("https://example.com/a", domain.CategoryPositive))
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, repos.Close())

	// reopening keeps existing data
	repos, err = NewRepositories(ctx, Config{DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)
	defer repos.Close()
	count, err := repos.Article.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestArticleRepository_Insert(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	a := testArticle("https://example.com/a", domain.CategoryPositive)
	inserted, err := repos.Article.Insert(ctx, a)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Positive(t, a.ID)

	all, err := repos.Article.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "title https://example.com/a", got.Title)
	assert.Equal(t, "content https://example.com/a", got.Content)
	assert.Equal(t, "https://example.com/a", got.SourceURL)
	assert.Equal(t, domain.CategoryPositive, got.Category)
	assert.Equal(t, "https://example.com/feed", got.FeedURL)
	assert.True(t, got.PublishedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), "got %v", got.PublishedAt)
	assert.Equal(t, time.UTC, got.PublishedAt.Location())
}

func TestArticleRepository_InsertStoresUTC(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	loc := time.FixedZone("EST", -5*3600)
	a := testArticle("https://example.com/tz", domain.CategoryOther)
	a.PublishedAt = time.Date(2024, 1, 1, 7, 0, 0, 0, loc)
	_, err := repos.Article.Insert(ctx, a)
	require.NoError(t, err)

	all, err := repos.Article.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2024-01-01T12:00:00Z", all[0].PublishedAt.Format(time.RFC3339))
}

func TestArticleRepository_InsertDuplicate(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	first := testArticle("https://example.com/dup", domain.CategoryPositive)
	inserted, err := repos.Article.Insert(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	// same key, different payload, first record wins
	second := testArticle("https://example.com/dup", domain.CategoryUnrest)
	second.Title = "other title"
	inserted, err = repos.Article.Insert(ctx, second)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, second.ID)

	all, err := repos.Article.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "title https://example.com/dup", all[0].Title)
	assert.Equal(t, domain.CategoryPositive, all[0].Category)
}

func TestArticleRepository_InsertEmptyKey(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	inserted, err := repos.Article.Insert(ctx, testArticle("", domain.CategoryOther))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repos.Article.Insert(ctx, testArticle("", domain.CategoryUnrest))
	require.NoError(t, err)
	assert.False(t, inserted, "empty source url is a key like any other")

	exists, err := repos.Article.ExistsByKey(ctx, "")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestArticleRepository_InsertConcurrentSameKey(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	added, failed := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repos.Article.Insert(ctx, testArticle("https://example.com/race", domain.CategoryPositive))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			if ok {
				added++
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failed)
	assert.Equal(t, 1, added)
	count, err := repos.Article.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestArticleRepository_ExistsByKey(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	exists, err := repos.Article.ExistsByKey(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repos.Article.Insert(ctx, testArticle("https://example.com/a", domain.CategoryPositive))
	require.NoError(t, err)

	exists, err = repos.Article.ExistsByKey(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repos.Article.ExistsByKey(ctx, "https://example.com/b")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestArticleRepository_Reset(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		deleted, err := repos.Article.Reset(ctx)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("populated store", func(t *testing.T) {
		for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
			_, err := repos.Article.Insert(ctx, testArticle(u, domain.CategoryOther))
			require.NoError(t, err)
		}

		deleted, err := repos.Article.Reset(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)

		all, err := repos.Article.All(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("ids restart and keys are free again", func(t *testing.T) {
		a := testArticle("https://example.com/1", domain.CategoryPositive)
		inserted, err := repos.Article.Insert(ctx, a)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, int64(1), a.ID)
	})
}

func TestArticleRepository_AllOrderedByID(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	urls := []string{"https://example.com/c", "https://example.com/a", "https://example.com/b"}
	for _, u := range urls {
		_, err := repos.Article.Insert(ctx, testArticle(u, domain.CategoryOther))
		require.NoError(t, err)
	}

	all, err := repos.Article.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, u := range urls {
		assert.Equal(t, u, all[i].SourceURL)
		if i > 0 {
			assert.Greater(t, all[i].ID, all[i-1].ID)
		}
	}
}

func TestArticleRepository_UnknownCategoryRejected(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	_, err := repos.Article.Insert(ctx, testArticle("https://example.com/good", domain.CategoryPositive))
	require.NoError(t, err)
	_, err = repos.DB.ExecContext(ctx, "INSERT INTO articles (title, pub_date, source_url, category) VALUES (?, ?, ?, ?)",
		"bad row", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "https://example.com/bad", "Sports")
	require.NoError(t, err)

	_, err = repos.Article.All(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown category "Sports"`)

	_, err = repos.Article.CountByCategory(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown category "Sports"`)
}

func TestArticleRepository_Counts(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	counts, err := repos.Article.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)

	articles := []*domain.Article{
		testArticle("https://example.com/1", domain.CategoryPositive),
		testArticle("https://example.com/2", domain.CategoryPositive),
		testArticle("https://example.com/3", domain.CategoryUnrest),
		testArticle("https://example.com/4", domain.CategoryOther),
	}
	for _, a := range articles {
		_, err := repos.Article.Insert(ctx, a)
		require.NoError(t, err)
	}

	total, err := repos.Article.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	counts, err = repos.Article.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Category]int{
		domain.CategoryPositive: 2,
		domain.CategoryUnrest:   1,
		domain.CategoryOther:    1,
	}, counts)
}

func TestArticleRepository_CanceledContext(t *testing.T) {
	repos := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repos.Article.Insert(ctx, testArticle("https://example.com/a", domain.CategoryPositive))
	require.Error(t, err)

	_, err = repos.Article.All(ctx)
	require.Error(t, err)
}

func TestIsLockError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "busy", err: errors.New("SQLITE_BUSY: database busy"), want: true},
		{name: "locked", err: errors.New("database is locked (5)"), want: true},
		{name: "table locked", err: errors.New("database table is locked"), want: true},
		{name: "other", err: errors.New("constraint failed"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLockError(tt.err))
		})
	}
}

func TestRetryOnLock(t *testing.T) {
	ctx := context.Background()

	t.Run("retries lock errors", func(t *testing.T) {
		calls := 0
		err := retryOnLock(ctx, func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on other errors", func(t *testing.T) {
		calls := 0
		sentinel := errors.New("constraint failed")
		err := retryOnLock(ctx, func() error {
			calls++
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
		var ce *criticalError
		assert.False(t, errors.As(err, &ce), "critical wrapper is removed")
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := retryOnLock(ctx, func() error {
			calls++
			return errors.New("SQLITE_BUSY")
		})
		require.Error(t, err)
		assert.Equal(t, 5, calls)
	})
}
