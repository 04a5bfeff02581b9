package domain

import "time"

// RawArticle represents a single item as it appears in a feed, before classification.
// Missing elements are kept as empty strings.
type RawArticle struct {
	Title       string
	Content     string
	PublishedAt string // feed-native timestamp, not parsed
	SourceURL   string
}

// Article represents a classified article owned by the store
type Article struct {
	ID          int64
	Title       string
	Content     string
	PublishedAt time.Time
	SourceURL   string // dedup key
	Category    Category
	FeedURL     string
	CreatedAt   time.Time
}

// Key returns the dedup key of the article
func (a *Article) Key() string {
	return a.SourceURL
}
