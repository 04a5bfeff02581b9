// Package pipeline runs a single ingestion pass: reset the store, pull every
// configured feed, classify and store new articles, export the store.
//
// Feeds are fetched and articles classified concurrently, bounded by Workers.
// Persistence stays sequential in feed order and document order, so the first
// record with a given source url always wins. Feed and article failures are
// logged and counted, they never stop the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/newsclass/pkg/domain"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher
//go:generate moq -out mocks/parser.go -pkg mocks -skip-ensure -fmt goimports . Parser
//go:generate moq -out mocks/classifier.go -pkg mocks -skip-ensure -fmt goimports . Classifier
//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/extractor.go -pkg mocks -skip-ensure -fmt goimports . Extractor
//go:generate moq -out mocks/exporter.go -pkg mocks -skip-ensure -fmt goimports . Exporter

// Fetcher retrieves raw feed documents
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

// Parser decodes feed documents into raw records
type Parser interface {
	Parse(data []byte) ([]domain.RawArticle, error)
}

// Classifier assigns a category to an article
type Classifier interface {
	Classify(ctx context.Context, title, content string) (domain.Category, error)
}

// Store keeps at most one article per source url
type Store interface {
	Reset(ctx context.Context) (int64, error)
	Insert(ctx context.Context, article *domain.Article) (bool, error)
	All(ctx context.Context) ([]domain.Article, error)
}

// Extractor pulls article text from the source page
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Exporter writes the store snapshot to a report
type Exporter interface {
	Export(ctx context.Context, articles []domain.Article) error
}

// Config holds dependencies and parameters of Pipeline
type Config struct {
	Feeds       []string // feed urls, ingested in this order
	Fetcher     Fetcher
	Parser      Parser
	Classifier  Classifier
	Store       Store
	Exporter    Exporter
	Extractor   Extractor // optional, fills empty content
	Workers     int
	DateLayouts []string
}

// Pipeline runs the ingestion pass
type Pipeline struct {
	feeds       []string
	fetcher     Fetcher
	parser      Parser
	classifier  Classifier
	store       Store
	exporter    Exporter
	extractor   Extractor
	workers     int
	dateLayouts []string

	mu    sync.Mutex
	state State
}

// Stats of a single run
type Stats struct {
	Feeds         int                      // feeds attempted
	FeedErrors    int                      // feeds skipped on fetch or parse failure
	Articles      int                      // records seen in successfully parsed feeds
	Added         int                      // new articles stored
	Duplicates    int                      // records skipped, source url already stored
	ArticleErrors int                      // records skipped on failure
	Errors        map[domain.ErrorKind]int // failures by kind, feed and article level
	Reset         int64                    // articles removed at start
	Duration      time.Duration
}

// DefaultDateLayouts used when Config.DateLayouts is empty
var DefaultDateLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 GMT",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// New makes a pipeline from config
func New(cfg Config) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = DefaultDateLayouts
	}
	return &Pipeline{
		feeds:       cfg.Feeds,
		fetcher:     cfg.Fetcher,
		parser:      cfg.Parser,
		classifier:  cfg.Classifier,
		store:       cfg.Store,
		exporter:    cfg.Exporter,
		extractor:   cfg.Extractor,
		workers:     cfg.Workers,
		dateLayouts: cfg.DateLayouts,
		state:       StateIdle,
	}
}

// State returns the current run state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run resets the store, ingests all feeds and exports the store. Only reset,
// export and context cancellation end the run with an error, feed and article
// failures are logged and counted in Stats.
func (p *Pipeline) Run(ctx context.Context) (stats Stats, err error) {
	st := time.Now()
	stats.Errors = map[domain.ErrorKind]int{}
	defer func() { stats.Duration = time.Since(st) }()

	p.setState(StateResetting)
	if stats.Reset, err = p.store.Reset(ctx); err != nil {
		return stats, fmt.Errorf("reset store: %w", domain.NewError(domain.KindPersistence, "", err))
	}
	lgr.Printf("[INFO] store reset, %d articles removed", stats.Reset)

	if err = p.ingest(ctx, &stats); err != nil {
		return stats, err
	}

	p.setState(StateExporting)
	articles, err := p.store.All(ctx)
	if err != nil {
		return stats, fmt.Errorf("load articles: %w", domain.NewError(domain.KindPersistence, "", err))
	}
	if err = p.exporter.Export(ctx, articles); err != nil {
		return stats, fmt.Errorf("export: %w", err)
	}

	p.setState(StateDone)
	lgr.Printf("[INFO] run completed, feeds: %d (failed %d), articles: %d, added: %d, duplicates: %d, failed: %d",
		stats.Feeds, stats.FeedErrors, stats.Articles, stats.Added, stats.Duplicates, stats.ArticleErrors)
	return stats, nil
}

// fetchResult is a feed document, ready once done is closed
type fetchResult struct {
	data []byte
	err  error
	done chan struct{}
}

// ingest fetches feeds concurrently and processes them in configured order
func (p *Pipeline) ingest(ctx context.Context, stats *Stats) error {
	results := make([]*fetchResult, len(p.feeds))
	for i := range results {
		results[i] = &fetchResult{done: make(chan struct{})}
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, u := range p.feeds {
			res := results[i]
			g.Go(func() error {
				defer close(res.done)
				res.data, res.err = p.fetcher.Fetch(ctx, u)
				return nil
			})
		}
	}()
	defer func() {
		<-launched
		_ = g.Wait()
	}()

	for i, u := range p.feeds {
		select {
		case <-results[i].done:
		case <-ctx.Done():
			return ctx.Err()
		}
		p.setState(StateIngestingFeed)
		stats.Feeds++
		lgr.Printf("[INFO] ingesting feed %d/%d: %s", i+1, len(p.feeds), u)

		if err := results[i].err; err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.feedFailed(stats, u, ensureKind(err, domain.KindTransport, u))
			continue
		}
		records, err := p.parser.Parse(results[i].data)
		results[i].data = nil
		if err != nil {
			p.feedFailed(stats, u, ensureKind(err, domain.KindMalformedFeed, u))
			continue
		}

		if err := p.processFeed(ctx, u, records, stats); err != nil {
			return err
		}
	}
	return nil
}

// classified is a record with its classification outcome
type classified struct {
	record   domain.RawArticle
	category domain.Category
	err      error
}

// processFeed classifies records concurrently and stores them sequentially in document order
func (p *Pipeline) processFeed(ctx context.Context, feedURL string, records []domain.RawArticle, stats *Stats) error {
	items := make([]classified, len(records))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range records {
		items[i].record = records[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				items[i].err = ctx.Err()
				return nil
			}
			p.fillContent(ctx, &items[i].record)
			items[i].category, items[i].err = p.classifier.Classify(ctx, items[i].record.Title, items[i].record.Content)
			return nil
		})
	}
	_ = g.Wait()

	added := 0
	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.setState(StateProcessingArticle)
		stats.Articles++
		ok, err := p.storeArticle(ctx, feedURL, &items[i])
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			stats.ArticleErrors++
			stats.Errors[domain.KindOf(err)]++
			lgr.Printf("[WARN] failed to process article %q from %s: %v", items[i].record.Title, feedURL, err)
		case ok:
			stats.Added++
			added++
		default:
			stats.Duplicates++
		}
	}

	lgr.Printf("[INFO] feed %s done, %d records, %d added", feedURL, len(items), added)
	return nil
}

// storeArticle persists a classified record, returns false for a duplicate
func (p *Pipeline) storeArticle(ctx context.Context, feedURL string, item *classified) (bool, error) {
	rec := item.record
	if item.err != nil {
		return false, ensureKind(item.err, domain.KindClassification, rec.Title)
	}
	lgr.Printf("[INFO] considered %q, category: %s", rec.Title, item.category.Name())

	pubDate, err := p.parseTime(rec.PublishedAt)
	if err != nil {
		return false, domain.NewError(domain.KindTimestampFormat, rec.Title, err)
	}

	article := domain.Article{
		Title:       rec.Title,
		Content:     rec.Content,
		PublishedAt: pubDate,
		SourceURL:   rec.SourceURL,
		Category:    item.category,
		FeedURL:     feedURL,
	}
	added, err := p.store.Insert(ctx, &article)
	if err != nil {
		return false, domain.NewError(domain.KindPersistence, rec.Title, err)
	}
	if !added {
		lgr.Printf("[DEBUG] skip duplicate %q, %s already stored", rec.Title, article.Key())
		return false, nil
	}
	lgr.Printf("[INFO] added %q (%s) as %s", rec.Title, article.Key(), item.category.Name())
	return true, nil
}

// fillContent extracts page text for records without content, failures keep content empty
func (p *Pipeline) fillContent(ctx context.Context, rec *domain.RawArticle) {
	if p.extractor == nil || strings.TrimSpace(rec.Content) != "" || rec.SourceURL == "" {
		return
	}
	text, err := p.extractor.Extract(ctx, rec.SourceURL)
	if err != nil {
		lgr.Printf("[WARN] failed to extract content for %q from %s: %v", rec.Title, rec.SourceURL, err)
		return
	}
	lgr.Printf("[DEBUG] extracted %d chars for %q", len(text), rec.Title)
	rec.Content = text
}

// parseTime parses a feed timestamp with the first matching layout, result is in UTC
func (p *Pipeline) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range p.dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported publish date format %q", s)
}

func (p *Pipeline) feedFailed(stats *Stats, feedURL string, err error) {
	stats.FeedErrors++
	stats.Errors[domain.KindOf(err)]++
	lgr.Printf("[WARN] skip feed %s: %v", feedURL, err)
}

// ensureKind returns err as is if it already carries a kind, otherwise wraps it with the given kind
func ensureKind(err error, kind domain.ErrorKind, subject string) error {
	var pe *domain.ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return domain.NewError(kind, subject, err)
}
