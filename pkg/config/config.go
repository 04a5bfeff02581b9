package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Feeds []Feed `yaml:"feeds" json:"feeds" jsonschema:"description=Feeds to ingest, processed in the listed order"`

	Fetch struct {
		Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Feed fetch timeout"`
		UserAgent string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Newsclass/1.0,description=User agent for feed requests"`
	} `yaml:"fetch" json:"fetch" jsonschema:"description=Feed fetching configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:newsclass.db?cache=shared&mode=rwc&_txlock=immediate,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=1,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=1,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Classifier ClassifierConfig `yaml:"classifier" json:"classifier" jsonschema:"description=Text classifier configuration"`

	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline" jsonschema:"description=Ingestion pipeline configuration"`

	Report struct {
		Path string `yaml:"path" json:"path" jsonschema:"default=news_articles.xlsx,description=Report file, format is picked by extension (.xlsx .csv .md)"`
	} `yaml:"report" json:"report" jsonschema:"description=Report export configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Content extraction configuration"`
}

// Feed is a single syndication feed source
type Feed struct {
	URL  string `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Name string `yaml:"name" json:"name" jsonschema:"description=Feed name (defaults to URL)"`
}

// ClassifierConfig holds settings of the classification model
type ClassifierConfig struct {
	Type         string        `yaml:"type" json:"type" jsonschema:"default=http,enum=http,enum=llm,description=Model backend: http inference endpoint or OpenAI-compatible LLM"`
	Endpoint     string        `yaml:"endpoint" json:"endpoint" jsonschema:"required,description=Model endpoint URL"`
	APIKey       string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model        string        `yaml:"model" json:"model" jsonschema:"description=Model name, required for llm backend"`
	Labels       []string      `yaml:"labels" json:"labels" jsonschema:"description=Ordered model labels, index selects the category"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=512,minimum=1,description=Maximum number of input tokens sent to the model"`
	Temperature  float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0,description=Temperature for llm backend"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Model request timeout"`
	SystemPrompt string        `yaml:"system_prompt" json:"system_prompt" jsonschema:"description=System prompt for llm backend (optional)"`
}

// PipelineConfig holds ingestion settings
type PipelineConfig struct {
	Workers     int      `yaml:"workers" json:"workers" jsonschema:"default=4,minimum=1,description=Concurrent feed fetches and classifications, 1 makes the run fully sequential"`
	DateLayouts []string `yaml:"date_layouts" json:"date_layouts" jsonschema:"description=Go time layouts accepted for item publish dates, tried in order"`
}

// ExtractionConfig holds content extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Extract article text from the source page when the feed has no description"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Newsclass/1.0,description=User agent for HTTP requests"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
}

// DefaultFeeds used when config has no feeds
var DefaultFeeds = []Feed{
	{URL: "http://rss.cnn.com/rss/cnn_topstories.rss", Name: "CNN Top Stories"},
	{URL: "http://qz.com/feed", Name: "Quartz"},
	{URL: "http://feeds.foxnews.com/foxnews/politics", Name: "Fox News Politics"},
	{URL: "http://feeds.reuters.com/reuters/businessNews", Name: "Reuters Business"},
	{URL: "http://feeds.feedburner.com/NewshourWorld", Name: "PBS Newshour World"},
	{URL: "https://feeds.bbci.co.uk/news/world/asia/india/rss.xml", Name: "BBC India"},
}

// DefaultDateLayouts are tried in order to parse item publish dates
var DefaultDateLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 GMT",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// DefaultLabels are the ordered classifier labels
var DefaultLabels = []string{"unrest", "positive", "natural_disaster", "other"}

var reportExtensions = []string{".xlsx", ".csv", ".md"}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	// set defaults for feeds
	if len(c.Feeds) == 0 {
		c.Feeds = append([]Feed{}, DefaultFeeds...)
	}
	for i := range c.Feeds {
		if c.Feeds[i].Name == "" {
			c.Feeds[i].Name = c.Feeds[i].URL
		}
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Newsclass/1.0"
	}

	// set defaults for database
	if c.Database.DSN == "" {
		c.Database.DSN = "file:newsclass.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 1
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 1
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	// set defaults for classifier
	if c.Classifier.Type == "" {
		c.Classifier.Type = "http"
	}
	if len(c.Classifier.Labels) == 0 {
		c.Classifier.Labels = append([]string{}, DefaultLabels...)
	}
	if c.Classifier.MaxTokens == 0 {
		c.Classifier.MaxTokens = 512
	}
	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = 60 * time.Second
	}

	// set defaults for pipeline
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if len(c.Pipeline.DateLayouts) == 0 {
		c.Pipeline.DateLayouts = append([]string{}, DefaultDateLayouts...)
	}

	if c.Report.Path == "" {
		c.Report.Path = "news_articles.xlsx"
	}

	// set defaults for extraction
	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 30 * time.Second
	}
	if c.Extraction.UserAgent == "" {
		c.Extraction.UserAgent = "Newsclass/1.0"
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	for i, f := range cfg.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d].url is required", i)
		}
	}

	// validate classifier config
	switch cfg.Classifier.Type {
	case "http", "llm":
	default:
		return fmt.Errorf("classifier.type must be http or llm, got %q", cfg.Classifier.Type)
	}
	if cfg.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier.endpoint is required")
	}
	if cfg.Classifier.Type == "llm" && cfg.Classifier.Model == "" {
		return fmt.Errorf("classifier.model is required for llm classifier")
	}
	if len(cfg.Classifier.Labels) < 3 {
		return fmt.Errorf("classifier.labels must have at least 3 entries")
	}
	if cfg.Classifier.MaxTokens < 1 {
		return fmt.Errorf("classifier.max_tokens must be at least 1")
	}
	if cfg.Classifier.Temperature < 0 || cfg.Classifier.Temperature > 2 {
		return fmt.Errorf("classifier.temperature must be between 0 and 2")
	}

	if cfg.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}

	ext := strings.ToLower(filepath.Ext(cfg.Report.Path))
	supported := false
	for _, e := range reportExtensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("report.path must end with one of %s", strings.Join(reportExtensions, ", "))
	}

	// validate extraction config
	if cfg.Extraction.Enabled {
		if cfg.Extraction.Timeout < time.Second {
			return fmt.Errorf("extraction timeout must be at least 1 second")
		}
		if cfg.Extraction.MinTextLength < 0 {
			return fmt.Errorf("extraction min_text_length must be non-negative")
		}
	}

	return nil
}

// FeedURLs returns feed URLs in configured order
func (c *Config) FeedURLs() []string {
	res := make([]string, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		res = append(res, f.URL)
	}
	return res
}

// GetClassifierConfig returns classifier configuration
func (c *Config) GetClassifierConfig() ClassifierConfig {
	return c.Classifier
}

// GetExtractionConfig returns content extraction configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}
