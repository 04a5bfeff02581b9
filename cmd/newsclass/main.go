package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/umputun/newsclass/pkg/classifier"
	"github.com/umputun/newsclass/pkg/config"
	"github.com/umputun/newsclass/pkg/content"
	"github.com/umputun/newsclass/pkg/feed"
	"github.com/umputun/newsclass/pkg/pipeline"
	"github.com/umputun/newsclass/pkg/report"
	"github.com/umputun/newsclass/pkg/repository"
)

// Opts with all CLI options
type Opts struct {
	Config  string `short:"c" long:"config" env:"CONFIG" default:"newsclass.yml" description:"configuration file"`
	Report  string `short:"r" long:"report" env:"REPORT" description:"report file, overrides report.path (.xlsx, .csv or .md)"`
	DB      string `long:"db" env:"DB" description:"database DSN, overrides database.dsn"`
	LogFile string `long:"log" env:"LOG_FILE" description:"append log to this file"`
	EnvFile string `long:"env-file" env:"ENV_FILE" description:"load environment from file before reading config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logOut := io.Writer(os.Stdout)
	if opts.LogFile != "" {
		fh, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path comes from CLI flag
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: can't open log file: %v\n", err)
			os.Exit(1)
		}
		defer fh.Close()
		logOut = io.MultiWriter(os.Stdout, fh)
	}
	setupLog(opts.Debug, !opts.NoColor && opts.LogFile == "", logOut, secrets(cfg)...)

	lgr.Printf("[INFO] starting newsclass version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Print("[INFO] termination signal received")
		cancel()
	}()

	err = run(ctx, cfg, os.Stdout)
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] run failed: %v", err)
		os.Exit(1) //nolint:gocritic // log file close is not needed on exit
	}
}

// loadConfig reads the config file and applies CLI overrides
func loadConfig(opts Opts) (*config.Config, error) {
	// already set variables win over the file
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Report != "" {
		if _, err := report.FormatFromPath(opts.Report); err != nil {
			return nil, fmt.Errorf("invalid report option: %w", err)
		}
		cfg.Report.Path = opts.Report
	}
	if opts.DB != "" {
		cfg.Database.DSN = opts.DB
	}
	return cfg, nil
}

// run makes a single ingestion pass and prints per-category summary to out
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			lgr.Printf("[WARN] failed to close database: %v", err)
		}
	}()

	model, err := classifier.NewModel(cfg.GetClassifierConfig())
	if err != nil {
		return fmt.Errorf("failed to make classifier model: %w", err)
	}

	exporter, err := report.NewExporter(cfg.Report.Path)
	if err != nil {
		return fmt.Errorf("failed to make report exporter: %w", err)
	}

	var extractor pipeline.Extractor
	if ext := cfg.GetExtractionConfig(); ext.Enabled {
		extractor = content.NewHTTPExtractor(content.Options{
			Timeout:       ext.Timeout,
			UserAgent:     ext.UserAgent,
			MinTextLength: ext.MinTextLength,
		})
		lgr.Printf("[DEBUG] content extraction enabled, timeout %v", ext.Timeout)
	}

	lgr.Printf("[INFO] %d feeds, classifier %s at %s, %s report %s",
		len(cfg.Feeds), cfg.Classifier.Type, cfg.Classifier.Endpoint, exporter.Format(), exporter.Path())

	p := pipeline.New(pipeline.Config{
		Feeds:       cfg.FeedURLs(),
		Fetcher:     feed.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		Parser:      feed.NewParser(),
		Classifier:  classifier.New(model, cfg.Classifier.MaxTokens),
		Store:       repos.Article,
		Exporter:    exporter,
		Extractor:   extractor,
		Workers:     cfg.Pipeline.Workers,
		DateLayouts: cfg.Pipeline.DateLayouts,
	})

	stats, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline failed in %s state: %w", p.State(), err)
	}

	total, err := repos.Article.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count articles: %w", err)
	}
	counts, err := repos.Article.CountByCategory(ctx)
	if err != nil {
		return fmt.Errorf("failed to count articles: %w", err)
	}
	if err := report.Summary(out, counts); err != nil {
		return err
	}

	lgr.Printf("[INFO] report saved to %s, %d articles stored, %d added, %d feed errors, %d article errors, took %v",
		exporter.Path(), total, stats.Added, stats.FeedErrors, stats.ArticleErrors, stats.Duration.Round(time.Millisecond))
	return nil
}

// secrets returns config values to mask in logs
func secrets(cfg *config.Config) []string {
	if cfg.Classifier.APIKey == "" {
		return nil
	}
	return []string{cfg.Classifier.APIKey}
}

func setupLog(dbg, colored bool, out io.Writer, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(out)}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError)
	}

	if colored {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	} else {
		color.NoColor = true
	}
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
