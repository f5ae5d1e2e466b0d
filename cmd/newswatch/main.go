package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"newswatch/pkg/collector"
	"newswatch/pkg/config"
	"newswatch/pkg/domain"
	"newswatch/pkg/llm"
	"newswatch/pkg/monitor"
	"newswatch/pkg/repository"
	"newswatch/pkg/scoring"
	"newswatch/pkg/search"
	"newswatch/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`
	Mode   string `short:"m" long:"mode" env:"MODE" default:"weekly" choice:"weekly" choice:"daily" choice:"serve" choice:"monitor" description:"run mode"`
	Target string `short:"t" long:"target" env:"TARGET" default:"all" choice:"all" choice:"clients" choice:"competitors" choice:"topics" description:"rosters to collect"`

	NoSummary  bool `long:"no-summary" env:"NO_SUMMARY" description:"skip executive summary generation"`
	NoAdaptive bool `long:"no-adaptive" env:"NO_ADAPTIVE" description:"uniform default result sizing for companies"`

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

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug)

	lgr.Printf("[INFO] starting newswatch version %s, mode %s", revision, opts.Mode)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Printf("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
	lgr.Printf("[INFO] done")
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("open repositories: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			lgr.Printf("[WARN] close repositories: %v", err)
		}
	}()

	switch opts.Mode {
	case "weekly", "daily":
		return runCollection(ctx, opts, cfg, repos)
	case "serve":
		return runServer(ctx, opts, cfg, repos)
	case "monitor":
		return runMonitor(ctx, cfg, repos)
	}
	return fmt.Errorf("unknown mode %q", opts.Mode)
}

// runCollection collects, scores, stores and summarizes news for the
// selected rosters. Daily mode additionally drops records already seen
// in the previous daily run.
func runCollection(ctx context.Context, opts Opts, cfg *config.Config, repos *repository.Repositories) error {
	searchClient := newSearchClient(cfg)
	coll := collector.New(searchClient, collectorConfig(cfg))
	normalizer := collector.NewNormalizer(scoring.NewScorer(cfg.Scoring.Aliases), cfg.Scoring.MinRelevance)

	byKind := map[domain.EntityKind][]domain.Record{}
	for _, kind := range targetKinds(opts.Target) {
		entities, err := cfg.LoadEntities(kind)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		if len(entities) == 0 {
			lgr.Printf("[WARN] empty %s roster, skipping", kind)
			continue
		}

		records := normalizer.Normalize(coll.Collect(ctx, entities, kind, !opts.NoAdaptive))

		if opts.Mode == "daily" {
			previous, err := repos.Run.LatestRecords(ctx, "daily", kind)
			if err != nil {
				return fmt.Errorf("load checkpoint: %w", err)
			}
			records = collector.Dedupe(records, previous)
		}

		runID, err := repos.Run.CreateRun(ctx, opts.Mode, kind)
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		if err := repos.Run.SaveRecords(ctx, runID, records); err != nil {
			return fmt.Errorf("save records: %w", err)
		}
		lgr.Printf("[INFO] stored %d %s records (run %d)", len(records), kind, runID)
		byKind[kind] = records
	}

	if opts.NoSummary || cfg.LLM.Model == "" {
		return nil
	}

	period := "week"
	if opts.Mode == "daily" {
		period = "day"
	}
	summarizer := llm.NewSummarizer(cfg.GetLLMConfig())
	summary, err := summarizer.Summarize(ctx, llm.Request{
		Period:      period,
		Clients:     byKind[domain.KindClient],
		Competitors: byKind[domain.KindCompetitor],
		Topics:      byKind[domain.KindTopic],
	})
	if err != nil {
		// collection results are already stored, a failed summary
		// should not fail the whole run
		lgr.Printf("[WARN] summary generation failed: %v", err)
		return nil
	}
	if err := repos.Summary.SaveSummary(ctx, opts.Mode, summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	lgr.Printf("[INFO] stored %s summary (%d chars)", opts.Mode, len(summary))
	return nil
}

// runServer starts the JSON API
func runServer(ctx context.Context, opts Opts, cfg *config.Config, repos *repository.Repositories) error {
	news := &newsAdapter{
		cfg:        cfg,
		client:     newSearchClient(cfg),
		normalizer: collector.NewNormalizer(scoring.NewScorer(cfg.Scoring.Aliases), cfg.Scoring.MinRelevance),
	}
	srv := server.New(cfg, news, repos.Run, repos.Summary, revision, opts.Debug)
	return srv.Run(ctx)
}

// runMonitor checks monitored websites once and logs detected changes
func runMonitor(ctx context.Context, cfg *config.Config, repos *repository.Repositories) error {
	if len(cfg.Monitor.Sites) == 0 {
		return fmt.Errorf("no monitored sites configured")
	}

	mon := monitor.New(cfg.Monitor, repos.Snapshot)
	changes, err := mon.Run(ctx)
	if err != nil {
		return fmt.Errorf("monitor run: %w", err)
	}

	for _, c := range changes {
		lgr.Printf("[INFO] %s: %s %q %s", c.Site, c.Type, c.Title, c.Link)
	}
	lgr.Printf("[INFO] monitor finished, %d changes across %d sites", len(changes), len(cfg.Monitor.Sites))
	return nil
}

func newSearchClient(cfg *config.Config) *search.Client {
	sc := cfg.GetSearchConfig()
	provider := search.NewHTTPProvider(sc.Endpoint, sc.APIKey, sc.UserAgent, sc.Timeout)
	return search.NewClient(provider, sc.MaxRetries, sc.InitialBackoff, sc.MaxBackoff)
}

func collectorConfig(cfg *config.Config) collector.Config {
	sc := cfg.GetSearchConfig()
	return collector.Config{
		BatchSize:          sc.BatchSize,
		RequestDelay:       sc.RequestDelay,
		DefaultResults:     sc.DefaultResults,
		HighProfileResults: sc.HighProfileResults,
		LowProfileResults:  sc.LowProfileResults,
		TopicResults:       sc.TopicResults,
		HighProfile:        sc.HighProfile,
		LowProfile:         sc.LowProfile,
	}
}

// targetKinds maps the target flag to roster kinds, in collection order
func targetKinds(target string) []domain.EntityKind {
	switch target {
	case "clients":
		return []domain.EntityKind{domain.KindClient}
	case "competitors":
		return []domain.EntityKind{domain.KindCompetitor}
	case "topics":
		return []domain.EntityKind{domain.KindTopic}
	}
	return []domain.EntityKind{domain.KindClient, domain.KindCompetitor, domain.KindTopic}
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
