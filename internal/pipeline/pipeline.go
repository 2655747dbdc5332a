// Package pipeline runs the daily and weekly chart pipelines.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/analyze"
	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/collect"
	"github.com/TobiSchelling/chartpulse/internal/config"
	"github.com/TobiSchelling/chartpulse/internal/database"
	"github.com/TobiSchelling/chartpulse/internal/diff"
	"github.com/TobiSchelling/chartpulse/internal/fetch"
	"github.com/TobiSchelling/chartpulse/internal/llm"
	"github.com/TobiSchelling/chartpulse/internal/metrics"
	"github.com/TobiSchelling/chartpulse/internal/notify"
	"github.com/TobiSchelling/chartpulse/internal/report"
	"github.com/TobiSchelling/chartpulse/internal/snapshot"
)

const (
	KindDaily  = "daily"
	KindWeekly = "weekly"
)

// ErrNoRecords is returned by the collect step when every chart came back empty.
var ErrNoRecords = errors.New("no chart records collected")

// Source yields the day's chart records and news.
type Source interface {
	CollectCharts(ctx context.Context, date string) *collect.Result
	CollectNews(ctx context.Context) []collect.NewsEntry
}

// Notifier delivers a digest to every enabled channel.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, title, markdown string) (int, error)
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID   string
	Date    string
	Kind    string
	Steps   []StepResult
	Records int
	Changes []chart.Change
	Top     []chart.Change
	Digest  string
}

// Failed returns the number of steps that returned an error.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Options holds the pipeline's collaborators. Nil fields are built from config.
type Options struct {
	DB       *database.DB
	Store    snapshot.Store
	Source   Source
	Engine   *diff.Engine
	Analyzer *analyze.Analyzer
	Reports  *report.Writer
	Notifier Notifier
	Logger   *zap.Logger
}

// Pipeline orchestrates collection, change detection, analysis, reporting
// and notification.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	store    snapshot.Store
	source   Source
	engine   *diff.Engine
	analyzer *analyze.Analyzer
	reports  *report.Writer
	notifier Notifier
	fetcher  *fetch.ContentFetcher
	logger   *zap.Logger
}

// New creates a new pipeline. Store defaults to the SQLite store on DB and
// must be set when DB is nil.
func New(cfg *config.Config, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		db:       opts.DB,
		store:    opts.Store,
		source:   opts.Source,
		engine:   opts.Engine,
		analyzer: opts.Analyzer,
		reports:  opts.Reports,
		notifier: opts.Notifier,
		logger:   logger,
	}
	if p.store == nil && p.db != nil {
		p.store = snapshot.NewSQLiteStore(p.db)
	}
	if p.source == nil {
		p.source = collect.NewCollector(cfg, logger)
	}
	if p.engine == nil {
		p.engine = diff.New(diff.Options{
			Threshold: cfg.Detection.Threshold,
			TopN:      cfg.Detection.TopN,
			Logger:    logger,
		})
	}
	if p.analyzer == nil {
		a := cfg.Analysis
		provider := llm.CreateProvider(llm.Options{
			Provider:    a.Provider,
			Model:       a.Model,
			OllamaURL:   a.OllamaURL,
			OpenAIModel: a.OpenAIModel,
			BaseURL:     a.OpenAIBaseURL,
			APIKeyEnv:   a.APIKeyEnv,
		}, logger)
		p.analyzer = analyze.New(provider, a.MaxTokens, logger)
	}
	if p.reports == nil {
		p.reports = report.NewWriter(filepath.Join(cfg.GetDataDir(), "reports"))
	}
	if p.notifier == nil {
		p.notifier = notify.FromConfig(cfg, logger)
	}
	if cfg.News.FetchContent && p.db != nil {
		p.fetcher = fetch.NewContentFetcher(p.db, cfg.CollectTimeout(), cfg.Collect.UserAgent, logger)
	}
	return p
}

func (p *Pipeline) newResult(kind, date string) *Result {
	return &Result{RunID: uuid.NewString(), Date: date, Kind: kind}
}

// step runs fn as a named step, recording its duration and outcome.
func (p *Pipeline) step(r *Result, n, total int, name string, fn func() (string, error)) error {
	p.logger.Info(fmt.Sprintf("Step %d/%d: %s", n, total, name),
		zap.String("pipeline", r.Kind), zap.String("date", r.Date))
	start := time.Now()
	summary, err := fn()
	metrics.ObserveStep(r.Kind, name, start, err)
	if err != nil {
		p.logger.Error("step failed", zap.String("step", name), zap.Error(err))
	}
	r.Steps = append(r.Steps, StepResult{Name: name, Summary: summary, Err: err})
	return err
}

// finish records the run in the database.
func (p *Pipeline) finish(ctx context.Context, r *Result) {
	if p.db == nil {
		return
	}
	err := p.db.InsertReport(ctx, database.RunReport{
		ID:          r.RunID,
		Date:        r.Date,
		Kind:        r.Kind,
		RecordCount: r.Records,
		ChangeCount: len(r.Changes),
		FailedSteps: r.Failed(),
	})
	if err != nil {
		p.logger.Warn("recording run failed", zap.String("run_id", r.RunID), zap.Error(err))
	}
}

func (p *Pipeline) storeAnalysis(ctx context.Context, kind, date string, v any, digest string, changes, top int) error {
	if p.db == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	return p.db.InsertAnalysis(ctx, database.Analysis{
		Date:           date,
		Kind:           kind,
		AnalysisJSON:   string(data),
		DigestMarkdown: digest,
		ChangeCount:    changes,
		TopCount:       top,
	})
}

func (p *Pipeline) send(ctx context.Context, title, digest string) (string, error) {
	if !p.notifier.Enabled() {
		return "No notification channel configured, skipped", nil
	}
	sent, err := p.notifier.Send(ctx, title, digest)
	if err != nil {
		return fmt.Sprintf("Sent to %d channel(s)", sent), err
	}
	return fmt.Sprintf("Sent to %d channel(s)", sent), nil
}
