// Package collect fetches daily chart rankings and industry news.
package collect

import (
	"context"
	"errors"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/config"
	"github.com/TobiSchelling/chartpulse/internal/metrics"
)

// Result holds the results of a chart collection run.
type Result struct {
	Records []chart.Record
	Charts  int
	Failed  int
	ByStore map[chart.Store]int
}

// job is one (store, region, chart) fetch.
type job struct {
	store     chart.Store
	region    config.Region
	chartType string
	chartName string
}

// Collector orchestrates chart collection across stores and regions.
type Collector struct {
	cfg        *config.Config
	appStore   *AppStoreClient
	googlePlay *GooglePlayClient
	news       *NewsReader
	newsAPI    *NewsAPIClient
	logger     *zap.Logger
}

// NewCollector creates a collector from configuration.
func NewCollector(cfg *config.Config, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := newHTTPClient(cfg.CollectTimeout())
	ua := cfg.Collect.UserAgent

	feeds := make([]FeedConfig, len(cfg.News.Feeds))
	for i, f := range cfg.News.Feeds {
		feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
	}

	return &Collector{
		cfg:        cfg,
		appStore:   NewAppStoreClient(client, cfg.AppStore.GenreID, cfg.AppStore.Limit, ua),
		googlePlay: NewGooglePlayClient(client, cfg.GooglePlay.Limit, ua),
		news:       NewNewsReader(feeds, client, ua, logger),
		newsAPI:    NewNewsAPIClient(cfg.News.NewsAPI.APIKeyEnv, client, logger),
		logger:     logger,
	}
}

// SetBaseURLs points the store clients at alternative hosts.
func (c *Collector) SetBaseURLs(appStore, googlePlay string) {
	if appStore != "" {
		c.appStore.BaseURL = appStore
	}
	if googlePlay != "" {
		c.googlePlay.BaseURL = googlePlay
	}
}

// SetNewsAPI replaces the NewsAPI client.
func (c *Collector) SetNewsAPI(client *NewsAPIClient) {
	c.newsAPI = client
}

func (c *Collector) jobs() []job {
	var jobs []job
	if c.cfg.AppStore.Enabled {
		for _, region := range c.cfg.Regions {
			for _, ch := range c.cfg.AppStore.Charts {
				jobs = append(jobs, job{store: chart.AppStore, region: region, chartType: ch.Type, chartName: ch.Name})
			}
		}
	}
	if c.cfg.GooglePlay.Enabled {
		for _, region := range c.cfg.Regions {
			for _, ch := range c.cfg.GooglePlay.Charts {
				jobs = append(jobs, job{store: chart.GooglePlay, region: region, chartType: ch.Type, chartName: ch.Name})
			}
		}
	}
	return jobs
}

// CollectCharts fetches every configured chart on a bounded worker pool.
// Records come back in configuration order regardless of completion order.
// A failing chart is logged and contributes no records.
func (c *Collector) CollectCharts(ctx context.Context, date string) *Result {
	jobs := c.jobs()
	results := make([][]chart.Record, len(jobs))
	failed := make([]bool, len(jobs))

	workers := c.cfg.Collect.Workers
	if workers <= 0 {
		workers = 4
	}
	pool := pond.NewPool(workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, j := range jobs {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				failed[i] = true
				return
			}
			records, err := c.fetch(groupCtx, j)
			if err != nil {
				failed[i] = true
				metrics.ChartFetchFailures.WithLabelValues(string(j.store)).Inc()
				c.logger.Warn("chart fetch failed",
					zap.String("store", string(j.store)),
					zap.String("region", j.region.Code),
					zap.String("chart", j.chartType),
					zap.Error(err))
				return
			}
			for k := range records {
				records[k].RegionName = j.region.Name
				records[k].ChartName = j.chartName
				records[k].FetchDate = date
			}
			results[i] = records
			c.logger.Debug("chart fetched",
				zap.String("store", string(j.store)),
				zap.String("region", j.region.Code),
				zap.String("chart", j.chartType),
				zap.Int("records", len(records)))
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		c.logger.Warn("chart collection group error", zap.Error(err))
	}

	r := &Result{Charts: len(jobs), ByStore: make(map[chart.Store]int)}
	for i, recs := range results {
		if failed[i] {
			r.Failed++
		}
		r.Records = append(r.Records, recs...)
		r.ByStore[jobs[i].store] += len(recs)
	}
	for store, n := range r.ByStore {
		metrics.RecordsCollected.WithLabelValues(string(store)).Add(float64(n))
	}

	c.logger.Info("chart collection complete",
		zap.Int("charts", r.Charts),
		zap.Int("failed", r.Failed),
		zap.Int("records", len(r.Records)))
	return r
}

func (c *Collector) fetch(ctx context.Context, j job) ([]chart.Record, error) {
	if j.store == chart.GooglePlay {
		return c.googlePlay.FetchChart(ctx, j.region.Code, j.region.Lang, j.chartType)
	}
	return c.appStore.FetchChart(ctx, j.region.Code, j.chartType)
}

// CollectNews reads the configured news feeds and, when a key is set,
// NewsAPI. Returns nil when news is disabled.
func (c *Collector) CollectNews(ctx context.Context) []NewsEntry {
	if !c.cfg.News.Enabled {
		return nil
	}
	hours := c.cfg.News.Hours
	if hours <= 0 {
		hours = 48
	}

	var feeds, searched []NewsEntry
	if len(c.cfg.News.Feeds) > 0 {
		feeds = c.news.FetchAll(ctx, hours)
	}
	if c.newsAPI != nil && c.newsAPI.IsConfigured() && c.cfg.News.NewsAPI.Query != "" {
		var err error
		searched, err = c.newsAPI.Search(ctx, c.cfg.News.NewsAPI.Query, hours, c.cfg.News.NewsAPI.PageSize)
		if err != nil {
			c.logger.Warn("newsapi search failed", zap.Error(err))
		}
	}

	entries := MergeNews(feeds, searched)
	metrics.NewsCollected.Add(float64(len(entries)))
	return entries
}

// PublishedString formats a news entry date for storage.
func (e NewsEntry) PublishedString() string {
	if e.Published.IsZero() {
		return ""
	}
	return e.Published.UTC().Format(time.RFC3339)
}
