// Package fetch downloads the full text of collected news articles.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/database"
)

const minContentLength = 100

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Failed  int
}

// ContentFetcher fetches full article text via HTTP + readability extraction.
type ContentFetcher struct {
	db        *database.DB
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(db *database.DB, timeout time.Duration, userAgent string, logger *zap.Logger) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = "chartpulse/1.0 (news digest)"
	}
	return &ContentFetcher{
		db:        db,
		userAgent: userAgent,
		logger:    logger,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FetchMissingContent fetches content for news collected on date that has no text yet.
// After an HTTP error status, remaining articles from the same host are skipped.
func (f *ContentFetcher) FetchMissingContent(ctx context.Context, date string) (*Result, error) {
	items, err := f.db.GetNewsNeedingFetch(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("listing news needing fetch: %w", err)
	}

	result := &Result{}
	if len(items) == 0 {
		f.logger.Debug("no news items need content fetching")
		return result, nil
	}

	failedDomains := make(map[string]struct{})

	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		domain := ""
		if u, _ := url.Parse(item.URL); u != nil {
			domain = strings.ToLower(u.Host)
		}

		if _, failed := failedDomains[domain]; failed {
			f.markAttempted(ctx, item.ID)
			result.Failed++
			continue
		}

		content, err := f.Extract(ctx, item.URL)
		var he *httpError
		if errors.As(err, &he) {
			f.markAttempted(ctx, item.ID)
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			f.logger.Info("http error, skipping remaining articles from host",
				zap.String("url", item.URL), zap.String("host", domain), zap.Int("status", he.code))
			continue
		}

		if content == "" {
			f.markAttempted(ctx, item.ID)
			result.Failed++
			f.logger.Debug("no extractable content", zap.String("url", item.URL), zap.Error(err))
			continue
		}

		if err := f.db.UpdateNewsContent(ctx, item.ID, &content); err != nil {
			return result, fmt.Errorf("storing content for %s: %w", item.URL, err)
		}
		result.Fetched++
		f.logger.Debug("fetched content", zap.String("title", item.Title))
	}

	f.logger.Info("content fetch complete",
		zap.Int("fetched", result.Fetched), zap.Int("failed", result.Failed))
	return result, nil
}

func (f *ContentFetcher) markAttempted(ctx context.Context, id int64) {
	if err := f.db.UpdateNewsContent(ctx, id, nil); err != nil {
		f.logger.Warn("marking fetch attempt failed", zap.Int64("id", id), zap.Error(err))
	}
}

// Extract downloads a page and returns its readable text. Pages with too
// little text return "". Only HTTP error statuses are reported as errors
// the caller acts on; transport failures come back as a plain error.
func (f *ContentFetcher) Extract(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > minContentLength {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
