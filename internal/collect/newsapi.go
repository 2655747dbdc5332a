package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIClient searches NewsAPI for industry news as a complement to the
// RSS feeds.
type NewsAPIClient struct {
	BaseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewNewsAPIClient creates a NewsAPI client reading its key from apiKeyEnv.
func NewNewsAPIClient(apiKeyEnv string, client *http.Client, logger *zap.Logger) *NewsAPIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := ""
	if apiKeyEnv != "" {
		key = os.Getenv(apiKeyEnv)
	}
	return &NewsAPIClient{
		BaseURL: newsAPIBaseURL,
		apiKey:  key,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// IsConfigured returns whether the API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
		Description string `json:"description"`
		Content     string `json:"content"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Search returns articles matching query published within the last hours.
func (c *NewsAPIClient) Search(ctx context.Context, query string, hours, pageSize int) ([]NewsEntry, error) {
	if !c.IsConfigured() {
		return nil, nil
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	from := c.now().Add(-time.Duration(hours) * time.Hour)

	params := url.Values{
		"q":        {query},
		"from":     {from.UTC().Format(time.RFC3339)},
		"language": {"en"},
		"pageSize": {strconv.Itoa(pageSize)},
		"sortBy":   {"publishedAt"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	defer resp.Body.Close()

	var result newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{URL: c.BaseURL, Code: resp.StatusCode}
		}
		return nil, fmt.Errorf("newsapi: decoding response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi: %s: %s", result.Code, result.Message)
	}

	var entries []NewsEntry
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		e := NewsEntry{
			URL:         a.URL,
			Title:       strings.TrimSpace(a.Title),
			Source:      "NewsAPI",
			Description: Truncate(collapseSpace(a.Description), maxDescriptionRunes),
		}
		if a.Source.Name != "" {
			e.Source = a.Source.Name
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			if t.Before(from) {
				continue
			}
			e.Published = t
		}
		entries = append(entries, e)
	}

	c.logger.Info("searched newsapi", zap.String("query", query), zap.Int("entries", len(entries)))
	return entries, nil
}
