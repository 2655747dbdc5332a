package collect

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

const appStoreBaseURL = "https://itunes.apple.com"

var appIDPattern = regexp.MustCompile(`/id(\d+)`)

// AppStoreClient reads the iTunes top-chart Atom feeds.
type AppStoreClient struct {
	BaseURL   string
	GenreID   string
	Limit     int
	UserAgent string
	client    *http.Client
}

// NewAppStoreClient creates a client for the public iTunes RSS charts.
func NewAppStoreClient(client *http.Client, genreID string, limit int, userAgent string) *AppStoreClient {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return &AppStoreClient{
		BaseURL:   appStoreBaseURL,
		GenreID:   genreID,
		Limit:     limit,
		UserAgent: userAgent,
		client:    client,
	}
}

// ChartURL returns the feed URL for one region and chart.
func (c *AppStoreClient) ChartURL(region, chartType string) string {
	u := fmt.Sprintf("%s/%s/rss/%s/limit=%d", strings.TrimRight(c.BaseURL, "/"), region, chartType, c.Limit)
	if c.GenreID != "" {
		u += "/genre=" + c.GenreID
	}
	return u + "/xml"
}

// FetchChart returns the chart entries in feed order. Rank is the 1-based
// position in the feed; store, region and chart type are filled in.
func (c *AppStoreClient) FetchChart(ctx context.Context, region, chartType string) ([]chart.Record, error) {
	body, err := get(ctx, c.client, c.ChartURL(region, chartType), c.UserAgent)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing app store feed: %w", err)
	}

	records := make([]chart.Record, 0, len(feed.Items))
	for i, item := range feed.Items {
		r := parseAppStoreItem(item)
		r.Rank = i + 1
		r.Store = chart.AppStore
		r.Region = region
		r.ChartType = chartType
		records = append(records, r)
	}
	return records, nil
}

func parseAppStoreItem(item *gofeed.Item) chart.Record {
	r := chart.Record{
		Name: imValue(item, "name"),
		URL:  item.Link,
	}
	if r.Name == "" {
		r.Name = strings.TrimSpace(item.Title)
	}
	if m := appIDPattern.FindStringSubmatch(item.GUID); m != nil {
		r.AppID = m[1]
	}
	r.Developer = imValue(item, "artist")
	r.Price = imValue(item, "price")
	if images := imExtensions(item, "image"); len(images) > 0 {
		r.Artwork = strings.TrimSpace(images[len(images)-1].Value)
	}
	if len(item.Categories) > 0 {
		r.Genre = item.Categories[0]
	}
	return r
}

func imExtensions(item *gofeed.Item, name string) []ext.Extension {
	ns, ok := item.Extensions["im"]
	if !ok {
		return nil
	}
	return ns[name]
}

func imValue(item *gofeed.Item, name string) string {
	exts := imExtensions(item, name)
	if len(exts) == 0 {
		return ""
	}
	return strings.TrimSpace(exts[0].Value)
}
