package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

const googlePlayBaseURL = "https://play.google.com"

// ErrNoApps means a collection page parsed but listed no apps, which
// usually indicates the page layout changed.
var ErrNoApps = errors.New("no apps found on collection page")

// GooglePlayClient scrapes the public Google Play collection pages.
type GooglePlayClient struct {
	BaseURL   string
	Limit     int
	UserAgent string
	client    *http.Client
}

// NewGooglePlayClient creates a client for Google Play collection pages.
func NewGooglePlayClient(client *http.Client, limit int, userAgent string) *GooglePlayClient {
	if limit <= 0 {
		limit = 100
	}
	return &GooglePlayClient{
		BaseURL:   googlePlayBaseURL,
		Limit:     limit,
		UserAgent: userAgent,
		client:    client,
	}
}

// ChartURL returns the collection page URL for one region and collection.
func (c *GooglePlayClient) ChartURL(region, lang, collection string) string {
	if lang == "" {
		lang = "en"
	}
	q := url.Values{
		"hl":  {lang},
		"gl":  {region},
		"num": {fmt.Sprint(c.Limit)},
	}
	return fmt.Sprintf("%s/store/apps/collection/%s?%s", strings.TrimRight(c.BaseURL, "/"), collection, q.Encode())
}

// FetchChart returns apps in page order, de-duplicated by package id.
func (c *GooglePlayClient) FetchChart(ctx context.Context, region, lang, collection string) ([]chart.Record, error) {
	body, err := get(ctx, c.client, c.ChartURL(region, lang, collection), c.UserAgent)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing collection page: %w", err)
	}

	records := parseCollection(doc, c.Limit)
	if len(records) == 0 {
		return nil, ErrNoApps
	}
	for i := range records {
		records[i].Store = chart.GooglePlay
		records[i].Region = region
		records[i].ChartType = collection
	}
	return records, nil
}

func parseCollection(doc *goquery.Document, limit int) []chart.Record {
	seen := make(map[string]struct{})
	var records []chart.Record

	doc.Find(`a[href^="/store/apps/details?id="]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		id := packageID(href)
		if id == "" {
			return true
		}
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}

		name, _ := s.Attr("aria-label")
		name = strings.TrimSpace(name)
		if name == "" {
			name = readableName(id)
		}

		records = append(records, chart.Record{
			AppID: id,
			Name:  name,
			Rank:  len(records) + 1,
			Genre: "GAME",
			URL:   googlePlayBaseURL + "/store/apps/details?id=" + id,
		})
		return len(records) < limit
	})

	return records
}

func packageID(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}

// readableName turns "com.studio.tower_quest" into "Tower Quest".
func readableName(id string) string {
	tail := id[strings.LastIndex(id, ".")+1:]
	words := strings.Fields(strings.ReplaceAll(tail, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
