package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const (
	maxDescriptionRunes = 200
	maxPerFeed          = 30
)

// NewsEntry is one industry news item.
type NewsEntry struct {
	URL         string
	Title       string
	Source      string
	Published   time.Time // zero when the feed gave no date
	Description string
}

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

// NewsReader parses RSS/Atom news feeds.
type NewsReader struct {
	feeds     []FeedConfig
	client    *http.Client
	userAgent string
	md        *converter.Converter
	logger    *zap.Logger
	now       func() time.Time
}

// NewNewsReader creates a reader for the given feeds.
func NewNewsReader(feeds []FeedConfig, client *http.Client, userAgent string, logger *zap.Logger) *NewsReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsReader{
		feeds:     feeds,
		client:    client,
		userAgent: userAgent,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger: logger,
		now:    time.Now,
	}
}

// FetchAll reads every feed and returns entries published within the last
// hours, newest first. A failing feed is logged and skipped.
func (nr *NewsReader) FetchAll(ctx context.Context, hours int) []NewsEntry {
	cutoff := nr.now().Add(-time.Duration(hours) * time.Hour)
	var all []NewsEntry

	for _, fc := range nr.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := nr.fetchFeed(ctx, fc.URL, name, cutoff)
		if err != nil {
			nr.logger.Warn("failed to parse feed", zap.String("url", fc.URL), zap.Error(err))
			continue
		}
		all = append(all, entries...)
		nr.logger.Info("parsed news feed",
			zap.String("source", name),
			zap.Int("entries", len(entries)),
			zap.Int("hours", hours))
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Published.After(all[j].Published)
	})
	return all
}

func (nr *NewsReader) fetchFeed(ctx context.Context, feedURL, source string, cutoff time.Time) ([]NewsEntry, error) {
	body, err := get(ctx, nr.client, feedURL, nr.userAgent)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, err
	}

	var entries []NewsEntry
	for _, item := range feed.Items {
		if len(entries) >= maxPerFeed {
			break
		}
		entry := nr.parseItem(item, source)
		if entry == nil {
			continue
		}
		if !entry.Published.IsZero() && entry.Published.Before(cutoff) {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (nr *NewsReader) parseItem(item *gofeed.Item, source string) *NewsEntry {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if title == "" || link == "" {
		return nil
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	desc := item.Description
	if desc == "" {
		desc = item.Content
	}

	return &NewsEntry{
		URL:         link,
		Title:       title,
		Source:      source,
		Published:   published,
		Description: nr.summarize(desc),
	}
}

// summarize converts an HTML fragment to single-line markdown and truncates it.
func (nr *NewsReader) summarize(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	text, err := nr.md.ConvertString(html)
	if err != nil {
		text = html
	}
	return Truncate(collapseSpace(text), maxDescriptionRunes)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MergeNews concatenates entry lists, dropping repeated URLs, and sorts the
// result newest first. Undated entries go last.
func MergeNews(lists ...[]NewsEntry) []NewsEntry {
	seen := make(map[string]struct{})
	var out []NewsEntry
	for _, l := range lists {
		for _, e := range l {
			if _, ok := seen[e.URL]; ok {
				continue
			}
			seen[e.URL] = struct{}{}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Published.After(out[j].Published)
	})
	return out
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FormatForPrompt renders up to max entries as a bullet list for an LLM prompt.
func FormatForPrompt(entries []NewsEntry, max int) string {
	if len(entries) == 0 {
		return "(no recent industry news)"
	}
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- [%s] %s", e.Source, e.Title)
		if e.Description != "" {
			fmt.Fprintf(&b, "\n  Summary: %s", e.Description)
		}
	}
	return b.String()
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
