package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TobiSchelling/chartpulse/internal/chart"
	"github.com/TobiSchelling/chartpulse/internal/collect"
)

type mockProvider struct {
	response string
	err      error
	prompts  []string
}

func (m *mockProvider) Generate(_ context.Context, _, prompt string, _ int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func sampleChanges() []chart.Change {
	return []chart.Change{
		{AppID: "1", Name: "Tower Quest", Developer: "Studio", Region: "us", RegionName: "United States",
			Store: chart.AppStore, ChartType: "topfreeapplications", ChangeType: chart.Rising,
			RankToday: chart.Int(10), RankYesterday: chart.Int(60), RankDelta: chart.Int(50)},
		{AppID: "2", Name: "Puzzle Hero", Region: "jp", RegionName: "Japan",
			Store: chart.GooglePlay, ChartType: "topselling_free", ChangeType: chart.NewEntry,
			RankToday: chart.Int(3)},
		{AppID: "3", Name: "Old Game", Region: "de",
			Store: chart.AppStore, ChartType: "topfreeapplications", ChangeType: chart.Dropped,
			RankYesterday: chart.Int(42)},
	}
}

func TestChangeLineFormats(t *testing.T) {
	c := sampleChanges()
	assert.Equal(t, `- United States/App Store: "Tower Quest" (Studio) rising 50 places (#60 -> #10)`, ChangeLine(c[0]))
	assert.Equal(t, `- Japan/Google Play: "Puzzle Hero" new entry at #3`, ChangeLine(c[1]))
	assert.Equal(t, `- de/App Store: "Old Game" dropped out (was #42)`, ChangeLine(c[2]))
}

func TestAnalyzeChangesNoChanges(t *testing.T) {
	m := &mockProvider{}
	a := New(m, 0, zaptest.NewLogger(t))

	out := a.AnalyzeChanges(context.Background(), "2026-02-06", nil, nil)
	assert.Equal(t, noChangesText, out.Regions)
	assert.NotNil(t, out.Rising)
	assert.Empty(t, m.prompts, "model is not called without changes")
}

func TestAnalyzeChangesNoProvider(t *testing.T) {
	a := New(nil, 0, zaptest.NewLogger(t))
	out := a.AnalyzeChanges(context.Background(), "2026-02-06", sampleChanges(), nil)
	assert.Equal(t, noModelText, out.RawText)
	assert.Equal(t, noModelText, out.Markdown())
	assert.False(t, a.Available())
}

func TestAnalyzeChangesParsesJSON(t *testing.T) {
	m := &mockProvider{response: "```json\n" + `{
		"rising": [{"game": "Tower Quest", "change": "up 50", "region": "United States", "store": "App Store", "analysis": "new season"}],
		"new_entries": [{"game": "Puzzle Hero", "change": "new #3", "region": "Japan", "store": "Google Play", "analysis": "launch"}],
		"regions": "• Asia strong",
		"categories": "• Puzzle up",
		"industry": ""
	}` + "\n```"}
	a := New(m, 500, zaptest.NewLogger(t))

	news := []collect.NewsEntry{{Source: "PG", Title: "Studio launches title"}}
	out := a.AnalyzeChanges(context.Background(), "2026-02-06", sampleChanges(), news)

	require.Len(t, out.Rising, 1)
	assert.Equal(t, "Tower Quest", out.Rising[0].Game)
	assert.NotNil(t, out.Falling)
	assert.Empty(t, out.Falling)
	assert.Equal(t, "• Asia strong", out.Regions)
	assert.Empty(t, out.RawText)

	require.Len(t, m.prompts, 1)
	assert.Contains(t, m.prompts[0], `"Tower Quest" (Studio) rising 50 places`)
	assert.Contains(t, m.prompts[0], "- [PG] Studio launches title")

	md := out.Markdown()
	assert.Contains(t, md, "### 📈 Rising")
	assert.Contains(t, md, "- **Tower Quest** up 50 (United States · App Store)")
	assert.Contains(t, md, "### Regional trends\n• Asia strong")
	assert.NotContains(t, md, "Falling")
	assert.NotContains(t, md, "Industry news")
}

func TestAnalyzeChangesUnparsableReply(t *testing.T) {
	m := &mockProvider{response: "The market was calm."}
	out := New(m, 0, zaptest.NewLogger(t)).AnalyzeChanges(context.Background(), "2026-02-06", sampleChanges(), nil)
	assert.Equal(t, "The market was calm.", out.RawText)
	assert.Equal(t, "The market was calm.", out.Regions)
	assert.Equal(t, "The market was calm.", out.Markdown())
}

func TestAnalyzeChangesProviderError(t *testing.T) {
	m := &mockProvider{err: errors.New("timeout")}
	out := New(m, 0, zaptest.NewLogger(t)).AnalyzeChanges(context.Background(), "2026-02-06", sampleChanges(), nil)
	assert.Contains(t, out.RawText, "timeout")
}

func TestPromptCapsChangeLines(t *testing.T) {
	var changes []chart.Change
	for i := 0; i < 40; i++ {
		changes = append(changes, chart.Change{Name: fmt.Sprintf("App%02d", i), ChangeType: chart.NewEntry, RankToday: chart.Int(i + 1)})
	}
	prompt := buildChangesPrompt("2026-02-06", changes, nil)
	assert.Contains(t, prompt, "App29")
	assert.NotContains(t, prompt, "App30")
	assert.NotContains(t, prompt, "industry news (for context)")
}

func chartRecords() []chart.Record {
	var recs []chart.Record
	add := func(store chart.Store, region, regionName, chartType, chartName string, n int) {
		for i := n; i >= 1; i-- {
			recs = append(recs, chart.Record{
				AppID: fmt.Sprintf("%s-%s-%d", region, chartType, i), Name: fmt.Sprintf("%s%d", strings.ToUpper(region), i),
				Rank: i, Store: store, Region: region, RegionName: regionName, ChartType: chartType, ChartName: chartName,
			})
		}
	}
	add(chart.GooglePlay, "us", "United States", "topselling_free", "Top Free Games", 6)
	add(chart.AppStore, "us", "United States", "toppaidapplications", "Top Paid Games", 6)
	add(chart.AppStore, "jp", "Japan", "topfreeapplications", "Top Free Games", 6)
	add(chart.AppStore, "de", "Germany", "topfreeapplications", "Top Free Games", 2)
	return recs
}

func TestChartSummaryOrderingAndTopFive(t *testing.T) {
	out := ChartSummary(chartRecords(), "2026-02-06")

	assert.Contains(t, out, "- Stores: App Store, Google Play")
	assert.Contains(t, out, "- Regions: 3 (Germany, Japan, United States)")
	assert.Contains(t, out, "- Records: 20")
	assert.Contains(t, out, "- Japan: #1 JP1, #2 JP2, #3 JP3, #4 JP4, #5 JP5\n")
	assert.NotContains(t, out, "JP6")

	free := strings.Index(out, "**App Store · Top Free Games**")
	paid := strings.Index(out, "**App Store · Top Paid Games**")
	play := strings.Index(out, "**Google Play · Top Free Games**")
	require.True(t, free >= 0 && paid >= 0 && play >= 0)
	assert.Less(t, free, paid)
	assert.Less(t, paid, play)
	assert.Less(t, strings.Index(out, "- Germany:"), strings.Index(out, "- Japan:"))
}

func TestChartDigestLines(t *testing.T) {
	lines := ChartDigestLines(chartRecords())
	require.Len(t, lines, 4)
	assert.Equal(t, "[App Store · Germany · Top Free Games] #1 DE1 / #2 DE2", lines[0])
}

func TestFrequentMovers(t *testing.T) {
	changes := []chart.Change{{Name: "A"}, {Name: "B"}, {Name: "B"}, {Name: "C"}, {Name: "A"}, {Name: "D"}}
	movers := FrequentMovers(changes, 3)
	assert.Equal(t, []Mover{{"A", 2}, {"B", 2}, {"C", 1}}, movers)
}

func TestTopThreeByRegion(t *testing.T) {
	tops := TopThreeByRegion(chartRecords())
	require.Len(t, tops, 3)
	assert.Equal(t, "United States", tops[0].Region)
	assert.Len(t, tops[0].Tops, 6, "three from each of two charts")
	assert.Equal(t, "#3 US3", tops[0].Tops[0])
}

func TestWeeklySummaryFallback(t *testing.T) {
	a := New(nil, 0, zaptest.NewLogger(t))
	out := a.WeeklySummary(context.Background(), "2026-02-08", []chart.Change{{Name: "A"}, {Name: "A"}}, chartRecords())
	assert.Contains(t, out, "## Weekly report, week ending 2026-02-08")
	assert.Contains(t, out, "- A: 2 changes")
	assert.Contains(t, out, "**Japan**: #3 JP3, #2 JP2, #1 JP1")
}

func TestWeeklySummaryUsesModel(t *testing.T) {
	m := &mockProvider{response: "  # Weekly\nAll good  "}
	out := New(m, 0, zaptest.NewLogger(t)).WeeklySummary(context.Background(), "2026-02-08", []chart.Change{{Name: "A"}}, nil)
	assert.Equal(t, "# Weekly\nAll good", out)
	require.Len(t, m.prompts, 1)
	assert.Contains(t, m.prompts[0], "- A: 1 changes")
}

func TestWeeklySummaryModelErrorFallsBack(t *testing.T) {
	m := &mockProvider{err: errors.New("down")}
	out := New(m, 0, zaptest.NewLogger(t)).WeeklySummary(context.Background(), "2026-02-08", nil, nil)
	assert.Contains(t, out, "0 chart changes this week.")
}
