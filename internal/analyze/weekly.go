package analyze

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

const weeklySystem = "You are a mobile games market analyst writing a weekly report."

// Mover is an app with its number of changes over a period.
type Mover struct {
	Name  string
	Count int
}

// FrequentMovers counts changes per app name and returns the n most frequent.
// Ties keep first-seen order.
func FrequentMovers(changes []chart.Change, n int) []Mover {
	idx := make(map[string]int)
	var movers []Mover
	for _, c := range changes {
		i, ok := idx[c.Name]
		if !ok {
			i = len(movers)
			idx[c.Name] = i
			movers = append(movers, Mover{Name: c.Name})
		}
		movers[i].Count++
	}
	sort.SliceStable(movers, func(i, j int) bool { return movers[i].Count > movers[j].Count })
	if n > 0 && len(movers) > n {
		movers = movers[:n]
	}
	return movers
}

// RegionTops holds the top three entries of every chart in one region.
type RegionTops struct {
	Region string
	Tops   []string
}

// TopThreeByRegion lists entries ranked 1-3, grouped by region in encounter order.
func TopThreeByRegion(records []chart.Record) []RegionTops {
	idx := make(map[string]int)
	var out []RegionTops
	for _, r := range records {
		if r.Rank < 1 || r.Rank > 3 {
			continue
		}
		region := r.DisplayRegion()
		i, ok := idx[region]
		if !ok {
			i = len(out)
			idx[region] = i
			out = append(out, RegionTops{Region: region})
		}
		out[i].Tops = append(out[i].Tops, fmt.Sprintf("#%d %s", r.Rank, r.Name))
	}
	return out
}

func weeklyData(changes []chart.Change, latest []chart.Record) (string, string) {
	var movers []string
	for _, m := range FrequentMovers(changes, 10) {
		movers = append(movers, fmt.Sprintf("- %s: %d changes", m.Name, m.Count))
	}
	var regions []string
	for _, rt := range TopThreeByRegion(latest) {
		regions = append(regions, fmt.Sprintf("**%s**: %s", rt.Region, strings.Join(rt.Tops, ", ")))
	}
	return strings.Join(movers, "\n"), strings.Join(regions, "\n")
}

// WeeklySummary writes the weekly market report from a week of changes and the
// latest snapshot. Without a model, or when the model fails, it returns the
// underlying data as markdown.
func (a *Analyzer) WeeklySummary(ctx context.Context, date string, changes []chart.Change, latest []chart.Record) string {
	movers, regions := weeklyData(changes, latest)

	if a.provider != nil {
		prompt := fmt.Sprintf(`Mobile game market data for the week ending %s:

**Most frequently moving games this week:**
%s

**Current top 3 by region:**
%s

Write a concise weekly report (about 600 words) in Markdown with:
1. **Market summary** (overall trends, 2-3 paragraphs)
2. **Games to watch** (3-5 titles worth tracking and why)
3. **Outlook for next week**

The audience is product and marketing teams at game companies.`, date, movers, regions)

		reply, err := a.provider.Generate(ctx, weeklySystem, prompt, a.maxTokens)
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply)
		}
		a.logger.Warn("weekly summary generation failed", zap.Error(err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Weekly report, week ending %s\n\n", date)
	fmt.Fprintf(&b, "%d chart changes this week.\n\n", len(changes))
	if movers != "" {
		fmt.Fprintf(&b, "### Most frequent movers\n%s\n\n", movers)
	}
	if regions != "" {
		fmt.Fprintf(&b, "### Current top 3 by region\n%s\n", regions)
	}
	return strings.TrimRight(b.String(), "\n")
}
