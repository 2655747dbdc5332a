package analyze

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

var chartOrder = map[string]int{
	"topfreeapplications":     0,
	"topselling_free":         0,
	"toppaidapplications":     1,
	"topselling_paid":         1,
	"topgrossingapplications": 2,
	"topgrossing":             2,
}

type summaryKey struct {
	store     chart.Store
	chartType string
	chartName string
	region    string
}

func storeOrder(s chart.Store) int {
	switch s {
	case chart.AppStore, "":
		return 0
	case chart.GooglePlay:
		return 1
	}
	return 9
}

func rankOf(m map[string]int, k string) int {
	if v, ok := m[k]; ok {
		return v
	}
	return 9
}

// groupTop returns the top n records of every (store, chart, region) chart,
// ordered by store, chart and region name.
func groupTop(records []chart.Record, n int) ([]summaryKey, map[summaryKey][]chart.Record) {
	groups := make(map[summaryKey][]chart.Record)
	for _, r := range records {
		k := summaryKey{store: r.Key().Store, chartType: r.ChartType, chartName: r.ChartName, region: r.DisplayRegion()}
		groups[k] = append(groups[k], r)
	}

	keys := make([]summaryKey, 0, len(groups))
	for k, recs := range groups {
		keys = append(keys, k)
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Rank < recs[j].Rank })
		if len(recs) > n {
			groups[k] = recs[:n]
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if storeOrder(a.store) != storeOrder(b.store) {
			return storeOrder(a.store) < storeOrder(b.store)
		}
		if rankOf(chartOrder, a.chartType) != rankOf(chartOrder, b.chartType) {
			return rankOf(chartOrder, a.chartType) < rankOf(chartOrder, b.chartType)
		}
		if a.chartName != b.chartName {
			return a.chartName < b.chartName
		}
		return a.region < b.region
	})
	return keys, groups
}

// ChartSummary renders the top five of every chart as markdown. It is built
// from data alone and never calls a model.
func ChartSummary(records []chart.Record, date string) string {
	stores := make(map[chart.Store]bool)
	regions := make(map[string]bool)
	for _, r := range records {
		stores[r.Key().Store] = true
		regions[r.DisplayRegion()] = true
	}

	storeNames := make([]string, 0, len(stores))
	for _, s := range []chart.Store{chart.AppStore, chart.GooglePlay} {
		if stores[s] {
			storeNames = append(storeNames, s.Label())
		}
	}
	regionNames := make([]string, 0, len(regions))
	for r := range regions {
		regionNames = append(regionNames, r)
	}
	sort.Strings(regionNames)

	var b strings.Builder
	fmt.Fprintf(&b, "## Chart overview, %s\n\n", date)
	b.WriteString("**Coverage**\n")
	fmt.Fprintf(&b, "- Stores: %s\n", strings.Join(storeNames, ", "))
	fmt.Fprintf(&b, "- Regions: %d (%s)\n", len(regionNames), strings.Join(regionNames, ", "))
	fmt.Fprintf(&b, "- Records: %d\n\n", len(records))
	b.WriteString("**Top 5 by region**\n")

	keys, groups := groupTop(records, 5)
	var curStore chart.Store
	var curChart string
	for i, k := range keys {
		if i == 0 || k.store != curStore || k.chartName != curChart {
			fmt.Fprintf(&b, "\n**%s · %s**\n", k.store.Label(), k.chartName)
			curStore, curChart = k.store, k.chartName
		}
		fmt.Fprintf(&b, "- %s: %s\n", k.region, topLine(groups[k], ", "))
	}
	return b.String()
}

// ChartDigestLines renders the top five of every chart, one line per chart.
func ChartDigestLines(records []chart.Record) []string {
	keys, groups := groupTop(records, 5)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("[%s · %s · %s] %s", k.store.Label(), k.region, k.chartName, topLine(groups[k], " / ")))
	}
	return lines
}

func topLine(recs []chart.Record, sep string) string {
	parts := make([]string, 0, len(recs))
	for _, r := range recs {
		parts = append(parts, fmt.Sprintf("#%d %s", r.Rank, r.Name))
	}
	return strings.Join(parts, sep)
}
