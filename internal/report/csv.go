package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

var (
	chartHeader  = []string{"rank", "name", "developer", "genre", "region", "store", "chart", "price", "fetch_date"}
	changeHeader = []string{"app_id", "name", "developer", "region", "store", "chart", "chart_type", "change_type", "rank_today", "rank_yesterday", "rank_delta"}
)

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// WriteChartsCSV writes one row per chart record.
func WriteChartsCSV(w io.Writer, records []chart.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(chartHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			strconv.Itoa(r.Rank), r.Name, r.Developer, r.Genre, r.DisplayRegion(),
			r.Key().Store.Label(), r.ChartName, r.Price, r.FetchDate,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChangesCSV writes one row per change. Absent ranks are empty cells.
func WriteChangesCSV(w io.Writer, changes []chart.Change) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(changeHeader); err != nil {
		return err
	}
	for _, c := range changes {
		store := c.Store
		if store == "" {
			store = chart.AppStore
		}
		if err := cw.Write([]string{
			c.AppID, c.Name, c.Developer, c.DisplayRegion(), store.Label(), c.ChartName, c.ChartType, c.ChangeType.Label(),
			optInt(c.RankToday), optInt(c.RankYesterday), optInt(c.RankDelta),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
