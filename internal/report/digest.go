// Package report renders chart changes for chat, spreadsheets and the dashboard.
package report

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

const (
	digestChanges   = 10
	digestAnalysis  = 500
	weeklyMaxRunes  = 1500
	noChangesDigest = "> No significant changes today"
)

// truncate cuts s to n runes and appends "..." when anything was cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// DigestLine renders one change as a chat quote line.
func DigestLine(c chart.Change) string {
	where := fmt.Sprintf("`%s/%s`", c.DisplayRegion(), c.Store.Short())
	switch c.ChangeType {
	case chart.NewEntry:
		return fmt.Sprintf("> %s [New] **%s** #%d", where, c.Name, chart.IntValue(c.RankToday))
	case chart.Dropped:
		return fmt.Sprintf("> %s [Dropped] **%s** (was #%d)", where, c.Name, chart.IntValue(c.RankYesterday))
	default:
		arrow := "↑"
		if c.ChangeType == chart.Falling {
			arrow = "↓"
		}
		return fmt.Sprintf("> %s [%s %d%s] **%s** #%d→#%d", where, c.ChangeType.Label(), c.Magnitude(), arrow,
			c.Name, chart.IntValue(c.RankYesterday), chart.IntValue(c.RankToday))
	}
}

// DailyDigest builds the daily chat message: the first ten changes and a
// shortened analysis. total is the size of the full change list.
func DailyDigest(changes []chart.Change, total int, analysis, date string) string {
	top := changes
	if len(top) > digestChanges {
		top = top[:digestChanges]
	}
	lines := make([]string, 0, len(top))
	for _, c := range top {
		lines = append(lines, DigestLine(c))
	}
	changeText := noChangesDigest
	if len(lines) > 0 {
		changeText = strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`## 🎮 Mobile game charts · %s

**Key changes today (%d total)**
%s

---
**Market read**
%s

---
📊 Full data is in the daily report
`, date, total, changeText, truncate(analysis, digestAnalysis))
}

// WeeklyDigest builds the weekly chat message.
func WeeklyDigest(summary, date string) string {
	return fmt.Sprintf(`## 📈 Mobile game market weekly · %s

%s

---
📊 Full weekly report is in the reports directory
`, date, truncate(summary, weeklyMaxRunes))
}
