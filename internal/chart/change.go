package chart

// ChangeType classifies a ChangeRecord.
type ChangeType string

const (
	NewEntry ChangeType = "new_entry"
	Dropped  ChangeType = "dropped"
	Rising   ChangeType = "rising"
	Falling  ChangeType = "falling"
)

// Label returns the human-readable name used in reports.
func (t ChangeType) Label() string {
	switch t {
	case NewEntry:
		return "New entry"
	case Dropped:
		return "Dropped"
	case Rising:
		return "Rising"
	case Falling:
		return "Falling"
	}
	return string(t)
}

// IsMove reports whether the change is a significant rank move.
func (t ChangeType) IsMove() bool {
	return t == Rising || t == Falling
}

// Change is the result of comparing one app across two snapshots within
// one group. Absent ranks are nil.
type Change struct {
	AppID         string     `json:"app_id"`
	Name          string     `json:"name"`
	Developer     string     `json:"developer"`
	Region        string     `json:"region"`
	RegionName    string     `json:"region_name"`
	Store         Store      `json:"store"`
	ChartType     string     `json:"chart_type"`
	ChartName     string     `json:"chart_name"`
	ChangeType    ChangeType `json:"change_type"`
	RankToday     *int       `json:"rank_today"`
	RankYesterday *int       `json:"rank_yesterday"`
	RankDelta     *int       `json:"rank_delta"`
}

// Magnitude returns |RankDelta|, or 0 when the delta is absent.
func (c Change) Magnitude() int {
	if c.RankDelta == nil {
		return 0
	}
	if *c.RankDelta < 0 {
		return -*c.RankDelta
	}
	return *c.RankDelta
}

// DisplayRegion returns the region display name, falling back to the code.
func (c Change) DisplayRegion() string {
	if c.RegionName != "" {
		return c.RegionName
	}
	return c.Region
}

// Key returns the group the change was computed in.
func (c Change) Key() GroupKey {
	return GroupKey{Store: c.Store, Region: c.Region, ChartType: c.ChartType}
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// IntValue returns *p, or 0 for an absent rank.
func IntValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
