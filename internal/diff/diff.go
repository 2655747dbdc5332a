// Package diff compares two daily chart snapshots and classifies what
// changed: new entries, drops, and significant rank moves.
package diff

import (
	"sort"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/chart"
)

const (
	DefaultThreshold = 5
	DefaultTopN      = 20
)

// Options configures an Engine. Zero values fall back to the defaults.
type Options struct {
	Threshold int
	TopN      int
	Logger    *zap.Logger
}

// Warnings counts records that could not be compared.
type Warnings struct {
	Malformed  int
	Duplicates int
}

func (w Warnings) add(o Warnings) Warnings {
	return Warnings{Malformed: w.Malformed + o.Malformed, Duplicates: w.Duplicates + o.Duplicates}
}

// Group holds the records of one comparability group on both days.
type Group struct {
	Key       chart.GroupKey
	Today     []chart.Record
	Yesterday []chart.Record
}

// Result is the output of a comparison.
type Result struct {
	Changes  []chart.Change
	Warnings Warnings
}

// Engine detects chart changes. It holds no state between calls.
type Engine struct {
	threshold int
	topN      int
	logger    *zap.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{threshold: opts.Threshold, topN: opts.TopN, logger: opts.Logger}
	if e.threshold <= 0 {
		e.threshold = DefaultThreshold
	}
	if e.topN <= 0 {
		e.topN = DefaultTopN
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Threshold returns the minimum |rank delta| reported as a move.
func (e *Engine) Threshold() int { return e.threshold }

// Detect runs grouping, classification and ordering over two snapshots.
func (e *Engine) Detect(today, yesterday []chart.Record) Result {
	groups, warnings := e.Group(today, yesterday)

	var changes []chart.Change
	for _, g := range groups {
		changes = append(changes, e.Classify(g)...)
	}
	SortByMagnitude(changes)

	if warnings.Malformed > 0 || warnings.Duplicates > 0 {
		e.logger.Warn("records skipped during comparison",
			zap.Int("malformed", warnings.Malformed),
			zap.Int("duplicates", warnings.Duplicates))
	}
	return Result{Changes: changes, Warnings: warnings}
}

// Group partitions both snapshots by (store, region, chart_type). Only keys
// present today produce a group; yesterday's records under other keys are
// ignored. Groups are returned in order of first appearance today.
func (e *Engine) Group(today, yesterday []chart.Record) ([]Group, Warnings) {
	todayByKey, order, w1 := e.partition(today, "today")
	yesterdayByKey, _, w2 := e.partition(yesterday, "yesterday")

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{
			Key:       key,
			Today:     todayByKey[key],
			Yesterday: yesterdayByKey[key],
		})
	}
	return groups, w1.add(w2)
}

type memberKey struct {
	group chart.GroupKey
	appID string
}

func (e *Engine) partition(records []chart.Record, side string) (map[chart.GroupKey][]chart.Record, []chart.GroupKey, Warnings) {
	byKey := make(map[chart.GroupKey][]chart.Record)
	seen := make(map[memberKey]struct{}, len(records))
	var order []chart.GroupKey
	var w Warnings

	for _, r := range records {
		if err := r.Validate(); err != nil {
			w.Malformed++
			e.logger.Warn("skipping malformed record",
				zap.String("side", side),
				zap.String("name", r.Name),
				zap.Error(err))
			continue
		}

		key := r.Key()
		mk := memberKey{group: key, appID: r.AppID}
		if _, dup := seen[mk]; dup {
			w.Duplicates++
			e.logger.Warn("skipping duplicate record",
				zap.String("side", side),
				zap.Stringer("group", key),
				zap.String("app_id", r.AppID),
				zap.Int("rank", r.Rank))
			continue
		}
		seen[mk] = struct{}{}

		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		r.Store = key.Store
		byKey[key] = append(byKey[key], r)
	}
	return byKey, order, w
}

// Classify compares one group. New entries come first in today's order,
// then drops in yesterday's order, then significant moves in today's order.
func (e *Engine) Classify(g Group) []chart.Change {
	todayIDs := make(map[string]chart.Record, len(g.Today))
	for _, r := range g.Today {
		todayIDs[r.AppID] = r
	}
	yesterdayIDs := make(map[string]chart.Record, len(g.Yesterday))
	for _, r := range g.Yesterday {
		yesterdayIDs[r.AppID] = r
	}

	var changes []chart.Change

	for _, r := range g.Today {
		if _, ok := yesterdayIDs[r.AppID]; ok {
			continue
		}
		c := newChange(g.Key, r, chart.NewEntry)
		c.RankToday = chart.Int(r.Rank)
		changes = append(changes, c)
	}

	for _, r := range g.Yesterday {
		if _, ok := todayIDs[r.AppID]; ok {
			continue
		}
		c := newChange(g.Key, r, chart.Dropped)
		c.RankYesterday = chart.Int(r.Rank)
		changes = append(changes, c)
	}

	for _, r := range g.Today {
		prev, ok := yesterdayIDs[r.AppID]
		if !ok {
			continue
		}
		// Positive delta means the app moved towards #1.
		delta := prev.Rank - r.Rank
		if abs(delta) < e.threshold {
			continue
		}
		changeType := chart.Falling
		if delta > 0 {
			changeType = chart.Rising
		}
		c := newChange(g.Key, r, changeType)
		c.RankToday = chart.Int(r.Rank)
		c.RankYesterday = chart.Int(prev.Rank)
		c.RankDelta = chart.Int(delta)
		changes = append(changes, c)
	}

	return changes
}

func newChange(key chart.GroupKey, r chart.Record, t chart.ChangeType) chart.Change {
	return chart.Change{
		AppID:      r.AppID,
		Name:       r.Name,
		Developer:  r.Developer,
		Region:     key.Region,
		RegionName: r.DisplayRegion(),
		Store:      key.Store,
		ChartType:  key.ChartType,
		ChartName:  r.ChartName,
		ChangeType: t,
	}
}

// SortByMagnitude orders changes by descending |rank delta|, treating an
// absent delta as 0. Equal magnitudes keep their relative order.
func SortByMagnitude(changes []chart.Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Magnitude() > changes[j].Magnitude()
	})
}

// TopMovers selects the engine's configured number of highlights.
func (e *Engine) TopMovers(changes []chart.Change) []chart.Change {
	return TopMovers(changes, e.topN)
}

// TopMovers returns the first n new entries followed by the first n rising
// or falling changes, in list order. Drops are never selected.
func TopMovers(changes []chart.Change, n int) []chart.Change {
	var entries, moves []chart.Change
	for _, c := range changes {
		switch {
		case c.ChangeType == chart.NewEntry && len(entries) < n:
			entries = append(entries, c)
		case c.ChangeType.IsMove() && len(moves) < n:
			moves = append(moves, c)
		}
	}
	return append(entries, moves...)
}

// CountByType tallies changes per change type.
func CountByType(changes []chart.Change) map[chart.ChangeType]int {
	counts := make(map[chart.ChangeType]int, 4)
	for _, c := range changes {
		counts[c.ChangeType]++
	}
	return counts
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
