// Package chart holds the ranking records collected from app stores and the
// change records derived from comparing two daily snapshots.
package chart

import (
	"errors"
	"fmt"
)

// Store identifies an app storefront.
type Store string

const (
	AppStore   Store = "appstore"
	GooglePlay Store = "google_play"
)

// Label returns the display name of the store.
func (s Store) Label() string {
	if s == GooglePlay {
		return "Google Play"
	}
	return "App Store"
}

// Short returns the two-letter abbreviation used in chat digests.
func (s Store) Short() string {
	if s == GooglePlay {
		return "GP"
	}
	return "AS"
}

var (
	ErrMissingAppID = errors.New("record has no app_id")
	ErrMissingRank  = errors.New("record has no rank")
)

// Record is one app's position on one chart on one day.
type Record struct {
	AppID      string `json:"app_id"`
	Name       string `json:"name"`
	Developer  string `json:"developer,omitempty"`
	Rank       int    `json:"rank"`
	Store      Store  `json:"store"`
	Region     string `json:"region"`
	RegionName string `json:"region_name"`
	ChartType  string `json:"chart_type"`
	ChartName  string `json:"chart_name"`
	FetchDate  string `json:"fetch_date"`

	Genre   string `json:"genre,omitempty"`
	URL     string `json:"url,omitempty"`
	Artwork string `json:"artwork,omitempty"`
	Price   string `json:"price,omitempty"`
}

// Validate reports whether the record can take part in a comparison.
// A rank below 1 counts as missing.
func (r Record) Validate() error {
	if r.AppID == "" {
		return ErrMissingAppID
	}
	if r.Rank < 1 {
		return fmt.Errorf("app %s: %w", r.AppID, ErrMissingRank)
	}
	return nil
}

// Key returns the comparability group of the record. Records without a
// store are treated as App Store records.
func (r Record) Key() GroupKey {
	store := r.Store
	if store == "" {
		store = AppStore
	}
	return GroupKey{Store: store, Region: r.Region, ChartType: r.ChartType}
}

// DisplayRegion returns the region display name, falling back to the code.
func (r Record) DisplayRegion() string {
	if r.RegionName != "" {
		return r.RegionName
	}
	return r.Region
}

// GroupKey is the unit of comparability: changes are only computed between
// records sharing a key.
type GroupKey struct {
	Store     Store
	Region    string
	ChartType string
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Store, k.Region, k.ChartType)
}
