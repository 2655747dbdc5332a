package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, Record{AppID: "1", Rank: 1}.Validate())
	assert.ErrorIs(t, Record{Rank: 3}.Validate(), ErrMissingAppID)
	assert.ErrorIs(t, Record{AppID: "1"}.Validate(), ErrMissingRank)
	assert.ErrorIs(t, Record{AppID: "1", Rank: -2}.Validate(), ErrMissingRank)
}

func TestRecordKeyDefaultsStore(t *testing.T) {
	k := Record{Region: "us", ChartType: "topfreeapplications"}.Key()
	assert.Equal(t, AppStore, k.Store)
	assert.Equal(t, "appstore/us/topfreeapplications", k.String())

	k = Record{Store: GooglePlay, Region: "jp", ChartType: "topselling_free"}.Key()
	assert.Equal(t, GooglePlay, k.Store)
}

func TestDisplayRegion(t *testing.T) {
	assert.Equal(t, "Japan", Record{Region: "jp", RegionName: "Japan"}.DisplayRegion())
	assert.Equal(t, "jp", Record{Region: "jp"}.DisplayRegion())
	assert.Equal(t, "Japan", Change{Region: "jp", RegionName: "Japan"}.DisplayRegion())
	assert.Equal(t, "jp", Change{Region: "jp"}.DisplayRegion())
}

func TestIntValue(t *testing.T) {
	assert.Equal(t, 0, IntValue(nil))
	assert.Equal(t, 42, IntValue(Int(42)))
}

func TestChangeMagnitude(t *testing.T) {
	assert.Equal(t, 0, Change{}.Magnitude())
	assert.Equal(t, 7, Change{RankDelta: Int(7)}.Magnitude())
	assert.Equal(t, 12, Change{RankDelta: Int(-12)}.Magnitude())
}

func TestChangeTypeLabels(t *testing.T) {
	assert.Equal(t, "New entry", NewEntry.Label())
	assert.True(t, Rising.IsMove())
	assert.True(t, Falling.IsMove())
	assert.False(t, Dropped.IsMove())
	assert.Equal(t, "GP", GooglePlay.Short())
	assert.Equal(t, "App Store", AppStore.Label())
}
