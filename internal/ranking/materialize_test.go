package ranking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafline/dispensary-cli/internal/config"
	"github.com/leafline/dispensary-cli/internal/model"
)

func TestCalculateAllScopes(t *testing.T) {
	store := newFakeStore()
	store.dispensaries = []model.Dispensary{
		{ID: 1, CountyID: ptr(7), StateID: ptr(2), GoogleRating: 4.5},
		{ID: 2, CountyID: ptr(7), StateID: ptr(2), GoogleRating: 3.0},
		{ID: 3, StateID: ptr(2), GoogleRating: 5.0}, // no county yet
	}

	calc := NewCalculator(store, config.RankingConfig{EngagementFullClicks: 10, WindowDays: 30})
	res, err := calc.CalculateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Scored)
	assert.Equal(t, 0, res.Failed)

	// County cohort holds the two county-assigned dispensaries; the state
	// cohort holds all three.
	county := store.rankings[scopeKey{model.ScopeCounty, 7}]
	state := store.rankings[scopeKey{model.ScopeState, 2}]
	assert.Len(t, county, 2)
	assert.Len(t, state, 3)

	// Ranks rewritten once per touched scope.
	assert.Equal(t, 2, res.Scopes)
	assert.Len(t, store.rankUpdates, 2)
}

func TestCalculateAllDerivesStateFromCounty(t *testing.T) {
	store := newFakeStore()
	store.counties[7] = &model.County{ID: 7, StateID: 2, Name: "Denver"}
	store.dispensaries = []model.Dispensary{
		{ID: 1, CountyID: ptr(7), GoogleRating: 4.2}, // state not backfilled yet
	}

	calc := NewCalculator(store, config.RankingConfig{EngagementFullClicks: 10, WindowDays: 30})
	res, err := calc.CalculateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scored)
	assert.Contains(t, store.rankings[scopeKey{model.ScopeCounty, 7}], int64(1))
	// The state ranking lands under the county's state.
	assert.Contains(t, store.rankings[scopeKey{model.ScopeState, 2}], int64(1))
	assert.Equal(t, 2, res.Scopes)
}

func TestCalculateAllEmpty(t *testing.T) {
	calc := NewCalculator(newFakeStore(), config.RankingConfig{})
	res, err := calc.CalculateAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Scored)
	assert.Zero(t, res.Scopes)
}

func TestCalculateAllSkipsNoGeography(t *testing.T) {
	store := newFakeStore()
	store.dispensaries = []model.Dispensary{{ID: 1, GoogleRating: 4.0}}

	calc := NewCalculator(store, config.RankingConfig{})
	res, err := calc.CalculateAll(context.Background())
	require.NoError(t, err)

	// Nothing to rank without a county or state, but the run still counts it.
	assert.Equal(t, 1, res.Scored)
	assert.Empty(t, store.rankings)
}
