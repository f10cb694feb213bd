package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafline/dispensary-cli/internal/model"
	"github.com/leafline/dispensary-cli/pkg/places"
)

type fakeRefreshStore struct {
	active  []model.Dispensary
	ranked  []model.Dispensary
	updates map[int64][2]float64 // id -> {rating, reviews}
}

func (f *fakeRefreshStore) TopRankedDispensaries(_ context.Context, limit int) ([]model.Dispensary, error) {
	if limit > 0 && len(f.ranked) > limit {
		return f.ranked[:limit], nil
	}
	return f.ranked, nil
}

func (f *fakeRefreshStore) ListActiveDispensaries(_ context.Context) ([]model.Dispensary, error) {
	return f.active, nil
}

func (f *fakeRefreshStore) UpdateDispensaryRating(_ context.Context, id int64, rating float64, reviews int) error {
	if f.updates == nil {
		f.updates = make(map[int64][2]float64)
	}
	f.updates[id] = [2]float64{rating, float64(reviews)}
	return nil
}

func TestRefreshRatings(t *testing.T) {
	client := &fakePlaces{
		details: map[string]*places.PlaceDetails{
			"gp1": {PlaceID: "gp1", Rating: 4.7, UserRatingsTotal: 150},
			"gp2": {PlaceID: "gp2", Rating: 4.0, UserRatingsTotal: 80},
		},
	}
	store := &fakeRefreshStore{
		active: []model.Dispensary{
			{ID: 1, GooglePlaceID: "gp1", GoogleRating: 4.5, GoogleReviewCount: 120},
			{ID: 2, GooglePlaceID: "gp2", GoogleRating: 4.0, GoogleReviewCount: 80}, // unchanged
			{ID: 3, GooglePlaceID: "gone", GoogleRating: 3.0},
		},
	}

	res, err := RefreshRatings(context.Background(), client, store, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Examined)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Failed)

	got, ok := store.updates[1]
	require.True(t, ok)
	assert.Equal(t, 4.7, got[0])
	assert.EqualValues(t, 150, got[1])

	// Unchanged ratings are not rewritten.
	_, rewrote := store.updates[2]
	assert.False(t, rewrote)
}

func TestRefreshRatingsHonorsLimit(t *testing.T) {
	client := &fakePlaces{
		details: map[string]*places.PlaceDetails{
			"gp1": {PlaceID: "gp1", Rating: 5, UserRatingsTotal: 10},
		},
	}
	store := &fakeRefreshStore{
		active: []model.Dispensary{
			{ID: 1, GooglePlaceID: "gp1"},
			{ID: 2, GooglePlaceID: "gp2"},
		},
	}

	res, err := RefreshRatings(context.Background(), client, store, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Examined)
}

func TestRefreshRatingsTargetsTopRanked(t *testing.T) {
	client := &fakePlaces{
		details: map[string]*places.PlaceDetails{
			"gp-low": {PlaceID: "gp-low", Rating: 3.1, UserRatingsTotal: 12},
			"gp-top": {PlaceID: "gp-top", Rating: 4.9, UserRatingsTotal: 900},
		},
	}
	// The active list leads with the worst performer; the ranking order
	// decides who gets refreshed, not insertion order.
	store := &fakeRefreshStore{
		active: []model.Dispensary{
			{ID: 1, GooglePlaceID: "gp-low", GoogleRating: 3.0, GoogleReviewCount: 10},
			{ID: 2, GooglePlaceID: "gp-top", GoogleRating: 4.5, GoogleReviewCount: 800},
		},
		ranked: []model.Dispensary{
			{ID: 2, GooglePlaceID: "gp-top", GoogleRating: 4.5, GoogleReviewCount: 800},
			{ID: 1, GooglePlaceID: "gp-low", GoogleRating: 3.0, GoogleReviewCount: 10},
		},
	}

	res, err := RefreshRatings(context.Background(), client, store, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Examined)
	assert.Equal(t, 1, res.Updated)

	got, ok := store.updates[2]
	require.True(t, ok)
	assert.Equal(t, 4.9, got[0])
	_, touchedLow := store.updates[1]
	assert.False(t, touchedLow)
}
