package geo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafline/dispensary-cli/internal/model"
)

type fakeBackfillStore struct {
	*fakeRegionStore
	missing  []model.Dispensary
	assigned map[int64]int64 // dispensary ID -> county ID
}

func newFakeBackfillStore(missing ...model.Dispensary) *fakeBackfillStore {
	return &fakeBackfillStore{
		fakeRegionStore: newFakeRegionStore(),
		missing:         missing,
		assigned:        make(map[int64]int64),
	}
}

func (f *fakeBackfillStore) ListActiveMissingCounty(_ context.Context) ([]model.Dispensary, error) {
	return f.missing, nil
}

func (f *fakeBackfillStore) GetStateByAbbr(_ context.Context, abbr string) (*model.State, error) {
	id, ok := f.states[abbr]
	if !ok {
		return nil, nil
	}
	return &model.State{ID: id, Abbreviation: abbr}, nil
}

func (f *fakeBackfillStore) AssignCounty(_ context.Context, dispensaryID, countyID int64) error {
	f.assigned[dispensaryID] = countyID
	return nil
}

type fakeLocator struct {
	county string
	abbr   string
	err    error
}

func (f *fakeLocator) LocateCounty(_ context.Context, _, _ float64) (string, string, error) {
	return f.county, f.abbr, f.err
}

func TestBackfillCountiesAssigns(t *testing.T) {
	store := newFakeBackfillStore(
		model.Dispensary{ID: 1, Lat: 38.6, Lng: -90.2},
		model.Dispensary{ID: 2, Lat: 38.7, Lng: -90.3},
	)
	_, err := store.UpsertState(context.Background(), "Missouri", "MO")
	require.NoError(t, err)

	res, err := BackfillCounties(context.Background(), store, &fakeLocator{county: "St. Louis", abbr: "MO"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Examined)
	assert.Equal(t, 2, res.Assigned)
	assert.Len(t, store.assigned, 2)
	// Both dispensaries land in the same county row.
	assert.Equal(t, store.assigned[1], store.assigned[2])
}

func TestBackfillCountiesUnknownState(t *testing.T) {
	store := newFakeBackfillStore(model.Dispensary{ID: 1, Lat: 40.0, Lng: -105.0})

	res, err := BackfillCounties(context.Background(), store, &fakeLocator{county: "Boulder", abbr: "CO"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Assigned)
	assert.Equal(t, 1, res.Unmatched)
	assert.Empty(t, store.assigned)
}

func TestBackfillCountiesLookupFailure(t *testing.T) {
	store := newFakeBackfillStore(model.Dispensary{ID: 1})

	res, err := BackfillCounties(context.Background(), store, &fakeLocator{err: errors.New("quota exceeded")})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Assigned)
}

func TestBackfillCountiesNoMatch(t *testing.T) {
	store := newFakeBackfillStore(model.Dispensary{ID: 1, Lat: 0, Lng: 0})

	res, err := BackfillCounties(context.Background(), store, &fakeLocator{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Unmatched)
}
