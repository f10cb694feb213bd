package geo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegionStore struct {
	states   map[string]int64
	counties map[string]int64
	nextID   int64
}

func newFakeRegionStore() *fakeRegionStore {
	return &fakeRegionStore{
		states:   make(map[string]int64),
		counties: make(map[string]int64),
	}
}

func (f *fakeRegionStore) UpsertState(_ context.Context, _, abbr string) (int64, error) {
	if id, ok := f.states[abbr]; ok {
		return id, nil
	}
	f.nextID++
	f.states[abbr] = f.nextID
	return f.nextID, nil
}

func (f *fakeRegionStore) UpsertCounty(_ context.Context, stateID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d/%s", stateID, name)
	if id, ok := f.counties[key]; ok {
		return id, nil
	}
	f.nextID++
	f.counties[key] = f.nextID
	return f.nextID, nil
}

func TestApplySeed(t *testing.T) {
	seed := []byte(`
states:
  - name: Missouri
    abbreviation: mo
    counties:
      - St. Louis County
      - Jackson
  - name: Illinois
    abbreviation: IL
    counties:
      - Cook
`)

	store := newFakeRegionStore()
	res, err := applySeed(context.Background(), store, seed)
	require.NoError(t, err)

	assert.Equal(t, 2, res.States)
	assert.Equal(t, 3, res.Counties)
	assert.Contains(t, store.states, "MO")
	assert.Contains(t, store.states, "IL")

	moID := store.states["MO"]
	assert.Contains(t, store.counties, fmt.Sprintf("%d/St. Louis", moID))
	assert.Contains(t, store.counties, fmt.Sprintf("%d/Jackson", moID))
}

func TestApplySeedInvalidAbbreviation(t *testing.T) {
	seed := []byte(`
states:
  - name: Missouri
    abbreviation: Missouri
    counties: [Jackson]
`)

	_, err := applySeed(context.Background(), newFakeRegionStore(), seed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid state abbreviation")
}

func TestApplySeedMalformedYAML(t *testing.T) {
	_, err := applySeed(context.Background(), newFakeRegionStore(), []byte("states: [unclosed"))
	require.Error(t, err)
}
