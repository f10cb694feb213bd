package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafline/dispensary-cli/internal/model"
)

type fakeStore struct {
	logs         []model.CrawlLog
	dispensaries []model.Dispensary
}

func (f *fakeStore) ListCrawlLogs(_ context.Context, _ int) ([]model.CrawlLog, error) {
	return f.logs, nil
}

func (f *fakeStore) ListActiveDispensaries(_ context.Context) ([]model.Dispensary, error) {
	return f.dispensaries, nil
}

func TestCollect(t *testing.T) {
	now := time.Now().UTC()
	recent := now.Add(-1 * time.Hour)
	old := now.Add(-48 * time.Hour)
	completedAt := recent.Add(10 * time.Minute)
	countyID := int64(7)

	store := &fakeStore{
		logs: []model.CrawlLog{
			{StartedAt: recent, Status: model.CrawlStatusCompleted, CompletedAt: &completedAt, Found: 12, Added: 3, Updated: 9},
			{StartedAt: recent, Status: model.CrawlStatusFailed},
			{StartedAt: recent, Status: model.CrawlStatusRunning},
			// Outside the 24h window, excluded from windowed counts.
			{StartedAt: old, Status: model.CrawlStatusFailed},
		},
		dispensaries: []model.Dispensary{
			{ID: 1, CountyID: &countyID, CompletenessScore: 80},
			{ID: 2, CompletenessScore: 60},
		},
	}

	snap, err := NewCollector(store).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.CrawlTotal)
	assert.Equal(t, 1, snap.CrawlCompleted)
	assert.Equal(t, 1, snap.CrawlFailed)
	assert.Equal(t, 1, snap.CrawlRunning)
	assert.InDelta(t, 1.0/3.0, snap.CrawlFailRate, 1e-9)

	assert.Equal(t, 12, snap.Found)
	assert.Equal(t, 3, snap.Added)
	assert.Equal(t, 9, snap.Updated)

	assert.Equal(t, 2, snap.ActiveDispensaries)
	assert.Equal(t, 1, snap.MissingCounty)
	assert.InDelta(t, 70.0, snap.AvgCompleteness, 1e-9)

	require.NotNil(t, snap.LastCompletedCrawl)
	assert.True(t, snap.LastCompletedCrawl.Equal(completedAt))
}

func TestCollectEmpty(t *testing.T) {
	snap, err := NewCollector(&fakeStore{}).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.CrawlTotal)
	assert.Zero(t, snap.CrawlFailRate)
	assert.Zero(t, snap.AvgCompleteness)
	assert.Nil(t, snap.LastCompletedCrawl)
}
