package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafline/dispensary-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCounty(t *testing.T, st *SQLiteStore, stateName, stateAbbr, countyName string) (stateID, countyID int64) {
	t.Helper()
	ctx := context.Background()
	stateID, err := st.UpsertState(ctx, stateName, stateAbbr)
	require.NoError(t, err)
	countyID, err = st.UpsertCounty(ctx, stateID, countyName)
	require.NoError(t, err)
	return stateID, countyID
}

func testDispensary(placeID, name string, countyID, stateID int64) *model.Dispensary {
	return &model.Dispensary{
		GooglePlaceID:     placeID,
		Name:              name,
		AddressStreet:     "123 Main St",
		City:              "Denver",
		CountyID:          &countyID,
		StateID:           &stateID,
		Zip:               "80202",
		Lat:               39.74,
		Lng:               -104.99,
		Phone:             "(303) 555-0142",
		Website:           "https://example.com",
		Photos:            []string{"https://example.com/p1.jpg"},
		GoogleRating:      4.5,
		GoogleReviewCount: 812,
		CompletenessScore: 85,
	}
}

// --- Dispensaries ---

func TestSQLite_UpsertDispensary_InsertThenUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	d := testDispensary("place-1", "Green Leaf Dispensary", countyID, stateID)
	created, err := st.UpsertDispensary(ctx, d)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, d.ID)
	firstID := d.ID

	// Same place ID again: update, not a new row.
	d2 := testDispensary("place-1", "Green Leaf Dispensary & Co", countyID, stateID)
	d2.GoogleReviewCount = 900
	created, err = st.UpsertDispensary(ctx, d2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstID, d2.ID)

	got, err := st.GetDispensaryByPlaceID(ctx, "place-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Green Leaf Dispensary & Co", got.Name)
	assert.Equal(t, 900, got.GoogleReviewCount)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.CountyID)
	assert.Equal(t, countyID, *got.CountyID)
}

func TestSQLite_UpsertDispensary_RoundTripsJSONFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	d := testDispensary("place-json", "Green Leaf", countyID, stateID)
	d.Hours = &model.OpeningHours{WeekdayText: []string{"Monday: 9:00 AM - 9:00 PM"}}
	d.ExternalListings = model.ExternalListings{
		Leafly: &model.ListingMention{URL: "https://leafly.com/green-leaf", Title: "Green Leaf | Leafly"},
		Other:  []model.ListingMention{{URL: "https://potguide.com/green-leaf"}},
	}
	d.MenuMentions = []model.ListingMention{{URL: "https://example.com/menu", Title: "Menu"}}

	_, err := st.UpsertDispensary(ctx, d)
	require.NoError(t, err)

	got, err := st.GetDispensaryByPlaceID(ctx, "place-json")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"https://example.com/p1.jpg"}, got.Photos)
	require.NotNil(t, got.Hours)
	assert.Equal(t, []string{"Monday: 9:00 AM - 9:00 PM"}, got.Hours.WeekdayText)
	require.NotNil(t, got.ExternalListings.Leafly)
	assert.Equal(t, "https://leafly.com/green-leaf", got.ExternalListings.Leafly.URL)
	assert.Nil(t, got.ExternalListings.Weedmaps)
	require.Len(t, got.MenuMentions, 1)
	assert.Equal(t, "Menu", got.MenuMentions[0].Title)
}

func TestSQLite_GetDispensaryByPlaceID_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetDispensaryByPlaceID(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListActiveMissingCounty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	withCounty := testDispensary("place-a", "Has County", countyID, stateID)
	_, err := st.UpsertDispensary(ctx, withCounty)
	require.NoError(t, err)

	noCounty := testDispensary("place-b", "No County", 0, 0)
	noCounty.CountyID = nil
	noCounty.StateID = nil
	_, err = st.UpsertDispensary(ctx, noCounty)
	require.NoError(t, err)

	missing, err := st.ListActiveMissingCounty(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "place-b", missing[0].GooglePlaceID)
}

func TestSQLite_AssignCounty_SetsStateToo(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	d := testDispensary("place-assign", "Orphan", 0, 0)
	d.CountyID = nil
	d.StateID = nil
	_, err := st.UpsertDispensary(ctx, d)
	require.NoError(t, err)

	require.NoError(t, st.AssignCounty(ctx, d.ID, countyID))

	got, err := st.GetDispensaryByPlaceID(ctx, "place-assign")
	require.NoError(t, err)
	require.NotNil(t, got.CountyID)
	assert.Equal(t, countyID, *got.CountyID)
	require.NotNil(t, got.StateID)
	assert.Equal(t, stateID, *got.StateID)
}

func TestSQLite_UpdateDispensaryRating(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	d := testDispensary("place-rate", "Green Leaf", countyID, stateID)
	_, err := st.UpsertDispensary(ctx, d)
	require.NoError(t, err)

	require.NoError(t, st.UpdateDispensaryRating(ctx, d.ID, 4.7, 950))

	got, err := st.GetDispensaryByPlaceID(ctx, "place-rate")
	require.NoError(t, err)
	assert.Equal(t, 4.7, got.GoogleRating)
	assert.Equal(t, 950, got.GoogleReviewCount)
}

// --- Engagement aggregates ---

func TestSQLite_VoteCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	d := testDispensary("place-votes", "Green Leaf", countyID, stateID)
	_, err := st.UpsertDispensary(ctx, d)
	require.NoError(t, err)

	for _, vote := range []int{1, 1, 1, -1} {
		_, err := st.db.ExecContext(ctx,
			`INSERT INTO votes (dispensary_id, vote_type) VALUES (?, ?)`, d.ID, vote)
		require.NoError(t, err)
	}

	vc, err := st.VoteCounts(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, vc.Upvotes)
	assert.Equal(t, 1, vc.Downvotes)
	assert.Equal(t, 2, vc.NetVotes)
}

func TestSQLite_ViewCount_Windowed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	d := testDispensary("place-views", "Green Leaf", countyID, stateID)
	_, err := st.UpsertDispensary(ctx, d)
	require.NoError(t, err)

	recent := time.Now().UTC().AddDate(0, 0, -1)
	stale := time.Now().UTC().AddDate(0, 0, -45)
	for _, ts := range []time.Time{recent, recent, stale} {
		_, err := st.db.ExecContext(ctx,
			`INSERT INTO page_views (dispensary_id, created_at) VALUES (?, ?)`, d.ID, ts)
		require.NoError(t, err)
	}

	n, err := st.ViewCount(ctx, d.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLite_MaxReviewCount_ByScope(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, denverID := seedCounty(t, st, "Colorado", "CO", "Denver")
	_, boulderID := seedCounty(t, st, "Colorado", "CO", "Boulder")

	a := testDispensary("place-max-a", "A", denverID, stateID)
	a.GoogleReviewCount = 500
	_, err := st.UpsertDispensary(ctx, a)
	require.NoError(t, err)

	b := testDispensary("place-max-b", "B", boulderID, stateID)
	b.GoogleReviewCount = 1200
	_, err = st.UpsertDispensary(ctx, b)
	require.NoError(t, err)

	n, err := st.MaxReviewCount(ctx, model.ScopeCounty, denverID)
	require.NoError(t, err)
	assert.Equal(t, 500, n)

	n, err = st.MaxReviewCount(ctx, model.ScopeState, stateID)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
}

// --- Rankings ---

func TestSQLite_UpdateRanks_DenseWithIDTieBreak(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	var ids []int64
	for _, name := range []string{"Alpha", "Bravo", "Charlie"} {
		d := testDispensary("place-rank-"+name, name, countyID, stateID)
		_, err := st.UpsertDispensary(ctx, d)
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	// Bravo and Charlie tie; the lower dispensary ID must win the tie.
	require.NoError(t, st.UpsertRanking(ctx, ids[0], model.ScopeCounty, countyID, 91.25))
	require.NoError(t, st.UpsertRanking(ctx, ids[1], model.ScopeCounty, countyID, 77.50))
	require.NoError(t, st.UpsertRanking(ctx, ids[2], model.ScopeCounty, countyID, 77.50))
	require.NoError(t, st.UpdateRanks(ctx, model.ScopeCounty, countyID))

	ranks := make(map[int64]int)
	rows, err := st.db.QueryContext(ctx,
		`SELECT dispensary_id, rank FROM rankings WHERE scope_type = ? AND scope_id = ?`,
		model.ScopeCounty, countyID)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id int64
		var rank int
		require.NoError(t, rows.Scan(&id, &rank))
		ranks[id] = rank
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, 1, ranks[ids[0]])
	assert.Equal(t, 2, ranks[ids[1]])
	assert.Equal(t, 3, ranks[ids[2]])
}

func TestSQLite_UpsertRanking_PreservesPreviousRank(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	d := testDispensary("place-prev", "Green Leaf", countyID, stateID)
	_, err := st.UpsertDispensary(ctx, d)
	require.NoError(t, err)

	require.NoError(t, st.UpsertRanking(ctx, d.ID, model.ScopeCounty, countyID, 80))
	require.NoError(t, st.UpdateRanks(ctx, model.ScopeCounty, countyID))

	// Recalculation moves the current rank into previous_rank.
	require.NoError(t, st.UpsertRanking(ctx, d.ID, model.ScopeCounty, countyID, 85))

	var rank, previousRank int
	var score float64
	err = st.db.QueryRowContext(ctx, `
		SELECT rank, previous_rank, composite_score FROM rankings
		WHERE dispensary_id = ? AND scope_type = ? AND scope_id = ?`,
		d.ID, model.ScopeCounty, countyID,
	).Scan(&rank, &previousRank, &score)
	require.NoError(t, err)
	assert.Equal(t, 1, previousRank)
	assert.Equal(t, 85.0, score)
}

// --- Geography ---

func TestSQLite_UpsertState_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, err := st.UpsertState(ctx, "Colorado", "CO")
	require.NoError(t, err)
	id2, err := st.UpsertState(ctx, "Colorado", "CO")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	states, err := st.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "CO", states[0].Abbreviation)
}

func TestSQLite_UpsertCounty_ScopedByState(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	coID, err := st.UpsertState(ctx, "Colorado", "CO")
	require.NoError(t, err)
	waID, err := st.UpsertState(ctx, "Washington", "WA")
	require.NoError(t, err)

	// Same county name in two states is two rows.
	c1, err := st.UpsertCounty(ctx, coID, "Jefferson")
	require.NoError(t, err)
	c2, err := st.UpsertCounty(ctx, waID, "Jefferson")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)

	counties, err := st.ListCountiesByState(ctx, coID)
	require.NoError(t, err)
	require.Len(t, counties, 1)
	assert.Equal(t, "Jefferson", counties[0].Name)
	assert.Equal(t, "CO", counties[0].StateAbbr)
}

func TestSQLite_GetCounty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	stateID, countyID := seedCounty(t, st, "Colorado", "CO", "Denver")

	c, err := st.GetCounty(ctx, countyID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Denver", c.Name)
	assert.Equal(t, stateID, c.StateID)
	assert.Equal(t, "CO", c.StateAbbr)

	missing, err := st.GetCounty(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// --- Crawl logs ---

func TestSQLite_CrawlLog_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.StartCrawlLog(ctx, model.CrawlJobCounty, "Denver County, CO")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, st.CompleteCrawlLog(ctx, id, 12, 8, 4, []string{"detail fetch failed: place-x"}))

	logs, err := st.ListCrawlLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, id, logs[0].ID)
	assert.Equal(t, model.CrawlJobCounty, logs[0].JobType)
	assert.Equal(t, model.CrawlStatusCompleted, logs[0].Status)
	assert.Equal(t, 12, logs[0].Found)
	assert.Equal(t, 8, logs[0].Added)
	assert.Equal(t, 4, logs[0].Updated)
	require.Len(t, logs[0].Errors, 1)
	require.NotNil(t, logs[0].CompletedAt)
}

func TestSQLite_CrawlLog_Fail(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.StartCrawlLog(ctx, model.CrawlJobState, "Colorado")
	require.NoError(t, err)

	require.NoError(t, st.FailCrawlLog(ctx, id, "search quota exhausted"))

	logs, err := st.ListCrawlLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.CrawlStatusFailed, logs[0].Status)
	require.Len(t, logs[0].Errors, 1)
	assert.Equal(t, "search quota exhausted", logs[0].Errors[0])
}
