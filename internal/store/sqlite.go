package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leafline/dispensary-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// local development and tests; the Postgres store is the production path.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := database.Exec(pragma); err != nil {
			database.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: database}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS states (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL,
	abbreviation TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS counties (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	state_id INTEGER NOT NULL REFERENCES states(id),
	name     TEXT NOT NULL,
	UNIQUE (state_id, name)
);

CREATE TABLE IF NOT EXISTS dispensaries (
	id                      INTEGER PRIMARY KEY AUTOINCREMENT,
	google_place_id         TEXT NOT NULL UNIQUE,
	name                    TEXT NOT NULL,
	address_street          TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	county_id               INTEGER REFERENCES counties(id),
	state_id                INTEGER REFERENCES states(id),
	zip                     TEXT NOT NULL DEFAULT '',
	lat                     REAL NOT NULL DEFAULT 0,
	lng                     REAL NOT NULL DEFAULT 0,
	phone                   TEXT NOT NULL DEFAULT '',
	website                 TEXT NOT NULL DEFAULT '',
	logo_url                TEXT NOT NULL DEFAULT '',
	photos                  TEXT,
	hours                   TEXT,
	license_number          TEXT NOT NULL DEFAULT '',
	google_rating           REAL NOT NULL DEFAULT 0,
	google_review_count     INTEGER NOT NULL DEFAULT 0,
	external_listings       TEXT,
	menu_mentions           TEXT,
	data_completeness_score INTEGER NOT NULL DEFAULT 0,
	is_active               INTEGER NOT NULL DEFAULT 1,
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS votes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	dispensary_id INTEGER NOT NULL REFERENCES dispensaries(id),
	vote_type     INTEGER NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS page_views (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	dispensary_id INTEGER NOT NULL REFERENCES dispensaries(id),
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS click_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	dispensary_id INTEGER NOT NULL REFERENCES dispensaries(id),
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rankings (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	dispensary_id   INTEGER NOT NULL REFERENCES dispensaries(id),
	scope_type      TEXT NOT NULL,
	scope_id        INTEGER NOT NULL,
	composite_score REAL NOT NULL,
	rank            INTEGER NOT NULL DEFAULT 0,
	previous_rank   INTEGER NOT NULL DEFAULT 0,
	calculated_at   DATETIME NOT NULL,
	UNIQUE (dispensary_id, scope_type, scope_id)
);

CREATE TABLE IF NOT EXISTS crawl_logs (
	id                   TEXT PRIMARY KEY,
	job_type             TEXT NOT NULL,
	location             TEXT NOT NULL,
	started_at           DATETIME NOT NULL,
	dispensaries_found   INTEGER NOT NULL DEFAULT 0,
	dispensaries_added   INTEGER NOT NULL DEFAULT 0,
	dispensaries_updated INTEGER NOT NULL DEFAULT 0,
	errors               TEXT,
	completed_at         DATETIME,
	status               TEXT NOT NULL DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_dispensaries_county ON dispensaries(county_id);
CREATE INDEX IF NOT EXISTS idx_dispensaries_state ON dispensaries(state_id);
CREATE INDEX IF NOT EXISTS idx_rankings_scope ON rankings(scope_type, scope_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetDispensaryByPlaceID(ctx context.Context, placeID string) (*model.Dispensary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+dispensaryColumns+` FROM dispensaries WHERE google_place_id = ?`,
		placeID,
	)

	d, err := scanDispensary(row)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get dispensary %s", placeID)
	}
	return d, nil
}

func (s *SQLiteStore) UpsertDispensary(ctx context.Context, d *model.Dispensary) (bool, error) {
	photos, hours, listings, menus, err := marshalDispensaryJSON(d)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	var existingID int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM dispensaries WHERE google_place_id = ?`, d.GooglePlaceID,
	).Scan(&existingID)

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE dispensaries SET
				name = ?, address_street = ?, city = ?, county_id = ?, state_id = ?, zip = ?,
				lat = ?, lng = ?, phone = ?, website = ?, logo_url = ?, photos = ?, hours = ?,
				license_number = ?, google_rating = ?, google_review_count = ?,
				external_listings = ?, menu_mentions = ?, data_completeness_score = ?, updated_at = ?
			WHERE id = ?`,
			d.Name, d.AddressStreet, d.City, d.CountyID, d.StateID, d.Zip,
			d.Lat, d.Lng, d.Phone, d.Website, d.LogoURL, photos, hours,
			d.LicenseNumber, d.GoogleRating, d.GoogleReviewCount,
			listings, menus, d.CompletenessScore, now,
			existingID,
		)
		if err != nil {
			return false, eris.Wrapf(err, "sqlite: update dispensary %s", d.GooglePlaceID)
		}
		d.ID = existingID
		return false, nil

	case eris.Is(err, sql.ErrNoRows):
		res, insErr := s.db.ExecContext(ctx, `
			INSERT INTO dispensaries (
				google_place_id, name, address_street, city, county_id, state_id, zip,
				lat, lng, phone, website, logo_url, photos, hours, license_number,
				google_rating, google_review_count, external_listings, menu_mentions,
				data_completeness_score, is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			d.GooglePlaceID, d.Name, d.AddressStreet, d.City, d.CountyID, d.StateID, d.Zip,
			d.Lat, d.Lng, d.Phone, d.Website, d.LogoURL, photos, hours, d.LicenseNumber,
			d.GoogleRating, d.GoogleReviewCount, listings, menus,
			d.CompletenessScore, now, now,
		)
		if insErr != nil {
			return false, eris.Wrapf(insErr, "sqlite: insert dispensary %s", d.GooglePlaceID)
		}
		d.ID, insErr = res.LastInsertId()
		if insErr != nil {
			return false, eris.Wrap(insErr, "sqlite: last insert id")
		}
		return true, nil

	default:
		return false, eris.Wrapf(err, "sqlite: lookup dispensary %s", d.GooglePlaceID)
	}
}

func (s *SQLiteStore) ListActiveDispensaries(ctx context.Context) ([]model.Dispensary, error) {
	return s.listDispensaries(ctx,
		`SELECT `+dispensaryColumns+` FROM dispensaries WHERE is_active = 1 ORDER BY id`)
}

func (s *SQLiteStore) ListActiveMissingCounty(ctx context.Context) ([]model.Dispensary, error) {
	return s.listDispensaries(ctx,
		`SELECT `+dispensaryColumns+` FROM dispensaries WHERE is_active = 1 AND county_id IS NULL ORDER BY id`)
}

func (s *SQLiteStore) TopRankedDispensaries(ctx context.Context, limit int) ([]model.Dispensary, error) {
	return s.listDispensaries(ctx, `
		SELECT `+prefixColumns("d", dispensaryColumns)+`
		FROM dispensaries d
		JOIN rankings r ON r.dispensary_id = d.id AND r.scope_type = 'state'
		WHERE d.is_active = 1 AND d.google_place_id <> ''
		ORDER BY r.composite_score DESC
		LIMIT ?`, limit)
}

func (s *SQLiteStore) listDispensaries(ctx context.Context, query string, args ...any) ([]model.Dispensary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dispensaries")
	}
	defer rows.Close()

	var out []model.Dispensary
	for rows.Next() {
		d, err := scanDispensary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dispensary")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate dispensaries")
}

func (s *SQLiteStore) UpdateDispensaryRating(ctx context.Context, id int64, rating float64, reviewCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE dispensaries SET google_rating = ?, google_review_count = ?, updated_at = ? WHERE id = ?`,
		rating, reviewCount, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: update rating for dispensary %d", id)
}

func (s *SQLiteStore) AssignCounty(ctx context.Context, dispensaryID, countyID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dispensaries SET county_id = ?,
			state_id = (SELECT state_id FROM counties WHERE id = ?),
			updated_at = ?
		WHERE id = ?`,
		countyID, countyID, time.Now().UTC(), dispensaryID,
	)
	return eris.Wrapf(err, "sqlite: assign county for dispensary %d", dispensaryID)
}

func (s *SQLiteStore) VoteCounts(ctx context.Context, dispensaryID int64) (model.VoteCounts, error) {
	var vc model.VoteCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN vote_type > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN vote_type < 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(vote_type), 0)
		FROM votes WHERE dispensary_id = ?`,
		dispensaryID,
	).Scan(&vc.Upvotes, &vc.Downvotes, &vc.NetVotes)
	if err != nil {
		return model.VoteCounts{}, eris.Wrapf(err, "sqlite: vote counts for dispensary %d", dispensaryID)
	}
	return vc, nil
}

func (s *SQLiteStore) ViewCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error) {
	return s.windowedCount(ctx, "page_views", dispensaryID, windowDays)
}

func (s *SQLiteStore) ClickCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error) {
	return s.windowedCount(ctx, "click_events", dispensaryID, windowDays)
}

func (s *SQLiteStore) windowedCount(ctx context.Context, table string, dispensaryID int64, windowDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE dispensary_id = ? AND created_at >= ?`, table),
		dispensaryID, cutoff,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s count for dispensary %d", table, dispensaryID)
	}
	return n, nil
}

func (s *SQLiteStore) MaxReviewCount(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(MAX(google_review_count), 0) FROM dispensaries WHERE %s = ? AND is_active = 1`,
		scopeColumn(scope),
	), scopeID).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: max review count for %s %d", scope, scopeID)
	}
	return n, nil
}

func (s *SQLiteStore) MaxNetVotes(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(MAX(net_votes), 0) FROM (
			SELECT SUM(v.vote_type) AS net_votes
			FROM dispensaries d
			JOIN votes v ON v.dispensary_id = d.id
			WHERE d.%s = ? AND d.is_active = 1
			GROUP BY d.id
		)`,
		scopeColumn(scope),
	), scopeID).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: max net votes for %s %d", scope, scopeID)
	}
	return n, nil
}

func (s *SQLiteStore) MaxViewCount(ctx context.Context, scope model.ScopeType, scopeID int64, windowDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(MAX(view_count), 0) FROM (
			SELECT COUNT(pv.id) AS view_count
			FROM dispensaries d
			JOIN page_views pv ON pv.dispensary_id = d.id AND pv.created_at >= ?
			WHERE d.%s = ? AND d.is_active = 1
			GROUP BY d.id
		)`,
		scopeColumn(scope),
	), cutoff, scopeID).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: max view count for %s %d", scope, scopeID)
	}
	return n, nil
}

func (s *SQLiteStore) UpsertRanking(ctx context.Context, dispensaryID int64, scope model.ScopeType, scopeID int64, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rankings (dispensary_id, scope_type, scope_id, composite_score, calculated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (dispensary_id, scope_type, scope_id)
		DO UPDATE SET
			previous_rank = rank,
			composite_score = excluded.composite_score,
			calculated_at = excluded.calculated_at`,
		dispensaryID, scope, scopeID, score, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert ranking for dispensary %d", dispensaryID)
}

func (s *SQLiteStore) UpdateRanks(ctx context.Context, scope model.ScopeType, scopeID int64) error {
	_, err := s.db.ExecContext(ctx, `
		WITH ranked AS (
			SELECT id, ROW_NUMBER() OVER (ORDER BY composite_score DESC, dispensary_id ASC) AS new_rank
			FROM rankings
			WHERE scope_type = ? AND scope_id = ?
		)
		UPDATE rankings
		SET rank = (SELECT new_rank FROM ranked WHERE ranked.id = rankings.id)
		WHERE id IN (SELECT id FROM ranked)`,
		scope, scopeID,
	)
	return eris.Wrapf(err, "sqlite: update ranks for %s %d", scope, scopeID)
}

func (s *SQLiteStore) GetCounty(ctx context.Context, id int64) (*model.County, error) {
	var c model.County
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.state_id, c.name, s.abbreviation
		FROM counties c JOIN states s ON s.id = c.state_id
		WHERE c.id = ?`,
		id,
	).Scan(&c.ID, &c.StateID, &c.Name, &c.StateAbbr)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get county %d", id)
	}
	return &c, nil
}

func (s *SQLiteStore) GetStateByAbbr(ctx context.Context, abbr string) (*model.State, error) {
	var st model.State
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, abbreviation FROM states WHERE abbreviation = ?`,
		abbr,
	).Scan(&st.ID, &st.Name, &st.Abbreviation)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get state %s", abbr)
	}
	return &st, nil
}

func (s *SQLiteStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, abbreviation FROM states ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list states")
	}
	defer rows.Close()

	var states []model.State
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Name, &st.Abbreviation); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state")
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "sqlite: iterate states")
}

func (s *SQLiteStore) ListCounties(ctx context.Context) ([]model.County, error) {
	return s.listCounties(ctx, `
		SELECT c.id, c.state_id, c.name, s.abbreviation
		FROM counties c JOIN states s ON s.id = c.state_id
		ORDER BY s.abbreviation, c.name`)
}

func (s *SQLiteStore) ListCountiesByState(ctx context.Context, stateID int64) ([]model.County, error) {
	return s.listCounties(ctx, `
		SELECT c.id, c.state_id, c.name, s.abbreviation
		FROM counties c JOIN states s ON s.id = c.state_id
		WHERE c.state_id = ?
		ORDER BY c.name`, stateID)
}

func (s *SQLiteStore) listCounties(ctx context.Context, query string, args ...any) ([]model.County, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list counties")
	}
	defer rows.Close()

	var counties []model.County
	for rows.Next() {
		var c model.County
		if err := rows.Scan(&c.ID, &c.StateID, &c.Name, &c.StateAbbr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan county")
		}
		counties = append(counties, c)
	}
	return counties, eris.Wrap(rows.Err(), "sqlite: iterate counties")
}

func (s *SQLiteStore) UpsertState(ctx context.Context, name, abbr string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO states (name, abbreviation) VALUES (?, ?)
		ON CONFLICT (abbreviation) DO UPDATE SET name = excluded.name`,
		name, abbr,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert state %s", abbr)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `SELECT id FROM states WHERE abbreviation = ?`, abbr).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: lookup state %s", abbr)
	}
	return id, nil
}

func (s *SQLiteStore) UpsertCounty(ctx context.Context, stateID int64, name string) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counties (state_id, name) VALUES (?, ?)
		ON CONFLICT (state_id, name) DO UPDATE SET name = excluded.name`,
		stateID, name,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert county %s", name)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM counties WHERE state_id = ? AND name = ?`, stateID, name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: lookup county %s", name)
	}
	return id, nil
}

func (s *SQLiteStore) StartCrawlLog(ctx context.Context, jobType model.CrawlJobType, location string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_logs (id, job_type, location, started_at, status)
		VALUES (?, ?, ?, ?, 'running')`,
		id, jobType, location, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: start crawl log for %s", location)
	}
	return id, nil
}

func (s *SQLiteStore) CompleteCrawlLog(ctx context.Context, id string, found, added, updated int, errs []string) error {
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal crawl errors")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE crawl_logs
		SET dispensaries_found = ?, dispensaries_added = ?, dispensaries_updated = ?,
		    errors = ?, completed_at = ?, status = 'completed'
		WHERE id = ?`,
		found, added, updated, errsJSON, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: complete crawl log %s", id)
}

func (s *SQLiteStore) FailCrawlLog(ctx context.Context, id string, errMsg string) error {
	errsJSON, err := json.Marshal([]string{errMsg})
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal crawl error")
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE crawl_logs
		SET errors = ?, completed_at = ?, status = 'failed'
		WHERE id = ?`,
		errsJSON, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: fail crawl log %s", id)
}

func (s *SQLiteStore) ListCrawlLogs(ctx context.Context, limit int) ([]model.CrawlLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_type, location, started_at, dispensaries_found,
		       dispensaries_added, dispensaries_updated, errors, completed_at, status
		FROM crawl_logs
		ORDER BY started_at DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list crawl logs")
	}
	defer rows.Close()

	var logs []model.CrawlLog
	for rows.Next() {
		var (
			cl       model.CrawlLog
			errsJSON []byte
		)
		if err := rows.Scan(&cl.ID, &cl.JobType, &cl.Location, &cl.StartedAt, &cl.Found,
			&cl.Added, &cl.Updated, &errsJSON, &cl.CompletedAt, &cl.Status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan crawl log")
		}
		if len(errsJSON) > 0 {
			if err := json.Unmarshal(errsJSON, &cl.Errors); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal crawl errors")
			}
		}
		logs = append(logs, cl)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: iterate crawl logs")
}
