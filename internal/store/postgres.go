package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/leafline/dispensary-cli/internal/db"
	"github.com/leafline/dispensary-cli/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore backed by the given pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS states (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	abbreviation TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS counties (
	id       BIGSERIAL PRIMARY KEY,
	state_id BIGINT NOT NULL REFERENCES states(id),
	name     TEXT NOT NULL,
	UNIQUE (state_id, name)
);

CREATE TABLE IF NOT EXISTS dispensaries (
	id                      BIGSERIAL PRIMARY KEY,
	google_place_id         TEXT NOT NULL UNIQUE,
	name                    TEXT NOT NULL,
	address_street          TEXT NOT NULL DEFAULT '',
	city                    TEXT NOT NULL DEFAULT '',
	county_id               BIGINT REFERENCES counties(id),
	state_id                BIGINT REFERENCES states(id),
	zip                     TEXT NOT NULL DEFAULT '',
	lat                     DOUBLE PRECISION NOT NULL DEFAULT 0,
	lng                     DOUBLE PRECISION NOT NULL DEFAULT 0,
	phone                   TEXT NOT NULL DEFAULT '',
	website                 TEXT NOT NULL DEFAULT '',
	logo_url                TEXT NOT NULL DEFAULT '',
	photos                  JSONB,
	hours                   JSONB,
	license_number          TEXT NOT NULL DEFAULT '',
	google_rating           DOUBLE PRECISION NOT NULL DEFAULT 0,
	google_review_count     INTEGER NOT NULL DEFAULT 0,
	external_listings       JSONB,
	menu_mentions           JSONB,
	data_completeness_score INTEGER NOT NULL DEFAULT 0,
	is_active               BOOLEAN NOT NULL DEFAULT TRUE,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS votes (
	id            BIGSERIAL PRIMARY KEY,
	dispensary_id BIGINT NOT NULL REFERENCES dispensaries(id),
	vote_type     SMALLINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS page_views (
	id            BIGSERIAL PRIMARY KEY,
	dispensary_id BIGINT NOT NULL REFERENCES dispensaries(id),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS click_events (
	id            BIGSERIAL PRIMARY KEY,
	dispensary_id BIGINT NOT NULL REFERENCES dispensaries(id),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rankings (
	id              BIGSERIAL PRIMARY KEY,
	dispensary_id   BIGINT NOT NULL REFERENCES dispensaries(id),
	scope_type      TEXT NOT NULL,
	scope_id        BIGINT NOT NULL,
	composite_score DOUBLE PRECISION NOT NULL,
	rank            INTEGER NOT NULL DEFAULT 0,
	previous_rank   INTEGER NOT NULL DEFAULT 0,
	calculated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (dispensary_id, scope_type, scope_id)
);

CREATE TABLE IF NOT EXISTS crawl_logs (
	id                   TEXT PRIMARY KEY,
	job_type             TEXT NOT NULL,
	location             TEXT NOT NULL,
	started_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	dispensaries_found   INTEGER NOT NULL DEFAULT 0,
	dispensaries_added   INTEGER NOT NULL DEFAULT 0,
	dispensaries_updated INTEGER NOT NULL DEFAULT 0,
	errors               JSONB,
	completed_at         TIMESTAMPTZ,
	status               TEXT NOT NULL DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_dispensaries_county ON dispensaries(county_id);
CREATE INDEX IF NOT EXISTS idx_dispensaries_state ON dispensaries(state_id);
CREATE INDEX IF NOT EXISTS idx_dispensaries_active ON dispensaries(is_active);
CREATE INDEX IF NOT EXISTS idx_votes_dispensary ON votes(dispensary_id);
CREATE INDEX IF NOT EXISTS idx_page_views_dispensary ON page_views(dispensary_id, created_at);
CREATE INDEX IF NOT EXISTS idx_click_events_dispensary ON click_events(dispensary_id, created_at);
CREATE INDEX IF NOT EXISTS idx_rankings_scope ON rankings(scope_type, scope_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const dispensaryColumns = `id, google_place_id, name, address_street, city, county_id, state_id,
	zip, lat, lng, phone, website, logo_url, photos, hours, license_number,
	google_rating, google_review_count, external_listings, menu_mentions,
	data_completeness_score, is_active, created_at, updated_at`

func (s *PostgresStore) GetDispensaryByPlaceID(ctx context.Context, placeID string) (*model.Dispensary, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dispensaryColumns+` FROM dispensaries WHERE google_place_id = $1`,
		placeID,
	)

	d, err := scanDispensary(row)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get dispensary %s", placeID)
	}
	return d, nil
}

// UpsertDispensary inserts or updates by google_place_id in a single
// statement. The xmax = 0 check distinguishes a fresh insert from a
// conflict update.
func (s *PostgresStore) UpsertDispensary(ctx context.Context, d *model.Dispensary) (bool, error) {
	photos, hours, listings, menus, err := marshalDispensaryJSON(d)
	if err != nil {
		return false, err
	}

	var created bool
	err = s.pool.QueryRow(ctx, `
		INSERT INTO dispensaries (
			google_place_id, name, address_street, city, county_id, state_id, zip,
			lat, lng, phone, website, logo_url, photos, hours, license_number,
			google_rating, google_review_count, external_listings, menu_mentions,
			data_completeness_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (google_place_id) DO UPDATE SET
			name = EXCLUDED.name,
			address_street = EXCLUDED.address_street,
			city = EXCLUDED.city,
			county_id = EXCLUDED.county_id,
			state_id = EXCLUDED.state_id,
			zip = EXCLUDED.zip,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			phone = EXCLUDED.phone,
			website = EXCLUDED.website,
			logo_url = EXCLUDED.logo_url,
			photos = EXCLUDED.photos,
			hours = EXCLUDED.hours,
			license_number = EXCLUDED.license_number,
			google_rating = EXCLUDED.google_rating,
			google_review_count = EXCLUDED.google_review_count,
			external_listings = EXCLUDED.external_listings,
			menu_mentions = EXCLUDED.menu_mentions,
			data_completeness_score = EXCLUDED.data_completeness_score,
			updated_at = now()
		RETURNING id, (xmax = 0)`,
		d.GooglePlaceID, d.Name, d.AddressStreet, d.City, d.CountyID, d.StateID, d.Zip,
		d.Lat, d.Lng, d.Phone, d.Website, d.LogoURL, photos, hours, d.LicenseNumber,
		d.GoogleRating, d.GoogleReviewCount, listings, menus,
		d.CompletenessScore,
	).Scan(&d.ID, &created)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert dispensary %s", d.GooglePlaceID)
	}
	return created, nil
}

func (s *PostgresStore) ListActiveDispensaries(ctx context.Context) ([]model.Dispensary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dispensaryColumns+` FROM dispensaries WHERE is_active ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active dispensaries")
	}
	defer rows.Close()
	return scanDispensaries(rows)
}

func (s *PostgresStore) ListActiveMissingCounty(ctx context.Context) ([]model.Dispensary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dispensaryColumns+` FROM dispensaries WHERE is_active AND county_id IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dispensaries missing county")
	}
	defer rows.Close()
	return scanDispensaries(rows)
}

func (s *PostgresStore) UpdateDispensaryRating(ctx context.Context, id int64, rating float64, reviewCount int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE dispensaries SET google_rating = $1, google_review_count = $2, updated_at = now() WHERE id = $3`,
		rating, reviewCount, id,
	)
	return eris.Wrapf(err, "postgres: update rating for dispensary %d", id)
}

func (s *PostgresStore) AssignCounty(ctx context.Context, dispensaryID, countyID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE dispensaries d SET county_id = $1,
			state_id = (SELECT state_id FROM counties WHERE id = $1),
			updated_at = now()
		 WHERE d.id = $2`,
		countyID, dispensaryID,
	)
	return eris.Wrapf(err, "postgres: assign county for dispensary %d", dispensaryID)
}

func (s *PostgresStore) TopRankedDispensaries(ctx context.Context, limit int) ([]model.Dispensary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns("d", dispensaryColumns)+`
		FROM dispensaries d
		JOIN rankings r ON r.dispensary_id = d.id AND r.scope_type = 'state'
		WHERE d.is_active AND d.google_place_id <> ''
		ORDER BY r.composite_score DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top ranked dispensaries")
	}
	defer rows.Close()
	return scanDispensaries(rows)
}

func (s *PostgresStore) VoteCounts(ctx context.Context, dispensaryID int64) (model.VoteCounts, error) {
	var vc model.VoteCounts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE vote_type > 0),
		       COUNT(*) FILTER (WHERE vote_type < 0),
		       COALESCE(SUM(vote_type), 0)
		FROM votes WHERE dispensary_id = $1`,
		dispensaryID,
	).Scan(&vc.Upvotes, &vc.Downvotes, &vc.NetVotes)
	if err != nil {
		return model.VoteCounts{}, eris.Wrapf(err, "postgres: vote counts for dispensary %d", dispensaryID)
	}
	return vc, nil
}

func (s *PostgresStore) ViewCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM page_views
		WHERE dispensary_id = $1 AND created_at >= now() - ($2 * INTERVAL '1 day')`,
		dispensaryID, windowDays,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: view count for dispensary %d", dispensaryID)
	}
	return n, nil
}

func (s *PostgresStore) ClickCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM click_events
		WHERE dispensary_id = $1 AND created_at >= now() - ($2 * INTERVAL '1 day')`,
		dispensaryID, windowDays,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: click count for dispensary %d", dispensaryID)
	}
	return n, nil
}

// scopeColumn maps a scope type to the dispensaries column it filters on.
func scopeColumn(scope model.ScopeType) string {
	if scope == model.ScopeState {
		return "state_id"
	}
	return "county_id"
}

func (s *PostgresStore) MaxReviewCount(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT COALESCE(MAX(google_review_count), 0) FROM dispensaries WHERE %s = $1 AND is_active`,
		scopeColumn(scope),
	), scopeID).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: max review count for %s %d", scope, scopeID)
	}
	return n, nil
}

func (s *PostgresStore) MaxNetVotes(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(MAX(net_votes), 0) FROM (
			SELECT SUM(v.vote_type) AS net_votes
			FROM dispensaries d
			JOIN votes v ON v.dispensary_id = d.id
			WHERE d.%s = $1 AND d.is_active
			GROUP BY d.id
		) t`,
		scopeColumn(scope),
	), scopeID).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: max net votes for %s %d", scope, scopeID)
	}
	return n, nil
}

func (s *PostgresStore) MaxViewCount(ctx context.Context, scope model.ScopeType, scopeID int64, windowDays int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COALESCE(MAX(view_count), 0) FROM (
			SELECT COUNT(pv.id) AS view_count
			FROM dispensaries d
			JOIN page_views pv ON pv.dispensary_id = d.id
				AND pv.created_at >= now() - ($2 * INTERVAL '1 day')
			WHERE d.%s = $1 AND d.is_active
			GROUP BY d.id
		) t`,
		scopeColumn(scope),
	), scopeID, windowDays).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: max view count for %s %d", scope, scopeID)
	}
	return n, nil
}

func (s *PostgresStore) UpsertRanking(ctx context.Context, dispensaryID int64, scope model.ScopeType, scopeID int64, score float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rankings (dispensary_id, scope_type, scope_id, composite_score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dispensary_id, scope_type, scope_id)
		DO UPDATE SET
			previous_rank = rankings.rank,
			composite_score = EXCLUDED.composite_score,
			calculated_at = now()`,
		dispensaryID, scope, scopeID, score,
	)
	return eris.Wrapf(err, "postgres: upsert ranking for dispensary %d", dispensaryID)
}

// UpdateRanks rewrites rank positions within a scope: dense 1-based order
// by score descending, ties broken by dispensary id ascending.
func (s *PostgresStore) UpdateRanks(ctx context.Context, scope model.ScopeType, scopeID int64) error {
	_, err := s.pool.Exec(ctx, `
		WITH ranked AS (
			SELECT id, ROW_NUMBER() OVER (ORDER BY composite_score DESC, dispensary_id ASC) AS new_rank
			FROM rankings
			WHERE scope_type = $1 AND scope_id = $2
		)
		UPDATE rankings r
		SET rank = ranked.new_rank
		FROM ranked
		WHERE r.id = ranked.id`,
		scope, scopeID,
	)
	return eris.Wrapf(err, "postgres: update ranks for %s %d", scope, scopeID)
}

func (s *PostgresStore) GetCounty(ctx context.Context, id int64) (*model.County, error) {
	var c model.County
	err := s.pool.QueryRow(ctx, `
		SELECT c.id, c.state_id, c.name, s.abbreviation
		FROM counties c JOIN states s ON s.id = c.state_id
		WHERE c.id = $1`,
		id,
	).Scan(&c.ID, &c.StateID, &c.Name, &c.StateAbbr)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get county %d", id)
	}
	return &c, nil
}

func (s *PostgresStore) GetStateByAbbr(ctx context.Context, abbr string) (*model.State, error) {
	var st model.State
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, abbreviation FROM states WHERE abbreviation = $1`,
		abbr,
	).Scan(&st.ID, &st.Name, &st.Abbreviation)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get state %s", abbr)
	}
	return &st, nil
}

func (s *PostgresStore) ListStates(ctx context.Context) ([]model.State, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, abbreviation FROM states ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list states")
	}
	defer rows.Close()

	var states []model.State
	for rows.Next() {
		var st model.State
		if err := rows.Scan(&st.ID, &st.Name, &st.Abbreviation); err != nil {
			return nil, eris.Wrap(err, "postgres: scan state")
		}
		states = append(states, st)
	}
	return states, eris.Wrap(rows.Err(), "postgres: iterate states")
}

func (s *PostgresStore) ListCounties(ctx context.Context) ([]model.County, error) {
	return s.listCounties(ctx, `
		SELECT c.id, c.state_id, c.name, s.abbreviation
		FROM counties c JOIN states s ON s.id = c.state_id
		ORDER BY s.abbreviation, c.name`)
}

func (s *PostgresStore) ListCountiesByState(ctx context.Context, stateID int64) ([]model.County, error) {
	return s.listCounties(ctx, `
		SELECT c.id, c.state_id, c.name, s.abbreviation
		FROM counties c JOIN states s ON s.id = c.state_id
		WHERE c.state_id = $1
		ORDER BY c.name`, stateID)
}

func (s *PostgresStore) listCounties(ctx context.Context, query string, args ...any) ([]model.County, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list counties")
	}
	defer rows.Close()

	var counties []model.County
	for rows.Next() {
		var c model.County
		if err := rows.Scan(&c.ID, &c.StateID, &c.Name, &c.StateAbbr); err != nil {
			return nil, eris.Wrap(err, "postgres: scan county")
		}
		counties = append(counties, c)
	}
	return counties, eris.Wrap(rows.Err(), "postgres: iterate counties")
}

func (s *PostgresStore) UpsertState(ctx context.Context, name, abbr string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO states (name, abbreviation) VALUES ($1, $2)
		ON CONFLICT (abbreviation) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		name, abbr,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert state %s", abbr)
	}
	return id, nil
}

func (s *PostgresStore) UpsertCounty(ctx context.Context, stateID int64, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO counties (state_id, name) VALUES ($1, $2)
		ON CONFLICT (state_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		stateID, name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: upsert county %s", name)
	}
	return id, nil
}

func (s *PostgresStore) StartCrawlLog(ctx context.Context, jobType model.CrawlJobType, location string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_logs (id, job_type, location, started_at, status)
		VALUES ($1, $2, $3, now(), 'running')`,
		id, jobType, location,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: start crawl log for %s", location)
	}
	return id, nil
}

func (s *PostgresStore) CompleteCrawlLog(ctx context.Context, id string, found, added, updated int, errs []string) error {
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal crawl errors")
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE crawl_logs
		SET dispensaries_found = $1,
		    dispensaries_added = $2,
		    dispensaries_updated = $3,
		    errors = $4,
		    completed_at = now(),
		    status = 'completed'
		WHERE id = $5`,
		found, added, updated, errsJSON, id,
	)
	return eris.Wrapf(err, "postgres: complete crawl log %s", id)
}

func (s *PostgresStore) FailCrawlLog(ctx context.Context, id string, errMsg string) error {
	errsJSON, err := json.Marshal([]string{errMsg})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal crawl error")
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE crawl_logs
		SET errors = $1, completed_at = now(), status = 'failed'
		WHERE id = $2`,
		errsJSON, id,
	)
	return eris.Wrapf(err, "postgres: fail crawl log %s", id)
}

func (s *PostgresStore) ListCrawlLogs(ctx context.Context, limit int) ([]model.CrawlLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_type, location, started_at, dispensaries_found,
		       dispensaries_added, dispensaries_updated, errors, completed_at, status
		FROM crawl_logs
		ORDER BY started_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list crawl logs")
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
			return nil, eris.Wrap(err, "postgres: scan crawl log")
		}
		if len(errsJSON) > 0 {
			if err := json.Unmarshal(errsJSON, &cl.Errors); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal crawl errors")
			}
		}
		logs = append(logs, cl)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: iterate crawl logs")
}
