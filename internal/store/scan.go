package store

import (
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/leafline/dispensary-cli/internal/model"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, and *sql.Row/*sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDispensary scans a dispensaryColumns row into a model.Dispensary,
// decoding the JSON columns.
func scanDispensary(row rowScanner) (*model.Dispensary, error) {
	var (
		d                                 model.Dispensary
		photos, hours, listings, mentions []byte
	)

	err := row.Scan(
		&d.ID, &d.GooglePlaceID, &d.Name, &d.AddressStreet, &d.City, &d.CountyID, &d.StateID,
		&d.Zip, &d.Lat, &d.Lng, &d.Phone, &d.Website, &d.LogoURL, &photos, &hours, &d.LicenseNumber,
		&d.GoogleRating, &d.GoogleReviewCount, &listings, &mentions,
		&d.CompletenessScore, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &d.Photos); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal photos")
		}
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &d.Hours); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal hours")
		}
	}
	if len(listings) > 0 {
		if err := json.Unmarshal(listings, &d.ExternalListings); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal external listings")
		}
	}
	if len(mentions) > 0 {
		if err := json.Unmarshal(mentions, &d.MenuMentions); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal menu mentions")
		}
	}

	return &d, nil
}

func scanDispensaries(rows pgx.Rows) ([]model.Dispensary, error) {
	var out []model.Dispensary
	for rows.Next() {
		d, err := scanDispensary(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan dispensary")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate dispensaries")
}

// marshalDispensaryJSON encodes the JSON columns for writes.
func marshalDispensaryJSON(d *model.Dispensary) (photos, hours, listings, mentions []byte, err error) {
	if photos, err = json.Marshal(d.Photos); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "store: marshal photos")
	}
	if hours, err = json.Marshal(d.Hours); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "store: marshal hours")
	}
	if listings, err = json.Marshal(d.ExternalListings); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "store: marshal external listings")
	}
	if mentions, err = json.Marshal(d.MenuMentions); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "store: marshal menu mentions")
	}
	return photos, hours, listings, mentions, nil
}

// prefixColumns rewrites a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
