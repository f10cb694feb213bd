package geo

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leafline/dispensary-cli/internal/model"
	"github.com/leafline/dispensary-cli/pkg/places"
)

// BackfillStore is the subset of the store needed to repair county assignments.
type BackfillStore interface {
	RegionStore
	ListActiveMissingCounty(ctx context.Context) ([]model.Dispensary, error)
	GetStateByAbbr(ctx context.Context, abbr string) (*model.State, error)
	AssignCounty(ctx context.Context, dispensaryID, countyID int64) error
}

// CountyLocator resolves a coordinate to a county. BoundaryIndex implements
// it offline; geocodeLocator implements it against the Geocoding API.
type CountyLocator interface {
	LocateCounty(ctx context.Context, lat, lng float64) (name, stateAbbr string, err error)
}

// LocateCounty implements CountyLocator using the loaded TIGER polygons.
func (b *BoundaryIndex) LocateCounty(_ context.Context, lat, lng float64) (string, string, error) {
	c := b.Locate(lat, lng)
	if c == nil {
		return "", "", nil
	}
	return c.Name, c.StateAbbr, nil
}

type geocodeLocator struct {
	client places.Client
}

// NewGeocodeLocator resolves coordinates through reverse geocoding.
func NewGeocodeLocator(client places.Client) CountyLocator {
	return &geocodeLocator{client: client}
}

func (g *geocodeLocator) LocateCounty(ctx context.Context, lat, lng float64) (string, string, error) {
	result, err := g.client.Geocode(ctx, fmt.Sprintf("%f,%f", lat, lng))
	if err != nil {
		return "", "", eris.Wrap(err, "geo: reverse geocode")
	}
	if result == nil {
		return "", "", nil
	}

	addr := places.ParseAddressComponents(result.AddressComponents)
	return addr.County, addr.StateAbbr, nil
}

// BackfillResult summarizes a county backfill run.
type BackfillResult struct {
	Examined  int
	Assigned  int
	Unmatched int
	Failed    int
}

// BackfillCounties assigns a county to every active dispensary stored
// without one, resolving coordinates through the given locator. Failures on
// individual dispensaries are logged and counted, not fatal.
func BackfillCounties(ctx context.Context, store BackfillStore, locator CountyLocator) (BackfillResult, error) {
	log := zap.L().With(zap.String("component", "geo.backfill"))

	dispensaries, err := store.ListActiveMissingCounty(ctx)
	if err != nil {
		return BackfillResult{}, eris.Wrap(err, "geo: list dispensaries missing county")
	}

	res := BackfillResult{Examined: len(dispensaries)}
	stateIDs := make(map[string]int64)

	for _, d := range dispensaries {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "geo: backfill cancelled")
		}

		county, abbr, err := locator.LocateCounty(ctx, d.Lat, d.Lng)
		if err != nil {
			res.Failed++
			log.Warn("county lookup failed",
				zap.Int64("dispensary_id", d.ID),
				zap.Error(err),
			)
			continue
		}

		county = CanonicalCountyName(county)
		abbr = CanonicalStateAbbr(abbr)
		if county == "" || abbr == "" {
			res.Unmatched++
			log.Debug("no county match",
				zap.Int64("dispensary_id", d.ID),
				zap.Float64("lat", d.Lat),
				zap.Float64("lng", d.Lng),
			)
			continue
		}

		stateID, ok := stateIDs[abbr]
		if !ok {
			state, err := store.GetStateByAbbr(ctx, abbr)
			if err != nil {
				return res, eris.Wrapf(err, "geo: get state %s", abbr)
			}
			if state == nil {
				res.Unmatched++
				log.Warn("state not in reference data",
					zap.Int64("dispensary_id", d.ID),
					zap.String("state", abbr),
				)
				continue
			}
			stateID = state.ID
			stateIDs[abbr] = stateID
		}

		countyID, err := store.UpsertCounty(ctx, stateID, county)
		if err != nil {
			return res, eris.Wrapf(err, "geo: upsert county %s, %s", county, abbr)
		}

		if err := store.AssignCounty(ctx, d.ID, countyID); err != nil {
			return res, eris.Wrapf(err, "geo: assign county to dispensary %d", d.ID)
		}
		res.Assigned++
	}

	log.Info("county backfill complete",
		zap.Int("examined", res.Examined),
		zap.Int("assigned", res.Assigned),
		zap.Int("unmatched", res.Unmatched),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
