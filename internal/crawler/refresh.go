package crawler

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leafline/dispensary-cli/internal/model"
	"github.com/leafline/dispensary-cli/internal/resilience"
	"github.com/leafline/dispensary-cli/pkg/places"
)

// RefreshStore is the persistence surface for rating refreshes.
type RefreshStore interface {
	TopRankedDispensaries(ctx context.Context, limit int) ([]model.Dispensary, error)
	ListActiveDispensaries(ctx context.Context) ([]model.Dispensary, error)
	UpdateDispensaryRating(ctx context.Context, id int64, rating float64, reviewCount int) error
}

// RefreshResult summarizes a rating refresh run.
type RefreshResult struct {
	Examined int
	Updated  int
	Failed   int
}

// RefreshRatings re-fetches the provider rating and review count for the
// top-ranked limit active dispensaries. A zero limit refreshes every active
// dispensary; before any scoring run has produced rankings, a limited
// refresh falls back to the active list. Individual fetch failures are
// logged and counted, never fatal.
func RefreshRatings(ctx context.Context, placesClient places.Client, store RefreshStore, limit int) (RefreshResult, error) {
	log := zap.L().With(zap.String("component", "crawler.refresh"))

	var (
		dispensaries []model.Dispensary
		err          error
	)
	if limit > 0 {
		dispensaries, err = store.TopRankedDispensaries(ctx, limit)
		if err != nil {
			return RefreshResult{}, eris.Wrap(err, "refresh: top ranked dispensaries")
		}
	}
	if len(dispensaries) == 0 {
		dispensaries, err = store.ListActiveDispensaries(ctx)
		if err != nil {
			return RefreshResult{}, eris.Wrap(err, "refresh: list active dispensaries")
		}
		if limit > 0 && len(dispensaries) > limit {
			dispensaries = dispensaries[:limit]
		}
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("places", "refresh_details")

	res := RefreshResult{Examined: len(dispensaries)}
	for _, d := range dispensaries {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "refresh: cancelled")
		}

		details, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*places.PlaceDetails, error) {
			return placesClient.PlaceDetails(ctx, d.GooglePlaceID)
		})
		if err != nil {
			res.Failed++
			log.Warn("rating fetch failed",
				zap.Int64("dispensary_id", d.ID),
				zap.String("place_id", d.GooglePlaceID),
				zap.Error(err),
			)
			continue
		}

		if details.Rating == d.GoogleRating && details.UserRatingsTotal == d.GoogleReviewCount {
			continue
		}
		if err := store.UpdateDispensaryRating(ctx, d.ID, details.Rating, details.UserRatingsTotal); err != nil {
			res.Failed++
			log.Warn("rating update failed", zap.Int64("dispensary_id", d.ID), zap.Error(err))
			continue
		}
		res.Updated++
	}

	log.Info("rating refresh complete",
		zap.Int("examined", res.Examined),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
