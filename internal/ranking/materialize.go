package ranking

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leafline/dispensary-cli/internal/model"
)

// scopeKey identifies one ranking cohort.
type scopeKey struct {
	scope model.ScopeType
	id    int64
}

// Result summarizes a full ranking recalculation.
type Result struct {
	Scored int
	Failed int
	Scopes int
}

// CalculateAll recomputes composite scores for every active dispensary and
// rewrites dense ranks in every county and state cohort that was touched. A
// dispensary scores in its county cohort when it has one, and always in its
// state cohort, deriving the state through the county when the row itself
// lacks one. Per-dispensary persistence failures are logged and counted.
func (c *Calculator) CalculateAll(ctx context.Context) (Result, error) {
	log := c.log.With(zap.String("op", "calculate_all"))

	dispensaries, err := c.store.ListActiveDispensaries(ctx)
	if err != nil {
		return Result{}, eris.Wrap(err, "ranking: list active dispensaries")
	}
	log.Info("recalculating rankings", zap.Int("dispensaries", len(dispensaries)))

	var res Result
	touched := make(map[scopeKey]struct{})

	for i := range dispensaries {
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "ranking: calculation cancelled")
		}
		d := &dispensaries[i]

		score, _ := c.Score(ctx, d)

		var failed bool
		if d.CountyID != nil {
			if err := c.store.UpsertRanking(ctx, d.ID, model.ScopeCounty, *d.CountyID, score); err != nil {
				failed = true
				log.Warn("county ranking upsert failed",
					zap.Int64("dispensary_id", d.ID), zap.Error(err))
			} else {
				touched[scopeKey{model.ScopeCounty, *d.CountyID}] = struct{}{}
			}
		}
		stateID := d.StateID
		if stateID == nil && d.CountyID != nil {
			county, err := c.store.GetCounty(ctx, *d.CountyID)
			if err != nil || county == nil {
				log.Warn("county lookup for state scope failed",
					zap.Int64("dispensary_id", d.ID), zap.Error(err))
			} else {
				stateID = &county.StateID
			}
		}
		if stateID != nil {
			if err := c.store.UpsertRanking(ctx, d.ID, model.ScopeState, *stateID, score); err != nil {
				failed = true
				log.Warn("state ranking upsert failed",
					zap.Int64("dispensary_id", d.ID), zap.Error(err))
			} else {
				touched[scopeKey{model.ScopeState, *stateID}] = struct{}{}
			}
		}

		if failed {
			res.Failed++
		} else {
			res.Scored++
		}
	}

	for key := range touched {
		if err := c.store.UpdateRanks(ctx, key.scope, key.id); err != nil {
			return res, eris.Wrapf(err, "ranking: update ranks for %s %d", key.scope, key.id)
		}
		res.Scopes++
	}

	log.Info("ranking recalculation complete",
		zap.Int("scored", res.Scored),
		zap.Int("failed", res.Failed),
		zap.Int("scopes", res.Scopes),
	)
	return res, nil
}
