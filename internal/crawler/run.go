package crawler

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leafline/dispensary-cli/internal/model"
)

// CrawlState crawls every county in a state. Counties run concurrently up
// to the configured limit; a county that fails to crawl is recorded in the
// state run's error list without aborting its siblings.
func (c *Crawler) CrawlState(ctx context.Context, state model.State) (model.CrawlStats, error) {
	log := c.log.With(zap.String("state", state.Abbreviation))

	logID, err := c.store.StartCrawlLog(ctx, model.CrawlJobState, state.Name)
	if err != nil {
		return model.CrawlStats{}, eris.Wrapf(err, "crawler: start crawl log for %s", state.Name)
	}

	counties, err := c.store.ListCountiesByState(ctx, state.ID)
	if err != nil {
		wrapped := eris.Wrapf(err, "crawler: list counties for %s", state.Abbreviation)
		if failErr := c.store.FailCrawlLog(ctx, logID, wrapped.Error()); failErr != nil {
			log.Warn("failed to record crawl failure", zap.Error(failErr))
		}
		return model.CrawlStats{}, wrapped
	}
	log.Info("state crawl started", zap.Int("counties", len(counties)))

	collector := &statsCollector{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.CountyConcurrency)

	for _, county := range counties {
		county := county
		g.Go(func() error {
			stats, err := c.CrawlCounty(gctx, county)
			if err != nil {
				collector.fail(fmt.Sprintf("%s: %v", county.Name, err))
				// County failures stay within the state run.
				return nil
			}
			collector.add(stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.CrawlStats{}, err
	}

	stats, errs := collector.snapshot()
	if err := c.store.CompleteCrawlLog(ctx, logID, stats.Found, stats.Added, stats.Updated, errs); err != nil {
		log.Warn("failed to complete crawl log", zap.Error(err))
	}

	log.Info("state crawl complete",
		zap.Int("found", stats.Found),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("failed_counties", len(errs)),
	)
	return stats, nil
}

// CrawlAll crawls every state in the store, sequentially. States are large
// units; running them one at a time keeps the provider request rate
// bounded by the per-client limiters.
func (c *Crawler) CrawlAll(ctx context.Context) (model.CrawlStats, error) {
	logID, err := c.store.StartCrawlLog(ctx, model.CrawlJobAll, "all states")
	if err != nil {
		return model.CrawlStats{}, eris.Wrap(err, "crawler: start crawl log")
	}

	states, err := c.store.ListStates(ctx)
	if err != nil {
		wrapped := eris.Wrap(err, "crawler: list states")
		if failErr := c.store.FailCrawlLog(ctx, logID, wrapped.Error()); failErr != nil {
			c.log.Warn("failed to record crawl failure", zap.Error(failErr))
		}
		return model.CrawlStats{}, wrapped
	}
	c.log.Info("full crawl started", zap.Int("states", len(states)))

	var total model.CrawlStats
	var errs []string
	for _, state := range states {
		if ctx.Err() != nil {
			return total, eris.Wrap(ctx.Err(), "crawler: full crawl cancelled")
		}
		stats, err := c.CrawlState(ctx, state)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", state.Abbreviation, err))
			continue
		}
		total.Merge(stats)
	}

	if err := c.store.CompleteCrawlLog(ctx, logID, total.Found, total.Added, total.Updated, errs); err != nil {
		c.log.Warn("failed to complete crawl log", zap.Error(err))
	}

	c.log.Info("full crawl complete",
		zap.Int("found", total.Found),
		zap.Int("added", total.Added),
		zap.Int("updated", total.Updated),
		zap.Int("failed_states", len(errs)),
	)
	return total, nil
}
