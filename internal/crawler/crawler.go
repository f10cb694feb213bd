// Package crawler acquires dispensary listings from the Places API and
// reconciles them into the store, one geographic unit at a time.
package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leafline/dispensary-cli/internal/config"
	"github.com/leafline/dispensary-cli/internal/model"
	"github.com/leafline/dispensary-cli/internal/resilience"
	"github.com/leafline/dispensary-cli/pkg/customsearch"
	"github.com/leafline/dispensary-cli/pkg/places"
)

// Store is the persistence surface the crawler writes through.
type Store interface {
	UpsertDispensary(ctx context.Context, d *model.Dispensary) (bool, error)
	ListStates(ctx context.Context) ([]model.State, error)
	ListCountiesByState(ctx context.Context, stateID int64) ([]model.County, error)
	StartCrawlLog(ctx context.Context, jobType model.CrawlJobType, location string) (string, error)
	CompleteCrawlLog(ctx context.Context, id string, found, added, updated int, errs []string) error
	FailCrawlLog(ctx context.Context, id string, errMsg string) error
}

// MentionFinder discovers third-party listing mentions for a dispensary.
/// All methods are best-effort at the pipeline level: the crawler absorbs
// their errors rather than failing a candidate.
type MentionFinder interface {
	FindListingMentions(ctx context.Context, name, city, state string) (customsearch.Listings, error)
	FindMenuMentions(ctx context.Context, name, city, state string) ([]customsearch.Mention, error)
	FindLicenseNumber(ctx context.Context, name, state string) (string, error)
}

type searchMentions struct {
	client customsearch.Client
}

// NewMentionFinder adapts a Custom Search client into a MentionFinder.
func NewMentionFinder(client customsearch.Client) MentionFinder {
	return &searchMentions{client: client}
}

func (s *searchMentions) FindListingMentions(ctx context.Context, name, city, state string) (customsearch.Listings, error) {
	return customsearch.FindListingMentions(ctx, s.client, name, city, state)
}

func (s *searchMentions) FindMenuMentions(ctx context.Context, name, city, state string) ([]customsearch.Mention, error) {
	return customsearch.FindMenuMentions(ctx, s.client, name, city, state)
}

func (s *searchMentions) FindLicenseNumber(ctx context.Context, name, state string) (string, error) {
	return customsearch.FindLicenseNumber(ctx, s.client, name, state)
}

// Crawler orchestrates acquisition for counties, states, and full runs.
type Crawler struct {
	places   places.Client
	mentions MentionFinder
	store    Store
	cfg      config.CrawlConfig

	retryCfg   resilience.RetryConfig
	mentionsCB *resilience.CircuitBreaker
	log        *zap.Logger
}

// New creates a Crawler. The mention finder may be nil, in which case
// listing mentions are skipped entirely.
func New(placesClient places.Client, mentions MentionFinder, store Store, cfg config.CrawlConfig) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = 5
	}
	if cfg.TargetCountry == "" {
		cfg.TargetCountry = "United States"
	}
	if cfg.CountyConcurrency <= 0 {
		cfg.CountyConcurrency = 1
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("places", "details")

	return &Crawler{
		places:     placesClient,
		mentions:   mentions,
		store:      store,
		cfg:        cfg,
		retryCfg:   retryCfg,
		mentionsCB: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		log:        zap.L().With(zap.String("component", "crawler")),
	}
}

// CrawlCounty acquires dispensaries for one county, recording the run in
// the crawl log. Individual candidate failures are absorbed into the run's
// statistics; only a failure to search the county at all is fatal.
func (c *Crawler) CrawlCounty(ctx context.Context, county model.County) (model.CrawlStats, error) {
	location := fmt.Sprintf("%s County, %s", county.Name, county.StateAbbr)
	log := c.log.With(
		zap.String("county", county.Name),
		zap.String("state", county.StateAbbr),
	)

	logID, err := c.store.StartCrawlLog(ctx, model.CrawlJobCounty, location)
	if err != nil {
		return model.CrawlStats{}, eris.Wrapf(err, "crawler: start crawl log for %s", location)
	}

	stats, errs, err := c.crawlUnit(ctx, log, location, county)
	if err != nil {
		if failErr := c.store.FailCrawlLog(ctx, logID, err.Error()); failErr != nil {
			log.Warn("failed to record crawl failure", zap.Error(failErr))
		}
		return stats, err
	}

	if err := c.store.CompleteCrawlLog(ctx, logID, stats.Found, stats.Added, stats.Updated, errs); err != nil {
		log.Warn("failed to complete crawl log", zap.Error(err))
	}

	log.Info("county crawl complete",
		zap.Int("found", stats.Found),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// crawlUnit runs the search/enrich/upsert loop for one location query.
func (c *Crawler) crawlUnit(ctx context.Context, log *zap.Logger, location string, county model.County) (model.CrawlStats, []string, error) {
	var stats model.CrawlStats
	var errs []string

	candidates, err := c.searchAllPages(ctx, "dispensaries in "+location)
	if err != nil {
		return stats, errs, eris.Wrapf(err, "crawler: search %s", location)
	}
	stats.Found = len(candidates)
	log.Info("search complete", zap.Int("candidates", len(candidates)))

	for _, place := range candidates {
		if ctx.Err() != nil {
			return stats, errs, eris.Wrap(ctx.Err(), "crawler: crawl cancelled")
		}

		if !places.IsValidDispensary(place) {
			stats.Skipped++
			log.Debug("skipping invalid candidate",
				zap.String("name", place.Name),
				zap.String("place_id", place.PlaceID),
				zap.Strings("types", place.Types),
			)
			continue
		}

		created, err := c.enrichAndUpsert(ctx, place, county)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Sprintf("%s: %v", place.Name, err))
			log.Warn("candidate failed",
				zap.String("name", place.Name),
				zap.String("place_id", place.PlaceID),
				zap.Error(err),
			)
			continue
		}
		if created {
			stats.Added++
		} else {
			stats.Updated++
		}
	}

	return stats, errs, nil
}

// searchAllPages pages through search results up to the configured cap.
// The places client handles the provider-mandated token settle delay.
func (c *Crawler) searchAllPages(ctx context.Context, query string) ([]places.Place, error) {
	page, err := c.places.SearchDispensaries(ctx, query)
	if err != nil {
		return nil, err
	}

	results := page.Results
	for fetched := 1; fetched < c.cfg.MaxPages && page.NextPageToken != ""; fetched++ {
		page, err = c.places.NextPage(ctx, page.NextPageToken)
		if err != nil {
			// Keep what we have; a bad continuation token should not
			// discard the earlier pages.
			c.log.Warn("pagination aborted", zap.Int("pages", fetched), zap.Error(err))
			break
		}
		results = append(results, page.Results...)
	}
	return results, nil
}

// enrichAndUpsert fetches details and mentions for one candidate and
// writes the assembled record. Returns whether a new record was created.
func (c *Crawler) enrichAndUpsert(ctx context.Context, place places.Place, county model.County) (bool, error) {
	details, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*places.PlaceDetails, error) {
		return c.places.PlaceDetails(ctx, place.PlaceID)
	})
	if err != nil {
		return false, eris.Wrap(err, "fetch details")
	}

	addr := places.ParseAddressComponents(details.AddressComponents)
	if addr.Country != c.cfg.TargetCountry {
		return false, eris.Errorf("outside target country: %q", addr.Country)
	}

	d := &model.Dispensary{
		GooglePlaceID:     place.PlaceID,
		Name:              details.Name,
		AddressStreet:     addr.Street,
		City:              addr.City,
		CountyID:          &county.ID,
		StateID:           &county.StateID,
		Zip:               addr.Zip,
		Lat:               details.Geometry.Location.Lat,
		Lng:               details.Geometry.Location.Lng,
		Phone:             details.Phone(),
		Website:           details.Website,
		GoogleRating:      details.Rating,
		GoogleReviewCount: details.UserRatingsTotal,
		IsActive:          true,
	}

	for i, photo := range details.Photos {
		if i >= c.cfg.MaxPhotos {
			break
		}
		d.Photos = append(d.Photos, c.places.PhotoURL(photo.PhotoReference, 0))
	}
	if len(d.Photos) > 0 {
		d.LogoURL = d.Photos[0]
	}
	if details.OpeningHours != nil {
		d.Hours = &model.OpeningHours{
			OpenNow:     details.OpeningHours.OpenNow,
			WeekdayText: details.OpeningHours.WeekdayText,
		}
	}

	c.discoverMentions(ctx, d, addr)
	d.CompletenessScore = CompletenessScore(d)

	created, err := c.store.UpsertDispensary(ctx, d)
	if err != nil {
		return false, eris.Wrap(err, "upsert")
	}
	return created, nil
}

// discoverMentions fills the listing, menu, and license fields. Every
// lookup is best-effort: failures are logged and leave the fields empty.
// The shared circuit breaker stops hammering the search API once it has
// failed repeatedly within a run.
func (c *Crawler) discoverMentions(ctx context.Context, d *model.Dispensary, addr places.ParsedAddress) {
	if c.mentions == nil {
		return
	}
	log := c.log.With(zap.String("name", d.Name))

	listings, err := resilience.ExecuteVal(ctx, c.mentionsCB, func(ctx context.Context) (customsearch.Listings, error) {
		return c.mentions.FindListingMentions(ctx, d.Name, addr.City, addr.StateAbbr)
	})
	if err != nil {
		log.Warn("listing mention search failed", zap.Error(err))
	} else {
		d.ExternalListings = convertListings(listings)
	}

	menus, err := resilience.ExecuteVal(ctx, c.mentionsCB, func(ctx context.Context) ([]customsearch.Mention, error) {
		return c.mentions.FindMenuMentions(ctx, d.Name, addr.City, addr.StateAbbr)
	})
	if err != nil {
		log.Warn("menu mention search failed", zap.Error(err))
	} else {
		d.MenuMentions = convertMentions(menus)
	}

	license, err := resilience.ExecuteVal(ctx, c.mentionsCB, func(ctx context.Context) (string, error) {
		return c.mentions.FindLicenseNumber(ctx, d.Name, addr.StateAbbr)
	})
	if err != nil {
		log.Warn("license search failed", zap.Error(err))
	} else {
		d.LicenseNumber = license
	}
}

func convertListings(l customsearch.Listings) model.ExternalListings {
	out := model.ExternalListings{
		Leafly:   convertMention(l.Leafly),
		Weedmaps: convertMention(l.Weedmaps),
	}
	for _, m := range l.Other {
		out.Other = append(out.Other, model.ListingMention{URL: m.URL, Title: m.Title, Snippet: m.Snippet})
	}
	return out
}

func convertMention(m *customsearch.Mention) *model.ListingMention {
	if m == nil {
		return nil
	}
	return &model.ListingMention{URL: m.URL, Title: m.Title, Snippet: m.Snippet}
}

func convertMentions(ms []customsearch.Mention) []model.ListingMention {
	out := make([]model.ListingMention, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.ListingMention{URL: m.URL, Title: m.Title, Snippet: m.Snippet})
	}
	return out
}

// statsCollector accumulates stats and errors from concurrent county crawls.
type statsCollector struct {
	mu    sync.Mutex
	stats model.CrawlStats
	errs  []string
}

func (sc *statsCollector) add(stats model.CrawlStats) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats.Merge(stats)
}

func (sc *statsCollector) fail(msg string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.errs = append(sc.errs, msg)
}

func (sc *statsCollector) snapshot() (model.CrawlStats, []string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.stats, sc.errs
}
