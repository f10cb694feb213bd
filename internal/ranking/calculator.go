// Package ranking computes composite scores for dispensaries and
// materializes dense ranks within county and state cohorts.
package ranking

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/leafline/dispensary-cli/internal/config"
	"github.com/leafline/dispensary-cli/internal/model"
)

// Component weights. The weighted sub-scores sum to at most 100.
const (
	weightRating       = 25.0
	weightReviews      = 15.0
	weightListings     = 10.0
	weightVotes        = 20.0
	weightViews        = 10.0
	weightCompleteness = 10.0
	weightEngagement   = 10.0
)

// Listing sub-score points.
const (
	leaflyPoints       = 50.0
	weedmapsPoints     = 40.0
	otherListingPoints = 5.0
	maxOtherListings   = 2
)

// Store is the persistence surface the calculator reads signals from and
// writes scores to.
type Store interface {
	ListActiveDispensaries(ctx context.Context) ([]model.Dispensary, error)
	GetCounty(ctx context.Context, id int64) (*model.County, error)
	VoteCounts(ctx context.Context, dispensaryID int64) (model.VoteCounts, error)
	ViewCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error)
	ClickCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error)
	MaxReviewCount(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error)
	MaxNetVotes(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error)
	MaxViewCount(ctx context.Context, scope model.ScopeType, scopeID int64, windowDays int) (int, error)
	UpsertRanking(ctx context.Context, dispensaryID int64, scope model.ScopeType, scopeID int64, score float64) error
	UpdateRanks(ctx context.Context, scope model.ScopeType, scopeID int64) error
}

// ComponentScores breaks a composite score into its weighted inputs.
// Each component is on a 0-100 scale before weighting.
type ComponentScores struct {
	Rating       float64
	Reviews      float64
	Listings     float64
	Votes        float64
	Views        float64
	Completeness float64
	Engagement   float64
}

// Calculator scores dispensaries against their geographic cohort.
type Calculator struct {
	store Store
	cfg   config.RankingConfig
	log   *zap.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(store Store, cfg config.RankingConfig) *Calculator {
	if cfg.EngagementFullClicks <= 0 {
		cfg.EngagementFullClicks = 10
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	return &Calculator{
		store: store,
		cfg:   cfg,
		log:   zap.L().With(zap.String("component", "ranking.calculator")),
	}
}

// cohort returns the normalization scope for a dispensary: its county when
// assigned, otherwise its state.
func cohort(d *model.Dispensary) (model.ScopeType, int64, bool) {
	if d.CountyID != nil {
		return model.ScopeCounty, *d.CountyID, true
	}
	if d.StateID != nil {
		return model.ScopeState, *d.StateID, true
	}
	return "", 0, false
}

// Score computes the composite score for a dispensary. Sub-scores whose
// inputs cannot be fetched degrade to zero rather than failing the whole
// calculation.
func (c *Calculator) Score(ctx context.Context, d *model.Dispensary) (float64, ComponentScores) {
	scope, scopeID, ok := cohort(d)
	if !ok {
		// No geography at all: only the cohort-free components contribute.
		c.log.Warn("dispensary has no county or state, cohort sub-scores zeroed",
			zap.Int64("dispensary_id", d.ID))
	}

	var cs ComponentScores
	cs.Rating = ratingScore(d.GoogleRating)
	cs.Listings = listingScore(d.ExternalListings)
	cs.Completeness = clamp(float64(d.CompletenessScore), 0, 100)

	if ok {
		cs.Reviews = c.reviewScore(ctx, d, scope, scopeID)
		cs.Votes = c.voteScore(ctx, d, scope, scopeID)
		cs.Views = c.viewScore(ctx, d, scope, scopeID)
	}
	cs.Engagement = c.engagementScore(ctx, d)

	composite := (cs.Rating*weightRating +
		cs.Reviews*weightReviews +
		cs.Listings*weightListings +
		cs.Votes*weightVotes +
		cs.Views*weightViews +
		cs.Completeness*weightCompleteness +
		cs.Engagement*weightEngagement) / 100

	return round2(clamp(composite, 0, 100)), cs
}

// ratingScore maps a 1-5 star rating onto 0-100. Unrated places score zero.
func ratingScore(rating float64) float64 {
	if rating <= 0 {
		return 0
	}
	return clamp((rating-1)/4*100, 0, 100)
}

// reviewScore is log-normalized against the cohort's highest review count,
// so a handful of reviews in a sparse county still differentiates.
func (c *Calculator) reviewScore(ctx context.Context, d *model.Dispensary, scope model.ScopeType, scopeID int64) float64 {
	maxReviews, err := c.store.MaxReviewCount(ctx, scope, scopeID)
	if err != nil {
		c.logDegraded(d.ID, "reviews", err)
		return 0
	}
	if maxReviews <= 0 || d.GoogleReviewCount <= 0 {
		return 0
	}
	score := math.Log(float64(d.GoogleReviewCount)+1) / math.Log(float64(maxReviews)+1) * 100
	return clamp(score, 0, 100)
}

func listingScore(listings model.ExternalListings) float64 {
	var score float64
	if listings.Leafly != nil {
		score += leaflyPoints
	}
	if listings.Weedmaps != nil {
		score += weedmapsPoints
	}
	score += otherListingPoints * float64(min(len(listings.Other), maxOtherListings))
	return clamp(score, 0, 100)
}

func (c *Calculator) voteScore(ctx context.Context, d *model.Dispensary, scope model.ScopeType, scopeID int64) float64 {
	votes, err := c.store.VoteCounts(ctx, d.ID)
	if err != nil {
		c.logDegraded(d.ID, "votes", err)
		return 0
	}
	maxNet, err := c.store.MaxNetVotes(ctx, scope, scopeID)
	if err != nil {
		c.logDegraded(d.ID, "votes", err)
		return 0
	}
	if maxNet <= 0 || votes.NetVotes <= 0 {
		return 0
	}
	return clamp(float64(votes.NetVotes)/float64(maxNet)*100, 0, 100)
}

func (c *Calculator) viewScore(ctx context.Context, d *model.Dispensary, scope model.ScopeType, scopeID int64) float64 {
	views, err := c.store.ViewCount(ctx, d.ID, c.cfg.WindowDays)
	if err != nil {
		c.logDegraded(d.ID, "views", err)
		return 0
	}
	maxViews, err := c.store.MaxViewCount(ctx, scope, scopeID, c.cfg.WindowDays)
	if err != nil {
		c.logDegraded(d.ID, "views", err)
		return 0
	}
	if maxViews <= 0 || views <= 0 {
		return 0
	}
	return clamp(float64(views)/float64(maxViews)*100, 0, 100)
}

// engagementScore saturates at EngagementFullClicks clicks in the window.
func (c *Calculator) engagementScore(ctx context.Context, d *model.Dispensary) float64 {
	clicks, err := c.store.ClickCount(ctx, d.ID, c.cfg.WindowDays)
	if err != nil {
		c.logDegraded(d.ID, "engagement", err)
		return 0
	}
	return clamp(float64(clicks)/float64(c.cfg.EngagementFullClicks)*100, 0, 100)
}

func (c *Calculator) logDegraded(dispensaryID int64, component string, err error) {
	c.log.Warn("sub-score degraded to zero",
		zap.Int64("dispensary_id", dispensaryID),
		zap.String("sub_score", component),
		zap.Error(err),
	)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
