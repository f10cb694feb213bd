// Package store provides durable persistence for dispensaries, geography,
// rankings, and crawl logs, with Postgres and SQLite backends.
package store

import (
	"context"

	"github.com/leafline/dispensary-cli/internal/model"
)

// Store defines the persistence interface shared by the acquisition
// crawler and the ranking pipeline.
type Store interface {
	// Dispensaries
	GetDispensaryByPlaceID(ctx context.Context, placeID string) (*model.Dispensary, error)
	UpsertDispensary(ctx context.Context, d *model.Dispensary) (created bool, err error)
	ListActiveDispensaries(ctx context.Context) ([]model.Dispensary, error)
	ListActiveMissingCounty(ctx context.Context) ([]model.Dispensary, error)
	UpdateDispensaryRating(ctx context.Context, id int64, rating float64, reviewCount int) error
	AssignCounty(ctx context.Context, dispensaryID, countyID int64) error
	TopRankedDispensaries(ctx context.Context, limit int) ([]model.Dispensary, error)

	// Engagement aggregates, read-only inputs to scoring. View and click
	// counts are windowed to the trailing windowDays.
	VoteCounts(ctx context.Context, dispensaryID int64) (model.VoteCounts, error)
	ViewCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error)
	ClickCount(ctx context.Context, dispensaryID int64, windowDays int) (int, error)

	// Cohort maxima among active dispensaries within a scope.
	MaxReviewCount(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error)
	MaxNetVotes(ctx context.Context, scope model.ScopeType, scopeID int64) (int, error)
	MaxViewCount(ctx context.Context, scope model.ScopeType, scopeID int64, windowDays int) (int, error)

	// Rankings
	UpsertRanking(ctx context.Context, dispensaryID int64, scope model.ScopeType, scopeID int64, score float64) error
	UpdateRanks(ctx context.Context, scope model.ScopeType, scopeID int64) error

	// Geography
	GetCounty(ctx context.Context, id int64) (*model.County, error)
	GetStateByAbbr(ctx context.Context, abbr string) (*model.State, error)
	ListStates(ctx context.Context) ([]model.State, error)
	ListCounties(ctx context.Context) ([]model.County, error)
	ListCountiesByState(ctx context.Context, stateID int64) ([]model.County, error)
	UpsertState(ctx context.Context, name, abbr string) (int64, error)
	UpsertCounty(ctx context.Context, stateID int64, name string) (int64, error)

	// Crawl log
	StartCrawlLog(ctx context.Context, jobType model.CrawlJobType, location string) (string, error)
	CompleteCrawlLog(ctx context.Context, id string, found, added, updated int, errs []string) error
	FailCrawlLog(ctx context.Context, id string, errMsg string) error
	ListCrawlLogs(ctx context.Context, limit int) ([]model.CrawlLog, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
