// Package monitoring summarizes pipeline health from the crawl log and
// the stored dispensary corpus.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leafline/dispensary-cli/internal/model"
)

// crawlLogLimit bounds how many recent runs a snapshot considers.
const crawlLogLimit = 1000

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Crawl runs within the lookback window.
	CrawlTotal     int     `json:"crawl_total"`
	CrawlCompleted int     `json:"crawl_completed"`
	CrawlFailed    int     `json:"crawl_failed"`
	CrawlRunning   int     `json:"crawl_running"`
	CrawlFailRate  float64 `json:"crawl_fail_rate"`

	// Aggregated acquisition counts within the window.
	Found   int `json:"dispensaries_found"`
	Added   int `json:"dispensaries_added"`
	Updated int `json:"dispensaries_updated"`

	// Corpus state, not windowed.
	ActiveDispensaries int     `json:"active_dispensaries"`
	MissingCounty      int     `json:"missing_county"`
	AvgCompleteness    float64 `json:"avg_completeness"`

	LastCompletedCrawl *time.Time `json:"last_completed_crawl,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Store is the read surface the collector needs.
type Store interface {
	ListCrawlLogs(ctx context.Context, limit int) ([]model.CrawlLog, error)
	ListActiveDispensaries(ctx context.Context) ([]model.Dispensary, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	store Store
}

// NewCollector creates a metrics collector.
func NewCollector(st Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}
	cutoff := snap.CollectedAt.Add(-time.Duration(lookbackHours) * time.Hour)

	logs, err := c.store.ListCrawlLogs(ctx, crawlLogLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list crawl logs")
	}

	for _, cl := range logs {
		if cl.Status == model.CrawlStatusCompleted && cl.CompletedAt != nil {
			if snap.LastCompletedCrawl == nil || cl.CompletedAt.After(*snap.LastCompletedCrawl) {
				t := *cl.CompletedAt
				snap.LastCompletedCrawl = &t
			}
		}

		if cl.StartedAt.Before(cutoff) {
			continue
		}
		snap.CrawlTotal++
		switch cl.Status {
		case model.CrawlStatusCompleted:
			snap.CrawlCompleted++
		case model.CrawlStatusFailed:
			snap.CrawlFailed++
		case model.CrawlStatusRunning:
			snap.CrawlRunning++
		}
		snap.Found += cl.Found
		snap.Added += cl.Added
		snap.Updated += cl.Updated
	}
	if snap.CrawlTotal > 0 {
		snap.CrawlFailRate = float64(snap.CrawlFailed) / float64(snap.CrawlTotal)
	}

	dispensaries, err := c.store.ListActiveDispensaries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list active dispensaries")
	}
	snap.ActiveDispensaries = len(dispensaries)

	var completenessSum int
	for _, d := range dispensaries {
		completenessSum += d.CompletenessScore
		if d.CountyID == nil {
			snap.MissingCounty++
		}
	}
	if len(dispensaries) > 0 {
		snap.AvgCompleteness = float64(completenessSum) / float64(len(dispensaries))
	}

	return snap, nil
}
