package model

import "time"

// CrawlStatus represents the lifecycle of a crawl run record.
type CrawlStatus string

const (
	CrawlStatusRunning   CrawlStatus = "running"
	CrawlStatusCompleted CrawlStatus = "completed"
	CrawlStatusFailed    CrawlStatus = "failed"
)

// CrawlJobType distinguishes the three crawl granularities.
type CrawlJobType string

const (
	CrawlJobCounty CrawlJobType = "county"
	CrawlJobState  CrawlJobType = "state"
	CrawlJobAll    CrawlJobType = "all"
)

// CrawlLog is the write-once-then-complete record for a single crawl run.
type CrawlLog struct {
	ID          string       `json:"id"`
	JobType     CrawlJobType `json:"job_type"`
	Location    string       `json:"location"`
	StartedAt   time.Time    `json:"started_at"`
	Found       int          `json:"dispensaries_found"`
	Added       int          `json:"dispensaries_added"`
	Updated     int          `json:"dispensaries_updated"`
	Errors      []string     `json:"errors,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Status      CrawlStatus  `json:"status"`
}

// CrawlStats aggregates the outcome of one or more crawl units.
type CrawlStats struct {
	Found   int `json:"found"`
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Merge accumulates another unit's stats into s.
func (s *CrawlStats) Merge(other CrawlStats) {
	s.Found += other.Found
	s.Added += other.Added
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}
