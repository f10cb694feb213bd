package model

import "time"

// ScopeType identifies the geographic grouping a ranking belongs to.
type ScopeType string

const (
	ScopeCounty ScopeType = "county"
	ScopeState  ScopeType = "state"
)

// Ranking is one scored row per dispensary per applicable scope.
// Rank is 1-based and dense within (ScopeType, ScopeID); it is rewritten
// in full on every scoring run.
type Ranking struct {
	ID             int64     `json:"id"`
	DispensaryID   int64     `json:"dispensary_id"`
	ScopeType      ScopeType `json:"scope_type"`
	ScopeID        int64     `json:"scope_id"`
	CompositeScore float64   `json:"composite_score"`
	Rank           int       `json:"rank"`
	PreviousRank   int       `json:"previous_rank,omitempty"`
	CalculatedAt   time.Time `json:"calculated_at"`
}
